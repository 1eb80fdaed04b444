package handler

import (
	"errors"
	"net/http"

	"unichat/backend/internal/matchhub"
	"unichat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type startMatchRequest struct {
	Seeking       string   `json:"seeking"`
	Interests     []string `json:"interests"`
	UseCoinFilter bool     `json:"use_coin_filter"`
	WaitSeconds   int      `json:"wait_seconds"`
}

// StartMatch queues the caller for matchmaking. Gender always comes from the
// stored profile; seeking and interests default to the profile when the
// request leaves them empty. The terminal outcome arrives as a match event
// over the websocket.
func (h *Handler) StartMatch(c *gin.Context) {
	anonID, ok := h.authenticate(c)
	if !ok {
		return
	}

	var req startMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.Storage.GetUserByID(anonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	seeking := req.Seeking
	if seeking == "" {
		seeking = user.Seeking
	}
	interests := req.Interests
	if interests == nil {
		interests = user.Interests
	}

	err = h.Hub.StartMatch(c.Request.Context(), matchhub.MatchRequest{
		UserID:        anonID,
		Gender:        user.Gender,
		Seeking:       seeking,
		Interests:     interests,
		UseCoinFilter: req.UseCoinFilter,
		WaitSeconds:   req.WaitSeconds,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "searching"})
	case errors.Is(err, matchhub.ErrAlreadyQueued):
		c.JSON(http.StatusConflict, gin.H{"error": "Already searching"})
	case errors.Is(err, matchhub.ErrAlreadyInSession):
		c.JSON(http.StatusConflict, gin.H{"error": "Already in a chat session"})
	case errors.Is(err, storage.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Not enough coins for the gender filter"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start search"})
	}
}

// CancelMatch stops the caller's search. Cancelling when not searching is a
// no-op.
func (h *Handler) CancelMatch(c *gin.Context) {
	anonID, ok := h.authenticate(c)
	if !ok {
		return
	}
	h.Hub.CancelMatch(c.Request.Context(), anonID)
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// MatchStatus reports the caller's current matchmaking state: the scheduler
// state while searching, otherwise whether a session pointer is set.
func (h *Handler) MatchStatus(c *gin.Context) {
	anonID, ok := h.authenticate(c)
	if !ok {
		return
	}
	if state, searching := h.Hub.SearchState(anonID); searching {
		c.JSON(http.StatusOK, gin.H{"state": state.String()})
		return
	}
	ptr, err := h.Storage.GetSessionPointer(c.Request.Context(), anonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read session state"})
		return
	}
	if ptr != "" {
		resp := gin.H{"state": "in_session", "session_id": ptr}
		if session, err := h.Storage.GetSessionByID(ptr); err == nil {
			partner := session.User1ID
			if partner == anonID {
				partner = session.User2ID
			}
			if online, err := h.Storage.GetPresence(c.Request.Context(), ptr, partner); err == nil {
				resp["partner_online"] = online
			}
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": "idle"})
}

type proposalRequest struct {
	ProposalID string `json:"proposal_id" binding:"required"`
}

// ConfirmProposal records the caller's confirmation of a match proposal.
func (h *Handler) ConfirmProposal(c *gin.Context) {
	anonID, ok := h.authenticate(c)
	if !ok {
		return
	}
	if h.Hub.Gate == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Confirmation gate disabled"})
		return
	}
	var req proposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposal_id required"})
		return
	}
	proposal, err := h.Hub.Gate.Confirm(c.Request.Context(), req.ProposalID, anonID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, proposal)
	case errors.Is(err, storage.ErrProposalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown proposal"})
	case errors.Is(err, matchhub.ErrProposalClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "Proposal is no longer pending"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm proposal"})
	}
}

// DeclineProposal discards the proposal; both parties stay queued.
func (h *Handler) DeclineProposal(c *gin.Context) {
	anonID, ok := h.authenticate(c)
	if !ok {
		return
	}
	if h.Hub.Gate == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Confirmation gate disabled"})
		return
	}
	var req proposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposal_id required"})
		return
	}
	err := h.Hub.Gate.Decline(c.Request.Context(), req.ProposalID, anonID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "declined"})
	case errors.Is(err, storage.ErrProposalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown proposal"})
	case errors.Is(err, matchhub.ErrProposalClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "Proposal is no longer pending"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decline proposal"})
	}
}

// LeaveChat closes the caller's active session and clears both participants'
// session pointers.
func (h *Handler) LeaveChat(c *gin.Context) {
	anonID, ok := h.authenticate(c)
	if !ok {
		return
	}
	ptr, err := h.Storage.GetSessionPointer(c.Request.Context(), anonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read session state"})
		return
	}
	if ptr == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active session"})
		return
	}
	if err := h.Storage.CloseSession(c.Request.Context(), ptr); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}
