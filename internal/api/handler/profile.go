package handler

import (
	"net/http"

	"unichat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type updateProfileRequest struct {
	Gender    string   `json:"gender"`
	Seeking   string   `json:"seeking"`
	Interests []string `json:"interests"`
}

// GetProfile returns the caller's profile, including the coin balance.
func (h *Handler) GetProfile(c *gin.Context) {
	anonID, ok := h.authenticate(c)
	if !ok {
		return
	}
	user, err := h.Storage.GetUserByID(anonID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile sets the caller's gender, default preference and interest
// tags. These feed every subsequent search.
func (h *Handler) UpdateProfile(c *gin.Context) {
	anonID, ok := h.authenticate(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Seeking != "" && req.Seeking != models.SeekAny &&
		req.Seeking != models.SeekMale && req.Seeking != models.SeekFemale {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seeking must be any, male or female"})
		return
	}

	user, err := h.Storage.GetUserByID(anonID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	if req.Gender != "" {
		user.Gender = req.Gender
	}
	if req.Seeking != "" {
		user.Seeking = req.Seeking
	}
	if req.Interests != nil {
		user.Interests = req.Interests
	}
	if err := h.Storage.SaveUser(user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save profile"})
		return
	}
	c.JSON(http.StatusOK, user)
}
