package matchhub_test

import (
	"testing"

	"unichat/backend/internal/matchhub"
	"unichat/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

// TestWebSocketClientCloseKeepsSendOpen verifies the hub can keep delivering
// into a client's send channel after the client is closed, and that closing
// twice is harmless. Deliver runs outside the hub lock, so it can race with
// unregistration and must never hit a closed channel.
func TestWebSocketClientCloseKeepsSendOpen(t *testing.T) {
	client := matchhub.NewWebSocketClient(nil, "user-a", "en", nil)

	assert.NotPanics(t, func() {
		client.Close()
		client.Close()
		client.GetSendChannel() <- models.MatchEvent{Type: models.EventMatchFound, UserID: "user-a"}
	})
}
