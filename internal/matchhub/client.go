package matchhub

import "unichat/backend/internal/models"

// Client is the interface for any type of realtime connection the hub
// manages. It abstracts the underlying transport so the hub can deliver
// match events uniformly.
type Client interface {
	// GetUserID returns the unique identifier for the user associated with
	// the client.
	GetUserID() string

	// GetLocale returns the client's preferred language for status lines.
	GetLocale() string

	// GetSendChannel returns the channel through which the hub pushes match
	// events intended for this specific client. It is a send-only channel.
	GetSendChannel() chan<- models.MatchEvent

	// Run starts the client's read and write pumps.
	Run()

	// Close gracefully shuts down the client's connection and channels.
	Close()
}
