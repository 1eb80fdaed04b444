package matchhub

import (
	"context"
	"encoding/json"
	"log"

	"unichat/backend/internal/models"
	"unichat/backend/internal/storage"
)

// StartPubSubListener launches the goroutine that listens to the Redis match
// event channel and hands events addressed to locally connected clients to
// their send channels. Instances without a live broker (tests with a mocked
// Storage) simply skip the subscription.
func (m *ManagerService) StartPubSubListener(ctx context.Context) {
	svc, ok := m.Storage.(*storage.Service)
	if !ok {
		return
	}
	go func() {
		pubsub := svc.SubscribeEvents(ctx)
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var evt models.MatchEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Printf("Error unmarshalling Redis message: %v", err)
				continue
			}
			m.Deliver(evt)
		}
	}()
}
