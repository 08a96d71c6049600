package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"learnloop-backend/internal/models"
)

func activityChannel(userID uuid.UUID) string {
	return "activity_updates:" + userID.String()
}

// Publisher fans successful checkpoints out through redis pub/sub so a
// dashboard open in another tab refreshes without polling. Implements
// tracker.EventSink.
type Publisher struct {
	redisClient *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redisClient: redisClient}
}

func (p *Publisher) Checkpoint(ctx context.Context, userID uuid.UUID, agg *models.DailyActivityAggregate) {
	msg := models.WSMessage{
		Type: "activity_checkpoint",
		Payload: models.ActivityCheckpointEvent{
			Date:         agg.Date,
			TotalSeconds: agg.TotalSeconds,
			Sessions:     len(agg.Sessions),
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := p.redisClient.Publish(ctx, activityChannel(userID), data).Err(); err != nil {
		log.Printf("activity publish failed for user %s: %v", userID, err)
	}
}
