package hub

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"campus_connect/pkg/logger"
)

const broadcastChannel = "chat:events"

// Bridge replays broadcasts across instances through Redis pub/sub, so a
// room whose sessions are spread over several processes still sees every
// event exactly once.
type Bridge struct {
	origin string
	redis  *redis.Client
	hub    *Hub
	log    logger.Logger
}

type bridgeEnvelope struct {
	Origin  string    `json:"origin"`
	ChatID  uuid.UUID `json:"chat_id"`
	Exclude uuid.UUID `json:"exclude"`
	Event   OutEvent  `json:"event"`
}

func NewBridge(redisClient *redis.Client, h *Hub, log logger.Logger) *Bridge {
	return &Bridge{
		origin: uuid.NewString(),
		redis:  redisClient,
		hub:    h,
		log:    log,
	}
}

// Publish forwards a local broadcast to the other instances. Failures
// are logged: local delivery already happened and must not be rolled
// back because the bridge hiccuped.
func (b *Bridge) Publish(chatID uuid.UUID, event OutEvent, exclude uuid.UUID) {
	envelope := bridgeEnvelope{
		Origin:  b.origin,
		ChatID:  chatID,
		Exclude: exclude,
		Event:   event,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		b.log.Error("Failed to marshal bridge envelope", "error", err)
		return
	}
	if err := b.redis.Publish(context.Background(), broadcastChannel, data).Err(); err != nil {
		b.log.Error("Failed to publish broadcast", "error", err)
	}
}

// Listen consumes broadcasts from other instances until ctx is done.
// Events this instance originated are skipped, it already delivered them.
func (b *Bridge) Listen(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, broadcastChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				b.log.Error("Failed to unmarshal bridge envelope", "error", err)
				continue
			}
			if envelope.Origin == b.origin {
				continue
			}
			b.hub.deliverLocal(envelope.ChatID, envelope.Event, envelope.Exclude)
		}
	}
}
