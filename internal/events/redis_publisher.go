package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher forwards events to a Redis pub/sub channel so other instances and
// external consumers observe lifecycle changes. The notification worker calls Handle
// off the request path.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher builds a publisher for the given channel.
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Handle is an EventHandler that publishes the JSON encoded event.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.client.Publish(ctx, p.channel, body).Err()
}

// AllEventTypes lists every event type the service emits.
func AllEventTypes() []EventType {
	return []EventType{
		EventTicketCreated,
		EventTicketClaimed,
		EventTicketConcluded,
		EventTicketRejected,
		EventTicketDeleted,
	}
}
