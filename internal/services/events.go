package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published after a sponsored transaction settles.
const (
	EventSponsorshipConfirmed = "sponsorship.confirmed"
	EventSponsorshipFailed    = "sponsorship.failed"
)

// EventChannelPrefix namespaces per-address Redis channels.
const EventChannelPrefix = "sponsorship:"

// SponsorshipEvent is pushed to the user's websocket subscribers.
type SponsorshipEvent struct {
	Type            string    `json:"type"`
	UserAddress     string    `json:"userAddress"`
	TransactionHash string    `json:"transactionHash,omitempty"`
	MarketID        string    `json:"marketId,omitempty"`
	GasUsed         int64     `json:"gasUsed"`
	GasUsedToday    int64     `json:"gasUsedToday"`
	ChainStatus     string    `json:"chainStatus,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// EventPublisher delivers sponsorship events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event SponsorshipEvent) error
}

// EventChannel returns the Redis channel for a user's events.
func EventChannel(userAddress string) string {
	return EventChannelPrefix + NormalizeAddress(userAddress)
}

// RedisEventPublisher publishes events with Redis PUBLISH.
type RedisEventPublisher struct {
	client *redis.Client
}

// NewRedisEventPublisher creates a publisher on client.
func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, event SponsorshipEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, EventChannel(event.UserAddress), payload).Err()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, SponsorshipEvent) error { return nil }
