package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type remoteKey struct{}

// IsRemote reports whether ctx carries an event that arrived from another instance
func IsRemote(ctx context.Context) bool {
	v, _ := ctx.Value(remoteKey{}).(bool)
	return v
}

func withRemote(ctx context.Context) context.Context {
	return context.WithValue(ctx, remoteKey{}, true)
}

type envelope struct {
	Origin  string          `json:"origin"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay forwards locally published grievance events to a Redis channel
// and replays events published by other instances onto the local bus, so the
// live views on every instance see every change.
type RedisRelay struct {
	client     redis.UniversalClient
	channel    string
	origin     string
	serializer *EventSerializer
	local      shared.EventPublisher
	logger     *zap.Logger
}

// NewRedisRelay creates a relay publishing to channel
func NewRedisRelay(client redis.UniversalClient, channel string, serializer *EventSerializer, local shared.EventPublisher, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:     client,
		channel:    channel,
		origin:     uuid.NewString(),
		serializer: serializer,
		local:      local,
		logger:     logger.Named("event_relay"),
	}
}

// EventTypes implements shared.EventHandler
func (r *RedisRelay) EventTypes() []string {
	return GrievanceEventTypes
}

// Handle publishes a local event to the channel. Replayed remote events are skipped.
func (r *RedisRelay) Handle(ctx context.Context, event shared.DomainEvent) error {
	if IsRemote(ctx) {
		return nil
	}
	data, err := r.encode(event)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s to redis: %w", event.EventType(), err)
	}
	return nil
}

// Run subscribes to the channel and replays foreign events until ctx is done
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("event relay subscribed", zap.String("channel", r.channel), zap.String("origin", r.origin))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.replay(ctx, []byte(msg.Payload))
		}
	}
}

// replay publishes one foreign relay message onto the local bus
func (r *RedisRelay) replay(ctx context.Context, data []byte) {
	event, foreign, err := r.decode(data)
	if err != nil {
		r.logger.Warn("dropping undecodable relay message", zap.Error(err))
		return
	}
	if !foreign {
		return
	}
	if err := r.local.Publish(withRemote(ctx), event); err != nil {
		r.logger.Warn("failed to replay relayed event",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
	}
}

func (r *RedisRelay) encode(event shared.DomainEvent) ([]byte, error) {
	payload, err := r.serializer.Serialize(event)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", event.EventType(), err)
	}
	return json.Marshal(envelope{Origin: r.origin, Type: event.EventType(), Payload: payload})
}

// decode returns the event and whether it came from another instance
func (r *RedisRelay) decode(data []byte) (shared.DomainEvent, bool, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false, err
	}
	event, err := r.serializer.Deserialize(env.Type, env.Payload)
	if err != nil {
		return nil, false, err
	}
	return event, env.Origin != r.origin, nil
}

var _ shared.EventHandler = (*RedisRelay)(nil)
