package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// relayMessage is the wire format on the redis channel.
type relayMessage struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RedisRelay fans events out through a redis channel so every instance
// delivers them to its own websocket clients.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

var _ Publisher = (*RedisRelay)(nil)

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, hub: hub, logger: logger}
}

func encodeRelay(room, event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(relayMessage{Room: room, Event: event, Data: data})
}

// decodeRelay turns a channel message into the target room and the client frame.
func decodeRelay(raw string) (string, []byte, error) {
	var m relayMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return "", nil, fmt.Errorf("invalid relay message: %w", err)
	}
	if m.Room == "" || m.Event == "" {
		return "", nil, fmt.Errorf("relay message missing room or event")
	}
	frame, err := json.Marshal(Envelope{Event: m.Event, Data: m.Data})
	if err != nil {
		return "", nil, err
	}
	return m.Room, frame, nil
}

func (r *RedisRelay) Publish(ctx context.Context, room, event string, payload any) error {
	data, err := encodeRelay(room, event, payload)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to redis: %w", event, err)
	}
	return nil
}

// Run subscribes to the channel and hands every message to the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	r.logger.Info("Listening for push events", slog.String("channel", r.channel))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			room, frame, err := decodeRelay(msg.Payload)
			if err != nil {
				r.logger.Warn("Dropping push event", slog.Any("error", err))
				continue
			}
			if err := r.hub.Deliver(ctx, room, frame); err != nil {
				r.logger.Warn("Failed to deliver relayed push event", slog.String("room", room), slog.Any("error", err))
			}
		}
	}
}
