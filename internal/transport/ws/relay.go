package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/amarket/chat-service/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultRelayChannel = "chat:rooms"

type relayEnvelope struct {
	Origin string           `json:"origin"`
	Key    string           `json:"key"`
	Kind   domain.EventKind `json:"kind"`
	Event  json.RawMessage  `json:"event"`
}

// RedisRelay связывает Hub'ы нескольких инстансов через Redis pub/sub.
// Собственные публикации узнаются по origin и повторно не раздаются.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub

	pubsub *redis.PubSub
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
	}
}

func (r *RedisRelay) Origin() string { return r.origin }

func (r *RedisRelay) Publish(ctx context.Context, key string, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	data, err := json.Marshal(relayEnvelope{
		Origin: r.origin,
		Key:    key,
		Kind:   ev.Kind(),
		Event:  body,
	})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Start подписывается на канал, дожидается подтверждения и запускает
// чтение в фоне до отмены ctx или Close.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.pubsub = r.client.Subscribe(ctx, r.channel)
	if _, err := r.pubsub.Receive(ctx); err != nil {
		_ = r.pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	go r.loop(ctx)
	slog.Info("room relay started", "channel", r.channel, "origin", r.origin)
	return nil
}

func (r *RedisRelay) Close() error {
	if r.pubsub == nil {
		return nil
	}
	return r.pubsub.Close()
}

func (r *RedisRelay) loop(ctx context.Context) {
	ch := r.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			key, ev, err := r.decode(msg.Payload)
			if err != nil {
				slog.Warn("room relay: bad payload", "err", err)
				continue
			}
			if ev == nil {
				continue
			}
			// только локальная раздача, без повторной публикации в Redis
			r.hub.PublishLocal(key, ev)
		case <-ctx.Done():
			return
		}
	}
}

// decode возвращает nil-событие для собственных публикаций.
func (r *RedisRelay) decode(payload string) (string, domain.Event, error) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return "", nil, err
	}
	if env.Origin == r.origin {
		return "", nil, nil
	}

	switch env.Kind {
	case domain.EventNewMessage:
		var ev domain.NewMessageEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return "", nil, err
		}
		return env.Key, ev, nil
	case domain.EventReadReceipt:
		var ev domain.ReadReceiptEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return "", nil, err
		}
		return env.Key, ev, nil
	default:
		return "", nil, fmt.Errorf("unknown event kind %q", env.Kind)
	}
}
