package ws

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/amarket/chat-service/internal/domain"
	"github.com/amarket/chat-service/internal/metrics"
	"github.com/amarket/chat-service/pkg/logger"
)

const (
	defaultQueueSize = 64
	publishStripes   = 32
)

// Relay пересылает события комнат другим инстансам сервиса.
type Relay interface {
	Publish(ctx context.Context, key string, ev domain.Event) error
}

// Subscription — подписка одного соединения на комнату.
// Events читает только writer соединения; Done закрывается при Leave,
// вытеснении медленного подписчика или остановке Hub.
type Subscription struct {
	key  string
	user domain.User

	events chan domain.Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Key() string { return s.key }
func (s *Subscription) User() domain.User { return s.user }
func (s *Subscription) Events() <-chan domain.Event { return s.events }
func (s *Subscription) Done() <-chan struct{} { return s.done }
func (s *Subscription) stop() { s.once.Do(func() { close(s.done) }) }

// Hub — реестр живых подписок: ключ комнаты -> множество подписок.
// Soft state: после рестарта восстанавливается переподключением клиентов.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*Subscription]struct{}
	closed bool

	// publishMu[stripe(key)] держится на время локальной рассылки и relay,
	// чтобы другие инстансы видели события комнаты в том же порядке.
	publishMu [publishStripes]sync.Mutex

	queueSize int
	metrics   *metrics.Metrics
	relay     Relay
}

func NewHub(queueSize int, m *metrics.Metrics) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		rooms:     make(map[string]map[*Subscription]struct{}),
		queueSize: queueSize,
		metrics:   m,
	}
}

// SetRelay подключает межинстансовую рассылку. Вызывать до начала обслуживания.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

func (h *Hub) Join(key string, user domain.User) *Subscription {
	sub := &Subscription{
		key:    key,
		user:   user,
		events: make(chan domain.Event, h.queueSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.stop()
		return sub
	}
	rs, ok := h.rooms[key]
	if !ok {
		rs = make(map[*Subscription]struct{})
		h.rooms[key] = rs
	}
	rs[sub] = struct{}{}
	h.metrics.SetRooms(len(h.rooms))

	return sub
}

// Leave идемпотентен: повторный вызов и вызов после вытеснения безопасны.
func (h *Hub) Leave(sub *Subscription) {
	h.mu.Lock()
	h.remove(sub)
	h.mu.Unlock()

	sub.stop()
}

// Publish рассылает событие локальным подписчикам комнаты и, если настроен, через relay.
func (h *Hub) Publish(key string, ev domain.Event) {
	mu := &h.publishMu[stripe(key)]
	mu.Lock()
	defer mu.Unlock()

	h.PublishLocal(key, ev)

	h.mu.Lock()
	relay := h.relay
	h.mu.Unlock()
	if relay == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := relay.Publish(ctx, key, ev); err != nil {
		slog.Warn("room relay publish failed", logger.Room(key), "kind", ev.Kind(), logger.Err(err))
	}
}

func stripe(key string) uint32 {
	f := fnv.New32a()
	_, _ = f.Write([]byte(key))
	return f.Sum32() % publishStripes
}

// PublishLocal — fan-out только по подпискам этого процесса.
// Эксклюзивная блокировка даёт порядок доставки внутри комнаты = порядок вызовов.
// Постановка в очередь не блокирует: подписчик с полной очередью вытесняется,
// остальные получают событие.
func (h *Hub) PublishLocal(key string, ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.EventPublished(string(ev.Kind()))

	for sub := range h.rooms[key] {
		select {
		case sub.events <- ev:
		default:
			slog.Warn("room subscriber evicted: queue full",
				logger.Room(key), logger.User(sub.user.Username))
			h.metrics.DeliveryDropped()
			h.remove(sub)
			sub.stop()
		}
	}
}

// Subscribers — число живых подписок комнаты.
func (h *Hub) Subscribers(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[key])
}

// Close завершает все подписки; новые Join сразу получают закрытую подписку.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for key, rs := range h.rooms {
		for sub := range rs {
			sub.stop()
		}
		delete(h.rooms, key)
	}
	h.metrics.SetRooms(0)
}

// remove — под h.mu.
func (h *Hub) remove(sub *Subscription) {
	rs, ok := h.rooms[sub.key]
	if !ok {
		return
	}
	delete(rs, sub)
	if len(rs) == 0 {
		delete(h.rooms, sub.key)
	}
	h.metrics.SetRooms(len(h.rooms))
}
