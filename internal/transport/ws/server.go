package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/amarket/chat-service/internal/domain"
	"github.com/amarket/chat-service/internal/metrics"
	"github.com/amarket/chat-service/pkg/errs"
	"github.com/amarket/chat-service/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type ChatSvc interface {
	ResolvePeer(ctx context.Context, me domain.User, username string) (*domain.User, error)
	AppendMessage(ctx context.Context, sender, receiver domain.UserID, content string) (*domain.Message, error)
}

type ReceiptSvc interface {
	OnDelivered(ctx context.Context, ev domain.NewMessageEvent, viewer domain.User) (bool, error)
}

// IdentityFunc достаёт аутентифицированного пользователя, привязанного к запросу.
type IdentityFunc func(ctx context.Context) (domain.User, bool)

type Options struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	AllowedOrigins []string
}

// ReadLimit ограничивает кадр целиком: кадр больше лимита закрывает соединение
// (1009 message too big), а не даёт кадр ошибки. Длина текста проверяется отдельно.
func (o *Options) withDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
}

// Server — шлюз живых соединений чата: одна сессия на соединение,
// подписка на комнату пары, сохранение входящих и раздача событий.
type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	chat     ChatSvc
	receipts ReceiptSvc
	identity IdentityFunc
	metrics  *metrics.Metrics
	opts     Options
}

func NewServer(hub *Hub, chat ChatSvc, receipts ReceiptSvc, identity IdentityFunc, m *metrics.Metrics, opts Options) *Server {
	opts.withDefaults()
	s := &Server{
		hub:      hub,
		chat:     chat,
		receipts: receipts,
		identity: identity,
		metrics:  m,
		opts:     opts,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// WS endpoint: GET /ws/chat/{username}
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	me, ok := s.identity(r.Context())
	if !ok {
		http.Error(w, domain.ErrAuthenticationRequired.Error(), http.StatusUnauthorized)
		return
	}
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		http.Error(w, "missing username", http.StatusBadRequest)
		return
	}

	// собеседник разрешается до upgrade: неизвестный username -> обычный 404
	peer, err := s.chat.ResolvePeer(r.Context(), me, username)
	if err != nil {
		if errs.ToHTTP(err) == http.StatusInternalServerError {
			slog.Error("ws resolve peer failed", logger.User(me.Username), "peer", username, logger.Err(err))
		}
		http.Error(w, errs.Message(err), errs.ToHTTP(err))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		slog.Warn("ws upgrade failed", logger.User(me.Username), logger.Err(err))
		return
	}

	c := &session{
		conn:   conn,
		me:     me,
		peer:   *peer,
		key:    domain.RoomKeyOf(me, *peer),
		errs:   make(chan ErrorFrame, 8),
		closed: make(chan struct{}),
	}
	c.sub = s.hub.Join(c.key, me)
	defer s.hub.Leave(c.sub)

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	log := slog.With(logger.Room(c.key), logger.User(me.Username))
	log.Info("ws joined")
	defer log.Info("ws left")

	ctx := r.Context()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump(ctx, c)
	}()

	s.readLoop(ctx, c)
	c.close()
	wg.Wait()
}

func (s *Server) readLoop(ctx context.Context, c *session) {
	c.conn.SetReadLimit(s.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read failed", logger.Room(c.key), logger.User(c.me.Username), logger.Err(err))
			}
			return
		}

		var in InboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			c.fail("malformed frame")
			continue
		}

		msg, err := s.chat.AppendMessage(ctx, c.me.ID, c.peer.ID, in.Message)
		if err != nil {
			if !errors.Is(err, domain.ErrValidation) {
				slog.Warn("ws message not stored", logger.Room(c.key), logger.User(c.me.Username), logger.Err(err))
			}
			c.fail(errs.Message(err))
			continue
		}

		// рассылка только после успешной записи
		s.hub.Publish(c.key, domain.NewMessageEvent{
			MessageID:  msg.ID,
			SenderID:   c.me.ID,
			ReceiverID: c.peer.ID,
			Sender:     c.me.Username,
			Receiver:   c.peer.Username,
			Content:    msg.Content,
			CreatedAt:  msg.CreatedAt,
		})
	}
}

// writePump — единственный писатель в conn.
func (s *Server) writePump(ctx context.Context, c *session) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case ev := <-c.sub.Events():
			// чужая пара с тем же ключом комнаты
			if !ev.Between(c.me.ID, c.peer.ID) {
				s.metrics.DeliveryDropped()
				continue
			}
			frame := frameFor(ev)
			if frame == nil {
				continue
			}
			if err := s.write(c, frame); err != nil {
				return
			}
			if nm, ok := ev.(domain.NewMessageEvent); ok {
				if _, err := s.receipts.OnDelivered(ctx, nm, c.me); err != nil {
					slog.Warn("ws mark read failed", logger.Room(c.key), "message_id", nm.MessageID, logger.Err(err))
				}
			}
		case f := <-c.errs:
			if err := s.write(c, f); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout)); err != nil {
				return
			}
		case <-c.sub.Done():
			// вытеснены из комнаты или остановка сервиса
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(s.opts.WriteTimeout))
			return
		case <-c.closed:
			return
		}
	}
}

func (s *Server) write(c *session, v any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return c.conn.WriteJSON(v)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

type session struct {
	conn *websocket.Conn
	me   domain.User
	peer domain.User
	key  string
	sub  *Subscription

	errs      chan ErrorFrame
	closed    chan struct{}
	closeOnce sync.Once
}

// fail ставит кадр ошибки отправителю; при переполнении кадр теряется.
func (c *session) fail(msg string) {
	select {
	case c.errs <- errorFrame(msg):
	default:
	}
}

func (c *session) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}
