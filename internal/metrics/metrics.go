package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics — все коллекторы сервиса. Методы безопасны для nil-получателя,
// чтобы тесты и компоненты без метрик не проверяли это сами.
type Metrics struct {
	gatherer prometheus.Gatherer

	connections       prometheus.Gauge
	rooms             prometheus.Gauge
	eventsPublished   *prometheus.CounterVec
	deliveriesDropped prometheus.Counter
	messagesPersisted prometheus.Counter
	messagesRejected  *prometheus.CounterVec
	readTransitions   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New регистрирует коллекторы в reg. Для процесса — prometheus.DefaultRegisterer,
// в тестах — отдельный prometheus.NewRegistry().
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Number of live chat websocket connections",
		}),
		rooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_rooms_active",
			Help: "Number of rooms with at least one live subscriber",
		}),
		eventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_room_events_published_total",
			Help: "Events published to rooms",
		}, []string{"kind"}),
		deliveriesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_room_deliveries_dropped_total",
			Help: "Events not delivered because the subscriber queue was full or closed",
		}),
		messagesPersisted: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages stored",
		}),
		messagesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_rejected_total",
			Help: "Messages rejected before persistence",
		}, []string{"reason"}),
		readTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_read_transitions_total",
			Help: "Messages moved to the read state",
		}, []string{"source"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) SetRooms(n int) {
	if m != nil {
		m.rooms.Set(float64(n))
	}
}

func (m *Metrics) EventPublished(kind string) {
	if m != nil {
		m.eventsPublished.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) DeliveryDropped() {
	if m != nil {
		m.deliveriesDropped.Inc()
	}
}

func (m *Metrics) MessagePersisted() {
	if m != nil {
		m.messagesPersisted.Inc()
	}
}

func (m *Metrics) MessageRejected(reason string) {
	if m != nil {
		m.messagesRejected.WithLabelValues(reason).Inc()
	}
}

// MessagesRead: source = live | thread.
func (m *Metrics) MessagesRead(source string, n int64) {
	if m != nil && n > 0 {
		m.readTransitions.WithLabelValues(source).Add(float64(n))
	}
}

// Middleware — метрики HTTP по шаблону маршрута chi, а не по сырому пути.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler отдаёт /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}
