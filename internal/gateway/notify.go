package gateway

import (
	"context"
	"log/slog"
	"sync"
)

// Notification is the user-facing summary of a failed request.
type Notification struct {
	Kind    Kind
	Status  int
	Message string
	Method  string
	Path    string
}

// Level maps the failure kind to a log severity.
func (n Notification) Level() slog.Level {
	switch n.Kind {
	case KindAuthenticationExpired, KindValidation:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, n.Level(), n.Message,
		"kind", string(n.Kind),
		"status", n.Status,
		"method", n.Method,
		"path", n.Path,
	)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) {}

// Hub logs every notification, forwards it to an optional next notifier and fans it out to
// subscribers such as the UI shell event stream. Publishing never blocks; a full subscriber
// misses the notification.
type Hub struct {
	log  LogNotifier
	next Notifier

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Notification
}

func NewHub(logger *slog.Logger, next Notifier) *Hub {
	return &Hub{log: LogNotifier{Logger: logger}, next: next, subs: make(map[int]chan Notification)}
}

func (h *Hub) Notify(ctx context.Context, n Notification) {
	h.log.Notify(ctx, n)
	if h.next != nil {
		h.next.Notify(ctx, n)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

func (h *Hub) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Notification, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}
