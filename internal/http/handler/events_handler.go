package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
)

type eventPayload struct {
	Session SessionView `json:"session"`
	Cleared bool        `json:"cleared"`
	Reason  string      `json:"reason,omitempty"`
}

type notificationPayload struct {
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Method  string `json:"method"`
	Path    string `json:"path"`
}

// NotificationSource is the gateway's stream of user-facing failure notifications.
type NotificationSource interface {
	Subscribe(buffer int) (<-chan gateway.Notification, func())
}

// EventsHandler streams session events as server-sent events. The first event is always a
// "snapshot" of the current session; later events are named by their kind, and cleared=true tells
// the page to navigate to the login route. Failed requests arrive as "notification" events.
type EventsHandler struct {
	session       SessionSource
	notifications NotificationSource
	logger        *slog.Logger
}

// NewEventsHandler accepts a nil notification source, in which case only session events are sent.
func NewEventsHandler(src SessionSource, notes NotificationSource, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{session: src, notifications: notes, logger: logger}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, r, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported", nil)
		return
	}
	events, cancel := h.session.Subscribe(32)
	defer cancel()
	var notes <-chan gateway.Notification
	if h.notifications != nil {
		ch, stop := h.notifications.Subscribe(32)
		defer stop()
		notes = ch
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", eventPayload{Session: NewSessionView(h.session.Snapshot())}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload := eventPayload{Session: NewSessionView(ev.State), Cleared: ev.Cleared, Reason: ev.Reason}
			if err := writeEvent(w, string(ev.Kind), payload); err != nil {
				h.logger.DebugContext(r.Context(), "session event stream closed", "error", err)
				return
			}
			flusher.Flush()
		case n, open := <-notes:
			if !open {
				return
			}
			payload := notificationPayload{Kind: string(n.Kind), Status: n.Status, Message: n.Message, Method: n.Method, Path: n.Path}
			if err := writeEvent(w, "notification", payload); err != nil {
				h.logger.DebugContext(r.Context(), "session event stream closed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
