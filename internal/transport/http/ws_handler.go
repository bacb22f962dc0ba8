package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"survey-quiz-service/internal/app"
	"survey-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler streams tab visibility events from the question page over a
// websocket, as an alternative to one POST per event.
type WSHandler struct {
	service  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		// Default origin check: the session cookie must not be usable cross-site.
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type readyPayload struct {
	Nickname string `json:"nickname"`
	Events   int    `json:"events"`
}

type ackPayload struct {
	Kind string `json:"kind"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades a request bound to an unfinished attempt and records
// every "tab" message it receives.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(r)
	session, err := h.service.Lookup(r.Context(), key)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, "no active session", http.StatusNotFound)
		return
	case err != nil:
		h.log.Error("ws session lookup failed", zap.Error(err))
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	case session.Finished:
		http.Error(w, domain.ErrAttemptFinished.Error(), http.StatusConflict)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	out := newOutbox(16)

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(out.done)
		for msg := range out.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()
	defer out.close()

	if !out.push(outboundMessage[any]{Type: "ready", Payload: readyPayload{
		Nickname: session.Nickname,
		Events:   len(session.TabEvents),
	}}) {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		if inbound.Type != "tab" {
			if !out.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}) {
				return
			}
			continue
		}
		var payload tabEventRequest
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			if !out.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid tab payload"}}) {
				return
			}
			continue
		}
		err := h.service.RecordTabEvent(r.Context(), key, payload.Kind, parseClientTimestamp(payload.ClientTimestamp))
		if err != nil {
			_, msg := tabEventStatus(err)
			if !out.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}) {
				return
			}
			if domain.KindOf(err) == domain.KindSessionState {
				return
			}
			continue
		}
		if !out.push(outboundMessage[any]{Type: "ack", Payload: ackPayload{Kind: payload.Kind}}) {
			return
		}
	}
}

// outbox hands messages to the connection's single writer goroutine.
type outbox struct {
	send chan outboundMessage[any]
	// done is closed by the writer when it exits.
	done chan struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{
		send: make(chan outboundMessage[any], size),
		done: make(chan struct{}),
	}
}

// push queues msg and reports false once the writer is gone.
func (o *outbox) push(msg outboundMessage[any]) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

// close stops the writer and waits for it to flush or fail.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}
