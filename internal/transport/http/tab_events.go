package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"survey-quiz-service/internal/domain"
	"go.uber.org/zap"
)

const maxTabEventBody = 4 << 10

type tabEventRequest struct {
	Kind            string `json:"kind"`
	ClientTimestamp string `json:"clientTimestamp,omitempty"`
}

type tabEventResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (h *Handler) tabEvent(w http.ResponseWriter, r *http.Request) {
	var req tabEventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTabEventBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, tabEventResponse{Error: "invalid JSON body"})
		return
	}
	err := h.service.RecordTabEvent(r.Context(), sessionKey(r), req.Kind, parseClientTimestamp(req.ClientTimestamp))
	if err != nil {
		status, msg := tabEventStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("record tab event", zap.String("kind", req.Kind), zap.Error(err))
		}
		writeJSON(w, status, tabEventResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, tabEventResponse{OK: true})
}

// parseClientTimestamp keeps the client clock when it is readable. The
// server receive time is always recorded, so an unreadable value is dropped.
func parseClientTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &t
}

func tabEventStatus(err error) (int, string) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest, err.Error()
	case domain.KindSessionState:
		if errors.Is(err, domain.ErrSessionNotFound) {
			return http.StatusNotFound, "no active session"
		}
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "could not record event"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
