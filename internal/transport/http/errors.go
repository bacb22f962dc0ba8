package http

import (
	"errors"
	"fmt"
	"net/http"

	"survey-quiz-service/internal/domain"
	"go.uber.org/zap"
)

var fieldLabels = map[string]string{
	"nickname":       "your nickname",
	"goal":           "your goal",
	"timeCommitment": "how much time you can commit",
}

// fail maps an error onto exactly one view or redirect. entry is the form to
// re-render for validation, cooldown and in-progress errors; nil outside the
// start step.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, entry *domain.EntryView) {
	if entry != nil && errors.Is(err, domain.ErrAttemptInProgress) {
		view := *entry
		view.Error = entryMessage(err)
		h.render(w, http.StatusConflict, "entry", view)
		return
	}
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindCooldown:
		if entry == nil {
			break
		}
		view := *entry
		view.Error = entryMessage(err)
		status := http.StatusUnprocessableEntity
		if domain.KindOf(err) == domain.KindCooldown {
			status = http.StatusTooManyRequests
		}
		h.render(w, status, "entry", view)
		return
	case domain.KindSessionState:
		redirect(w, r, sessionStateTarget(err))
		return
	}

	h.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("kind", domain.KindOf(err).String()),
		zap.Error(err),
	)
	h.render(w, http.StatusInternalServerError, "error", nil)
}

func sessionStateTarget(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "/"
	case errors.Is(err, domain.ErrAttemptComplete), errors.Is(err, domain.ErrAttemptFinished):
		return "/result"
	default:
		// Stale submits and early finalization land back on the current question.
		return "/question"
	}
}

func entryMessage(err error) string {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		label, ok := fieldLabels[validation.Field]
		if !ok {
			label = validation.Field
		}
		return fmt.Sprintf("Please fill in %s.", label)
	}
	var cooldown *domain.CooldownError
	if errors.As(err, &cooldown) {
		hours, minutes, seconds := cooldown.Parts()
		return fmt.Sprintf("You have already taken the survey. Next attempt available in %dh %dm %ds.", hours, minutes, seconds)
	}
	if errors.Is(err, domain.ErrAttemptInProgress) {
		return "Another survey is already in progress in this browser."
	}
	return err.Error()
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound)
}
