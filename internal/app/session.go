package app

import (
	"strings"
	"time"

	"survey-quiz-service/internal/domain"
)

// State is the coarse position of an attempt in its lifecycle.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	default:
		return "not_started"
	}
}

// Session is one participant's attempt. It is serialized as-is by the
// session stores, so all state lives in exported fields.
type Session struct {
	ID                string            `json:"id"`
	Nickname          string            `json:"nickname"`
	Goal              string            `json:"goal"`
	TimeCommitment    string            `json:"timeCommitment"`
	Questions         []domain.Question `json:"questions"`
	CurrentIndex      int               `json:"currentIndex"`
	Answers           []domain.Answer   `json:"answers"`
	TabEvents         []domain.TabEvent `json:"tabEvents"`
	StartedAt         time.Time         `json:"startedAt"`
	QuestionStartedAt time.Time         `json:"questionStartedAt"`
	Finished          bool              `json:"finished"`
	FinishedAt        time.Time         `json:"finishedAt,omitempty"`
}

// NewSession creates an attempt at question zero. Fields are trimmed and
// must be non-empty; questions must already be shuffled by the caller.
func NewSession(id string, form domain.StartForm, questions []domain.Question, now time.Time) (*Session, error) {
	form, err := normalizeForm(form)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:                id,
		Nickname:          form.Nickname,
		Goal:              form.Goal,
		TimeCommitment:    form.TimeCommitment,
		Questions:         questions,
		Answers:           []domain.Answer{},
		TabEvents:         []domain.TabEvent{},
		StartedAt:         now,
		QuestionStartedAt: now,
	}, nil
}

func normalizeForm(form domain.StartForm) (domain.StartForm, error) {
	form.Nickname = strings.TrimSpace(form.Nickname)
	form.Goal = strings.TrimSpace(form.Goal)
	form.TimeCommitment = strings.TrimSpace(form.TimeCommitment)
	switch {
	case form.Nickname == "":
		return form, &domain.ValidationError{Field: "nickname"}
	case form.Goal == "":
		return form, &domain.ValidationError{Field: "goal"}
	case form.TimeCommitment == "":
		return form, &domain.ValidationError{Field: "timeCommitment"}
	}
	return form, nil
}

// State reports where the attempt is. A finished attempt is always Completed.
func (s *Session) State() State {
	if s == nil {
		return StateNotStarted
	}
	if s.Finished || s.CurrentIndex >= len(s.Questions) {
		return StateCompleted
	}
	return StateInProgress
}

// Total is the number of questions in this attempt.
func (s *Session) Total() int {
	return len(s.Questions)
}

// CurrentQuestion returns the question awaiting an answer, or
// ErrAttemptComplete once the last one has been answered.
func (s *Session) CurrentQuestion() (domain.Question, error) {
	if s.CurrentIndex >= len(s.Questions) {
		return domain.Question{}, domain.ErrAttemptComplete
	}
	return s.Questions[s.CurrentIndex], nil
}

// SubmitAnswer records the answer for the current question and advances.
// Submissions after the last question or after Finish leave the session untouched.
func (s *Session) SubmitAnswer(raw string, now time.Time) error {
	if s.Finished {
		return domain.ErrAttemptFinished
	}
	question, err := s.CurrentQuestion()
	if err != nil {
		return err
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		text = domain.EmptyAnswer
	}
	elapsed := now.Sub(s.QuestionStartedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	s.Answers = append(s.Answers, domain.Answer{
		QuestionText:   question.Text,
		AnswerText:     text,
		ElapsedSeconds: elapsed,
	})
	s.CurrentIndex++
	s.QuestionStartedAt = now
	return nil
}

// RecordTabEvent appends a visibility change. It never affects progress or timing.
func (s *Session) RecordTabEvent(kind domain.TabEventKind, now time.Time, clientAt *time.Time) error {
	if s.Finished {
		return domain.ErrAttemptFinished
	}
	if _, err := domain.ParseTabEventKind(string(kind)); err != nil {
		return err
	}
	s.TabEvents = append(s.TabEvents, domain.TabEvent{Kind: kind, At: now, ClientAt: clientAt})
	return nil
}

// Finish marks the attempt terminal. It reports whether this call did the
// transition; repeated calls are no-ops.
func (s *Session) Finish(now time.Time) (bool, error) {
	if s.Finished {
		return false, nil
	}
	if s.CurrentIndex < len(s.Questions) {
		return false, domain.ErrAttemptIncomplete
	}
	s.Finished = true
	s.FinishedAt = now
	return true, nil
}

// Clone returns a deep copy so stores never share slices with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Questions = cloneQuestions(s.Questions)
	out.Answers = append([]domain.Answer(nil), s.Answers...)
	out.TabEvents = make([]domain.TabEvent, len(s.TabEvents))
	for i, ev := range s.TabEvents {
		out.TabEvents[i] = ev
		if ev.ClientAt != nil {
			at := *ev.ClientAt
			out.TabEvents[i].ClientAt = &at
		}
	}
	if out.Answers == nil {
		out.Answers = []domain.Answer{}
	}
	return &out
}
