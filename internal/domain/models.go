package domain

import "time"

// EmptyAnswer is stored in place of a blank submission.
const EmptyAnswer = "—"

// Question is one free-text prompt. Identity is its position in the bank.
type Question struct {
	Text string            `json:"text"`
	Meta map[string]string `json:"meta,omitempty"`
}

// Answer is one recorded response with the time spent on its question.
type Answer struct {
	QuestionText   string  `json:"questionText"`
	AnswerText     string  `json:"answerText"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// TabEventKind is the page visibility transition reported by the browser.
type TabEventKind string

const (
	TabBlur  TabEventKind = "blur"
	TabFocus TabEventKind = "focus"
)

// ParseTabEventKind validates a raw kind string.
func ParseTabEventKind(raw string) (TabEventKind, error) {
	switch TabEventKind(raw) {
	case TabBlur:
		return TabBlur, nil
	case TabFocus:
		return TabFocus, nil
	}
	return "", ErrInvalidTabEvent
}

// TabEvent records a visibility change. At is server time; ClientAt is what the browser claimed.
type TabEvent struct {
	Kind     TabEventKind `json:"kind"`
	At       time.Time    `json:"at"`
	ClientAt *time.Time   `json:"clientAt,omitempty"`
}

// StartForm carries the participant metadata entered on the entry form.
type StartForm struct {
	Nickname       string
	Goal           string
	TimeCommitment string
}

// ResultPayload is the aggregated outcome of a finished attempt.
// Text fields are HTML-escaped for embedding in rich-text notifications.
type ResultPayload struct {
	Nickname       string     `json:"nickname"`
	Goal           string     `json:"goal"`
	TimeCommitment string     `json:"timeCommitment"`
	TotalSeconds   float64    `json:"totalSeconds"`
	AverageSeconds float64    `json:"averageSeconds"`
	Answers        []Answer   `json:"answers"`
	TabEvents      []TabEvent `json:"tabEvents"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     time.Time  `json:"finishedAt"`
}

// DeliveryResult reports the outcome of sending one notification chunk.
type DeliveryResult struct {
	Chunk     int   `json:"chunk"`
	Length    int   `json:"length"`
	Delivered bool  `json:"delivered"`
	Err       error `json:"-"`
}

// EntryView feeds the nickname form.
type EntryView struct {
	Nickname       string
	Goal           string
	TimeCommitment string
	Error          string
	// ActiveNickname names the unfinished attempt the browser could abandon.
	ActiveNickname string
}

// QuestionView feeds the single-question step.
type QuestionView struct {
	QuestionText   string
	QuestionNumber int
	Total          int
	Nickname       string
}

// ResultView feeds the terminal page.
type ResultView struct {
	Nickname string
}
