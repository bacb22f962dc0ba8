package app

import (
	"fmt"
	"html"
	"strings"

	"survey-quiz-service/internal/domain"
)

const reportTimeLayout = "2006-01-02 15:04:05"

// Aggregate builds the result payload of an attempt. It is a pure function
// of the session, so finalizing twice yields the same payload.
func Aggregate(s *Session) domain.ResultPayload {
	answers := make([]domain.Answer, len(s.Answers))
	var total float64
	for i, a := range s.Answers {
		total += a.ElapsedSeconds
		answers[i] = domain.Answer{
			QuestionText:   html.EscapeString(a.QuestionText),
			AnswerText:     html.EscapeString(a.AnswerText),
			ElapsedSeconds: a.ElapsedSeconds,
		}
	}
	var average float64
	if len(answers) > 0 {
		average = total / float64(len(answers))
	}
	return domain.ResultPayload{
		Nickname:       html.EscapeString(s.Nickname),
		Goal:           html.EscapeString(s.Goal),
		TimeCommitment: html.EscapeString(s.TimeCommitment),
		TotalSeconds:   total,
		AverageSeconds: average,
		Answers:        answers,
		TabEvents:      append([]domain.TabEvent(nil), s.TabEvents...),
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
	}
}

// FormatReport renders the payload as the text sent to the notifier: HTML
// markup when rich, otherwise plain text with the fields unescaped.
func FormatReport(p domain.ResultPayload, rich bool) string {
	// Payload fields arrive HTML-escaped; plain text shows them as typed.
	text, bold := html.UnescapeString, func(s string) string { return s }
	if rich {
		text = func(s string) string { return s }
		bold = func(s string) string { return "<b>" + s + "</b>" }
	}

	var b strings.Builder
	b.WriteString(bold("Survey result") + "\n")
	fmt.Fprintf(&b, "Nickname: %s\n", bold(text(p.Nickname)))
	fmt.Fprintf(&b, "Goal: %s\n", text(p.Goal))
	fmt.Fprintf(&b, "Time commitment: %s\n", text(p.TimeCommitment))
	fmt.Fprintf(&b, "Total time: %.2f s\n", p.TotalSeconds)
	fmt.Fprintf(&b, "Average per question: %.2f s\n", p.AverageSeconds)

	for i, a := range p.Answers {
		fmt.Fprintf(&b, "\n%s\n", bold(fmt.Sprintf("%d. %s", i+1, text(a.QuestionText))))
		fmt.Fprintf(&b, "Answer: %s\n", text(a.AnswerText))
		fmt.Fprintf(&b, "Time: %.2f s\n", a.ElapsedSeconds)
	}

	if len(p.TabEvents) > 0 {
		b.WriteString("\n" + bold("Tab activity") + "\n")
		for _, kind := range []domain.TabEventKind{domain.TabBlur, domain.TabFocus} {
			var stamps []string
			for _, ev := range p.TabEvents {
				if ev.Kind == kind {
					stamps = append(stamps, ev.At.Format(reportTimeLayout))
				}
			}
			if len(stamps) == 0 {
				continue
			}
			fmt.Fprintf(&b, "%s (%d): %s\n", kind, len(stamps), strings.Join(stamps, ", "))
		}
	}
	return b.String()
}
