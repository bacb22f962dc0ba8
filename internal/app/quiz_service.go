package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"survey-quiz-service/internal/domain"
	"survey-quiz-service/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CooldownDuration is the minimum gap between two completed attempts of one nickname.
const CooldownDuration = 48 * time.Hour

const (
	// DefaultFinalizeTimeout bounds the background notification of one result.
	DefaultFinalizeTimeout = time.Minute
	recordTimeout          = 5 * time.Second
)

// SessionRepository abstracts how attempts are kept between requests (in-memory, Redis, etc).
type SessionRepository interface {
	Get(ctx context.Context, key string) (*Session, error)
	Put(ctx context.Context, session *Session) error
	// Update applies fn to the stored session atomically. When fn fails
	// nothing is written and the unmodified session is returned with the error.
	Update(ctx context.Context, key string, fn func(*Session) error) (*Session, error)
	Delete(ctx context.Context, key string) error
}

// UserRecordStore keeps the last completion time per nickname.
type UserRecordStore interface {
	Get(ctx context.Context, nickname string) (time.Time, bool, error)
	Put(ctx context.Context, nickname string, at time.Time) error
}

// Notifier delivers a text block to an external channel, best-effort.
type Notifier interface {
	Send(ctx context.Context, text string) []domain.DeliveryResult
}

// QuizService contains the attempt use cases.
type QuizService struct {
	bank     *QuestionBank
	sessions SessionRepository
	records  UserRecordStore
	notifier Notifier
	alerts   Notifier
	now      func() time.Time
	log      *zap.Logger
	metrics  *metrics.Metrics

	richReports     bool
	finalizeTimeout time.Duration
	pending         errgroup.Group
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock is used by tests for deterministic timing.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *QuizService) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *QuizService) { s.metrics = m }
}

// WithAlerts routes operator alerts to a separate channel. Defaults to the result notifier.
func WithAlerts(n Notifier) Option {
	return func(s *QuizService) { s.alerts = n }
}

// WithRichReports selects HTML markup (true, the default) or plain text for
// result reports and alerts. It must match the notifier's parse mode.
func WithRichReports(rich bool) Option {
	return func(s *QuizService) { s.richReports = rich }
}

// WithFinalizeTimeout bounds the background delivery started by Finish.
func WithFinalizeTimeout(d time.Duration) Option {
	return func(s *QuizService) { s.finalizeTimeout = d }
}

func NewQuizService(bank *QuestionBank, sessions SessionRepository, records UserRecordStore, notifier Notifier, opts ...Option) *QuizService {
	s := &QuizService{
		bank:     bank,
		sessions: sessions,
		records:  records,
		notifier: notifier,
		now:      time.Now,
		log:      zap.NewNop(),

		richReports:     true,
		finalizeTimeout: DefaultFinalizeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.finalizeTimeout <= 0 {
		s.finalizeTimeout = DefaultFinalizeTimeout
	}
	if s.alerts == nil {
		s.alerts = s.notifier
	}
	return s
}

// Lookup returns the attempt bound to key.
func (s *QuizService) Lookup(ctx context.Context, key string) (*Session, error) {
	if key == "" {
		return nil, domain.ErrSessionNotFound
	}
	return s.sessions.Get(ctx, key)
}

// Start opens an attempt under key. An unfinished attempt already bound to
// the key is returned unchanged so its question order is never reshuffled.
// A form naming someone else is refused with ErrAttemptInProgress instead of
// silently continuing that attempt.
func (s *QuizService) Start(ctx context.Context, key string, form domain.StartForm) (*Session, error) {
	existing, err := s.sessions.Get(ctx, key)
	switch {
	case err == nil && existing.Finished:
		return existing, domain.ErrAttemptFinished
	case err == nil:
		if nickname := strings.TrimSpace(form.Nickname); nickname != "" && nickname != existing.Nickname {
			s.log.Warn("start refused, another attempt is in progress",
				zap.String("nickname", nickname),
				zap.String("active_nickname", existing.Nickname),
			)
			return existing, domain.ErrAttemptInProgress
		}
		return existing, nil
	case !errors.Is(err, domain.ErrSessionNotFound):
		return nil, fmt.Errorf("load session: %w", err)
	}

	form, err = normalizeForm(form)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.checkCooldown(ctx, form.Nickname, now); err != nil {
		s.metrics.CooldownRejected()
		return nil, err
	}

	session, err := NewSession(key, form, s.bank.ShuffledCopy(), now)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	s.metrics.AttemptStarted()
	s.log.Info("attempt started",
		zap.String("nickname", session.Nickname),
		zap.Int("questions", session.Total()),
	)
	return session, nil
}

func (s *QuizService) checkCooldown(ctx context.Context, nickname string, now time.Time) error {
	last, ok, err := s.records.Get(ctx, nickname)
	if err != nil {
		// Fail open: a broken store must not lock everyone out.
		s.metrics.StoreFault("get")
		s.log.Warn("record store read failed, skipping cooldown",
			zap.String("nickname", nickname),
			zap.Error(err),
		)
		return nil
	}
	if !ok {
		return nil
	}
	remaining := CooldownDuration - now.Sub(last)
	if remaining <= 0 {
		return nil
	}
	if remaining > CooldownDuration {
		remaining = CooldownDuration
	}
	return &domain.CooldownError{Remaining: remaining}
}

// CurrentQuestion returns the view for the question awaiting an answer.
func (s *QuizService) CurrentQuestion(ctx context.Context, key string) (domain.QuestionView, error) {
	session, err := s.Lookup(ctx, key)
	if err != nil {
		return domain.QuestionView{}, err
	}
	return questionView(session)
}

func questionView(session *Session) (domain.QuestionView, error) {
	if session.Finished {
		return domain.QuestionView{}, domain.ErrAttemptFinished
	}
	q, err := session.CurrentQuestion()
	if err != nil {
		return domain.QuestionView{}, err
	}
	return domain.QuestionView{
		QuestionText:   q.Text,
		QuestionNumber: session.CurrentIndex + 1,
		Total:          session.Total(),
		Nickname:       session.Nickname,
	}, nil
}

// SubmitAnswer records raw as the answer to question number (1-based).
// A number that is not the current question is rejected as stale so
// double submits and back-navigation cannot shift later answers.
// A non-positive number skips that check.
func (s *QuizService) SubmitAnswer(ctx context.Context, key string, number int, raw string) error {
	if key == "" {
		return domain.ErrSessionNotFound
	}
	now := s.now()
	_, err := s.sessions.Update(ctx, key, func(session *Session) error {
		if session.Finished {
			return domain.ErrAttemptFinished
		}
		if session.CurrentIndex >= session.Total() {
			return domain.ErrAttemptComplete
		}
		if number > 0 && number != session.CurrentIndex+1 {
			return domain.ErrStaleSubmission
		}
		return session.SubmitAnswer(raw, now)
	})
	return err
}

// RecordTabEvent appends a blur/focus event to the attempt bound to key.
func (s *QuizService) RecordTabEvent(ctx context.Context, key, kind string, clientAt *time.Time) error {
	parsed, err := domain.ParseTabEventKind(kind)
	if err != nil {
		return err
	}
	if key == "" {
		return domain.ErrSessionNotFound
	}
	now := s.now()
	_, err = s.sessions.Update(ctx, key, func(session *Session) error {
		return session.RecordTabEvent(parsed, now, clientAt)
	})
	return err
}

// Abandon drops an unfinished attempt without touching the record store.
func (s *QuizService) Abandon(ctx context.Context, key string) error {
	session, err := s.Lookup(ctx, key)
	if err != nil {
		return err
	}
	if session.Finished {
		return domain.ErrAttemptFinished
	}
	return s.sessions.Delete(ctx, key)
}

// Finish finalizes the attempt bound to key. The first call writes the user
// record and hands the report to the notifier in the background; later calls
// only rebuild the same payload. Notification and record failures are logged
// and never returned. Wait blocks until background deliveries are done.
func (s *QuizService) Finish(ctx context.Context, key string) (domain.ResultView, domain.ResultPayload, error) {
	if key == "" {
		return domain.ResultView{}, domain.ResultPayload{}, domain.ErrSessionNotFound
	}
	now := s.now()
	var first bool
	session, err := s.sessions.Update(ctx, key, func(session *Session) error {
		var err error
		first, err = session.Finish(now)
		return err
	})
	if err != nil {
		return domain.ResultView{}, domain.ResultPayload{}, err
	}

	payload := Aggregate(session)
	view := domain.ResultView{Nickname: session.Nickname}
	if !first {
		return view, payload, nil
	}

	s.metrics.AttemptFinished()
	s.log.Info("attempt finished",
		zap.String("nickname", session.Nickname),
		zap.Int("answers", len(session.Answers)),
		zap.Float64("total_seconds", payload.TotalSeconds),
	)

	// The participant may already be gone; delivery and bookkeeping still run.
	detached := context.WithoutCancel(ctx)
	storeErr := s.recordCompletion(detached, session.Nickname, now)

	nickname := session.Nickname
	s.pending.Go(func() error {
		ctx, cancel := context.WithTimeout(detached, s.finalizeTimeout)
		defer cancel()
		s.notify(ctx, nickname, payload)
		if storeErr != nil {
			s.alertStoreFailure(ctx, nickname, now, storeErr)
		}
		return nil
	})
	return view, payload, nil
}

// Wait blocks until every notification started by Finish has returned or
// ctx is done.
func (s *QuizService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *QuizService) notify(ctx context.Context, nickname string, payload domain.ResultPayload) {
	results := s.notifier.Send(ctx, FormatReport(payload, s.richReports))
	failed := 0
	for _, r := range results {
		if !r.Delivered {
			failed++
		}
	}
	if failed > 0 {
		s.log.Error("result notification incomplete",
			zap.String("nickname", nickname),
			zap.Int("chunks", len(results)),
			zap.Int("failed", failed),
		)
	}
}

// recordCompletion writes the cooldown record before the result is shown so
// an immediate restart is already rejected.
func (s *QuizService) recordCompletion(ctx context.Context, nickname string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	err := s.records.Put(ctx, nickname, at)
	if err == nil {
		return nil
	}
	s.metrics.StoreFault("put")
	s.log.Error("failed to store completion, cooldown not enforced for nickname",
		zap.String("nickname", nickname),
		zap.Time("completed_at", at),
		zap.Error(err),
	)
	return err
}

func (s *QuizService) alertStoreFailure(ctx context.Context, nickname string, at time.Time, err error) {
	alert := fmt.Sprintf("ALERT could not save completion of %s at %s: %s",
		nickname, at.Format(time.RFC3339), err.Error())
	if s.richReports {
		alert = fmt.Sprintf("<b>ALERT</b> could not save completion of %s at %s: %s",
			html.EscapeString(nickname), at.Format(time.RFC3339), html.EscapeString(err.Error()))
	}
	s.alerts.Send(ctx, alert)
}
