package notify

import (
	"context"
	"time"
	"unicode/utf8"

	"survey-quiz-service/internal/domain"
	"survey-quiz-service/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Transport delivers one already-sized chunk.
type Transport interface {
	Deliver(ctx context.Context, text string) error
}

// Options tunes a Dispatcher. Zero values fall back to defaults.
type Options struct {
	MaxChunk      int
	RichText      bool
	Timeout       time.Duration
	RatePerSecond float64
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

// Dispatcher splits messages and sends the chunks one by one, best-effort.
type Dispatcher struct {
	transport Transport
	maxChunk  int
	rich      bool
	timeout   time.Duration
	limiter   *rate.Limiter
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewDispatcher(transport Transport, opts Options) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		maxChunk:  opts.MaxChunk,
		rich:      opts.RichText,
		timeout:   opts.Timeout,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
	if d.maxChunk <= 0 {
		d.maxChunk = DefaultMaxChunk
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if opts.RatePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return d
}

// RichText reports whether chunks are sent as HTML markup.
func (d *Dispatcher) RichText() bool { return d.rich }

// Send delivers text in order. A failed chunk is logged with its content
// for manual resend and does not stop the remaining chunks. Once ctx is done
// the remaining chunks fail without reaching the transport.
func (d *Dispatcher) Send(ctx context.Context, text string) []domain.DeliveryResult {
	chunks := Split(text, d.maxChunk, d.rich)
	results := make([]domain.DeliveryResult, 0, len(chunks))
	for i, chunk := range chunks {
		res := domain.DeliveryResult{
			Chunk:  i + 1,
			Length: utf8.RuneCountInString(chunk),
		}
		err := ctx.Err()
		if err == nil {
			err = d.deliver(ctx, chunk)
		}
		if err != nil {
			res.Err = &domain.NotifierError{Chunk: res.Chunk, Err: err}
			d.log.Error("notification chunk failed",
				zap.Int("chunk", res.Chunk),
				zap.Int("of", len(chunks)),
				zap.Int("length", res.Length),
				zap.String("text", chunk),
				zap.Error(res.Err),
			)
		} else {
			res.Delivered = true
		}
		d.metrics.ChunkDelivered(res.Delivered)
		results = append(results, res)
	}
	return results
}

// deliver bounds the limiter wait and the transport call by one timeout.
func (d *Dispatcher) deliver(ctx context.Context, chunk string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return d.transport.Deliver(ctx, chunk)
}
