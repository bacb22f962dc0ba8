package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport writes chunks to the service log. Used when no channel is configured.
type LogTransport struct {
	log *zap.Logger
}

func NewLogTransport(log *zap.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Deliver(_ context.Context, text string) error {
	t.log.Info("notification", zap.String("text", text))
	return nil
}
