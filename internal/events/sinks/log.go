package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/irclight/unfurl/internal/events"
)

// LogSink emits structured logs for debugging preview lifecycle streams.
// It is useful during development or audits where metrics alone are too
// coarse to follow a single request.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("request_id", evt.RequestUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.String("kind", evt.Kind),
			zap.String("url", evt.URL),
			zap.String("host", evt.Host),
			zap.String("branch", evt.Branch),
			zap.String("result", evt.Result),
			zap.Int64("bytes", evt.Bytes),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		}
		s.logger.Info("preview event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
