package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/progress"
)

// LogSink writes each progress event as a structured log line.
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

// Consume logs every event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("job_id", evt.JobID.String()),
			zap.String("stage", string(evt.Stage)),
			zap.Float64("percent", evt.Percent),
		}
		switch evt.Stage {
		case progress.StageJobStart:
			fields = append(fields, zap.String("topic", evt.Topic))
		case progress.StageStep:
			fields = append(fields,
				zap.Int("step_index", evt.StepIndex),
				zap.String("step", evt.Step),
				zap.String("phase", evt.Phase),
			)
		case progress.StageJobDone:
			fields = append(fields, zap.String("report_id", evt.ReportID), zap.Duration("dur", evt.Dur))
		default:
			fields = append(fields, zap.Duration("dur", evt.Dur), zap.String("note", evt.Note))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
