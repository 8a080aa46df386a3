package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/crawlkit/crawlkit/internal/progress"
)

// LogSink writes progress events to a structured logger. It is mainly useful
// for development and for debugging task pipelines.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a sink that logs each event at the level implied by its
// stage.
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
			zap.String("task_id", evt.TaskID),
			zap.String("stage", string(evt.Stage)),
			zap.Time("ts", evt.TS),
		}
		if evt.Site != "" {
			fields = append(fields, zap.String("site", evt.Site))
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		if evt.Bytes > 0 {
			fields = append(fields, zap.Int64("bytes", evt.Bytes))
		}
		if evt.StatusClass != "" {
			fields = append(fields, zap.String("status_class", string(evt.StatusClass)))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Stage {
		case progress.StageTaskError:
			s.logger.Warn("task failed", fields...)
		case progress.StageTaskCanceled:
			s.logger.Info("task canceled", fields...)
		default:
			s.logger.Info("progress", fields...)
		}
	}
	return nil
}
