package events

import (
	"context"
	"fmt"
	"log/slog"
)

// LogSink writes events to a structured logger
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging at debug level
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Post implements Sink
func (s *LogSink) Post(ctx context.Context, e Event) error {
	s.logger.DebugContext(ctx, "folder event",
		"event_id", e.ID.String(),
		"topic", e.Topic,
		"context_id", e.ContextID,
		"user_id", e.UserID,
		"folder_id", e.FolderID,
		"immediate", e.Immediate,
	)
	return nil
}

// Multi fans an event out to several sinks and joins their errors
type Multi []Sink

// Post implements Sink
func (m Multi) Post(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := PostSafely(ctx, s, e); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("post %s: %d of %d sinks failed: %v", e.Topic, len(errs), len(m), errs)
	}
	return nil
}

// PostSafely posts e and turns a panicking sink into an error
func PostSafely(ctx context.Context, s Sink, e Event) (err error) {
	if s == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink panic: %v", p)
		}
	}()
	return s.Post(ctx, e)
}
