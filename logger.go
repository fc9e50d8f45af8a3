package segkit

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/segkit/model"
)

// Logger wraps slog.Logger with segkit field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards everything.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithKey adds a key field.
func (l *Logger) WithKey(key model.StorageKey) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key.String()),
	}
}

// WithTag adds a type tag field.
func (l *Logger) WithTag(tag model.TypeTag) *Logger {
	return &Logger{
		Logger: l.Logger.With("tag", tag.String()),
	}
}

// LogCreate logs a container creation.
func (l *Logger) LogCreate(ctx context.Context, key model.StorageKey, typeName string, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create failed",
			"key", key.String(),
			"type", typeName,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "create completed",
			"key", key.String(),
			"type", typeName,
			"size", size,
		)
	}
}

// LogLoad logs a container load. Type mismatches are warnings; the caller
// asked for the wrong type, the buffer itself is fine.
func (l *Logger) LogLoad(ctx context.Context, key model.StorageKey, typeName string, err error) {
	switch {
	case err == nil:
		l.DebugContext(ctx, "load completed",
			"key", key.String(),
			"type", typeName,
		)
	case isTypeMismatch(err):
		l.WarnContext(ctx, "container type mismatch",
			"key", key.String(),
			"type", typeName,
			"error", err,
		)
	default:
		l.ErrorContext(ctx, "load failed",
			"key", key.String(),
			"type", typeName,
			"error", err,
		)
	}
}

// LogPersist logs a write back to the host.
func (l *Logger) LogPersist(ctx context.Context, key model.StorageKey, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "persist failed",
			"key", key.String(),
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "persist completed",
			"key", key.String(),
			"size", size,
		)
	}
}

// LogPage logs the creation of a page buffer.
func (l *Logger) LogPage(ctx context.Context, owner model.StorageKey, dataType, index uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "page creation failed",
			"owner", owner.String(),
			"data_type", dataType,
			"index", index,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "page created",
			"owner", owner.String(),
			"data_type", dataType,
			"index", index,
		)
	}
}
