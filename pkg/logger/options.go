package logger

import (
	"context"
	"fmt"
	"io"
)

// LogBuilder builds a log entry with a fluent interface.
type LogBuilder struct {
	Logger *Logger
	Ctx    context.Context
	Level  LogLevel
	Meta   map[string]string
	Fields []interface{}
	Err    error
}

// WithFormat sets the Fiber logger format.
func WithFormat(format string) LoggerOption {
	return func(l *Logger) { l.Format = format }
}

// WithTimeFormat sets the timestamp format.
func WithTimeFormat(timeformat string) LoggerOption {
	return func(l *Logger) { l.TimeFormat = timeformat }
}

// WithLevel sets the minimum level that is written.
func WithLevel(level string) LoggerOption {
	return func(l *Logger) {
		if level != "" {
			l.Level = LogLevel(level)
		}
	}
}

// WithJSON switches between JSON lines and console output.
func WithJSON(json bool) LoggerOption {
	return func(l *Logger) { l.JSON = json }
}

// WithOutput sets the destination writer.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) { l.Output = w }
}

// Debug starts a debug-level log entry.
func (l *Logger) Debug(ctx context.Context) *LogBuilder {
	return &LogBuilder{Logger: l, Ctx: ctx, Level: LevelDebug}
}

// Info starts an info-level log entry.
func (l *Logger) Info(ctx context.Context) *LogBuilder {
	return &LogBuilder{Logger: l, Ctx: ctx, Level: LevelInfo}
}

// Warn starts a warn-level log entry.
func (l *Logger) Warn(ctx context.Context) *LogBuilder {
	return &LogBuilder{Logger: l, Ctx: ctx, Level: LevelWarn}
}

// Error starts an error-level log entry.
func (l *Logger) Error(ctx context.Context) *LogBuilder {
	return &LogBuilder{Logger: l, Ctx: ctx, Level: LevelError}
}

// WithMeta adds metadata to the log entry.
func (b *LogBuilder) WithMeta(meta map[string]string) *LogBuilder {
	if b.Meta == nil {
		b.Meta = make(map[string]string, len(meta))
	}
	for k, v := range meta {
		b.Meta[k] = v
	}
	return b
}

// WithFields adds key/value pairs to the entry.
func (b *LogBuilder) WithFields(fields ...interface{}) *LogBuilder {
	b.Fields = append(b.Fields, fields...)
	return b
}

// WithError attaches err under the "error" key.
func (b *LogBuilder) WithError(err error) *LogBuilder {
	b.Err = err
	return b
}

// Logs writes the entry.
func (b *LogBuilder) Logs(msg string) {
	var ev = b.Logger.Log.Debug()
	switch b.Level {
	case LevelInfo:
		ev = b.Logger.Log.Info()
	case LevelWarn:
		ev = b.Logger.Log.Warn()
	case LevelError:
		ev = b.Logger.Log.Error()
	}
	if ev == nil {
		return
	}

	if b.Ctx != nil {
		if reqID, ok := b.Ctx.Value(RequestIDKey).(string); ok {
			ev = ev.Str("request_id", reqID)
		}
		if userID, ok := b.Ctx.Value(UserIDKey).(string); ok {
			ev = ev.Str("user_id", userID)
		}
	}
	if len(b.Meta) > 0 {
		ev = ev.Interface("meta", b.Meta)
	}
	for i := 0; i+1 < len(b.Fields); i += 2 {
		key, ok := b.Fields[i].(string)
		if !ok {
			key = fmt.Sprint(b.Fields[i])
		}
		switch v := b.Fields[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case fmt.Stringer:
			ev = ev.Stringer(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	if b.Err != nil {
		ev = ev.Err(b.Err)
	}
	ev.Msg(msg)
}
