package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiblog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rs/zerolog"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type ctxKey string

// Context keys read by Logs when present.
const (
	RequestIDKey ctxKey = "request_id"
	UserIDKey    ctxKey = "user_id"
)

// Logger wraps a zerolog logger with the request-aware builder API used
// throughout the app.
type Logger struct {
	Format     string
	TimeFormat string
	Level      LogLevel
	JSON       bool
	Output     io.Writer

	Log      zerolog.Logger
	FiberLog fiber.Handler
}

// LoggerOption defines a function to configure the logger.
type LoggerOption func(*Logger)

// NewLogger builds a Logger. Without options it writes human readable
// output at debug level to stdout.
func NewLogger(opts ...LoggerOption) (*Logger, error) {
	l := &Logger{
		Format:     "[${time}] ${status} - ${method} ${path} ${latency}\n",
		TimeFormat: time.RFC3339,
		Level:      LevelDebug,
		Output:     os.Stdout,
	}

	for _, opt := range opts {
		opt(l)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(string(l.Level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}

	var out io.Writer = l.Output
	if !l.JSON {
		out = zerolog.ConsoleWriter{Out: l.Output, TimeFormat: l.TimeFormat}
	}
	l.Log = zerolog.New(out).Level(level).With().Timestamp().Logger()

	l.FiberLog = fiblog.New(fiblog.Config{
		Format:     l.Format,
		TimeFormat: l.TimeFormat,
		Output:     l.Output,
	})

	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l, _ := NewLogger(WithOutput(io.Discard), WithJSON(true), WithLevel(string(LevelError)))
	return l
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	cp := *l
	cp.Log = l.Log.With().Str("component", name).Logger()
	return &cp
}

// Printf satisfies gorm's logger.Writer.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.Log.Debug().Str("component", "gorm").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Middleware returns the Fiber access log middleware.
func (l *Logger) Middleware() fiber.Handler {
	return l.FiberLog
}

// SetupRoutesContext adds request ID and user ID to the context.
func SetupRoutesContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	reqID := c.Get(fiber.HeaderXRequestID)
	if reqID == "" {
		reqID = fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	ctx = context.WithValue(ctx, RequestIDKey, reqID)

	if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
		ctx = context.WithValue(ctx, UserIDKey, userID)
	}

	return ctx
}

// SetupLogger adds the logger to Fiber locals and seeds the request context.
func SetupLogger(l *Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("logger", l)
		c.SetUserContext(SetupRoutesContext(c))
		return c.Next()
	}
}
