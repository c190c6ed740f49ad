package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/platinummonkey/taskhub/pkg/contextkeys"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l LogLevel) toSlogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel parses a level name, defaulting to InfoLevel
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides structured JSON logging using slog.
// Loggers derived with WithField share the level of their parent.
type Logger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewLogger creates a new structured logger
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(level.toSlogLevel())

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: levelVar})
	return &Logger{
		logger: slog.New(handler),
		level:  levelVar,
	}
}

// SetLevel changes the level of this logger and every logger derived from it
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Set(level.toSlogLevel())
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level LogLevel) bool {
	return l.logger.Enabled(context.Background(), level.toSlogLevel())
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With(key, value), level: l.level}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{logger: l.logger.With(args...), level: l.level}
}

// WithError adds an error to the logger context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(message string) { l.logger.Debug(message) }
func (l *Logger) Info(message string)  { l.logger.Info(message) }
func (l *Logger) Warn(message string)  { l.logger.Warn(message) }
func (l *Logger) Error(message string) { l.logger.Error(message) }

var defaultLogger = NewLogger(InfoLevel, os.Stdout)

// SetDefault replaces the logger returned for contexts without one
func SetDefault(logger *Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// WithRequestID tags ctx with the id of the HTTP request being served
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// GetRequestID returns the request id set by WithRequestID
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(contextkeys.RequestIDKey).(string)
	return requestID
}

// WithUserID tags ctx with the authenticated user
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextkeys.UserIDKey, userID)
}

// GetUserID returns the user id set by WithUserID
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(contextkeys.UserIDKey).(string)
	return userID
}

// WithWorkspaceID tags ctx with the workspace the request is scoped to
func WithWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, contextkeys.WorkspaceIDKey, workspaceID)
}

// GetWorkspaceID returns the workspace id set by WithWorkspaceID
func GetWorkspaceID(ctx context.Context) string {
	id, _ := ctx.Value(contextkeys.WorkspaceIDKey).(string)
	return id
}

// WithLogger attaches logger to ctx
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextkeys.LoggerKey, logger)
}

// GetLogger returns the logger attached to ctx, or the default one
func GetLogger(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextkeys.LoggerKey).(*Logger); ok {
		return logger
	}
	return defaultLogger
}

// FromContext returns the context logger tagged with the request, user,
// workspace and trace ids found in ctx
func FromContext(ctx context.Context) *Logger {
	fields := map[string]interface{}{}
	if id := GetRequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if id := GetUserID(ctx); id != "" {
		fields["user_id"] = id
	}
	if id := GetWorkspaceID(ctx); id != "" {
		fields["workspace_id"] = id
	}

	logger := GetLogger(ctx)
	if len(fields) > 0 {
		logger = logger.WithFields(fields)
	}
	return WithTraceContext(ctx, logger)
}
