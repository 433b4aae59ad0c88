package micropub

import (
	"context"
	"fmt"
)

type loggerKeyType struct{}

var loggerKey = loggerKeyType{}

// Logger is a minimal interface allowing substitution (e.g., zap, logrus).
type Logger interface {
	Printf(format string, v ...any)
}

// RequestLogger holds request-scoped context to enrich log lines. Logging is
// best-effort and never affects the response.
type RequestLogger struct {
	logger Logger
	method string
	path   string
}

func newRequestLogger(l Logger, req *Request) *RequestLogger {
	return &RequestLogger{
		logger: l,
		method: req.Method,
		path:   req.Raw.URL.String(),
	}
}

func (rl *RequestLogger) logf(level string, message string) {
	if rl == nil || rl.logger == nil {
		return
	}

	rl.logger.Printf("%s [%s %s]: %s", level, rl.method, rl.path, message)
}

func (rl *RequestLogger) Infof(format string, v ...any)  { rl.logf("INFO", fmt.Sprintf(format, v...)) }
func (rl *RequestLogger) Errorf(format string, v ...any) { rl.logf("ERROR", fmt.Sprintf(format, v...)) }

// ContextWithLogger stores the request logger in context for callbacks.
func ContextWithLogger(ctx context.Context, rl *RequestLogger) context.Context {
	return context.WithValue(ctx, loggerKey, rl)
}

// LoggerFromContext retrieves the request logger, or nil. A nil RequestLogger
// is safe to log to.
func LoggerFromContext(ctx context.Context) *RequestLogger {
	if ctx == nil {
		return nil
	}

	if rl, ok := ctx.Value(loggerKey).(*RequestLogger); ok {
		return rl
	}

	return nil
}
