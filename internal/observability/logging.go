package observability

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

type Tags map[string]string

// NewTags creates a new Tags from a mix of slog.Attr and a string and its
// corresponding value. It ignores incomplete pairs and other types.
func NewTags(args ...any) Tags {
	tags := Tags{}
	for len(args) > 0 {
		switch x := args[0].(type) {
		case slog.Attr:
			tags[x.Key] = x.Value.String()
			args = args[1:]
		case string:
			if len(args) < 2 {
				return tags
			}
			attr := slog.Any(x, args[1])
			tags[attr.Key] = attr.Value.String()
			args = args[2:]
		default:
			args = args[1:]
		}
	}
	return tags
}

// Logger logs messages through slog and optionally uploads captured errors
// to Sentry.
type Logger struct {
	mu sync.Mutex // for operations that use the Sentry hub's scope

	*slog.Logger
	sentryHub *sentry.Hub // nil if Sentry is disabled

	baseTags Tags

	rateLimiter *CaptureRateLimiter
}

// NewLogger returns a logger writing messages to the slog Logger and
// uploading captured errors using a clone of sentryHub.
//
// sentryHub can be set to nil to disable Sentry.
func NewLogger(logger *slog.Logger, sentryHub *sentry.Hub) *Logger {
	const rateLimiterCacheSize = 100
	const captureMinDuration = 5 * time.Minute
	rateLimiter, err := NewCaptureRateLimiter(
		rateLimiterCacheSize,
		captureMinDuration,
	)
	if err != nil {
		// Shouldn't happen. A nil rate limiter lets everything through
		// and won't panic.
		logger.Error("observability: couldn't make CaptureRateLimiter",
			"error", err)
	}

	if sentryHub != nil {
		sentryHub = sentryHub.Clone()
	}

	return &Logger{
		Logger:      logger,
		sentryHub:   sentryHub,
		baseTags:    make(Tags),
		rateLimiter: rateLimiter,
	}
}

// With returns a derived logger that includes the given tags in each message.
func (l *Logger) With(args ...any) *Logger {
	var sentryHub *sentry.Hub
	if l.sentryHub != nil {
		sentryHub = l.sentryHub.Clone()
	}

	return &Logger{
		Logger:      l.Logger.With(args...),
		sentryHub:   sentryHub,
		baseTags:    l.baseTags,
		rateLimiter: l.rateLimiter,
	}
}

// SetGlobalTags updates tags shared by this logger, its parent and its
// descendants. These take precedence over tags passed to CaptureError and
// CaptureWarn.
func (l *Logger) SetGlobalTags(tags Tags) {
	maps.Copy(l.baseTags, tags)
}

// CaptureError logs an error and sends it to Sentry.
func (l *Logger) CaptureError(err error, args ...any) {
	l.Error(err.Error(), args...)
	l.captureException(err, args...)
}

// CaptureWarn logs a warning and sends it to Sentry.
func (l *Logger) CaptureWarn(msg string, args ...any) {
	l.Warn(msg, args...)
	l.captureMessage(msg, args...)
}

func (l *Logger) captureException(err error, args ...any) {
	if l.sentryHub == nil || !l.rateLimiter.AllowCapture(err.Error()) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sentryHub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(l.withArgs(args...))
		l.sentryHub.CaptureException(err)
	})
}

func (l *Logger) captureMessage(msg string, args ...any) {
	if l.sentryHub == nil || !l.rateLimiter.AllowCapture(msg) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sentryHub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(l.withArgs(args...))
		l.sentryHub.CaptureMessage(msg)
	})
}

// withArgs merges the given args with the logger's base tags; base tags
// take precedence.
func (l *Logger) withArgs(args ...any) Tags {
	tags := NewTags(args...)
	maps.Copy(tags, l.baseTags)
	return tags
}

// Reraise logs a panic, uploads it to Sentry, and re-panics. It is meant to
// be used in a defer statement.
func (l *Logger) Reraise(args ...any) {
	panicErr := recover()
	if panicErr == nil {
		return
	}

	err, ok := panicErr.(error)
	if !ok {
		err = fmt.Errorf("observability: panic: %v", panicErr)
	}
	l.CaptureError(err, args...)

	if l.sentryHub != nil {
		l.sentryHub.Flush(2 * time.Second)
	}

	panic(panicErr)
}

// NewNoOpLogger returns a logger that discards all messages.
//
// Used for testing.
func NewNoOpLogger() *Logger {
	return NewLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)), nil)
}
