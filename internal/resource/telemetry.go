package resource

import (
	"time"

	"github.com/getsentry/sentry-go"

	"asr_server/internal/logger"
)

// InitSentry initializes Sentry error reporting for the session runtime's
// INTERNAL fault path. A blank dsn disables reporting entirely — Sentry's
// client treats that as a no-op transport, so call sites don't need to
// special-case a disabled configuration.
func InitSentry(dsn, environment, release string) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
}

// ReportInternalError reports a session-fatal INTERNAL error to Sentry,
// tagged with the session it occurred on. Flush is not called here —
// callers doing a final shutdown should call FlushSentry separately.
func ReportInternalError(sessionID string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("session_id", sessionID)
		scope.SetTag("error_type", "INTERNAL")
		sentry.CaptureException(err)
	})
	logger.Error("internal_error_reported", "session_id", sessionID, "error", err)
}

// FlushSentry blocks until buffered events are sent or the timeout
// elapses. Call during graceful shutdown.
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}
