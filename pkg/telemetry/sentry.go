// sentry.go - Sentry error tracking for the billing service.
//
// Usage in main.go:
//
//	telemetry.InitSentry(cfg.SentryDSN, "billing", cfg.Release, cfg.Env)
//	defer telemetry.Flush()
//
// Usage in handlers:
//
//	telemetry.CaptureError(err, map[string]string{
//	    "creator_id": creatorID,
//	    "operation":  "request_payout",
//	})
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// InitSentry initializes the Sentry SDK for a named service.
// dsn may be empty, in which case Sentry stays disabled.
func InitSentry(dsn, serviceName, release, env string, log *logrus.Entry) error {
	if env == "" {
		env = "development"
	}
	if dsn == "" {
		if log != nil {
			log.Info("SENTRY_DSN not set, Sentry disabled")
		}
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          release,
		TracesSampleRate: 0.2,
		AttachStacktrace: true,
		Tags: map[string]string{
			"service": serviceName,
		},
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			return scrubPII(event)
		},
	})
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	return nil
}

// CaptureError sends an error to Sentry with optional context tags.
// Safe to call when Sentry is disabled.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CaptureMessage sends a non-error message to Sentry.
func CaptureMessage(message string, level sentry.Level, tags map[string]string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureMessage(message)
	})
}

// Flush waits for buffered Sentry events to be sent.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// PanicRecoveryMiddleware catches panics, reports them to Sentry with request
// context, and returns a 500 JSON error.
func PanicRecoveryMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(r)
				hub.Scope().SetTag("service", serviceName)
				hub.Scope().SetTag("panic", "true")

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				hub.CaptureException(err)
				hub.Flush(2 * time.Second)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"Internal server error"}}`))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// SetUserContext attaches the caller's id to the request's Sentry scope.
// Emails are never attached.
func SetUserContext(ctx context.Context, userID string) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.Scope().SetUser(sentry.User{ID: userID})
	}
}

// scrubPII removes personally identifiable information and credentials from
// events before they are transmitted.
func scrubPII(event *sentry.Event) *sentry.Event {
	if event == nil {
		return nil
	}

	if event.User.Email != "" {
		event.User.Email = "[redacted]"
	}
	event.User.IPAddress = ""

	if event.Request != nil {
		for k := range event.Request.Headers {
			switch http.CanonicalHeaderKey(k) {
			case "Authorization", "Cookie", "X-Api-Key", "X-Auth-Token", "X-Cron-Key", "Stripe-Signature":
				event.Request.Headers[k] = "[redacted]"
			}
		}
		event.Request.Data = ""
	}

	return event
}
