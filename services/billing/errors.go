package billing

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/email"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/telemetry"
)

// ValidationError is malformed or out-of-range input.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthError is a missing or invalid credential.
type AuthError struct{ Message string }

func (e *AuthError) Error() string { return e.Message }

// ForbiddenError is an authenticated caller acting on something it does not own.
type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// NotFoundError is an unknown creator, pack, subscription or payout.
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError is a request that contradicts existing state.
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// InsufficientBalanceError is a payout larger than the available balance.
type InsufficientBalanceError struct {
	AvailableCents int64
}

func (e *InsufficientBalanceError) Error() string {
	return "Insufficient balance. Available: " + email.FormatUSD(e.AvailableCents)
}

// SignatureError is a webhook whose signature is missing or invalid.
type SignatureError struct{ Err error }

func (e *SignatureError) Error() string { return "webhook signature verification failed: " + e.Err.Error() }
func (e *SignatureError) Unwrap() error { return e.Err }

// UpstreamError is a failed billing provider call.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("billing provider: %s: %v", e.Op, e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// DeliveryError is a failed email send.
type DeliveryError struct{ Err error }

func (e *DeliveryError) Error() string { return "email delivery failed: " + e.Err.Error() }
func (e *DeliveryError) Unwrap() error { return e.Err }

// UnavailableError is an operation whose provider is not configured.
type UnavailableError struct {
	Code    string
	Message string
}

func (e *UnavailableError) Error() string { return e.Message }

// errorResponse maps an error to status, code and client message.
// ok is false for unexpected errors.
func errorResponse(err error) (status int, code, msg string, ok bool) {
	var (
		ve  *ValidationError
		ae  *AuthError
		fe  *ForbiddenError
		nfe *NotFoundError
		ce  *ConflictError
		ibe *InsufficientBalanceError
		se  *SignatureError
		ue  *UpstreamError
		de  *DeliveryError
		una *UnavailableError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, orDefault(ve.Code, "validation_error"), ve.Message, true
	case errors.As(err, &ae):
		return http.StatusUnauthorized, "unauthorized", ae.Message, true
	case errors.As(err, &fe):
		return http.StatusForbidden, "forbidden", fe.Message, true
	case errors.As(err, &nfe):
		return http.StatusNotFound, "not_found", nfe.Message, true
	case errors.As(err, &ce):
		return http.StatusConflict, orDefault(ce.Code, "conflict"), ce.Message, true
	case errors.As(err, &ibe):
		return http.StatusBadRequest, "insufficient_balance", ibe.Error(), true
	case errors.As(err, &se):
		return http.StatusUnauthorized, "invalid_signature", "Webhook signature verification failed", true
	case errors.As(err, &ue):
		return http.StatusBadGateway, "upstream_error", "Billing provider request failed. Please try again.", true
	case errors.As(err, &de):
		return http.StatusBadGateway, "delivery_failed", "Notification email could not be delivered", true
	case errors.As(err, &una):
		return http.StatusServiceUnavailable, una.Code, una.Message, true
	}
	return http.StatusInternalServerError, "internal_error", "Internal server error", false
}

// writeError writes err as the JSON error envelope. Upstream, delivery and
// unexpected errors are logged; unexpected ones also go to Sentry.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, msg, ok := errorResponse(err)
	log := logging.FromContext(r.Context()).WithField("operation", op)
	switch {
	case !ok:
		log.WithError(err).Error("unexpected error")
		telemetry.CaptureError(err, map[string]string{"operation": op})
	case status >= 500:
		log.WithError(err).Warn("dependency failure")
	}
	auth.WriteError(w, status, code, msg)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
