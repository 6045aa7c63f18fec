package billing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/validate"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/telemetry"
)

const maxBodyBytes = 64 << 10

// decodeJSON reads a size-limited JSON body into v and runs its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &ValidationError{Code: "invalid_json", Message: "Request body is required"}
		}
		return &ValidationError{Code: "invalid_json", Message: "Request body must be valid JSON"}
	}
	if err := validate.Struct(v); err != nil {
		return &ValidationError{Code: "validation_error", Message: err.Error()}
	}
	return nil
}

// pathID returns the {id} URL parameter, which must be a UUID.
func pathID(r *http.Request, what string) (string, error) {
	id := chi.URLParam(r, "id")
	if err := validate.IsUUID(what, id); err != nil {
		return "", &ValidationError{Code: "invalid_id", Message: err.Error()}
	}
	return id, nil
}

// caller resolves the authenticated caller and tags the Sentry scope.
func (s *Server) caller(r *http.Request) (Caller, error) {
	c, err := callerFrom(r.Context())
	if err == nil {
		telemetry.SetUserContext(r.Context(), c.UserID)
	}
	return c, err
}

func writeRateLimited(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	auth.WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again later.")
}
