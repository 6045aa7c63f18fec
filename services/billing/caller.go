package billing

import (
	"context"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
)

// Caller is the identity re-derived from the bearer credential.
type Caller struct {
	UserID string
	Email  string
	Admin  bool
}

func callerFrom(ctx context.Context) (Caller, error) {
	c := auth.ClaimsFromContext(ctx)
	if c == nil || c.UserID() == "" {
		return Caller{}, &AuthError{Message: "Authentication required"}
	}
	return Caller{UserID: c.UserID(), Email: c.Email, Admin: c.IsAdmin()}, nil
}
