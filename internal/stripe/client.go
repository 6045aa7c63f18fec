// client.go - Stripe client for the billing service.
package stripe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
)

// Client wraps the Stripe API client with the calls the billing core makes.
type Client struct {
	sc  *client.API
	key string
}

// New initializes a Stripe client for the given secret key.
func New(key string, log *logrus.Entry) (*Client, error) {
	return NewWithBackends(key, nil, log)
}

// NewWithBackends is New with explicit API backends; tests point them at an
// httptest server.
func NewWithBackends(key string, backends *stripe.Backends, log *logrus.Entry) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("stripe not configured: set STRIPE_SECRET_KEY")
	}
	sc := &client.API{}
	sc.Init(key, backends)
	if log != nil {
		log.WithField("key", logging.RedactToken(key)).Info("stripe client initialized")
	}
	return &Client{sc: sc, key: key}, nil
}

// IsTestMode returns true if the configured key is a Stripe test key.
func (c *Client) IsTestMode() bool {
	return strings.HasPrefix(c.key, "sk_test")
}

// IsNotFound reports whether err is Stripe's resource_missing error.
func IsNotFound(err error) bool {
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.Code == stripe.ErrorCodeResourceMissing || se.HTTPStatusCode == 404
	}
	return false
}
