package billing

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/metrics"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	stripeclient "github.com/yayoedit-hub/dump2-57cbd353/internal/stripe"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
)

// minimumPriceCents is the smallest billable monthly price.
const minimumPriceCents = 100

// PriceResult is the creator's active billing references.
type PriceResult struct {
	ProductRef string  `json:"product_ref"`
	PriceRef   string  `json:"price_ref"`
	PriceUSD   float64 `json:"price_usd"`
}

// ownedCreator loads a creator the caller may manage.
func (s *Server) ownedCreator(ctx context.Context, caller Caller, creatorID string) (*store.Creator, error) {
	c, err := s.store.GetCreator(ctx, creatorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Message: "Creator not found"}
	}
	if err != nil {
		return nil, err
	}
	if c.UserID != caller.UserID && !caller.Admin {
		return nil, &ForbiddenError{Message: "Not authorized to manage this creator"}
	}
	return c, nil
}

// EnsurePrice gives the creator a billable monthly price of priceCents.
// The product is created once per creator and reused; every call mints a
// new price because provider prices are immutable.
func (s *Server) EnsurePrice(ctx context.Context, caller Caller, creatorID string, priceCents int64) (*PriceResult, error) {
	if _, err := s.ownedCreator(ctx, caller, creatorID); err != nil {
		return nil, err
	}
	if priceCents < minimumPriceCents {
		return nil, &ValidationError{Code: "invalid_price", Message: "Price must be at least " + formatWholeUSD(minimumPriceCents)}
	}
	if err := s.billingRequired(); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, "creator-price:"+creatorID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Reload under the lock so a concurrent first-time setup is seen.
	c, err := s.store.GetCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).WithField("creator_id", c.ID)

	productRef := c.StripeProductID
	if productRef == "" {
		created, err := s.stripe.CreateProduct(ctx, stripeclient.ProductSpec{
			CreatorID: c.ID,
			Name:      productName(c),
			Handle:    c.Handle,
		})
		if err != nil {
			metrics.Operations.WithLabelValues("ensure_price", "upstream_error").Inc()
			return nil, &UpstreamError{Op: "create product", Err: err}
		}
		if productRef, err = s.store.ClaimProductRef(ctx, c.ID, created); err != nil {
			return nil, err
		}
		if productRef != created {
			log.WithField("product_ref", productRef).Warn("product already claimed, reusing")
		}
	}

	priceRef, err := s.stripe.CreatePrice(ctx, productRef, c.ID, priceCents)
	if err != nil {
		metrics.Operations.WithLabelValues("ensure_price", "upstream_error").Inc()
		return nil, &UpstreamError{Op: "create price", Err: err}
	}
	if err := s.store.SetPriceRef(ctx, c.ID, priceRef, priceCents); err != nil {
		return nil, err
	}

	metrics.Operations.WithLabelValues("ensure_price", "ok").Inc()
	log.WithFields(logrus.Fields{
		"product_ref": productRef,
		"price_ref":   priceRef,
		"price_cents": priceCents,
	}).Info("creator price updated")
	return &PriceResult{ProductRef: productRef, PriceRef: priceRef, PriceUSD: centsToUSD(priceCents)}, nil
}

// SetFreePricing makes the creator free. No provider call is made; the
// product reference is kept for a later paid setup.
func (s *Server) SetFreePricing(ctx context.Context, caller Caller, creatorID string) error {
	c, err := s.ownedCreator(ctx, caller, creatorID)
	if err != nil {
		return err
	}
	if err := s.store.ClearPriceRef(ctx, c.ID); err != nil {
		return err
	}
	metrics.Operations.WithLabelValues("set_free_pricing", "ok").Inc()
	logging.FromContext(ctx).WithField("creator_id", c.ID).Info("creator set to free")
	return nil
}

func productName(c *store.Creator) string {
	name := c.DisplayName
	if name == "" {
		name = c.Handle
	}
	return name + " - Dump Subscription"
}
