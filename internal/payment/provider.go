// AngelaMos | 2026
// provider.go

package payment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrIgnoredEvent     = errors.New("event ignored")
	ErrMalformedEvent   = errors.New("malformed event")
)

// Provider is the hosted checkout seam.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	// ParseConfirmation authenticates a webhook payload and decodes it.
	// It returns ErrInvalidSignature, ErrIgnoredEvent or ErrMalformedEvent
	// for payloads that must not produce a grant.
	ParseConfirmation(payload []byte, signature string) (*Confirmation, error)
	// PriceDurationDays is 0 when the price carries no usable duration.
	PriceDurationDays(ctx context.Context, priceRef string) (int, error)
}

type CheckoutParams struct {
	UserID     int64
	ResourceID int64
	PriceRef   string
	Email      string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Confirmation is a verified, paid checkout.
type Confirmation struct {
	EventID         string
	SessionID       string
	PaymentIntentID string
	UserID          int64
	ResourceID      int64
	PriceRef        string
	Created         time.Time
}
