// AngelaMos | 2026
// stripe.go

package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/carterperez-dev/arphoto/backend/internal/config"
	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

const (
	metaUserID     = "user_id"
	metaResourceID = "resource_id"
	metaPriceID    = "price_id"
	metaDuration   = "duration_days"
)

type Stripe struct {
	sessions      session.Client
	prices        price.Client
	webhookSecret string
	successURL    string
	cancelURL     string
}

type StripeOption func(*Stripe)

// WithBackend replaces the API backend, for pointing the client at a
// local server.
func WithBackend(b stripe.Backend) StripeOption {
	return func(s *Stripe) {
		s.sessions.B = b
		s.prices.B = b
	}
}

func NewStripe(cfg config.PaymentConfig, opts ...StripeOption) *Stripe {
	backend := stripe.GetBackend(stripe.APIBackend)

	s := &Stripe{
		sessions:      session.Client{B: backend, Key: cfg.StripeSecretKey},
		prices:        price.Client{B: backend, Key: cfg.StripeSecretKey},
		webhookSecret: cfg.StripeWebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Stripe) CreateCheckoutSession(
	ctx context.Context,
	p CheckoutParams,
) (cs *CheckoutSession, err error) {
	_, span := core.StartSpan(ctx, "payment.create_checkout_session",
		core.UserAttr(p.UserID),
		core.ResourceAttr(p.ResourceID),
	)
	defer func() { core.FinishSpan(span, err) }()

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceRef),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(strconv.FormatInt(p.UserID, 10)),
	}
	if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}
	params.Context = ctx
	params.AddMetadata(metaUserID, strconv.FormatInt(p.UserID, 10))
	params.AddMetadata(metaResourceID, strconv.FormatInt(p.ResourceID, 10))
	params.AddMetadata(metaPriceID, p.PriceRef)

	out, err := s.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	if out.URL == "" {
		return nil, fmt.Errorf("create checkout session %s: no redirect url", out.ID)
	}

	return &CheckoutSession{ID: out.ID, URL: out.URL}, nil
}

func (s *Stripe) PriceDurationDays(
	ctx context.Context,
	priceRef string,
) (int, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx

	p, err := s.prices.Get(priceRef, params)
	if err != nil {
		return 0, fmt.Errorf("get price %s: %w", priceRef, err)
	}

	return durationFromMetadata(p.Metadata), nil
}

func durationFromMetadata(meta map[string]string) int {
	days, err := strconv.Atoi(strings.TrimSpace(meta[metaDuration]))
	if err != nil || days <= 0 {
		return 0
	}
	return days
}

func (s *Stripe) ParseConfirmation(
	payload []byte,
	signature string,
) (*Confirmation, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		return nil, fmt.Errorf("%s: %w", event.Type, ErrIgnoredEvent)
	}

	if event.Data == nil {
		return nil, fmt.Errorf("event %s: no data: %w", event.ID, ErrMalformedEvent)
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("event %s: %v: %w", event.ID, err, ErrMalformedEvent)
	}

	switch cs.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid,
		stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
	default:
		return nil, fmt.Errorf("session %s is %s: %w", cs.ID, cs.PaymentStatus, ErrIgnoredEvent)
	}

	userID, err := metadataID(cs.Metadata, metaUserID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cs.ID, err)
	}
	resourceID, err := metadataID(cs.Metadata, metaResourceID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cs.ID, err)
	}

	conf := &Confirmation{
		EventID:    event.ID,
		SessionID:  cs.ID,
		UserID:     userID,
		ResourceID: resourceID,
		PriceRef:   cs.Metadata[metaPriceID],
		Created:    time.Unix(event.Created, 0).UTC(),
	}
	if cs.PaymentIntent != nil {
		conf.PaymentIntentID = cs.PaymentIntent.ID
	}

	return conf, nil
}

func metadataID(meta map[string]string, key string) (int64, error) {
	raw, ok := meta[key]
	if !ok {
		return 0, fmt.Errorf("missing %s: %w", key, ErrMalformedEvent)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad %s %q: %w", key, raw, ErrMalformedEvent)
	}

	return id, nil
}

var _ Provider = (*Stripe)(nil)
