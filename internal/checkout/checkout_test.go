// AngelaMos | 2026
// checkout_test.go

package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/arphoto/backend/internal/checkout"
	"github.com/carterperez-dev/arphoto/backend/internal/core"
	"github.com/carterperez-dev/arphoto/backend/internal/entitlement"
	"github.com/carterperez-dev/arphoto/backend/internal/middleware"
	"github.com/carterperez-dev/arphoto/backend/internal/payment"
	"github.com/carterperez-dev/arphoto/backend/internal/resource"
)

const validSig = "sig-ok"

type fakeProvider struct {
	mu        sync.Mutex
	sessions  []payment.CheckoutParams
	duration  int
	priceErr  error
	createErr error
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.createErr != nil {
		return nil, p.createErr
	}
	p.sessions = append(p.sessions, params)
	id := fmt.Sprintf("cs_%d", len(p.sessions))
	return &payment.CheckoutSession{ID: id, URL: "https://pay.example.com/" + id}, nil
}

// ParseConfirmation accepts a Confirmation encoded as JSON.
func (p *fakeProvider) ParseConfirmation(payload []byte, signature string) (*payment.Confirmation, error) {
	if signature != validSig {
		return nil, payment.ErrInvalidSignature
	}

	var conf payment.Confirmation
	if err := json.Unmarshal(payload, &conf); err != nil {
		return nil, fmt.Errorf("%v: %w", err, payment.ErrMalformedEvent)
	}
	if conf.EventID == "ignored" {
		return nil, payment.ErrIgnoredEvent
	}
	return &conf, nil
}

func (p *fakeProvider) PriceDurationDays(context.Context, string) (int, error) {
	return p.duration, p.priceErr
}

func (p *fakeProvider) created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

type pair struct{ user, resource int64 }

type memoryLedger struct {
	mu      sync.Mutex
	rows    map[pair]entitlement.Entitlement
	failErr error
}

func (m *memoryLedger) Upsert(_ context.Context, e *entitlement.Entitlement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return false, m.failErr
	}
	if _, ok := testCatalog[e.ResourceID]; !ok {
		return false, fmt.Errorf("upsert entitlement: %w", core.ErrNotFound)
	}
	key := pair{e.UserID, e.ResourceID}
	if cur, ok := m.rows[key]; ok && cur.ExpiresAt.After(e.ExpiresAt) {
		return false, nil
	}
	m.rows[key] = *e
	return true, nil
}

func (m *memoryLedger) Get(_ context.Context, userID, resourceID int64) (*entitlement.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.rows[pair{userID, resourceID}]
	if !ok {
		return nil, fmt.Errorf("get entitlement: %w", core.ErrNotFound)
	}
	return &e, nil
}

func (m *memoryLedger) ListActive(context.Context, int64, time.Time) ([]entitlement.Entitlement, error) {
	return nil, nil
}

func (m *memoryLedger) Stats(context.Context, time.Time) (*entitlement.Stats, error) {
	return &entitlement.Stats{}, nil
}

type catalog map[int64]*resource.Resource

func (c catalog) GetByID(_ context.Context, id int64) (*resource.Resource, error) {
	r, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("get resource: %w", core.ErrNotFound)
	}
	return r, nil
}

func ref(s string) *string { return &s }

var testCatalog = catalog{
	3: {ID: 3, Name: "Parc des Buttes", PriceRef: ref("price_123")},
	4: {ID: 4, Name: "Jardin libre", Free: true},
	5: {ID: 5, Name: "Sans prix"},
}

var epoch = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *checkout.Service
	ledger   *memoryLedger
	ents     *entitlement.Service
	provider *fakeProvider
	clock    *core.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := core.NewManualClock(epoch)
	ledger := &memoryLedger{rows: make(map[pair]entitlement.Entitlement)}
	ents := entitlement.NewService(ledger, testCatalog, entitlement.WithClock(clock))
	provider := &fakeProvider{duration: 3}

	return &fixture{
		svc:      checkout.NewService(testCatalog, ents, provider),
		ledger:   ledger,
		ents:     ents,
		provider: provider,
		clock:    clock,
	}
}

func TestCreateOrReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateOrReuse(ctx, 7, 3)
	require.NoError(t, err)
	assert.False(t, res.AlreadyPaid)
	assert.Equal(t, "https://pay.example.com/cs_1", res.RedirectURL)

	require.Equal(t, 1, f.provider.created())
	assert.Equal(t, payment.CheckoutParams{UserID: 7, ResourceID: 3, PriceRef: "price_123"}, f.provider.sessions[0])

	_, err = f.ents.Grant(ctx, entitlement.GrantRequest{UserID: 7, ResourceID: 3, DurationDays: 3, IssuedAt: epoch})
	require.NoError(t, err)

	res, err = f.svc.CreateOrReuse(ctx, 7, 3)
	require.NoError(t, err)
	assert.True(t, res.AlreadyPaid)
	assert.Equal(t, 1, f.provider.created(), "an active grant must not open a new session")

	f.clock.Advance(3 * 24 * time.Hour)
	res, err = f.svc.CreateOrReuse(ctx, 7, 3)
	require.NoError(t, err)
	assert.False(t, res.AlreadyPaid)
	assert.Equal(t, 2, f.provider.created())
}

func TestCreateOrReuseEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateOrReuse(ctx, 7, 4)
	require.NoError(t, err)
	assert.True(t, res.AlreadyPaid)

	_, err = f.svc.CreateOrReuse(ctx, 7, 99)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.CreateOrReuse(ctx, 7, 5)
	assert.ErrorIs(t, err, core.ErrMisconfigured)

	f.provider.createErr = errors.New("provider down")
	_, err = f.svc.CreateOrReuse(ctx, 7, 3)
	assert.Error(t, err)

	assert.Equal(t, 0, f.provider.created())
}

func TestDuplicateConfirmationsGrantOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conf := &payment.Confirmation{
		EventID:    "evt_1",
		SessionID:  "cs_1",
		UserID:     7,
		ResourceID: 3,
		PriceRef:   "price_123",
		Created:    epoch,
	}

	first, err := f.svc.Confirm(ctx, conf)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	second, err := f.svc.Confirm(ctx, conf)
	require.NoError(t, err)

	want := epoch.Add(3 * 24 * time.Hour)
	assert.True(t, first.ExpiresAt.Equal(want))
	assert.True(t, second.ExpiresAt.Equal(want))
	assert.Len(t, f.ledger.rows, 1)
}

func TestConfirmFallsBackToResourcePrice(t *testing.T) {
	f := newFixture(t)
	f.provider.duration = 0

	ent, err := f.svc.Confirm(context.Background(), &payment.Confirmation{UserID: 7, ResourceID: 3, Created: epoch})
	require.NoError(t, err)
	assert.True(t, ent.ExpiresAt.Equal(epoch.Add(entitlement.DefaultDurationDays*24*time.Hour)))
}

func newRouter(f *fixture) http.Handler {
	authn := middleware.Authenticator(staticVerifier{"tok-7": 7}, "")
	h := checkout.NewHandler(f.svc, f.provider, nil)

	r := chi.NewRouter()
	h.RegisterRoutes(r, authn)
	h.RegisterWebhookRoutes(r)
	return r
}

type staticVerifier map[string]int64

func (v staticVerifier) VerifySession(_ context.Context, token string) (*middleware.SessionClaims, error) {
	id, ok := v[token]
	if !ok {
		return nil, core.ErrTokenInvalid
	}
	return &middleware.SessionClaims{SessionID: token, UserID: id, Role: core.RoleUser}, nil
}

func do(h http.Handler, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var bearer = map[string]string{"Authorization": "Bearer tok-7"}

func TestCheckoutHandler(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f)

	rec := do(h, "/checkout", `{"resourceId":3}`, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"redirectUrl":"https://pay.example.com/cs_1"}`, rec.Body.String())

	rec = do(h, "/checkout", `{"resourceId":4}`, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"alreadyPaid":true}`, rec.Body.String())

	tests := []struct {
		name   string
		body   string
		header map[string]string
		status int
	}{
		{"anonymous", `{"resourceId":3}`, nil, http.StatusUnauthorized},
		{"missing id", `{}`, bearer, http.StatusBadRequest},
		{"bad json", `{"resourceId":`, bearer, http.StatusBadRequest},
		{"unknown resource", `{"resourceId":99}`, bearer, http.StatusNotFound},
		{"no price", `{"resourceId":5}`, bearer, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, "/checkout", tt.body, tt.header)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func confirmationBody(t *testing.T, conf payment.Confirmation) string {
	t.Helper()
	b, err := json.Marshal(conf)
	require.NoError(t, err)
	return string(b)
}

var signed = map[string]string{"Stripe-Signature": validSig}

func TestWebhookHandler(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f)

	body := confirmationBody(t, payment.Confirmation{
		EventID: "evt_1", SessionID: "cs_1", UserID: 7, ResourceID: 3, PriceRef: "price_123", Created: epoch,
	})

	rec := do(h, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": "forged"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.ledger.rows)

	for range 2 {
		rec = do(h, "/webhooks/stripe", body, signed)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Len(t, f.ledger.rows, 1)
	assert.True(t, f.ledger.rows[pair{7, 3}].ExpiresAt.Equal(epoch.Add(72*time.Hour)))

	ok, err := f.ents.IsEntitled(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWebhookHandlerOutcomes(t *testing.T) {
	grant := payment.Confirmation{EventID: "evt_2", UserID: 7, ResourceID: 3, PriceRef: "price_123", Created: epoch}
	ghost := payment.Confirmation{EventID: "evt_3", UserID: 7, ResourceID: 99, PriceRef: "price_x", Created: epoch}

	tests := []struct {
		name   string
		body   string
		setup  func(*fixture)
		status int
	}{
		{"ignored event", `{"EventID":"ignored"}`, nil, http.StatusOK},
		{"malformed event", `not json`, nil, http.StatusOK},
		{"unknown resource", confirmationBody(t, ghost), nil, http.StatusOK},
		{"price lookup fails", confirmationBody(t, grant), func(f *fixture) {
			f.provider.priceErr = errors.New("stripe unavailable")
		}, http.StatusInternalServerError},
		{"storage fails", confirmationBody(t, grant), func(f *fixture) {
			f.ledger.failErr = errors.New("connection reset")
		}, http.StatusInternalServerError},
		{"oversized body", strings.Repeat("x", 65<<10), nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			rec := do(newRouter(f), "/webhooks/stripe", tt.body, signed)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
