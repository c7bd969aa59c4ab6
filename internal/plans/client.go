// Package plans is the typed client for subscription plan CRUD and the
// payment handoff endpoints. Mutations require an admin session server-side;
// purchases invalidate the shared session so entitlements update immediately.
package plans

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"snappdf/internal/api"
	"snappdf/internal/infra"
	"snappdf/internal/session"
)

// Plan mirrors the backend plan resource.
type Plan struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Price   int    `json:"price"`
	Credits int    `json:"credits"`
	Note    string `json:"note"`
}

// Input carries the editable plan fields.
type Input struct {
	Name    string `json:"name"`
	Price   int    `json:"price"`
	Credits int    `json:"credits"`
	Note    string `json:"note"`
}

// Order is the payment-gateway order created by checkout.
type Order struct {
	ID     string `json:"id"`
	Amount int    `json:"amount"`
}

// Verification carries the gateway callback fields for payment verification.
type Verification struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// Validate enforces the client-side plan invariants.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("plans: name is required")
	}
	if in.Price < 0 {
		return errors.New("plans: price must not be negative")
	}
	if in.Credits <= 0 {
		return errors.New("plans: credit allotment must be positive")
	}
	return nil
}

// Client calls the /api/plan endpoints.
type Client struct {
	api      *api.Client
	sessions *session.Cache
	renew    session.RenewFunc
	logger   infra.Logger
}

// Options configures the plans client. Sessions and Renew may be nil for
// read-only use.
type Options struct {
	API      *api.Client
	Sessions *session.Cache
	Renew    session.RenewFunc
	Logger   *infra.Logger
}

// NewClient wraps the transport.
func NewClient(opts Options) *Client {
	l := zerolog.New(io.Discard)
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &Client{api: opts.API, sessions: opts.Sessions, renew: opts.Renew, logger: l}
}

// List fetches every plan, Free plan first, matching the upgrade view order.
func (c *Client) List(ctx context.Context) ([]Plan, error) {
	var out []Plan
	if err := c.api.Get(ctx, "/api/plan", &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.EqualFold(out[i].Name, "free") && !strings.EqualFold(out[j].Name, "free")
	})
	return out, nil
}

// Create registers a new plan and returns it with its server-assigned id.
func (c *Client) Create(ctx context.Context, in Input) (*Plan, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out Plan
	if err := c.api.Post(ctx, "/api/plan", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update edits an existing plan.
func (c *Client) Update(ctx context.Context, id string, in Input) (*Plan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("plans: id is required")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out Plan
	if err := c.api.Put(ctx, "/api/plan/"+id, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a plan.
func (c *Client) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("plans: id is required")
	}
	return c.api.Delete(ctx, "/api/plan/"+id, nil)
}

// Checkout opens a payment order for the plan with the external gateway.
func (c *Client) Checkout(ctx context.Context, planID string) (*Order, error) {
	if strings.TrimSpace(planID) == "" {
		return nil, errors.New("plans: plan id is required")
	}
	var out struct {
		Order Order `json:"order"`
	}
	if err := c.api.Post(ctx, "/api/plan/checkout/"+planID, nil, &out); err != nil {
		return nil, err
	}
	if out.Order.ID == "" {
		return nil, errors.New("plans: checkout returned no order")
	}
	return &out.Order, nil
}

// VerifyPayment completes the purchase after the gateway handoff. On success
// the credential is renewed and the shared session invalidated so the new
// entitlements are visible immediately, not on the next timed refresh.
func (c *Client) VerifyPayment(ctx context.Context, planID string, v Verification) (string, error) {
	if v.OrderID == "" || v.PaymentID == "" || v.Signature == "" {
		return "", errors.New("plans: order id, payment id and signature are required")
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := c.api.Post(ctx, "/api/plan/payment/verify/"+planID, v, &out); err != nil {
		return "", err
	}
	if c.renew != nil {
		if err := c.renew(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("plans: credential renewal after purchase failed")
		}
	}
	if c.sessions != nil {
		c.sessions.Invalidate()
	}
	return out.Message, nil
}
