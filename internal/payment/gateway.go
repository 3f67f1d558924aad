// Package payment holds the payment collaborator port and its gateway implementations.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Outcome is the signal a gateway reports for a charge.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ParseOutcome accepts the callback status values sent by the provider.
func ParseOutcome(raw string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "successful", "paid":
		return OutcomeSuccess, nil
	case "failure", "failed", "declined", "cancelled", "canceled":
		return OutcomeFailure, nil
	}
	return "", fmt.Errorf("unknown payment status %q", raw)
}

// Contact is the customer contact passed to the provider.
type Contact struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// ChargeRequest asks the provider to collect an amount.
type ChargeRequest struct {
	Amount      int64
	Currency    string
	Contact     Contact
	OrderRef    string
	ProductName string
}

// Session is the provider's answer to a charge. Pending sessions settle later via callback.
type Session struct {
	Outcome     Outcome
	CheckoutURL string
}

// Gateway is the payment collaborator.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Session, error)
}

// ErrInvalidRequest is returned for requests a gateway refuses to forward.
var ErrInvalidRequest = errors.New("invalid charge request")

// Sandbox settles every charge immediately. Decline, when set, picks which charges fail.
type Sandbox struct {
	Decline func(ChargeRequest) bool
}

// Charge implements Gateway.
func (s Sandbox) Charge(ctx context.Context, req ChargeRequest) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if req.Amount <= 0 || req.OrderRef == "" {
		return Session{}, ErrInvalidRequest
	}
	if s.Decline != nil && s.Decline(req) {
		return Session{Outcome: OutcomeFailure}, nil
	}
	return Session{Outcome: OutcomeSuccess}, nil
}

// Hosted hands the customer to a hosted checkout page; the provider reports back
// through the signed callback endpoint.
type Hosted struct {
	checkoutURL *url.URL
}

// NewHosted parses the checkout base URL.
func NewHosted(checkoutURL string) (*Hosted, error) {
	u, err := url.Parse(strings.TrimSpace(checkoutURL))
	if err != nil {
		return nil, fmt.Errorf("parse checkout url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, errors.New("checkout url must be http or https")
	}
	return &Hosted{checkoutURL: u}, nil
}

// Charge implements Gateway.
func (h *Hosted) Charge(ctx context.Context, req ChargeRequest) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if req.Amount <= 0 || req.OrderRef == "" {
		return Session{}, ErrInvalidRequest
	}
	u := *h.checkoutURL
	q := u.Query()
	q.Set("order_id", req.OrderRef)
	q.Set("amount", strconv.FormatInt(req.Amount, 10))
	q.Set("currency", req.Currency)
	q.Set("product_name", req.ProductName)
	if req.Contact.Phone != "" {
		q.Set("customer_phone", req.Contact.Phone)
	}
	if req.Contact.Email != "" {
		q.Set("customer_email", req.Contact.Email)
	}
	u.RawQuery = q.Encode()
	return Session{Outcome: OutcomePending, CheckoutURL: u.String()}, nil
}
