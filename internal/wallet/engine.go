// Package wallet runs wallet top-ups: gateway charge, wallet credit, tier bonus and audit notices.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hongminglow/taheel-be/internal/events"
	"github.com/hongminglow/taheel-be/internal/models"
	"github.com/hongminglow/taheel-be/internal/notify"
	"github.com/hongminglow/taheel-be/internal/payment"
	"github.com/hongminglow/taheel-be/internal/profile"
	"github.com/hongminglow/taheel-be/internal/storage"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount   = errors.New("top-up amount must be positive")
	ErrPaymentFailed   = errors.New("payment failed")
	ErrRateLimited     = errors.New("too many top-up attempts")
	ErrTopUpSettled    = errors.New("top-up already settled with a different outcome")
	ErrTopUpNotPending = errors.New("top-up is not awaiting payment")
	// ErrIncomplete means the wallet path started but some steps are still pending;
	// the reconciler finishes them.
	ErrIncomplete = errors.New("top-up credited with pending steps")
)

const productName = "Wallet Topup"

// Store is the slice of the Account Store the engine needs.
type Store interface {
	storage.AccountReader
	storage.TopUpStore
}

// RateLimiter bounds how often an account may start a top-up.
type RateLimiter interface {
	Allow(ctx context.Context, subject string) (bool, time.Duration, error)
}

// Options tunes the engine.
type Options struct {
	Currency    string
	DefaultLang string
}

// Engine executes top-ups against the store and the payment gateway.
type Engine struct {
	store       Store
	ledger      *notify.Ledger
	gateway     payment.Gateway
	publisher   events.Publisher
	limiter     RateLimiter
	logger      *zap.SugaredLogger
	currency    string
	defaultLang string
	newOrderRef func(accountID string) string
	newID       func() string
}

// NewEngine constructs the engine. A nil publisher disables events.
func NewEngine(store Store, ledger *notify.Ledger, gateway payment.Gateway, publisher events.Publisher, logger *zap.SugaredLogger, opts Options) *Engine {
	if publisher == nil {
		publisher = events.Fallback{Logger: logger}
	}
	if opts.Currency == "" {
		opts.Currency = "AED"
	}
	if opts.DefaultLang == "" {
		opts.DefaultLang = "ar"
	}
	return &Engine{
		store:       store,
		ledger:      ledger,
		gateway:     gateway,
		publisher:   publisher,
		logger:      logger,
		currency:    opts.Currency,
		defaultLang: opts.DefaultLang,
		newOrderRef: func(accountID string) string {
			return fmt.Sprintf("wallet_%s_%s", accountID, ksuid.New().String())
		},
		newID: uuid.NewString,
	}
}

// SetRateLimiter installs an initiation rate limiter.
func (e *Engine) SetRateLimiter(l RateLimiter) {
	e.limiter = l
}

// Attempt is what a caller gets back from Initiate.
type Attempt struct {
	TopUp       models.TopUp `json:"topUp"`
	CheckoutURL string       `json:"checkoutUrl,omitempty"`
	Result      *Result      `json:"result,omitempty"`
}

// Initiate records a top-up, hands it to the gateway and, when the gateway answers
// synchronously, settles it before returning.
func (e *Engine) Initiate(ctx context.Context, accountID string, amount int64, lang string) (Attempt, error) {
	if amount <= 0 {
		return Attempt{}, ErrInvalidAmount
	}
	lang = e.normalizeLang(lang)

	if e.limiter != nil {
		allowed, retryAfter, err := e.limiter.Allow(ctx, accountID)
		if err != nil {
			e.logger.Warnw("top-up rate limiter unavailable; allowing", "account_id", accountID, "err", err)
		} else if !allowed {
			return Attempt{}, fmt.Errorf("%w: retry after %s", ErrRateLimited, retryAfter)
		}
	}

	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Attempt{}, profile.ErrAccountNotFound
		}
		return Attempt{}, fmt.Errorf("load account: %w", err)
	}

	topUp, err := e.store.CreateTopUp(ctx, models.TopUp{
		ID:        e.newID(),
		AccountID: account.ID,
		OrderRef:  e.newOrderRef(account.ID),
		Amount:    amount,
		Bonus:     BonusFor(amount),
		Currency:  e.currency,
		Lang:      lang,
		Status:    models.TopUpInitiated,
	})
	if err != nil {
		return Attempt{}, fmt.Errorf("create top-up: %w", err)
	}

	pending, err := e.store.TransitionTopUp(ctx, topUp.ID, models.TopUpInitiated, models.TopUpGatewayPending)
	if err != nil {
		return Attempt{TopUp: e.abandon(ctx, topUp)}, fmt.Errorf("mark top-up pending: %w", err)
	}
	topUp = pending

	session, err := e.gateway.Charge(ctx, payment.ChargeRequest{
		Amount:      amount,
		Currency:    e.currency,
		Contact:     payment.Contact{Phone: account.Phone, Email: account.Email},
		OrderRef:    topUp.OrderRef,
		ProductName: productName,
	})
	if err != nil {
		e.logger.Warnw("payment gateway charge failed", "order_ref", topUp.OrderRef, "err", err)
		session = payment.Session{Outcome: payment.OutcomeFailure}
	}

	switch session.Outcome {
	case payment.OutcomePending:
		e.logger.Infow("top-up awaiting payment", "order_ref", topUp.OrderRef, "account_id", account.ID, "amount", amount)
		return Attempt{TopUp: topUp, CheckoutURL: session.CheckoutURL}, nil
	case payment.OutcomeSuccess, payment.OutcomeFailure:
		result, settleErr := e.settle(ctx, topUp, session.Outcome)
		attempt := Attempt{TopUp: result.topUp, Result: &result}
		return attempt, settleErr
	default:
		return Attempt{TopUp: topUp}, fmt.Errorf("gateway returned unknown outcome %q", session.Outcome)
	}
}

// Settle applies the gateway's success or failure signal to a pending top-up.
// Repeating a success signal resumes any steps that did not complete.
func (e *Engine) Settle(ctx context.Context, orderRef string, outcome payment.Outcome) (Result, error) {
	topUp, err := e.store.GetTopUpByOrderRef(ctx, orderRef)
	if err != nil {
		return Result{}, fmt.Errorf("load top-up %s: %w", orderRef, err)
	}
	return e.settle(ctx, topUp, outcome)
}

func (e *Engine) settle(ctx context.Context, topUp models.TopUp, outcome payment.Outcome) (Result, error) {
	switch outcome {
	case payment.OutcomeFailure:
		return e.fail(ctx, topUp)
	case payment.OutcomeSuccess:
		return e.credit(ctx, topUp)
	}
	return newResult(topUp), fmt.Errorf("cannot settle with outcome %q", outcome)
}

// abandon marks a top-up that never reached the gateway as failed so it does not
// linger in initiated. The top-up is returned unchanged if that write also fails.
func (e *Engine) abandon(ctx context.Context, topUp models.TopUp) models.TopUp {
	failed, err := e.store.TransitionTopUp(context.WithoutCancel(ctx), topUp.ID, models.TopUpInitiated, models.TopUpFailed)
	if err != nil {
		e.logger.Errorw("abandon top-up failed", "order_ref", topUp.OrderRef, "err", err)
		return topUp
	}
	e.logger.Warnw("top-up abandoned before charge", "order_ref", failed.OrderRef, "account_id", failed.AccountID)
	return failed
}

func (e *Engine) fail(ctx context.Context, topUp models.TopUp) (Result, error) {
	if topUp.Status.Terminal() {
		if topUp.Status == models.TopUpFailed {
			return newResult(topUp), ErrPaymentFailed
		}
		return newResult(topUp), ErrTopUpSettled
	}
	if topUp.Status == models.TopUpInitiated {
		return newResult(topUp), ErrTopUpNotPending
	}

	failed, err := e.store.TransitionTopUp(ctx, topUp.ID, models.TopUpGatewayPending, models.TopUpFailed)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return e.settle(ctx, failed, payment.OutcomeFailure)
		}
		return newResult(topUp), fmt.Errorf("mark top-up failed: %w", err)
	}
	e.logger.Infow("top-up payment failed", "order_ref", failed.OrderRef, "account_id", failed.AccountID)
	result := newResult(failed)
	e.publish(ctx, events.RoutingTopUpFailed, result)
	return result, ErrPaymentFailed
}

func (e *Engine) credit(ctx context.Context, topUp models.TopUp) (Result, error) {
	switch topUp.Status {
	case models.TopUpFailed:
		return newResult(topUp), ErrTopUpSettled
	case models.TopUpInitiated:
		return newResult(topUp), ErrTopUpNotPending
	case models.TopUpGatewayPending:
		credited, err := e.store.TransitionTopUp(ctx, topUp.ID, models.TopUpGatewayPending, models.TopUpCredited)
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return e.settle(ctx, credited, payment.OutcomeSuccess)
			}
			return newResult(topUp), fmt.Errorf("mark top-up credited: %w", err)
		}
		topUp = credited
	}
	return e.Resume(ctx, topUp)
}

// Resume applies the pending steps of a credited top-up in order. Once the
// credited path has begun it is not cancelled, so steps run on a context
// detached from the caller's cancellation.
func (e *Engine) Resume(ctx context.Context, topUp models.TopUp) (Result, error) {
	if topUp.Status != models.TopUpCredited {
		return newResult(topUp), ErrTopUpNotPending
	}
	stepCtx := context.WithoutCancel(ctx)

	progressed := false
	for _, step := range topUp.PendingSteps() {
		var notice *models.Notification
		switch step {
		case models.StepWalletNotice:
			title, body := walletNotice(topUp.Lang, topUp.Amount)
			n := e.ledger.New(topUp.AccountID, title, body, models.NotificationTypeWallet)
			notice = &n
		case models.StepCoinNotice:
			title, body := coinsNotice(topUp.Lang, topUp.Bonus)
			n := e.ledger.New(topUp.AccountID, title, body, models.NotificationTypeWallet)
			notice = &n
		}

		updated, applied, err := e.store.ApplyTopUpStep(stepCtx, topUp.ID, step, notice)
		if err != nil {
			e.logger.Errorw("top-up step failed", "order_ref", topUp.OrderRef, "step", step, "err", err)
			return newResult(topUp), fmt.Errorf("%w: %s: %v", ErrIncomplete, step, err)
		}
		if applied {
			progressed = true
			e.logger.Debugw("top-up step applied", "order_ref", topUp.OrderRef, "step", step)
		}
		topUp = updated
	}

	result := newResult(topUp)
	if progressed {
		e.logger.Infow("top-up credited", "order_ref", topUp.OrderRef, "account_id", topUp.AccountID, "amount", topUp.Amount, "bonus", topUp.Bonus)
		e.publish(stepCtx, events.RoutingTopUpCredited, result)
	}
	return result, nil
}

func (e *Engine) publish(ctx context.Context, routingKey string, r Result) {
	event := events.TopUpEvent{
		TopUpID:    r.TopUpID,
		AccountID:  r.AccountID,
		OrderRef:   r.OrderRef,
		Amount:     r.Amount,
		Bonus:      r.Bonus,
		Status:     string(r.Status),
		Completed:  r.CompletedSteps(),
		OccurredAt: time.Now().UTC(),
	}
	if err := e.publisher.Publish(ctx, routingKey, event); err != nil {
		e.logger.Warnw("top-up event publish failed", "order_ref", r.OrderRef, "routing_key", routingKey, "err", err)
	}
}

func (e *Engine) normalizeLang(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "ar":
		return "ar"
	case "en":
		return "en"
	}
	return e.defaultLang
}
