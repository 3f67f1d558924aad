package wallet

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hongminglow/taheel-be/internal/events"
	"github.com/hongminglow/taheel-be/internal/models"
	"github.com/hongminglow/taheel-be/internal/notify"
	"github.com/hongminglow/taheel-be/internal/payment"
	"github.com/hongminglow/taheel-be/internal/profile"
	"github.com/hongminglow/taheel-be/internal/storage"
	"github.com/hongminglow/taheel-be/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []events.TopUpEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	if ev, ok := body.(events.TopUpEvent); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

func (p *recordingPublisher) Close() {}

type erroringGateway struct{ err error }

func (g erroringGateway) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Session, error) {
	return payment.Session{}, g.err
}

type capturingGateway struct {
	requests []payment.ChargeRequest
	next     payment.Gateway
}

func (g *capturingGateway) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Session, error) {
	g.requests = append(g.requests, req)
	return g.next.Charge(ctx, req)
}

type denyLimiter struct{ calls int }

func (l *denyLimiter) Allow(ctx context.Context, subject string) (bool, time.Duration, error) {
	l.calls++
	return false, 30 * time.Second, nil
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(ctx context.Context, subject string) (bool, time.Duration, error) {
	return false, 0, errors.New("redis: connection refused")
}

type fixture struct {
	store     *memory.Store
	ledger    *notify.Ledger
	publisher *recordingPublisher
	engine    *Engine
}

func newFixture(t *testing.T, gateway payment.Gateway) fixture {
	t.Helper()
	store := memory.New()
	store.PutAccount(models.AccountRecord{
		ID:          "A1",
		DisplayName: "Alice",
		Type:        "resident",
		Phone:       "+971500000001",
		Email:       "alice@example.com",
	})
	logger := zap.NewNop().Sugar()
	ledger := notify.NewLedger(store, logger)
	publisher := &recordingPublisher{}
	engine := NewEngine(store, ledger, gateway, publisher, logger, Options{Currency: "AED", DefaultLang: "ar"})
	return fixture{store: store, ledger: ledger, publisher: publisher, engine: engine}
}

func (f fixture) balances(t *testing.T) (int64, int64) {
	t.Helper()
	rec, err := f.store.GetAccount(context.Background(), "A1")
	require.NoError(t, err)
	return rec.WalletBalance, rec.Coins
}

func (f fixture) notifications(t *testing.T) []models.Notification {
	t.Helper()
	list, err := f.ledger.ForTarget(context.Background(), "A1")
	require.NoError(t, err)
	return list
}

func titles(list []models.Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.Title)
	}
	return out
}

func TestInitiateTierAmountCreditsWalletAndBonus(t *testing.T) {
	f := newFixture(t, payment.Sandbox{})

	attempt, err := f.engine.Initiate(context.Background(), "A1", 100, "en")
	require.NoError(t, err)
	require.NotNil(t, attempt.Result)

	assert.True(t, attempt.Result.Complete())
	assert.Equal(t, models.TopUpCredited, attempt.TopUp.Status)
	assert.Equal(t, int64(50), attempt.Result.Bonus)
	assert.Equal(t, []string{"wallet_credit", "wallet_notice", "coin_credit", "coin_notice"}, attempt.Result.CompletedSteps())

	wallet, coins := f.balances(t)
	assert.Equal(t, int64(100), wallet)
	assert.Equal(t, int64(50), coins)

	list := f.notifications(t)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{"Wallet Charged", "Coins Added"}, titles(list))
	for _, n := range list {
		assert.False(t, n.IsRead)
		assert.Equal(t, models.NotificationTypeWallet, n.Type)
		assert.Equal(t, "A1", n.TargetID)
	}

	assert.Equal(t, []string{events.RoutingTopUpCredited}, f.publisher.keys)
}

func TestInitiateNonTierAmountCreditsWalletOnly(t *testing.T) {
	f := newFixture(t, payment.Sandbox{})

	attempt, err := f.engine.Initiate(context.Background(), "A1", 77, "en")
	require.NoError(t, err)
	assert.True(t, attempt.Result.Complete())
	assert.Zero(t, attempt.Result.Bonus)
	assert.False(t, attempt.Result.CoinsCredited)

	wallet, coins := f.balances(t)
	assert.Equal(t, int64(77), wallet)
	assert.Zero(t, coins)

	list := f.notifications(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Wallet Charged", list[0].Title)
	assert.Equal(t, "Your wallet was charged with 77 AED.", list[0].Body)
}

func TestInitiateDefaultsToArabicNotices(t *testing.T) {
	f := newFixture(t, payment.Sandbox{})

	_, err := f.engine.Initiate(context.Background(), "A1", 500, "fr")
	require.NoError(t, err)

	list := f.notifications(t)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{"تم شحن المحفظة", "تم إضافة كوينات"}, titles(list))
}

func TestInitiateSendsChargeRequest(t *testing.T) {
	gw := &capturingGateway{next: payment.Sandbox{}}
	f := newFixture(t, gw)

	attempt, err := f.engine.Initiate(context.Background(), "A1", 1000, "en")
	require.NoError(t, err)

	require.Len(t, gw.requests, 1)
	req := gw.requests[0]
	assert.Equal(t, int64(1000), req.Amount)
	assert.Equal(t, "AED", req.Currency)
	assert.Equal(t, "Wallet Topup", req.ProductName)
	assert.Equal(t, payment.Contact{Phone: "+971500000001", Email: "alice@example.com"}, req.Contact)
	assert.True(t, strings.HasPrefix(req.OrderRef, "wallet_A1_"))
	assert.Equal(t, attempt.TopUp.OrderRef, req.OrderRef)
}

func TestInitiatePaymentFailureMutatesNothing(t *testing.T) {
	f := newFixture(t, payment.Sandbox{Decline: func(payment.ChargeRequest) bool { return true }})

	attempt, err := f.engine.Initiate(context.Background(), "A1", 100, "en")
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Equal(t, models.TopUpFailed, attempt.TopUp.Status)

	wallet, coins := f.balances(t)
	assert.Zero(t, wallet)
	assert.Zero(t, coins)
	assert.Empty(t, f.notifications(t))
	assert.Equal(t, []string{events.RoutingTopUpFailed}, f.publisher.keys)
}

func TestInitiateGatewayErrorIsPaymentFailure(t *testing.T) {
	f := newFixture(t, erroringGateway{err: errors.New("dial tcp: timeout")})

	_, err := f.engine.Initiate(context.Background(), "A1", 100, "en")
	assert.ErrorIs(t, err, ErrPaymentFailed)

	wallet, coins := f.balances(t)
	assert.Zero(t, wallet)
	assert.Zero(t, coins)
}

func TestInitiateRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t, payment.Sandbox{})

	for _, amount := range []int64{0, -100} {
		_, err := f.engine.Initiate(context.Background(), "A1", amount, "en")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	incomplete, err := f.store.ListIncompleteTopUps(context.Background(), time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, incomplete)
}

func TestInitiateUnknownAccount(t *testing.T) {
	f := newFixture(t, payment.Sandbox{})

	_, err := f.engine.Initiate(context.Background(), "missing", 100, "en")
	assert.ErrorIs(t, err, profile.ErrAccountNotFound)
}

func TestInitiateRateLimited(t *testing.T) {
	f := newFixture(t, payment.Sandbox{})
	limiter := &denyLimiter{}
	f.engine.SetRateLimiter(limiter)

	_, err := f.engine.Initiate(context.Background(), "A1", 100, "en")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, limiter.calls)

	wallet, _ := f.balances(t)
	assert.Zero(t, wallet)
}

func TestInitiateAllowsWhenLimiterUnavailable(t *testing.T) {
	f := newFixture(t, payment.Sandbox{})
	f.engine.SetRateLimiter(brokenLimiter{})

	_, err := f.engine.Initiate(context.Background(), "A1", 100, "en")
	require.NoError(t, err)
}

func newHostedFixture(t *testing.T) fixture {
	t.Helper()
	hosted, err := payment.NewHosted("https://pay.example.com/checkout")
	require.NoError(t, err)
	return newFixture(t, hosted)
}

func TestHostedTopUpSettlesOnCallback(t *testing.T) {
	f := newHostedFixture(t)
	ctx := context.Background()

	attempt, err := f.engine.Initiate(ctx, "A1", 5000, "en")
	require.NoError(t, err)
	assert.Equal(t, models.TopUpGatewayPending, attempt.TopUp.Status)
	assert.Nil(t, attempt.Result)
	assert.Contains(t, attempt.CheckoutURL, "order_id="+attempt.TopUp.OrderRef)

	wallet, _ := f.balances(t)
	assert.Zero(t, wallet, "nothing is credited before the callback")

	result, err := f.engine.Settle(ctx, attempt.TopUp.OrderRef, payment.OutcomeSuccess)
	require.NoError(t, err)
	assert.True(t, result.Complete())

	wallet, coins := f.balances(t)
	assert.Equal(t, int64(5000), wallet)
	assert.Equal(t, int64(2500), coins)
	assert.Len(t, f.notifications(t), 2)
}

func TestSettleSuccessIsIdempotent(t *testing.T) {
	f := newHostedFixture(t)
	ctx := context.Background()

	attempt, err := f.engine.Initiate(ctx, "A1", 100, "en")
	require.NoError(t, err)
	_, err = f.engine.Settle(ctx, attempt.TopUp.OrderRef, payment.OutcomeSuccess)
	require.NoError(t, err)

	again, err := f.engine.Settle(ctx, attempt.TopUp.OrderRef, payment.OutcomeSuccess)
	require.NoError(t, err)
	assert.True(t, again.Complete())

	wallet, coins := f.balances(t)
	assert.Equal(t, int64(100), wallet)
	assert.Equal(t, int64(50), coins)
	assert.Len(t, f.notifications(t), 2)
	assert.Equal(t, []string{events.RoutingTopUpCredited}, f.publisher.keys)

	_, err = f.engine.Settle(ctx, attempt.TopUp.OrderRef, payment.OutcomeFailure)
	assert.ErrorIs(t, err, ErrTopUpSettled)
}

func TestSettleFailureThenSuccess(t *testing.T) {
	f := newHostedFixture(t)
	ctx := context.Background()

	attempt, err := f.engine.Initiate(ctx, "A1", 100, "en")
	require.NoError(t, err)

	result, err := f.engine.Settle(ctx, attempt.TopUp.OrderRef, payment.OutcomeFailure)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Equal(t, models.TopUpFailed, result.Status)

	_, err = f.engine.Settle(ctx, attempt.TopUp.OrderRef, payment.OutcomeFailure)
	assert.ErrorIs(t, err, ErrPaymentFailed)

	_, err = f.engine.Settle(ctx, attempt.TopUp.OrderRef, payment.OutcomeSuccess)
	assert.ErrorIs(t, err, ErrTopUpSettled)

	wallet, coins := f.balances(t)
	assert.Zero(t, wallet)
	assert.Zero(t, coins)
	assert.Empty(t, f.notifications(t))
}

func TestInitiateMarksTopUpFailedWhenPendingWriteFails(t *testing.T) {
	gateway := &capturingGateway{next: payment.Sandbox{}}
	f := newFixture(t, gateway)
	boom := errors.New("write timeout")
	f.store.FailNext("TransitionTopUp", boom)

	attempt, err := f.engine.Initiate(context.Background(), "A1", 100, "en")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, models.TopUpFailed, attempt.TopUp.Status)
	assert.Empty(t, gateway.requests, "gateway is not charged")

	stored, err := f.store.GetTopUpByOrderRef(context.Background(), attempt.TopUp.OrderRef)
	require.NoError(t, err)
	assert.Equal(t, models.TopUpFailed, stored.Status)

	wallet, coins := f.balances(t)
	assert.Zero(t, wallet)
	assert.Zero(t, coins)
}

func TestSettleUnknownOrderRef(t *testing.T) {
	f := newHostedFixture(t)
	_, err := f.engine.Settle(context.Background(), "wallet_A1_missing", payment.OutcomeSuccess)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPartialCreditIsReportedAndResumed(t *testing.T) {
	f := newFixture(t, payment.Sandbox{})
	ctx := context.Background()
	f.store.FailNext("ApplyTopUpStep:coin_credit", errors.New("write timeout"))

	attempt, err := f.engine.Initiate(ctx, "A1", 100, "en")
	require.ErrorIs(t, err, ErrIncomplete)
	require.NotNil(t, attempt.Result)
	assert.True(t, attempt.Result.WalletCredited)
	assert.True(t, attempt.Result.WalletNotified)
	assert.False(t, attempt.Result.CoinsCredited)
	assert.Equal(t, []models.TopUpStep{models.StepCoinCredit, models.StepCoinNotice}, attempt.Result.Pending)
	assert.Empty(t, f.publisher.keys)

	wallet, coins := f.balances(t)
	assert.Equal(t, int64(100), wallet)
	assert.Zero(t, coins)
	assert.Len(t, f.notifications(t), 1)

	reconciler := NewReconciler(f.store, f.engine, time.Minute, 10, zap.NewNop().Sugar())
	reconciler.now = func() time.Time { return time.Now().Add(time.Hour) }

	completed, err := reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)

	wallet, coins = f.balances(t)
	assert.Equal(t, int64(100), wallet)
	assert.Equal(t, int64(50), coins)
	assert.Len(t, f.notifications(t), 2)
	assert.Equal(t, []string{events.RoutingTopUpCredited}, f.publisher.keys)

	completed, err = reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, completed)
}

func TestReconcilerSkipsRecentTopUps(t *testing.T) {
	f := newFixture(t, payment.Sandbox{})
	f.store.FailNext("ApplyTopUpStep:wallet_notice", errors.New("write timeout"))

	_, err := f.engine.Initiate(context.Background(), "A1", 77, "en")
	require.ErrorIs(t, err, ErrIncomplete)

	reconciler := NewReconciler(f.store, f.engine, time.Hour, 10, zap.NewNop().Sugar())
	completed, err := reconciler.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, completed)
	assert.Empty(t, f.notifications(t))
}

func TestResumeRequiresCreditedTopUp(t *testing.T) {
	f := newFixture(t, payment.Sandbox{})
	_, err := f.engine.Resume(context.Background(), models.TopUp{ID: "t1", Status: models.TopUpFailed})
	assert.ErrorIs(t, err, ErrTopUpNotPending)
}
