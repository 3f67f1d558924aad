package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hongminglow/taheel-be/internal/models"
	"github.com/hongminglow/taheel-be/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creditedTopUp(t *testing.T, s *Store, bonus int64) models.TopUp {
	t.Helper()
	ctx := context.Background()
	s.PutAccount(models.AccountRecord{ID: "A1", Type: "resident"})
	topUp, err := s.CreateTopUp(ctx, models.TopUp{ID: "t1", AccountID: "A1", OrderRef: "wallet_A1_1", Amount: 100, Bonus: bonus, Status: models.TopUpInitiated})
	require.NoError(t, err)
	_, err = s.TransitionTopUp(ctx, topUp.ID, models.TopUpInitiated, models.TopUpGatewayPending)
	require.NoError(t, err)
	topUp, err = s.TransitionTopUp(ctx, topUp.ID, models.TopUpGatewayPending, models.TopUpCredited)
	require.NoError(t, err)
	return topUp
}

func TestTransitionCompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()
	topUp, err := s.CreateTopUp(ctx, models.TopUp{ID: "t1", OrderRef: "r1", Amount: 10, Status: models.TopUpInitiated})
	require.NoError(t, err)

	_, err = s.TransitionTopUp(ctx, topUp.ID, models.TopUpGatewayPending, models.TopUpCredited)
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.TransitionTopUp(ctx, "missing", models.TopUpInitiated, models.TopUpGatewayPending)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.CreateTopUp(ctx, models.TopUp{ID: "t2", OrderRef: "r1", Amount: 10})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestApplyTopUpStepOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	topUp := creditedTopUp(t, s, 50)

	_, applied, err := s.ApplyTopUpStep(ctx, topUp.ID, models.StepWalletCredit, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	_, applied, err = s.ApplyTopUpStep(ctx, topUp.ID, models.StepWalletCredit, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	notice := models.Notification{ID: "notif-1", TargetID: "A1", Title: "t"}
	updated, applied, err := s.ApplyTopUpStep(ctx, topUp.ID, models.StepWalletNotice, &notice)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "notif-1", updated.WalletNotificationID)

	_, _, err = s.ApplyTopUpStep(ctx, topUp.ID, models.StepCoinNotice, nil)
	assert.Error(t, err, "notice steps need a notification")

	rec, err := s.GetAccount(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.WalletBalance)
	assert.Zero(t, rec.Coins)
}

func TestApplyTopUpStepRequiresCredited(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutAccount(models.AccountRecord{ID: "A1"})
	topUp, err := s.CreateTopUp(ctx, models.TopUp{ID: "t1", AccountID: "A1", OrderRef: "r", Amount: 100, Status: models.TopUpGatewayPending})
	require.NoError(t, err)

	_, _, err = s.ApplyTopUpStep(ctx, topUp.ID, models.StepWalletCredit, nil)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestListIncompleteTopUps(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })
	topUp := creditedTopUp(t, s, 50)

	list, err := s.ListIncompleteTopUps(ctx, base.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, topUp.ID, list[0].ID)

	list, err = s.ListIncompleteTopUps(ctx, base, 10)
	require.NoError(t, err)
	assert.Empty(t, list, "cutoff is exclusive")
}

func TestFailNextIsOneShot(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.FailNext("ListServices", boom)

	_, err := s.ListServices(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = s.ListServices(context.Background())
	assert.NoError(t, err)
}

func TestNotificationsKeepInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateNotification(ctx, models.Notification{ID: "n2", TargetID: "A1", Timestamp: "2024-02-01T00:00:00.000Z"}))
	require.NoError(t, s.CreateNotification(ctx, models.Notification{ID: "n1", TargetID: "A1", Timestamp: "2024-03-01T00:00:00.000Z"}))
	assert.ErrorIs(t, s.CreateNotification(ctx, models.Notification{ID: "n1", TargetID: "A1"}), storage.ErrAlreadyExists)

	list, err := s.ListNotificationsByTarget(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)

	assert.ErrorIs(t, s.MarkNotificationRead(ctx, "nope"), storage.ErrNotFound)
}

func TestGetAccountReturnsCopy(t *testing.T) {
	s := New()
	s.PutAccount(models.AccountRecord{ID: "A1", Messages: []models.Message{{Title: "hi"}}})

	rec, err := s.GetAccount(context.Background(), "A1")
	require.NoError(t, err)
	rec.Messages[0].Title = "changed"

	again, err := s.GetAccount(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Title)
}

func TestListCompaniesByOwnerUsesResolvedType(t *testing.T) {
	s := New()
	s.PutAccount(models.AccountRecord{ID: "C1", Type: "company", Owner: "Alice"})
	s.PutAccount(models.AccountRecord{ID: "C2", AccountType: "company", Owner: "Alice"})
	s.PutAccount(models.AccountRecord{ID: "Z9", Type: "resident", AccountType: "company", Owner: "Alice"})
	s.PutAccount(models.AccountRecord{ID: "Z8", Type: "company", AccountType: "resident", Owner: "R1"})

	list, err := s.ListCompaniesByOwner(context.Background(), []string{"R1", "Alice"})
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"C1", "C2", "Z8"}, ids)
}
