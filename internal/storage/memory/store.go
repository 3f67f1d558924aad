// Package memory is an in-process Account Store used for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hongminglow/taheel-be/internal/models"
	"github.com/hongminglow/taheel-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps every collection in memory. Services and notifications preserve insertion order.
type Store struct {
	mu            sync.Mutex
	accounts      map[string]models.AccountRecord
	services      []models.Service
	orders        []models.Order
	notifications []models.Notification
	topUps        map[string]models.TopUp
	now           func() time.Time

	// one-shot errors keyed by method name
	failOn map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]models.AccountRecord),
		topUps:   make(map[string]models.TopUp),
		failOn:   make(map[string]error),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op.
func (s *Store) Close() {}

// PutAccount inserts or replaces an account, as the onboarding flow would.
func (s *Store) PutAccount(a models.AccountRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = cloneAccount(a)
}

// AddService appends a catalog entry.
func (s *Store) AddService(svc models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = append(s.services, svc)
}

// AddOrder appends a request record.
func (s *Store) AddOrder(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
}

// FailNext arms a one-shot failure for the named store method.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[method] = err
}

// SetClock overrides the clock used for top-up timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) takeFailure(method string) error {
	err, ok := s.failOn[method]
	if ok {
		delete(s.failOn, method)
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, id string) (models.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("GetAccount"); err != nil {
		return models.AccountRecord{}, err
	}
	a, ok := s.accounts[id]
	if !ok {
		return models.AccountRecord{}, storage.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *Store) ListCompaniesByOwner(ctx context.Context, owners []string) ([]models.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("ListCompaniesByOwner"); err != nil {
		return nil, err
	}
	var out []models.AccountRecord
	for _, a := range s.accounts {
		if a.ResolvedType() != models.Company {
			continue
		}
		for _, owner := range owners {
			if owner != "" && a.Owner == owner {
				out = append(out, cloneAccount(a))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListServices(ctx context.Context) ([]models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("ListServices"); err != nil {
		return nil, err
	}
	out := make([]models.Service, len(s.services))
	copy(out, s.services)
	return out, nil
}

func (s *Store) ListOrdersByClient(ctx context.Context, clientID string) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("ListOrdersByClient"); err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range s.orders {
		if o.ClientID == clientID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateNotification(ctx context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("CreateNotification"); err != nil {
		return err
	}
	return s.insertNotification(n)
}

func (s *Store) insertNotification(n models.Notification) error {
	for _, existing := range s.notifications {
		if existing.ID == n.ID {
			return storage.ErrAlreadyExists
		}
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("MarkNotificationRead"); err != nil {
		return err
	}
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].IsRead = true
			return nil
		}
	}
	return storage.ErrNotFound
}

// ListNotificationsByTarget returns matches in insertion order; ordering is the ledger's job.
func (s *Store) ListNotificationsByTarget(ctx context.Context, targetID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("ListNotificationsByTarget"); err != nil {
		return nil, err
	}
	var out []models.Notification
	for _, n := range s.notifications {
		if n.TargetID == targetID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) CreateTopUp(ctx context.Context, t models.TopUp) (models.TopUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("CreateTopUp"); err != nil {
		return models.TopUp{}, err
	}
	if _, ok := s.topUps[t.ID]; ok {
		return models.TopUp{}, storage.ErrAlreadyExists
	}
	for _, existing := range s.topUps {
		if existing.OrderRef == t.OrderRef {
			return models.TopUp{}, storage.ErrAlreadyExists
		}
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	s.topUps[t.ID] = t
	return t, nil
}

func (s *Store) GetTopUpByOrderRef(ctx context.Context, orderRef string) (models.TopUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("GetTopUpByOrderRef"); err != nil {
		return models.TopUp{}, err
	}
	for _, t := range s.topUps {
		if t.OrderRef == orderRef {
			return t, nil
		}
	}
	return models.TopUp{}, storage.ErrNotFound
}

func (s *Store) TransitionTopUp(ctx context.Context, id string, from, to models.TopUpStatus) (models.TopUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("TransitionTopUp"); err != nil {
		return models.TopUp{}, err
	}
	t, ok := s.topUps[id]
	if !ok {
		return models.TopUp{}, storage.ErrNotFound
	}
	if t.Status != from {
		return t, storage.ErrConflict
	}
	t.Status = to
	t.UpdatedAt = s.now()
	s.topUps[id] = t
	return t, nil
}

func (s *Store) ApplyTopUpStep(ctx context.Context, id string, step models.TopUpStep, notice *models.Notification) (models.TopUp, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("ApplyTopUpStep:" + string(step)); err != nil {
		return models.TopUp{}, false, err
	}
	t, ok := s.topUps[id]
	if !ok {
		return models.TopUp{}, false, storage.ErrNotFound
	}
	if t.Status != models.TopUpCredited {
		return t, false, storage.ErrConflict
	}
	if t.StepDone(step) {
		return t, false, nil
	}

	switch step {
	case models.StepWalletCredit, models.StepCoinCredit:
		a, ok := s.accounts[t.AccountID]
		if !ok {
			return t, false, storage.ErrNotFound
		}
		if step == models.StepWalletCredit {
			a.WalletBalance += t.Amount
			t.WalletCredited = true
		} else {
			a.Coins += t.Bonus
			t.CoinsCredited = true
		}
		s.accounts[a.ID] = a
	case models.StepWalletNotice, models.StepCoinNotice:
		if notice == nil {
			return t, false, fmt.Errorf("step %s requires a notification", step)
		}
		if err := s.insertNotification(*notice); err != nil {
			return t, false, err
		}
		if step == models.StepWalletNotice {
			t.WalletNotified = true
			t.WalletNotificationID = notice.ID
		} else {
			t.CoinsNotified = true
			t.CoinsNotificationID = notice.ID
		}
	default:
		return t, false, fmt.Errorf("unknown top-up step %q", step)
	}

	t.UpdatedAt = s.now()
	s.topUps[id] = t
	return t, true, nil
}

func (s *Store) ListIncompleteTopUps(ctx context.Context, updatedBefore time.Time, limit int) ([]models.TopUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("ListIncompleteTopUps"); err != nil {
		return nil, err
	}
	var out []models.TopUp
	for _, t := range s.topUps {
		if t.Status == models.TopUpCredited && len(t.PendingSteps()) > 0 && t.UpdatedAt.Before(updatedBefore) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneAccount(a models.AccountRecord) models.AccountRecord {
	if a.Messages != nil {
		msgs := make([]models.Message, len(a.Messages))
		copy(msgs, a.Messages)
		a.Messages = msgs
	}
	return a
}
