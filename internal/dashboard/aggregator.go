// Package dashboard assembles the client dashboard view model from the Account Store.
package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/hongminglow/taheel-be/internal/catalog"
	"github.com/hongminglow/taheel-be/internal/models"
	"github.com/hongminglow/taheel-be/internal/notify"
	"github.com/hongminglow/taheel-be/internal/profile"
	"github.com/hongminglow/taheel-be/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAccountNotFound is returned when the requested account does not exist.
var ErrAccountNotFound = profile.ErrAccountNotFound

// State describes how far the view got.
type State string

const (
	StateReady    State = "ready"
	StateNotFound State = "not_found"
	StateLoading  State = "loading"
)

// Store is the read side of the Account Store the aggregator needs.
type Store interface {
	storage.AccountReader
	storage.CatalogReader
	storage.OrderReader
}

// View is the aggregated, read-only structure handed to the presentation layer.
type View struct {
	State                   State                 `json:"state"`
	Lang                    string                `json:"lang,omitempty"`
	Account                 *models.Account       `json:"account,omitempty"`
	AccountType             models.AccountType    `json:"accountType,omitempty"`
	OwnerIdentity           *models.OwnerIdentity `json:"ownerIdentity,omitempty"`
	Companies               []models.Account      `json:"companies"`
	ServicesByCategory      catalog.Buckets       `json:"servicesByCategory"`
	DisplayedServices       []models.Service      `json:"displayedServices"`
	Orders                  []models.Order        `json:"orders"`
	Notifications           []models.Notification `json:"notifications"`
	UnreadNotificationCount int                   `json:"unreadNotificationCount"`
}

// FilterServices narrows the displayed services by free-text query.
func (v View) FilterServices(query string) []models.Service {
	return catalog.Filter(v.DisplayedServices, query, v.Lang)
}

// Aggregator builds views. Every build is a full reload from the store.
type Aggregator struct {
	store  Store
	ledger *notify.Ledger
	logger *zap.SugaredLogger
}

func NewAggregator(store Store, ledger *notify.Ledger, logger *zap.SugaredLogger) *Aggregator {
	return &Aggregator{store: store, ledger: ledger, logger: logger}
}

// Load reads the account and its related collections concurrently. When the account
// is missing the view is in StateNotFound; any other read failure leaves it in
// StateLoading with no partial data.
func (a *Aggregator) Load(ctx context.Context, accountID, lang string) (View, error) {
	var (
		record        models.AccountRecord
		accountErr    error
		services      []models.Service
		orders        []models.Order
		notifications []models.Notification
	)

	g, gctx := errgroup.WithContext(ctx)
	// The account read ignores sibling cancellation so a missing account is
	// always reported as such.
	g.Go(func() error {
		rec, err := a.store.GetAccount(ctx, accountID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			accountErr = ErrAccountNotFound
		case err != nil:
			accountErr = fmt.Errorf("get account: %w", err)
		default:
			record = rec
		}
		return accountErr
	})
	g.Go(func() error {
		list, err := a.store.ListServices(gctx)
		if err != nil {
			return fmt.Errorf("list services: %w", err)
		}
		services = list
		return nil
	})
	g.Go(func() error {
		list, err := a.store.ListOrdersByClient(gctx, accountID)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		orders = list
		return nil
	})
	g.Go(func() error {
		list, err := a.ledger.ForTarget(gctx, accountID)
		if err != nil {
			return err
		}
		notifications = list
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(accountErr, ErrAccountNotFound) {
			err = accountErr
		}
		return a.abort(accountID, err)
	}

	p, err := profile.Classify(&record)
	if err != nil {
		return a.abort(accountID, err)
	}
	companies, err := profile.Companies(ctx, a.store, p)
	if err != nil {
		return a.abort(accountID, err)
	}

	buckets := catalog.Partition(services)
	account := p.Account
	view := View{
		State:                   StateReady,
		Lang:                    lang,
		Account:                 &account,
		AccountType:             p.Type(),
		OwnerIdentity:           p.Owner,
		Companies:               companies,
		ServicesByCategory:      buckets,
		DisplayedServices:       buckets.Visible(p.Type()),
		Orders:                  nonNil(orders),
		Notifications:           nonNil(notifications),
		UnreadNotificationCount: notify.UnreadCount(notifications),
	}
	return view, nil
}

func (a *Aggregator) abort(accountID string, err error) (View, error) {
	if errors.Is(err, ErrAccountNotFound) {
		return emptyView(StateNotFound), ErrAccountNotFound
	}
	a.logger.Warnw("dashboard load failed", "account_id", accountID, "err", err)
	return emptyView(StateLoading), err
}

func emptyView(state State) View {
	return View{
		State:              state,
		Companies:          []models.Account{},
		ServicesByCategory: catalog.Partition(nil),
		DisplayedServices:  []models.Service{},
		Orders:             []models.Order{},
		Notifications:      []models.Notification{},
	}
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
