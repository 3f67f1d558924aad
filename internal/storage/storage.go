package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/taheel-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrConflict indicates a compare-and-set precondition did not hold.
var ErrConflict = errors.New("record state conflict")

// AccountReader reads client accounts.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (models.AccountRecord, error)
	// ListCompaniesByOwner returns company accounts whose owner field equals any of owners.
	ListCompaniesByOwner(ctx context.Context, owners []string) ([]models.AccountRecord, error)
}

// CatalogReader reads the service catalog in its stored iteration order.
type CatalogReader interface {
	ListServices(ctx context.Context) ([]models.Service, error)
}

// OrderReader reads a client's request history, newest first.
type OrderReader interface {
	ListOrdersByClient(ctx context.Context, clientID string) ([]models.Order, error)
}

// NotificationStore persists notification records.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n models.Notification) error
	// MarkNotificationRead sets isRead to true. Returns ErrNotFound for unknown ids.
	MarkNotificationRead(ctx context.Context, id string) error
	ListNotificationsByTarget(ctx context.Context, targetID string) ([]models.Notification, error)
}

// TopUpStore persists wallet top-ups and applies their balance-changing steps.
// ApplyTopUpStep is the only write path that alters walletBalance or coins.
type TopUpStore interface {
	CreateTopUp(ctx context.Context, t models.TopUp) (models.TopUp, error)
	GetTopUpByOrderRef(ctx context.Context, orderRef string) (models.TopUp, error)
	// TransitionTopUp moves a top-up from one status to another, or returns ErrConflict.
	TransitionTopUp(ctx context.Context, id string, from, to models.TopUpStatus) (models.TopUp, error)
	// ApplyTopUpStep atomically applies step and records it. The bool is false when
	// the step had already been applied. Notice steps require a notification.
	ApplyTopUpStep(ctx context.Context, id string, step models.TopUpStep, notice *models.Notification) (models.TopUp, bool, error)
	// ListIncompleteTopUps returns credited top-ups with pending steps last updated before the cutoff.
	ListIncompleteTopUps(ctx context.Context, updatedBefore time.Time, limit int) ([]models.TopUp, error)
}

// Store is the full Account Store consumed by the dashboard and wallet engine.
type Store interface {
	AccountReader
	CatalogReader
	OrderReader
	NotificationStore
	TopUpStore
	Close()
}
