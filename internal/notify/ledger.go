// Package notify is the append-only notification ledger.
package notify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hongminglow/taheel-be/internal/models"
	"github.com/hongminglow/taheel-be/internal/storage"
	"go.uber.org/zap"
)

// TimestampLayout is ISO-8601 with fixed millisecond width, so string order is time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Ledger creates and marks notifications.
type Ledger struct {
	store  storage.NotificationStore
	logger *zap.SugaredLogger
	now    func() time.Time
	newID  func() string
}

// NewLedger wires a ledger over the store.
func NewLedger(store storage.NotificationStore, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return "notif-" + uuid.NewString() },
	}
}

// WithClock overrides the time source; used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// New builds an unread notification record without persisting it.
func (l *Ledger) New(targetID, title, body, kind string) models.Notification {
	if kind == "" {
		kind = models.NotificationTypeWallet
	}
	return models.Notification{
		ID:        l.newID(),
		TargetID:  targetID,
		Title:     title,
		Body:      body,
		IsRead:    false,
		Type:      kind,
		Timestamp: l.now().UTC().Format(TimestampLayout),
	}
}

// Create builds and persists a notification.
func (l *Ledger) Create(ctx context.Context, targetID, title, body, kind string) (models.Notification, error) {
	n := l.New(targetID, title, body, kind)
	if err := l.store.CreateNotification(ctx, n); err != nil {
		return models.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	l.logger.Debugw("notification created", "notification_id", n.ID, "target_id", targetID, "type", n.Type)
	return n, nil
}

// MarkRead sets isRead; marking an already-read notification changes nothing.
func (l *Ledger) MarkRead(ctx context.Context, id string) error {
	if err := l.store.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

// ForTarget returns an account's notifications, newest first.
func (l *Ledger) ForTarget(ctx context.Context, targetID string) ([]models.Notification, error) {
	list, err := l.store.ListNotificationsByTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	SortNewestFirst(list)
	return list, nil
}

// SortNewestFirst orders by timestamp descending. Missing timestamps sort last.
func SortNewestFirst(list []models.Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp > list[j].Timestamp
	})
}

// UnreadCount counts notifications not yet read.
func UnreadCount(list []models.Notification) int {
	n := 0
	for _, item := range list {
		if !item.IsRead {
			n++
		}
	}
	return n
}
