package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hongminglow/taheel-be/internal/events"
	"github.com/hongminglow/taheel-be/internal/http/respond"
	"github.com/hongminglow/taheel-be/internal/middleware"
	"github.com/hongminglow/taheel-be/internal/models"
	"github.com/hongminglow/taheel-be/internal/storage"
	"go.uber.org/zap"
)

// NotificationLedger lists and marks an account's notifications.
type NotificationLedger interface {
	ForTarget(ctx context.Context, targetID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// NotificationHandler flips notification read state.
type NotificationHandler struct {
	ledger    NotificationLedger
	publisher events.Publisher
	logger    *zap.SugaredLogger
}

func NewNotificationHandler(ledger NotificationLedger, publisher events.Publisher, logger *zap.SugaredLogger) *NotificationHandler {
	if publisher == nil {
		publisher = events.Fallback{Logger: logger}
	}
	return &NotificationHandler{ledger: ledger, publisher: publisher, logger: logger}
}

// Register attaches notification routes. The router must already require authentication.
func (h *NotificationHandler) Register(r chi.Router) {
	r.Post("/notifications/{id}/read", h.handleMarkRead)
}

func (h *NotificationHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := chi.URLParam(r, "id")

	owned, err := h.ledger.ForTarget(r.Context(), accountID)
	if err != nil {
		h.logger.Errorw("list notifications failed", "account_id", accountID, "err", err)
		respond.Error(w, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}
	if !containsNotification(owned, id) {
		respond.Error(w, http.StatusNotFound, "notification not found")
		return
	}

	if err := h.ledger.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Errorw("mark notification read failed", "notification_id", id, "err", err)
		respond.Error(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}

	event := events.NotificationReadEvent{NotificationID: id, OccurredAt: time.Now().UTC()}
	if err := h.publisher.Publish(r.Context(), events.RoutingNotificationRead, event); err != nil {
		h.logger.Warnw("notification read event publish failed", "notification_id", id, "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func containsNotification(list []models.Notification, id string) bool {
	for _, n := range list {
		if n.ID == id {
			return true
		}
	}
	return false
}
