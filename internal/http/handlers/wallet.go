package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hongminglow/taheel-be/internal/http/respond"
	"github.com/hongminglow/taheel-be/internal/middleware"
	"github.com/hongminglow/taheel-be/internal/models"
	"github.com/hongminglow/taheel-be/internal/models/dto"
	"github.com/hongminglow/taheel-be/internal/payment"
	"github.com/hongminglow/taheel-be/internal/profile"
	"github.com/hongminglow/taheel-be/internal/wallet"
	"go.uber.org/zap"
)

// TopUpEngine starts and settles wallet top-ups.
type TopUpEngine interface {
	Initiate(ctx context.Context, accountID string, amount int64, lang string) (wallet.Attempt, error)
	Settle(ctx context.Context, orderRef string, outcome payment.Outcome) (wallet.Result, error)
}

// WalletHandler starts top-ups for the authenticated account.
type WalletHandler struct {
	engine      TopUpEngine
	defaultLang string
	logger      *zap.SugaredLogger
}

func NewWalletHandler(engine TopUpEngine, defaultLang string, logger *zap.SugaredLogger) *WalletHandler {
	return &WalletHandler{engine: engine, defaultLang: defaultLang, logger: logger}
}

// Register attaches wallet routes. The router must already require authentication.
func (h *WalletHandler) Register(r chi.Router) {
	r.Get("/wallet/tiers", h.handleTiers)
	r.Post("/wallet/topups", h.handleTopUp)
}

func (h *WalletHandler) handleTiers(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, "top-up tiers", wallet.Tiers())
}

func (h *WalletHandler) handleTopUp(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req dto.TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	attempt, err := h.engine.Initiate(r.Context(), accountID, req.Amount, resolveLang(req.Lang, h.defaultLang))
	switch {
	case err == nil:
	case errors.Is(err, wallet.ErrInvalidAmount):
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, wallet.ErrRateLimited):
		respond.Error(w, http.StatusTooManyRequests, "too many top-up attempts, try again later")
		return
	case errors.Is(err, profile.ErrAccountNotFound):
		respond.Error(w, http.StatusNotFound, "account not found")
		return
	case errors.Is(err, wallet.ErrPaymentFailed):
		respond.JSON(w, http.StatusPaymentRequired, "payment failed", attempt)
		return
	case errors.Is(err, wallet.ErrIncomplete):
		respond.JSON(w, http.StatusAccepted, "wallet credited, remaining steps pending", attempt)
		return
	default:
		h.logger.Errorw("top-up failed", "account_id", accountID, "amount", req.Amount, "err", err)
		respond.Error(w, http.StatusInternalServerError, "failed to process top-up")
		return
	}

	if attempt.TopUp.Status == models.TopUpGatewayPending {
		respond.JSON(w, http.StatusCreated, "awaiting payment", attempt)
		return
	}
	respond.JSON(w, http.StatusOK, "wallet charged", attempt)
}
