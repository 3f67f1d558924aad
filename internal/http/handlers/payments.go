package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hongminglow/taheel-be/internal/http/respond"
	"github.com/hongminglow/taheel-be/internal/models/dto"
	"github.com/hongminglow/taheel-be/internal/payment"
	"github.com/hongminglow/taheel-be/internal/storage"
	"github.com/hongminglow/taheel-be/internal/wallet"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-Signature"
	maxCallbackBody = 64 << 10
)

// PaymentHandler receives the provider's signed settlement callback.
type PaymentHandler struct {
	engine TopUpEngine
	secret []byte
	logger *zap.SugaredLogger
}

func NewPaymentHandler(engine TopUpEngine, webhookSecret string, logger *zap.SugaredLogger) *PaymentHandler {
	return &PaymentHandler{engine: engine, secret: []byte(webhookSecret), logger: logger}
}

// Register attaches the callback route. It authenticates by signature, not bearer token.
func (h *PaymentHandler) Register(r chi.Router) {
	r.Post("/payments/callback", h.handleCallback)
}

func (h *PaymentHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := payment.Verify(h.secret, body, r.Header.Get(signatureHeader)); err != nil {
		h.logger.Warnw("payment callback rejected", "err", err)
		respond.Error(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var cb dto.PaymentCallback
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&cb); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(cb.OrderRef) == "" {
		respond.Error(w, http.StatusBadRequest, "orderRef is required")
		return
	}
	outcome, err := payment.ParseOutcome(cb.Status)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.Settle(r.Context(), strings.TrimSpace(cb.OrderRef), outcome)
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, "top-up settled", result)
	case errors.Is(err, wallet.ErrPaymentFailed):
		respond.JSON(w, http.StatusOK, "payment failure recorded", result)
	case errors.Is(err, wallet.ErrIncomplete):
		respond.JSON(w, http.StatusAccepted, "wallet credited, remaining steps pending", result)
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "unknown order reference")
	case errors.Is(err, wallet.ErrTopUpSettled), errors.Is(err, wallet.ErrTopUpNotPending):
		respond.JSON(w, http.StatusConflict, err.Error(), result)
	default:
		h.logger.Errorw("payment settlement failed", "order_ref", cb.OrderRef, "err", err)
		respond.Error(w, http.StatusInternalServerError, "failed to settle top-up")
	}
}
