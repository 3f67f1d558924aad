package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hongminglow/taheel-be/internal/dashboard"
	"github.com/hongminglow/taheel-be/internal/http/respond"
	"github.com/hongminglow/taheel-be/internal/middleware"
	"github.com/hongminglow/taheel-be/internal/models/dto"
	"go.uber.org/zap"
)

// DashboardLoader builds the dashboard view for an account.
type DashboardLoader interface {
	Load(ctx context.Context, accountID, lang string) (dashboard.View, error)
}

// DashboardHandler serves the aggregated dashboard and the service search.
type DashboardHandler struct {
	views       DashboardLoader
	defaultLang string
	logger      *zap.SugaredLogger
}

func NewDashboardHandler(views DashboardLoader, defaultLang string, logger *zap.SugaredLogger) *DashboardHandler {
	return &DashboardHandler{views: views, defaultLang: defaultLang, logger: logger}
}

// Register attaches dashboard routes. The router must already require authentication.
func (h *DashboardHandler) Register(r chi.Router) {
	r.Get("/dashboard", h.handleView)
	r.Get("/dashboard/services", h.handleServices)
}

func (h *DashboardHandler) handleView(w http.ResponseWriter, r *http.Request) {
	view, ok := h.load(w, r)
	if !ok {
		return
	}
	respond.JSON(w, http.StatusOK, "dashboard loaded", view)
}

func (h *DashboardHandler) handleServices(w http.ResponseWriter, r *http.Request) {
	view, ok := h.load(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	respond.JSON(w, http.StatusOK, "services loaded", dto.ServicesResponse{
		Query:    strings.TrimSpace(query),
		Lang:     view.Lang,
		Services: view.FilterServices(query),
	})
}

// load writes the not-found or loading state itself and reports false in that case.
func (h *DashboardHandler) load(w http.ResponseWriter, r *http.Request) (dashboard.View, bool) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return dashboard.View{}, false
	}

	lang := resolveLang(r.URL.Query().Get("lang"), h.defaultLang)
	view, err := h.views.Load(r.Context(), accountID, lang)
	if err != nil {
		if errors.Is(err, dashboard.ErrAccountNotFound) {
			respond.JSON(w, http.StatusNotFound, "account not found", view)
			return view, false
		}
		h.logger.Warnw("dashboard unavailable", "account_id", accountID, "err", err)
		respond.JSON(w, http.StatusServiceUnavailable, "dashboard data unavailable", view)
		return view, false
	}
	return view, true
}

func resolveLang(raw, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ar":
		return "ar"
	case "en":
		return "en"
	}
	if fallback == "" {
		return "ar"
	}
	return fallback
}
