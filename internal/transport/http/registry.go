package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sharereg/internal/settings"
	"sharereg/internal/voting"
	"sharereg/internal/voting/dashboard"
	id "sharereg/pkg/domain"
	"sharereg/pkg/platform/httputil"
)

type SettingsService interface {
	Rules(ctx context.Context, tenantID id.TenantID) (voting.Rules, error)
	Update(ctx context.Context, tenantID id.TenantID, req *settings.UpdateRequest) (voting.Rules, error)
}

type DashboardService interface {
	Summary(ctx context.Context, tenantID id.TenantID, blocIDs []id.ShareholderID) (*dashboard.Summary, error)
}

// RegistryHandler serves tenant-wide views: voting settings and the
// dashboard.
type RegistryHandler struct {
	settings  SettingsService
	dashboard DashboardService
	logger    *slog.Logger
}

func NewRegistryHandler(settings SettingsService, dashboard DashboardService, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{settings: settings, dashboard: dashboard, logger: logger}
}

func (h *RegistryHandler) Register(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Get("/settings/voting", h.handleGetSettings)
	r.With(admin).Put("/settings/voting", h.handleUpdateSettings)
	r.Get("/dashboard", h.handleDashboard)
}

func (h *RegistryHandler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	rules, err := h.settings.Rules(r.Context(), tenantOf(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rules)
}

func (h *RegistryHandler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.UpdateRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	rules, err := h.settings.Update(r.Context(), tenantOf(r), &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rules)
}

// handleDashboard accepts the bloc selection as ?bloc=<id>,<id> or repeated
// bloc parameters.
func (h *RegistryHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var blocIDs []id.ShareholderID
	for _, raw := range r.URL.Query()["bloc"] {
		for part := range strings.SplitSeq(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			shID, err := id.ParseShareholderID(part)
			if err != nil {
				fail(h.logger, w, r, err)
				return
			}
			blocIDs = append(blocIDs, shID)
		}
	}
	summary, err := h.dashboard.Summary(r.Context(), tenantOf(r), blocIDs)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
