// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// a domain service and encode; they hold no business rules.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"sharereg/internal/platform/metrics"
	"sharereg/internal/platform/middleware"
	"sharereg/pkg/platform/httputil"
	"sharereg/pkg/platform/middleware/metadata"
	"sharereg/pkg/platform/middleware/requesttime"
)

type Deps struct {
	Ledger      LedgerService
	Transfers   TransferService
	Meetings    MeetingService
	Proxies     ProxyService
	Settings    SettingsService
	Dashboard   DashboardService
	Verifier    *middleware.TokenVerifier
	HTTPMetrics *metrics.HTTPMetrics
	Metrics     http.Handler
	Logger      *slog.Logger
}

// NewRouter wires all endpoints under /api/v1. Reads need any authenticated
// role; writes need a registrar-side role and settings changes need admin.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(requesttime.Middleware)
	if d.HTTPMetrics != nil {
		r.Use(middleware.Latency(d.HTTPMetrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	write := middleware.RequireAnyRole(middleware.RoleAdmin, middleware.RoleRegistrar, middleware.RoleClerk)
	admin := middleware.RequireAnyRole(middleware.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Use(middleware.RequireAuth(d.Verifier, logger))

		NewLedgerHandler(d.Ledger, logger).Register(r, write)
		NewTransferHandler(d.Transfers, logger).Register(r, write)
		NewMeetingHandler(d.Meetings, logger).Register(r, write)
		NewProxyHandler(d.Proxies, logger).Register(r, write)
		NewRegistryHandler(d.Settings, d.Dashboard, logger).Register(r, admin)
	})
	return r
}
