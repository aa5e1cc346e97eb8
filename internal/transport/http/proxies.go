package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sharereg/internal/proxy/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/httputil"
)

type ProxyService interface {
	Create(ctx context.Context, tenantID id.TenantID, req *models.CreateProxyRequest) (*models.Proxy, error)
	Get(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*models.Proxy, error)
	List(ctx context.Context, tenantID id.TenantID, filter models.ProxyFilter) ([]*models.Proxy, error)
	Accept(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*models.Proxy, error)
	Reject(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*models.Proxy, error)
	Revoke(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*models.Proxy, error)
	Delete(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) error
}

type ProxyHandler struct {
	svc    ProxyService
	logger *slog.Logger
}

func NewProxyHandler(svc ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{svc: svc, logger: logger}
}

func (h *ProxyHandler) Register(r chi.Router, write func(http.Handler) http.Handler) {
	r.Route("/proxies", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.Get("/{proxyID}", h.handleGet)
		r.With(write).Delete("/{proxyID}", h.handleDelete)
		r.With(write).Post("/{proxyID}/accept", h.transition(h.svc.Accept))
		r.With(write).Post("/{proxyID}/reject", h.transition(h.svc.Reject))
		r.With(write).Post("/{proxyID}/revoke", h.transition(h.svc.Revoke))
	})
}

func (h *ProxyHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProxyRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	p, err := h.svc.Create(r.Context(), tenantOf(r), &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *ProxyHandler) handleList(w http.ResponseWriter, r *http.Request) {
	meetingID, err := queryID(r, "meeting_id", id.ParseMeetingID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	grantorID, err := queryID(r, "grantor_id", id.ParseShareholderID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	filter := models.ProxyFilter{MeetingID: meetingID, GrantorID: grantorID}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := models.ProxyStatus(strings.ToUpper(raw))
		if !status.IsValid() {
			fail(h.logger, w, r, dErrors.New(dErrors.CodeBadRequest, "invalid proxy status"))
			return
		}
		filter.Status = &status
	}
	list, err := h.svc.List(r.Context(), tenantOf(r), filter)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *ProxyHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	proxyID, err := pathID(r, "proxyID", id.ParseProxyID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	p, err := h.svc.Get(r.Context(), tenantOf(r), proxyID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *ProxyHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	proxyID, err := pathID(r, "proxyID", id.ParseProxyID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), tenantOf(r), proxyID); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ProxyHandler) transition(fn func(context.Context, id.TenantID, id.ProxyID) (*models.Proxy, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proxyID, err := pathID(r, "proxyID", id.ParseProxyID)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		p, err := fn(r.Context(), tenantOf(r), proxyID)
		if err != nil {
			fail(h.logger, w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, p)
	}
}
