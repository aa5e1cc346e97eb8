package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sharereg/internal/ledger/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/httputil"
)

type LedgerService interface {
	CreateShareholder(ctx context.Context, tenantID id.TenantID, req *models.CreateShareholderRequest) (*models.Shareholder, error)
	GetShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (*models.ShareholderDetail, error)
	ListShareholders(ctx context.Context, tenantID id.TenantID, query string) ([]*models.Shareholder, error)
	UpdateShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID, req *models.UpdateShareholderRequest) (*models.Shareholder, error)
	DeleteShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) error

	CreateLot(ctx context.Context, tenantID id.TenantID, req *models.CreateLotRequest) (*models.ShareLot, error)
	GetLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (*models.ShareLot, error)
	ListLots(ctx context.Context, tenantID id.TenantID, filter models.LotFilter) ([]*models.ShareLot, error)
	UpdateLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID, req *models.UpdateLotRequest) (*models.ShareLot, error)
	DeleteLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) error
	NextCertificate(ctx context.Context, tenantID id.TenantID) (*models.CertificateSequence, error)
}

// LedgerHandler serves shareholders and share lots.
type LedgerHandler struct {
	svc    LedgerService
	logger *slog.Logger
}

func NewLedgerHandler(svc LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, logger: logger}
}

func (h *LedgerHandler) Register(r chi.Router, write func(http.Handler) http.Handler) {
	r.Route("/shareholders", func(r chi.Router) {
		r.Get("/", h.handleListShareholders)
		r.With(write).Post("/", h.handleCreateShareholder)
		r.Get("/{shareholderID}", h.handleGetShareholder)
		r.With(write).Patch("/{shareholderID}", h.handleUpdateShareholder)
		r.With(write).Delete("/{shareholderID}", h.handleDeleteShareholder)
	})
	r.Route("/lots", func(r chi.Router) {
		r.Get("/", h.handleListLots)
		r.With(write).Post("/", h.handleCreateLot)
		r.Get("/next-certificate", h.handleNextCertificate)
		r.Get("/{lotID}", h.handleGetLot)
		r.With(write).Patch("/{lotID}", h.handleUpdateLot)
		r.With(write).Delete("/{lotID}", h.handleDeleteLot)
	})
}

func (h *LedgerHandler) handleCreateShareholder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateShareholderRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	sh, err := h.svc.CreateShareholder(r.Context(), tenantOf(r), &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sh)
}

func (h *LedgerHandler) handleListShareholders(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListShareholders(r.Context(), tenantOf(r), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *LedgerHandler) handleGetShareholder(w http.ResponseWriter, r *http.Request) {
	shID, err := pathID(r, "shareholderID", id.ParseShareholderID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	detail, err := h.svc.GetShareholder(r.Context(), tenantOf(r), shID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *LedgerHandler) handleUpdateShareholder(w http.ResponseWriter, r *http.Request) {
	shID, err := pathID(r, "shareholderID", id.ParseShareholderID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	var req models.UpdateShareholderRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	sh, err := h.svc.UpdateShareholder(r.Context(), tenantOf(r), shID, &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sh)
}

func (h *LedgerHandler) handleDeleteShareholder(w http.ResponseWriter, r *http.Request) {
	shID, err := pathID(r, "shareholderID", id.ParseShareholderID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.DeleteShareholder(r.Context(), tenantOf(r), shID); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *LedgerHandler) handleCreateLot(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLotRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	lot, err := h.svc.CreateLot(r.Context(), tenantOf(r), &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, lot)
}

func (h *LedgerHandler) handleListLots(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryID(r, "owner_id", id.ParseShareholderID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	filter := models.LotFilter{OwnerID: ownerID}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := models.LotStatus(raw)
		if !status.IsValid() {
			fail(h.logger, w, r, dErrors.New(dErrors.CodeBadRequest, "invalid lot status"))
			return
		}
		filter.Status = &status
	}
	lots, err := h.svc.ListLots(r.Context(), tenantOf(r), filter)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lots)
}

func (h *LedgerHandler) handleGetLot(w http.ResponseWriter, r *http.Request) {
	lotID, err := pathID(r, "lotID", id.ParseLotID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	lot, err := h.svc.GetLot(r.Context(), tenantOf(r), lotID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lot)
}

func (h *LedgerHandler) handleUpdateLot(w http.ResponseWriter, r *http.Request) {
	lotID, err := pathID(r, "lotID", id.ParseLotID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	var req models.UpdateLotRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	lot, err := h.svc.UpdateLot(r.Context(), tenantOf(r), lotID, &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lot)
}

func (h *LedgerHandler) handleDeleteLot(w http.ResponseWriter, r *http.Request) {
	lotID, err := pathID(r, "lotID", id.ParseLotID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.DeleteLot(r.Context(), tenantOf(r), lotID); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *LedgerHandler) handleNextCertificate(w http.ResponseWriter, r *http.Request) {
	seq, err := h.svc.NextCertificate(r.Context(), tenantOf(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	next, err := seq.Next()
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"certificate_number": next})
}
