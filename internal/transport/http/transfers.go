package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sharereg/internal/transfer/models"
	id "sharereg/pkg/domain"
	"sharereg/pkg/platform/httputil"
)

type TransferService interface {
	Create(ctx context.Context, tenantID id.TenantID, req *models.CreateTransferRequest) (*models.Transfer, error)
	Get(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) (*models.Transfer, error)
	List(ctx context.Context, tenantID id.TenantID) ([]*models.Transfer, error)
	Update(ctx context.Context, tenantID id.TenantID, transferID id.TransferID, req *models.UpdateTransferRequest) (*models.Transfer, error)
	Delete(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) error
	Post(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) (*models.Posting, error)
}

type TransferHandler struct {
	svc    TransferService
	logger *slog.Logger
}

func NewTransferHandler(svc TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{svc: svc, logger: logger}
}

func (h *TransferHandler) Register(r chi.Router, write func(http.Handler) http.Handler) {
	r.Route("/transfers", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.Get("/{transferID}", h.handleGet)
		r.With(write).Put("/{transferID}", h.handleUpdate)
		r.With(write).Delete("/{transferID}", h.handleDelete)
		r.With(write).Post("/{transferID}/post", h.handlePost)
	})
}

func (h *TransferHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTransferRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	t, err := h.svc.Create(r.Context(), tenantOf(r), &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *TransferHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), tenantOf(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *TransferHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	transferID, err := pathID(r, "transferID", id.ParseTransferID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	t, err := h.svc.Get(r.Context(), tenantOf(r), transferID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *TransferHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	transferID, err := pathID(r, "transferID", id.ParseTransferID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	var req models.UpdateTransferRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	t, err := h.svc.Update(r.Context(), tenantOf(r), transferID, &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *TransferHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	transferID, err := pathID(r, "transferID", id.ParseTransferID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), tenantOf(r), transferID); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// handlePost applies the transfer to the ledger. Retrying after a timeout
// must re-read the transfer first: a second post of a posted transfer is a
// conflict.
func (h *TransferHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	transferID, err := pathID(r, "transferID", id.ParseTransferID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	posting, err := h.svc.Post(r.Context(), tenantOf(r), transferID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, posting)
}
