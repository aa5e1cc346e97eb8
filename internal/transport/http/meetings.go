package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sharereg/internal/meeting/models"
	id "sharereg/pkg/domain"
	"sharereg/pkg/platform/httputil"
)

type MeetingService interface {
	CreateMeeting(ctx context.Context, tenantID id.TenantID, req *models.CreateMeetingRequest) (*models.Meeting, error)
	UpdateMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID, req *models.UpdateMeetingRequest) (*models.Meeting, error)
	DeleteMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) error
	ListMeetings(ctx context.Context, tenantID id.TenantID) ([]*models.Meeting, error)
	GetMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) (*models.MeetingDetail, error)
	SetAttendance(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID, req *models.AttendanceRequest) (*models.Attendance, error)
	PendingSummary(ctx context.Context, tenantID id.TenantID) (*models.PendingSummary, error)
	PresentVoters(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]models.PresentVoter, error)
	Representation(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) (*models.Representation, error)

	CreateMotion(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID, req *models.CreateMotionRequest) (*models.Motion, error)
	ReopenMotion(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) (*models.Motion, error)
	RecordVote(ctx context.Context, tenantID id.TenantID, motionID id.MotionID, req *models.RecordVoteRequest) (*models.Vote, error)
}

type MeetingHandler struct {
	svc    MeetingService
	logger *slog.Logger
}

func NewMeetingHandler(svc MeetingService, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{svc: svc, logger: logger}
}

func (h *MeetingHandler) Register(r chi.Router, write func(http.Handler) http.Handler) {
	r.Route("/meetings", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.Get("/pending", h.handlePending)
		r.Route("/{meetingID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.With(write).Patch("/", h.handleUpdate)
			r.With(write).Delete("/", h.handleDelete)
			r.With(write).Put("/attendance", h.handleSetAttendance)
			r.Get("/present-voters", h.handlePresentVoters)
			r.Get("/representation", h.handleRepresentation)
			r.With(write).Post("/motions", h.handleCreateMotion)
		})
	})
	r.Route("/motions/{motionID}", func(r chi.Router) {
		r.With(write).Post("/votes", h.handleRecordVote)
		r.With(write).Post("/reopen", h.handleReopen)
	})
}

func (h *MeetingHandler) meetingID(w http.ResponseWriter, r *http.Request) (id.MeetingID, bool) {
	meetingID, err := pathID(r, "meetingID", id.ParseMeetingID)
	if err != nil {
		fail(h.logger, w, r, err)
		return id.MeetingID{}, false
	}
	return meetingID, true
}

func (h *MeetingHandler) motionID(w http.ResponseWriter, r *http.Request) (id.MotionID, bool) {
	motionID, err := pathID(r, "motionID", id.ParseMotionID)
	if err != nil {
		fail(h.logger, w, r, err)
		return id.MotionID{}, false
	}
	return motionID, true
}

func (h *MeetingHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMeetingRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	m, err := h.svc.CreateMeeting(r.Context(), tenantOf(r), &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *MeetingHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListMeetings(r.Context(), tenantOf(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *MeetingHandler) handlePending(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.PendingSummary(r.Context(), tenantOf(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *MeetingHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	detail, err := h.svc.GetMeeting(r.Context(), tenantOf(r), meetingID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *MeetingHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	var req models.UpdateMeetingRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	m, err := h.svc.UpdateMeeting(r.Context(), tenantOf(r), meetingID, &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *MeetingHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteMeeting(r.Context(), tenantOf(r), meetingID); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *MeetingHandler) handleSetAttendance(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	var req models.AttendanceRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	att, err := h.svc.SetAttendance(r.Context(), tenantOf(r), meetingID, &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, att)
}

func (h *MeetingHandler) handlePresentVoters(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	voters, err := h.svc.PresentVoters(r.Context(), tenantOf(r), meetingID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, voters)
}

func (h *MeetingHandler) handleRepresentation(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.Representation(r.Context(), tenantOf(r), meetingID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rep)
}

func (h *MeetingHandler) handleCreateMotion(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := h.meetingID(w, r)
	if !ok {
		return
	}
	var req models.CreateMotionRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	motion, err := h.svc.CreateMotion(r.Context(), tenantOf(r), meetingID, &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, motion)
}

func (h *MeetingHandler) handleRecordVote(w http.ResponseWriter, r *http.Request) {
	motionID, ok := h.motionID(w, r)
	if !ok {
		return
	}
	var req models.RecordVoteRequest
	if err := decode(r, &req); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	vote, err := h.svc.RecordVote(r.Context(), tenantOf(r), motionID, &req)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, vote)
}

func (h *MeetingHandler) handleReopen(w http.ResponseWriter, r *http.Request) {
	motionID, ok := h.motionID(w, r)
	if !ok {
		return
	}
	motion, err := h.svc.ReopenMotion(r.Context(), tenantOf(r), motionID)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, motion)
}
