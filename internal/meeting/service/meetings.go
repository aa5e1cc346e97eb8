package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"sharereg/internal/meeting/models"
	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/requestcontext"
)

// CreateMeeting evaluates the ledger and persists the meeting together with
// the frozen result. Later transfers never change the stored snapshot.
func (s *Service) CreateMeeting(ctx context.Context, tenantID id.TenantID, req *models.CreateMeetingRequest) (*models.Meeting, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "meeting.create")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		failSpan(span, err)
		return nil, err
	}

	var created *models.Meeting
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		rules, err := s.rules.Rules(ctx, tenantID)
		if err != nil {
			return err
		}
		holdings, err := s.ledger.ListHoldings(ctx, tenantID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holdings")
		}
		res, err := voting.Evaluate(holdings, rules)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		m, err := models.NewMeeting(id.NewMeetingID(), tenantID, req.Title, req.DateTime, models.SnapshotFrom(res, now), now)
		if err != nil {
			return asValidation(err)
		}
		if err := s.store.CreateMeeting(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create meeting")
		}
		created = m
		return nil
	})
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("meeting.id", created.ID.String()),
		attribute.Int64("snapshot.active_voting_shares", created.Snapshot.ActiveVotingShares),
		attribute.Int64("snapshot.majority_threshold", created.Snapshot.MajorityThreshold),
	)
	if s.metrics != nil {
		s.metrics.IncrementMeetingsCreated()
		s.metrics.ObserveCreateMeeting(start)
	}
	s.record(ctx, tenantID, audit.ActionCreate, audit.EntityMeeting, created.ID.String(), req)
	return created, nil
}

// UpdateMeeting changes title or date only; the snapshot is untouched.
func (s *Service) UpdateMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID, req *models.UpdateMeetingRequest) (*models.Meeting, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var before, after models.Meeting
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.findMeeting(ctx, tenantID, meetingID)
		if err != nil {
			return err
		}
		before = *m
		if req.Title != nil {
			m.Title = *req.Title
		}
		if req.DateTime != nil {
			m.ScheduledAt = *req.DateTime
		}
		m.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.UpdateMeeting(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update meeting")
		}
		after = *m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, audit.ActionUpdate, audit.EntityMeeting, meetingID.String(), audit.BeforeAfter{Before: before, After: after})
	return &after, nil
}

// DeleteMeeting removes the meeting with its snapshot, attendance, motions,
// votes and bound proxies.
func (s *Service) DeleteMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.findMeeting(ctx, tenantID, meetingID); err != nil {
			return err
		}
		if err := s.store.DeleteMeeting(ctx, tenantID, meetingID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete meeting")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenantID, audit.ActionDelete, audit.EntityMeeting, meetingID.String(), nil)
	return nil
}

func (s *Service) ListMeetings(ctx context.Context, tenantID id.TenantID) ([]*models.Meeting, error) {
	list, err := s.store.ListMeetings(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list meetings")
	}
	return list, nil
}

func (s *Service) GetMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) (*models.MeetingDetail, error) {
	m, err := s.findMeeting(ctx, tenantID, meetingID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, m)
}

func (s *Service) detail(ctx context.Context, m *models.Meeting) (*models.MeetingDetail, error) {
	attendance, err := s.store.ListAttendance(ctx, m.TenantID, m.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}
	motions, err := s.store.ListMotions(ctx, m.TenantID, m.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load motions")
	}
	detail := &models.MeetingDetail{Meeting: m, Attendance: attendance, Motions: make([]*models.MotionWithVotes, 0, len(motions))}
	for _, motion := range motions {
		votes, err := s.store.ListVotes(ctx, m.TenantID, motion.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load votes")
		}
		detail.Motions = append(detail.Motions, &models.MotionWithVotes{Motion: motion, Votes: votes})
	}
	return detail, nil
}

// SetAttendance records presence for a shareholder of the tenant.
func (s *Service) SetAttendance(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID, req *models.AttendanceRequest) (*models.Attendance, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var row *models.Attendance
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.findMeeting(ctx, tenantID, meetingID); err != nil {
			return err
		}
		if _, err := s.ledger.FindShareholder(ctx, tenantID, req.ShareholderID); err != nil {
			return notFoundOr(err, "shareholder not found", "failed to load shareholder")
		}
		row = &models.Attendance{
			MeetingID:     meetingID,
			ShareholderID: req.ShareholderID,
			Present:       req.Present,
			UpdatedAt:     requestcontext.Now(ctx),
		}
		if err := s.store.UpsertAttendance(ctx, tenantID, row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save attendance")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, audit.ActionUpdate, audit.EntityAttendance, meetingID.String()+":"+req.ShareholderID.String(), req)
	return row, nil
}

func (s *Service) PendingSummary(ctx context.Context, tenantID id.TenantID) (*models.PendingSummary, error) {
	openMotions, err := s.store.CountOpenMotions(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count open motions")
	}
	pendingProxies, err := s.proxies.CountPendingProxies(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count pending proxies")
	}
	return &models.PendingSummary{
		OpenMotions:    openMotions,
		PendingProxies: pendingProxies,
		TotalPending:   openMotions + pendingProxies,
	}, nil
}
