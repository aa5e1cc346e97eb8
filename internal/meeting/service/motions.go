package service

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sharereg/internal/meeting/models"
	"sharereg/internal/meeting/tally"
	proxymodels "sharereg/internal/proxy/models"
	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/requestcontext"
)

func (s *Service) CreateMotion(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID, req *models.CreateMotionRequest) (*models.Motion, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *models.Motion
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.findMeeting(ctx, tenantID, meetingID); err != nil {
			return err
		}
		m, err := models.NewMotion(id.NewMotionID(), tenantID, meetingID, req, requestcontext.Now(ctx))
		if err != nil {
			return asValidation(err)
		}
		if err := s.store.CreateMotion(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create motion")
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, audit.ActionCreate, audit.EntityMotion, created.ID.String(), req)
	return created, nil
}

// ReopenMotion allows another vote on a closed motion. Prior votes are kept.
func (s *Service) ReopenMotion(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) (*models.Motion, error) {
	var motion *models.Motion
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.findMotion(ctx, tenantID, motionID, true)
		if err != nil {
			return err
		}
		m.Reopen(requestcontext.Now(ctx))
		if err := s.store.UpdateMotion(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reopen motion")
		}
		motion = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, audit.ActionReopen, audit.EntityMotion, motionID.String(), nil)
	return motion, nil
}

// RecordVote tallies ballots against the meeting snapshot, stores the vote
// and closes the motion in one transaction. Any rejected ballot leaves the
// motion open and nothing is written.
func (s *Service) RecordVote(ctx context.Context, tenantID id.TenantID, motionID id.MotionID, req *models.RecordVoteRequest) (*models.Vote, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "meeting.record_vote")
	defer span.End()
	span.SetAttributes(attribute.String("motion.id", motionID.String()))

	req.Normalize()
	if err := req.Validate(); err != nil {
		s.voteRejected(span, err)
		return nil, err
	}

	var (
		vote   *models.Vote
		motion *models.Motion
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.findMotion(ctx, tenantID, motionID, true)
		if err != nil {
			return err
		}
		if m.IsClosed {
			return dErrors.New(dErrors.CodeConflict, "motion is closed; reopen it before recording additional votes")
		}
		in, err := s.tallyInput(ctx, tenantID, m)
		if err != nil {
			return err
		}
		outcome, err := tally.Tally(in, req)
		if err != nil {
			return asValidation(err)
		}

		now := requestcontext.Now(ctx)
		vote = &models.Vote{
			ID:            id.NewVoteID(),
			TenantID:      tenantID,
			MotionID:      m.ID,
			YesShares:     outcome.YesShares,
			NoShares:      outcome.NoShares,
			AbstainShares: outcome.AbstainShares,
			Result:        outcome.Result,
			Details:       outcome.Details,
			RecordedBy:    requestcontext.UserID(ctx),
			CreatedAt:     now,
		}
		if err := s.store.CreateVote(ctx, vote); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record vote")
		}
		if err := m.Close(now); err != nil {
			return err
		}
		if err := s.store.UpdateMotion(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to close motion")
		}
		motion = m
		return nil
	})
	if err != nil {
		s.voteRejected(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("vote.result", string(vote.Result)),
		attribute.Int64("vote.represented_shares", vote.Represented()),
	)
	if s.metrics != nil {
		s.metrics.IncrementVotesRecorded(string(motion.Type), string(vote.Result))
		s.metrics.ObserveRecordVote(start)
	}
	s.record(ctx, tenantID, audit.ActionCreate, audit.EntityVote, vote.ID.String(), vote)
	return vote, nil
}

func (s *Service) voteRejected(span trace.Span, err error) {
	failSpan(span, err)
	if s.metrics != nil {
		s.metrics.IncrementVoteRejected(string(dErrors.CodeOf(err)))
	}
}

// tallyInput gathers attendance, delegation and ballot weights for a motion.
// Weights use the live ledger under the rules frozen in the meeting snapshot.
func (s *Service) tallyInput(ctx context.Context, tenantID id.TenantID, motion *models.Motion) (tally.Input, error) {
	meeting, err := s.findMeeting(ctx, tenantID, motion.MeetingID)
	if err != nil {
		return tally.Input{}, err
	}
	present, delegation, weights, err := s.presence(ctx, meeting)
	if err != nil {
		return tally.Input{}, err
	}
	return tally.Input{
		Motion:     motion,
		Snapshot:   meeting.Snapshot,
		Present:    present,
		Weights:    weights,
		Delegation: delegation,
	}, nil
}

func (s *Service) presence(ctx context.Context, meeting *models.Meeting) (map[id.ShareholderID]struct{}, proxymodels.Delegation, voting.Weights, error) {
	attendance, err := s.store.ListAttendance(ctx, meeting.TenantID, meeting.ID)
	if err != nil {
		return nil, proxymodels.Delegation{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}
	proxies, err := s.proxies.ProxiesForMeeting(ctx, meeting.TenantID, meeting.ID)
	if err != nil {
		return nil, proxymodels.Delegation{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load proxies")
	}
	holdings, err := s.ledger.ListHoldings(ctx, meeting.TenantID)
	if err != nil {
		return nil, proxymodels.Delegation{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holdings")
	}
	weights, err := voting.ComputeWeights(holdings, meeting.Snapshot.Rules)
	if err != nil {
		return nil, proxymodels.Delegation{}, nil, err
	}
	return models.PresentSet(attendance), proxymodels.Resolve(proxies, meeting.ScheduledAt), weights, nil
}

// PresentVoters lists present shareholders with a positive ballot weight,
// heaviest first.
func (s *Service) PresentVoters(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]models.PresentVoter, error) {
	meeting, err := s.findMeeting(ctx, tenantID, meetingID)
	if err != nil {
		return nil, err
	}
	present, delegation, weights, err := s.presence(ctx, meeting)
	if err != nil {
		return nil, err
	}
	shareholders, err := s.ledger.ListShareholders(ctx, tenantID, "")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load shareholders")
	}
	voters := make([]models.PresentVoter, 0, len(present))
	for _, sh := range shareholders {
		if _, ok := present[sh.ID]; !ok {
			continue
		}
		shares := delegation.Weight(sh.ID, weights.Of(sh.ID))
		if shares <= 0 {
			continue
		}
		voters = append(voters, models.PresentVoter{ShareholderID: sh.ID, Name: sh.DisplayName(), Shares: shares})
	}
	sort.SliceStable(voters, func(i, j int) bool {
		if voters[i].Shares != voters[j].Shares {
			return voters[i].Shares > voters[j].Shares
		}
		return voters[i].Name < voters[j].Name
	})
	return voters, nil
}

// Representation reports shares present in person, shares carried by
// proxy, and their sum, for the live meeting view.
func (s *Service) Representation(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) (*models.Representation, error) {
	meeting, err := s.findMeeting(ctx, tenantID, meetingID)
	if err != nil {
		return nil, err
	}
	present, delegation, weights, err := s.presence(ctx, meeting)
	if err != nil {
		return nil, err
	}
	detail, err := s.detail(ctx, meeting)
	if err != nil {
		return nil, err
	}
	var presentShares int64
	for shareholderID := range present {
		if delegation.IsProxied(shareholderID) {
			continue
		}
		presentShares += weights.Of(shareholderID)
	}
	return &models.Representation{
		Meeting:           detail,
		PresentShares:     presentShares,
		ProxyShares:       delegation.ProxyShares,
		RepresentedShares: presentShares + delegation.ProxyShares,
	}, nil
}
