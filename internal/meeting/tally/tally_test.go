package tally

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"sharereg/internal/meeting/models"
	proxymodels "sharereg/internal/proxy/models"
	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

type TallySuite struct {
	suite.Suite
	standard *models.Motion
	election *models.Motion
}

func TestTallySuite(t *testing.T) {
	suite.Run(t, new(TallySuite))
}

func (s *TallySuite) SetupTest() {
	s.standard = &models.Motion{ID: id.NewMotionID(), Type: models.MotionTypeStandard, Title: "Approve budget", Text: "Approve the budget"}
	s.election = &models.Motion{
		ID:          id.NewMotionID(),
		Type:        models.MotionTypeElection,
		OfficeTitle: "Treasurer",
		Candidates:  []string{"Alice", "Bob"},
	}
}

func present(ids ...id.ShareholderID) map[id.ShareholderID]struct{} {
	m := make(map[id.ShareholderID]struct{}, len(ids))
	for _, i := range ids {
		m[i] = struct{}{}
	}
	return m
}

func snapshot(active int64) models.MeetingSnapshot {
	return models.MeetingSnapshot{ActiveVotingShares: active, MajorityThreshold: voting.MajorityThreshold(active)}
}

func (s *TallySuite) TestStandardBallots() {
	a, b := id.NewShareholderID(), id.NewShareholderID()
	in := Input{
		Motion:   s.standard,
		Snapshot: snapshot(1000),
		Present:  present(a, b),
		Weights:  voting.Weights{a: 500, b: 400},
	}

	s.Run("yes below threshold fails", func() {
		out, err := Tally(in, &models.RecordVoteRequest{Ballots: []models.StandardBallot{
			{ShareholderID: a, Choice: models.ChoiceYes},
			{ShareholderID: b, Choice: models.ChoiceNo},
		}})
		s.Require().NoError(err)
		s.Equal(int64(500), out.YesShares)
		s.Equal(int64(400), out.NoShares)
		s.Equal(models.VoteResultFailed, out.Result)
		s.Len(out.Details.Ballots, 2)
	})

	s.Run("yes at threshold passes", func() {
		in := in
		in.Snapshot = snapshot(800) // threshold 401
		out, err := Tally(in, &models.RecordVoteRequest{Ballots: []models.StandardBallot{
			{ShareholderID: a, Choice: models.ChoiceYes},
			{ShareholderID: b, Choice: models.ChoiceAbstain},
		}})
		s.Require().NoError(err)
		s.Equal(int64(400), out.AbstainShares)
		s.Equal(models.VoteResultPassed, out.Result)
	})

	s.Run("absent shareholder is rejected", func() {
		_, err := Tally(in, &models.RecordVoteRequest{Ballots: []models.StandardBallot{
			{ShareholderID: id.NewShareholderID(), Choice: models.ChoiceYes},
		}})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "not marked present")
	})

	s.Run("duplicate ballot is rejected", func() {
		_, err := Tally(in, &models.RecordVoteRequest{Ballots: []models.StandardBallot{
			{ShareholderID: a, Choice: models.ChoiceYes},
			{ShareholderID: a, Choice: models.ChoiceNo},
		}})
		s.Require().Error(err)
		s.Contains(err.Error(), "duplicate ballot")
	})

	s.Run("empty ballot list is rejected", func() {
		_, err := Tally(in, &models.RecordVoteRequest{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *TallySuite) TestStandardRawCounts() {
	in := Input{Motion: s.standard, Snapshot: snapshot(100)}

	out, err := Tally(in, &models.RecordVoteRequest{Raw: &models.RawCounts{YesShares: 51, NoShares: 49}})
	s.Require().NoError(err)
	s.Equal(models.VoteResultPassed, out.Result)
	s.True(out.Details.Raw)

	out, err = Tally(in, &models.RecordVoteRequest{Raw: &models.RawCounts{YesShares: 50, NoShares: 50}})
	s.Require().NoError(err)
	s.Equal(models.VoteResultFailed, out.Result)
}

func (s *TallySuite) TestZeroRepresentationFails() {
	a := id.NewShareholderID()
	in := Input{Motion: s.standard, Snapshot: snapshot(0), Present: present(a)}

	out, err := Tally(in, &models.RecordVoteRequest{Ballots: []models.StandardBallot{{ShareholderID: a, Choice: models.ChoiceYes}}})
	s.Require().NoError(err)
	s.Zero(out.Represented())
	s.Equal(models.VoteResultFailed, out.Result)

	out, err = Tally(in, &models.RecordVoteRequest{Raw: &models.RawCounts{}})
	s.Require().NoError(err)
	s.Equal(models.VoteResultFailed, out.Result)
}

func (s *TallySuite) TestProxySuppression() {
	g, h := id.NewShareholderID(), id.NewShareholderID()
	holder := h
	delegation := proxymodels.Resolve([]*proxymodels.Proxy{{
		ID:                  id.NewProxyID(),
		GrantorID:           g,
		HolderShareholderID: &holder,
		Status:              proxymodels.ProxyStatusAccepted,
		SharesSnapshot:      200,
	}}, time.Now())

	in := Input{
		Motion:     s.standard,
		Snapshot:   snapshot(450),
		Present:    present(g, h),
		Weights:    voting.Weights{g: 200, h: 50},
		Delegation: delegation,
	}

	s.Equal(int64(0), in.Weight(g))
	s.Equal(int64(250), in.Weight(h))

	out, err := Tally(in, &models.RecordVoteRequest{Ballots: []models.StandardBallot{
		{ShareholderID: g, Choice: models.ChoiceNo},
		{ShareholderID: h, Choice: models.ChoiceYes},
	}})
	s.Require().NoError(err)
	s.Equal(int64(250), out.YesShares)
	s.Equal(int64(0), out.NoShares)
	s.Equal(models.VoteResultPassed, out.Result, "threshold is 226")
}

func (s *TallySuite) TestElection() {
	x, y, z := id.NewShareholderID(), id.NewShareholderID(), id.NewShareholderID()
	in := Input{
		Motion:   s.election,
		Snapshot: snapshot(250),
		Present:  present(x, y, z),
		Weights:  voting.Weights{x: 100, y: 100, z: 50},
	}

	s.Run("single winner", func() {
		out, err := Tally(in, &models.RecordVoteRequest{ElectionBallots: []models.ElectionBallot{
			{ShareholderID: x, Candidate: "Alice"},
			{ShareholderID: y, Candidate: "Bob"},
			{ShareholderID: z, Candidate: "Alice"},
		}})
		s.Require().NoError(err)
		s.Equal([]models.CandidateTotal{{Candidate: "Alice", Shares: 150}, {Candidate: "Bob", Shares: 100}}, out.Details.Totals)
		s.Equal([]string{"Alice"}, out.Details.Winners)
		s.Equal(int64(150), out.YesShares)
		s.Equal(models.VoteResultPassed, out.Result)
	})

	s.Run("tie yields multiple winners", func() {
		out, err := Tally(in, &models.RecordVoteRequest{ElectionBallots: []models.ElectionBallot{
			{ShareholderID: x, Candidate: "Alice"},
			{ShareholderID: y, Candidate: "Bob"},
		}})
		s.Require().NoError(err)
		s.Equal([]string{"Alice", "Bob"}, out.Details.Winners)
	})

	s.Run("zero weight yields no winners and fails", func() {
		in := in
		in.Weights = voting.Weights{}
		out, err := Tally(in, &models.RecordVoteRequest{ElectionBallots: []models.ElectionBallot{
			{ShareholderID: x, Candidate: "Alice"},
		}})
		s.Require().NoError(err)
		s.Empty(out.Details.Winners)
		s.Equal(models.VoteResultFailed, out.Result)
	})

	s.Run("unknown candidate is rejected", func() {
		_, err := Tally(in, &models.RecordVoteRequest{ElectionBallots: []models.ElectionBallot{
			{ShareholderID: x, Candidate: "Mallory"},
		}})
		s.Require().Error(err)
		s.Contains(err.Error(), "invalid candidate")
	})

	s.Run("raw counts are rejected", func() {
		_, err := Tally(in, &models.RecordVoteRequest{Raw: &models.RawCounts{YesShares: 10}})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("duplicate ballot is rejected", func() {
		_, err := Tally(in, &models.RecordVoteRequest{ElectionBallots: []models.ElectionBallot{
			{ShareholderID: x, Candidate: "Alice"},
			{ShareholderID: x, Candidate: "Bob"},
		}})
		s.Require().Error(err)
		s.Contains(err.Error(), "duplicate ballot")
	})
}

func TestTally_UnknownMotionType(t *testing.T) {
	_, err := Tally(Input{Motion: &models.Motion{Type: "REFERENDUM"}}, &models.RecordVoteRequest{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
