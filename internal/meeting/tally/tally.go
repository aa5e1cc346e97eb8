// Package tally computes motion results from ballots, attendance and proxy
// delegation against a meeting's frozen majority threshold. It performs no
// I/O.
package tally

import (
	"math"

	"sharereg/internal/meeting/models"
	proxymodels "sharereg/internal/proxy/models"
	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

type Input struct {
	Motion     *models.Motion
	Snapshot   models.MeetingSnapshot
	Present    map[id.ShareholderID]struct{}
	Weights    voting.Weights
	Delegation proxymodels.Delegation
}

type Outcome struct {
	YesShares     int64
	NoShares      int64
	AbstainShares int64
	Result        models.VoteResult
	Details       models.VoteDetails
}

func (o Outcome) Represented() int64 {
	return o.YesShares + o.NoShares + o.AbstainShares
}

// Weight is the ballot weight of a shareholder under this input.
func (in Input) Weight(shareholderID id.ShareholderID) int64 {
	return in.Delegation.Weight(shareholderID, in.Weights.Of(shareholderID))
}

func Tally(in Input, req *models.RecordVoteRequest) (Outcome, error) {
	if in.Motion == nil {
		return Outcome{}, dErrors.New(dErrors.CodeInvariantViolation, "motion is required")
	}
	if req == nil {
		return Outcome{}, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	switch in.Motion.Type {
	case models.MotionTypeElection:
		return tallyElection(in, req)
	case models.MotionTypeStandard:
		return tallyStandard(in, req)
	default:
		return Outcome{}, dErrors.New(dErrors.CodeInvariantViolation, "unknown motion type "+string(in.Motion.Type))
	}
}

type ballotGuard struct {
	present map[id.ShareholderID]struct{}
	seen    map[id.ShareholderID]struct{}
}

func newBallotGuard(present map[id.ShareholderID]struct{}) *ballotGuard {
	return &ballotGuard{present: present, seen: make(map[id.ShareholderID]struct{})}
}

func (g *ballotGuard) admit(shareholderID id.ShareholderID) error {
	if _, ok := g.present[shareholderID]; !ok {
		return dErrors.New(dErrors.CodeValidation, "ballot includes shareholder not marked present for this meeting")
	}
	if _, dup := g.seen[shareholderID]; dup {
		return dErrors.New(dErrors.CodeValidation, "duplicate ballot for the same shareholder is not allowed")
	}
	g.seen[shareholderID] = struct{}{}
	return nil
}

func tallyStandard(in Input, req *models.RecordVoteRequest) (Outcome, error) {
	if len(req.ElectionBallots) > 0 {
		return Outcome{}, dErrors.New(dErrors.CodeValidation, "standard motions take yes/no/abstain ballots")
	}

	var out Outcome
	out.Details.Type = models.MotionTypeStandard

	switch {
	case len(req.Ballots) > 0:
		guard := newBallotGuard(in.Present)
		for _, b := range req.Ballots {
			if err := guard.admit(b.ShareholderID); err != nil {
				return Outcome{}, err
			}
			shares := in.Weight(b.ShareholderID)
			switch b.Choice {
			case models.ChoiceYes:
				out.YesShares += shares
			case models.ChoiceNo:
				out.NoShares += shares
			case models.ChoiceAbstain:
				out.AbstainShares += shares
			default:
				return Outcome{}, dErrors.New(dErrors.CodeValidation, "ballot choice must be yes, no or abstain")
			}
			out.Details.Ballots = append(out.Details.Ballots, models.ResolvedBallot{
				ShareholderID: b.ShareholderID,
				Choice:        b.Choice,
				Shares:        shares,
			})
		}
	case req.Raw != nil:
		if req.Raw.YesShares < 0 || req.Raw.NoShares < 0 || req.Raw.AbstainShares < 0 {
			return Outcome{}, dErrors.New(dErrors.CodeValidation, "raw share counts must be non-negative")
		}
		if req.Raw.YesShares > math.MaxInt64-req.Raw.NoShares-req.Raw.AbstainShares {
			return Outcome{}, dErrors.New(dErrors.CodeValidation, "raw share counts are too large")
		}
		out.YesShares = req.Raw.YesShares
		out.NoShares = req.Raw.NoShares
		out.AbstainShares = req.Raw.AbstainShares
		out.Details.Raw = true
	default:
		return Outcome{}, dErrors.New(dErrors.CodeValidation, "at least one ballot is required")
	}

	out.Result = models.VoteResultFailed
	if out.YesShares >= in.Snapshot.MajorityThreshold && out.Represented() > 0 {
		out.Result = models.VoteResultPassed
	}
	return out, nil
}

func tallyElection(in Input, req *models.RecordVoteRequest) (Outcome, error) {
	if req.Raw != nil || len(req.Ballots) > 0 {
		return Outcome{}, dErrors.New(dErrors.CodeValidation, "election motions take candidate ballots only")
	}
	if len(req.ElectionBallots) == 0 {
		return Outcome{}, dErrors.New(dErrors.CodeValidation, "at least one ballot is required")
	}

	guard := newBallotGuard(in.Present)
	totals := make(map[string]int64, len(in.Motion.Candidates))
	details := models.VoteDetails{
		Type:        models.MotionTypeElection,
		OfficeTitle: in.Motion.OfficeTitle,
	}
	for _, b := range req.ElectionBallots {
		if _, ok := in.Present[b.ShareholderID]; !ok {
			return Outcome{}, dErrors.New(dErrors.CodeValidation, "ballot includes shareholder not marked present for this meeting")
		}
		if !in.Motion.HasCandidate(b.Candidate) {
			return Outcome{}, dErrors.New(dErrors.CodeValidation, "invalid candidate: "+b.Candidate)
		}
		if err := guard.admit(b.ShareholderID); err != nil {
			return Outcome{}, err
		}
		shares := in.Weight(b.ShareholderID)
		totals[b.Candidate] += shares
		details.Ballots = append(details.Ballots, models.ResolvedBallot{
			ShareholderID: b.ShareholderID,
			Candidate:     b.Candidate,
			Shares:        shares,
		})
	}

	var top, represented int64
	for _, c := range in.Motion.Candidates {
		total := totals[c]
		details.Totals = append(details.Totals, models.CandidateTotal{Candidate: c, Shares: total})
		represented += total
		if total > top {
			top = total
		}
	}
	if top > 0 {
		for _, t := range details.Totals {
			if t.Shares == top {
				details.Winners = append(details.Winners, t.Candidate)
			}
		}
	}

	out := Outcome{
		YesShares: top,
		Result:    models.VoteResultFailed,
		Details:   details,
	}
	if represented > 0 {
		out.Result = models.VoteResultPassed
	}
	return out, nil
}
