package models

import (
	"strings"
	"time"

	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

// Meeting is a governance event with a snapshot frozen at creation.
//
// Invariants:
//   - A meeting is never persisted without its snapshot
//   - The snapshot is never modified after creation, even when the meeting
//     title or date changes or the ledger moves
type Meeting struct {
	ID          id.MeetingID    `json:"id" db:"id"`
	TenantID    id.TenantID     `json:"tenant_id" db:"tenant_id"`
	Title       string          `json:"title" db:"title"`
	ScheduledAt time.Time       `json:"date_time" db:"scheduled_at"`
	Snapshot    MeetingSnapshot `json:"snapshot" db:"-"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// MeetingSnapshot is the evaluator result frozen for one meeting.
type MeetingSnapshot struct {
	ActiveVotingShares int64            `json:"activeVotingShares"`
	ExcludedShares     int64            `json:"excludedShares"`
	MajorityThreshold  int64            `json:"majorityThreshold"`
	Breakdown          voting.Breakdown `json:"breakdown"`
	Rules              voting.Rules     `json:"rulesJson"`
	CreatedAt          time.Time        `json:"created_at"`
}

func SnapshotFrom(res voting.Result, now time.Time) MeetingSnapshot {
	return MeetingSnapshot{
		ActiveVotingShares: res.ActiveVotingShares,
		ExcludedShares:     res.ExcludedShares,
		MajorityThreshold:  res.MajorityThreshold,
		Breakdown:          res.Breakdown,
		Rules:              res.Rules,
		CreatedAt:          now,
	}
}

func NewMeeting(meetingID id.MeetingID, tenantID id.TenantID, title string, scheduledAt time.Time, snapshot MeetingSnapshot, now time.Time) (*Meeting, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "meeting title cannot be empty")
	}
	if scheduledAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "meeting date is required")
	}
	return &Meeting{
		ID:          meetingID,
		TenantID:    tenantID,
		Title:       title,
		ScheduledAt: scheduledAt,
		Snapshot:    snapshot,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type Attendance struct {
	MeetingID     id.MeetingID     `json:"meeting_id" db:"meeting_id"`
	ShareholderID id.ShareholderID `json:"shareholder_id" db:"shareholder_id"`
	Present       bool             `json:"present" db:"present"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// PresentSet returns the shareholders marked present.
func PresentSet(rows []*Attendance) map[id.ShareholderID]struct{} {
	present := make(map[id.ShareholderID]struct{}, len(rows))
	for _, a := range rows {
		if a.Present {
			present[a.ShareholderID] = struct{}{}
		}
	}
	return present
}

type MotionType string

const (
	MotionTypeStandard MotionType = "STANDARD"
	MotionTypeElection MotionType = "ELECTION"
)

func (t MotionType) IsValid() bool {
	return t == MotionTypeStandard || t == MotionTypeElection
}

// Motion is open until a vote is recorded and can be reopened explicitly.
type Motion struct {
	ID          id.MotionID  `json:"id" db:"id"`
	TenantID    id.TenantID  `json:"tenant_id" db:"tenant_id"`
	MeetingID   id.MeetingID `json:"meeting_id" db:"meeting_id"`
	Type        MotionType   `json:"type" db:"type"`
	Title       string       `json:"title" db:"title"`
	Text        string       `json:"text" db:"text"`
	OfficeTitle string       `json:"office_title,omitempty" db:"office_title"`
	Candidates  []string     `json:"candidates,omitempty" db:"-"`
	IsClosed    bool         `json:"is_closed" db:"is_closed"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

func (m *Motion) HasCandidate(name string) bool {
	for _, c := range m.Candidates {
		if c == name {
			return true
		}
	}
	return false
}

// Close marks the motion closed after a vote. A closed motion rejects
// further votes until reopened.
func (m *Motion) Close(now time.Time) error {
	if m.IsClosed {
		return dErrors.New(dErrors.CodeConflict, "motion is closed; reopen it before recording additional votes")
	}
	m.IsClosed = true
	m.UpdatedAt = now
	return nil
}

func (m *Motion) Reopen(now time.Time) {
	m.IsClosed = false
	m.UpdatedAt = now
}

// NewMotion builds a motion from a normalized request. Election motions get
// a derived title and text.
func NewMotion(motionID id.MotionID, tenantID id.TenantID, meetingID id.MeetingID, req *CreateMotionRequest, now time.Time) (*Motion, error) {
	m := &Motion{
		ID:        motionID,
		TenantID:  tenantID,
		MeetingID: meetingID,
		Type:      req.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch req.Type {
	case MotionTypeElection:
		if req.OfficeTitle == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "election motions require an office title")
		}
		if len(req.Candidates) < 2 {
			return nil, dErrors.New(dErrors.CodeValidation, "election motions require at least two candidates")
		}
		m.OfficeTitle = req.OfficeTitle
		m.Candidates = append([]string(nil), req.Candidates...)
		m.Title = "Election: " + req.OfficeTitle
		m.Text = "Election for " + req.OfficeTitle + ". Candidates: " + strings.Join(req.Candidates, ", ")
	case MotionTypeStandard:
		if req.Title == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "standard motions require a title")
		}
		if req.Text == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "standard motions require motion text")
		}
		m.Title = req.Title
		m.Text = req.Text
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "motion type must be STANDARD or ELECTION")
	}
	return m, nil
}

type VoteResult string

const (
	VoteResultPassed VoteResult = "Passed"
	VoteResultFailed VoteResult = "Failed"
)

type Choice string

const (
	ChoiceYes     Choice = "yes"
	ChoiceNo      Choice = "no"
	ChoiceAbstain Choice = "abstain"
)

func (c Choice) IsValid() bool {
	return c == ChoiceYes || c == ChoiceNo || c == ChoiceAbstain
}

type CandidateTotal struct {
	Candidate string `json:"candidate"`
	Shares    int64  `json:"shares"`
}

// ResolvedBallot is a ballot with the weight it was counted at.
type ResolvedBallot struct {
	ShareholderID id.ShareholderID `json:"shareholderId"`
	Choice        Choice           `json:"choice,omitempty"`
	Candidate     string           `json:"candidate,omitempty"`
	Shares        int64            `json:"shares"`
}

// VoteDetails is the audit record of how a vote was tallied.
type VoteDetails struct {
	Type        MotionType       `json:"type"`
	OfficeTitle string           `json:"officeTitle,omitempty"`
	Totals      []CandidateTotal `json:"totals,omitempty"`
	Winners     []string         `json:"winners,omitempty"`
	Ballots     []ResolvedBallot `json:"ballots,omitempty"`
	Raw         bool             `json:"raw,omitempty"`
}

// Vote is one tally of a motion. For elections YesShares holds the winning
// total and Result only says whether any shares were represented.
type Vote struct {
	ID            id.VoteID   `json:"id" db:"id"`
	TenantID      id.TenantID `json:"tenant_id" db:"tenant_id"`
	MotionID      id.MotionID `json:"motion_id" db:"motion_id"`
	YesShares     int64       `json:"yes_shares" db:"yes_shares"`
	NoShares      int64       `json:"no_shares" db:"no_shares"`
	AbstainShares int64       `json:"abstain_shares" db:"abstain_shares"`
	Result        VoteResult  `json:"result" db:"result"`
	Details       VoteDetails `json:"details" db:"-"`
	RecordedBy    id.UserID   `json:"recorded_by" db:"recorded_by"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

func (v *Vote) Represented() int64 {
	return v.YesShares + v.NoShares + v.AbstainShares
}

// MotionWithVotes is a motion plus its vote history, oldest first.
type MotionWithVotes struct {
	*Motion
	Votes []*Vote `json:"votes"`
}

// MeetingDetail is a meeting with attendance and motions.
type MeetingDetail struct {
	*Meeting
	Attendance []*Attendance      `json:"attendance"`
	Motions    []*MotionWithVotes `json:"motions"`
}

type PresentVoter struct {
	ShareholderID id.ShareholderID `json:"shareholderId"`
	Name          string           `json:"name"`
	Shares        int64            `json:"shares"`
}

// Representation is the live "meeting mode" view.
type Representation struct {
	Meeting           *MeetingDetail `json:"meeting"`
	PresentShares     int64          `json:"presentShares"`
	ProxyShares       int64          `json:"proxyShares"`
	RepresentedShares int64          `json:"representedShares"`
}

type PendingSummary struct {
	OpenMotions    int `json:"openMotions"`
	PendingProxies int `json:"pendingProxies"`
	TotalPending   int `json:"totalPending"`
}
