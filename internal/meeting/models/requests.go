package models

import (
	"strings"
	"time"

	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

type CreateMeetingRequest struct {
	Title    string    `json:"title"`
	DateTime time.Time `json:"date_time"`
}

func (r *CreateMeetingRequest) Normalize() {
	if r == nil {
		return
	}
	r.Title = strings.TrimSpace(r.Title)
}

func (r *CreateMeetingRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Title) > 256 {
		return dErrors.New(dErrors.CodeValidation, "title must be 256 characters or less")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if r.DateTime.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "date_time is required")
	}
	return nil
}

type UpdateMeetingRequest struct {
	Title    *string    `json:"title"`
	DateTime *time.Time `json:"date_time"`
}

func (r *UpdateMeetingRequest) Normalize() {
	if r != nil && r.Title != nil {
		*r.Title = strings.TrimSpace(*r.Title)
	}
}

func (r *UpdateMeetingRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Title != nil {
		if len(*r.Title) > 256 {
			return dErrors.New(dErrors.CodeValidation, "title must be 256 characters or less")
		}
		if *r.Title == "" {
			return dErrors.New(dErrors.CodeValidation, "title cannot be empty")
		}
	}
	if r.DateTime != nil && r.DateTime.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "date_time cannot be empty")
	}
	return nil
}

type AttendanceRequest struct {
	ShareholderID id.ShareholderID `json:"shareholder_id"`
	Present       bool             `json:"present"`
}

func (r *AttendanceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.ShareholderID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "shareholder_id is required")
	}
	return nil
}

type CreateMotionRequest struct {
	Type        MotionType `json:"type"`
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	OfficeTitle string     `json:"office_title"`
	Candidates  []string   `json:"candidates"`
}

// Normalize trims fields, defaults the type to STANDARD, and drops blank
// candidate names.
func (r *CreateMotionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Type = MotionType(strings.ToUpper(strings.TrimSpace(string(r.Type))))
	if r.Type == "" {
		r.Type = MotionTypeStandard
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Text = strings.TrimSpace(r.Text)
	r.OfficeTitle = strings.TrimSpace(r.OfficeTitle)
	candidates := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		if c = strings.TrimSpace(c); c != "" {
			candidates = append(candidates, c)
		}
	}
	r.Candidates = candidates
}

func (r *CreateMotionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Title) > 256 || len(r.OfficeTitle) > 256 {
		return dErrors.New(dErrors.CodeValidation, "title must be 256 characters or less")
	}
	if len(r.Text) > 10000 {
		return dErrors.New(dErrors.CodeValidation, "text must be 10000 characters or less")
	}
	if len(r.Candidates) > 100 {
		return dErrors.New(dErrors.CodeValidation, "too many candidates")
	}
	if !r.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "type must be STANDARD or ELECTION")
	}
	if r.Type == MotionTypeElection {
		seen := make(map[string]struct{}, len(r.Candidates))
		for _, c := range r.Candidates {
			if _, dup := seen[c]; dup {
				return dErrors.New(dErrors.CodeValidation, "duplicate candidate: "+c)
			}
			seen[c] = struct{}{}
		}
	}
	return nil
}

type StandardBallot struct {
	ShareholderID id.ShareholderID `json:"shareholder_id"`
	Choice        Choice           `json:"choice"`
}

type ElectionBallot struct {
	ShareholderID id.ShareholderID `json:"shareholder_id"`
	Candidate     string           `json:"candidate"`
}

// RawCounts is the pre-aggregated path for standard motions.
type RawCounts struct {
	YesShares     int64 `json:"yes_shares"`
	NoShares      int64 `json:"no_shares"`
	AbstainShares int64 `json:"abstain_shares"`
}

// RecordVoteRequest carries exactly one of Raw, Ballots (standard) or
// ElectionBallots (election).
type RecordVoteRequest struct {
	Raw             *RawCounts       `json:"raw,omitempty"`
	Ballots         []StandardBallot `json:"ballots,omitempty"`
	ElectionBallots []ElectionBallot `json:"election_ballots,omitempty"`
}

func (r *RecordVoteRequest) Normalize() {
	if r == nil {
		return
	}
	for i := range r.Ballots {
		r.Ballots[i].Choice = Choice(strings.ToLower(strings.TrimSpace(string(r.Ballots[i].Choice))))
	}
	for i := range r.ElectionBallots {
		r.ElectionBallots[i].Candidate = strings.TrimSpace(r.ElectionBallots[i].Candidate)
	}
}

func (r *RecordVoteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Ballots) > 100000 || len(r.ElectionBallots) > 100000 {
		return dErrors.New(dErrors.CodeValidation, "too many ballots")
	}
	paths := 0
	if r.Raw != nil {
		paths++
	}
	if len(r.Ballots) > 0 {
		paths++
	}
	if len(r.ElectionBallots) > 0 {
		paths++
	}
	if paths == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one ballot is required")
	}
	if paths > 1 {
		return dErrors.New(dErrors.CodeValidation, "provide either raw counts or ballots, not both")
	}
	if r.Raw != nil && (r.Raw.YesShares < 0 || r.Raw.NoShares < 0 || r.Raw.AbstainShares < 0) {
		return dErrors.New(dErrors.CodeValidation, "raw share counts must be non-negative")
	}
	for _, b := range r.Ballots {
		if b.ShareholderID.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "ballot shareholder_id is required")
		}
		if !b.Choice.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "ballot choice must be yes, no or abstain")
		}
	}
	for _, b := range r.ElectionBallots {
		if b.ShareholderID.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "ballot shareholder_id is required")
		}
		if b.Candidate == "" {
			return dErrors.New(dErrors.CodeValidation, "ballot candidate is required")
		}
	}
	return nil
}
