package models

import (
	"strings"
	"time"

	ledgermodels "sharereg/internal/ledger/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

type TransferStatus string

const (
	TransferStatusDraft  TransferStatus = "DRAFT"
	TransferStatusPosted TransferStatus = "POSTED"
)

// Transfer moves shares out of source lots and, when a destination owner is
// set, into new lots for that owner.
//
// Invariants:
//   - DRAFT → POSTED is the only transition and POSTED is terminal
//   - Posted transfers are immutable, including their lines
type Transfer struct {
	ID          id.TransferID     `json:"id" db:"id"`
	TenantID    id.TenantID       `json:"tenant_id" db:"tenant_id"`
	FromOwnerID *id.ShareholderID `json:"from_owner_id,omitempty" db:"from_owner_id"`
	ToOwnerID   *id.ShareholderID `json:"to_owner_id,omitempty" db:"to_owner_id"`
	MeetingID   *id.MeetingID     `json:"meeting_id,omitempty" db:"meeting_id"`
	Status      TransferStatus    `json:"status" db:"status"`
	Notes       string            `json:"notes,omitempty" db:"notes"`
	Lines       []TransferLine    `json:"lines" db:"-"`
	PostedAt    *time.Time        `json:"posted_at,omitempty" db:"posted_at"`
	PostedBy    *id.UserID        `json:"posted_by,omitempty" db:"posted_by"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

type TransferLine struct {
	LotID       id.LotID `json:"lot_id" db:"lot_id"`
	SharesTaken int64    `json:"shares_taken" db:"shares_taken"`
}

func (t *Transfer) IsPosted() bool {
	return t.Status == TransferStatusPosted
}

// EnsureMutable rejects edits to posted transfers.
func (t *Transfer) EnsureMutable() error {
	if t.IsPosted() {
		return dErrors.New(dErrors.CodeConflict, "posted transfers are immutable")
	}
	return nil
}

// CanPost checks the preconditions of posting that do not need the ledger.
func (t *Transfer) CanPost() error {
	if t.IsPosted() {
		return dErrors.New(dErrors.CodeConflict, "transfer already posted")
	}
	if len(t.Lines) == 0 {
		return dErrors.New(dErrors.CodeValidation, "transfer has no lines")
	}
	return nil
}

func (t *Transfer) MarkPosted(actor id.UserID, now time.Time) {
	t.Status = TransferStatusPosted
	t.PostedAt = &now
	if !actor.IsNil() {
		t.PostedBy = &actor
	}
	t.UpdatedAt = now
}

// SourceLabel is recorded on lots created by this transfer.
func (t *Transfer) SourceLabel() string {
	return "Transfer " + t.ID.String()
}

func NewTransfer(transferID id.TransferID, tenantID id.TenantID, req *CreateTransferRequest, now time.Time) *Transfer {
	return &Transfer{
		ID:          transferID,
		TenantID:    tenantID,
		FromOwnerID: req.FromOwnerID,
		ToOwnerID:   req.ToOwnerID,
		MeetingID:   req.MeetingID,
		Status:      TransferStatusDraft,
		Notes:       req.Notes,
		Lines:       append([]TransferLine{}, req.Lines...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Apply merges a draft update. Lines, when given, replace the existing lines.
func (t *Transfer) Apply(req *UpdateTransferRequest, now time.Time) error {
	if err := t.EnsureMutable(); err != nil {
		return err
	}
	if req.FromOwnerID != nil {
		t.FromOwnerID = nonNil(req.FromOwnerID)
	}
	if req.ToOwnerID != nil {
		t.ToOwnerID = nonNil(req.ToOwnerID)
	}
	if req.MeetingID != nil {
		if req.MeetingID.IsNil() {
			t.MeetingID = nil
		} else {
			m := *req.MeetingID
			t.MeetingID = &m
		}
	}
	if req.Notes != nil {
		t.Notes = *req.Notes
	}
	if req.Lines != nil {
		t.Lines = append([]TransferLine{}, *req.Lines...)
	}
	t.UpdatedAt = now
	return nil
}

// nonNil treats the nil UUID as "clear the field".
func nonNil(v *id.ShareholderID) *id.ShareholderID {
	if v.IsNil() {
		return nil
	}
	c := *v
	return &c
}

type CreateTransferRequest struct {
	FromOwnerID *id.ShareholderID `json:"from_owner_id"`
	ToOwnerID   *id.ShareholderID `json:"to_owner_id"`
	MeetingID   *id.MeetingID     `json:"meeting_id"`
	Notes       string            `json:"notes"`
	Lines       []TransferLine    `json:"lines"`
}

func (r *CreateTransferRequest) Normalize() {
	if r == nil {
		return
	}
	r.Notes = strings.TrimSpace(r.Notes)
	if r.FromOwnerID != nil && r.FromOwnerID.IsNil() {
		r.FromOwnerID = nil
	}
	if r.ToOwnerID != nil && r.ToOwnerID.IsNil() {
		r.ToOwnerID = nil
	}
	if r.MeetingID != nil && r.MeetingID.IsNil() {
		r.MeetingID = nil
	}
}

func (r *CreateTransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Notes) > 2000 {
		return dErrors.New(dErrors.CodeValidation, "notes must be 2000 characters or less")
	}
	if r.FromOwnerID != nil && r.ToOwnerID != nil && *r.FromOwnerID == *r.ToOwnerID {
		return dErrors.New(dErrors.CodeValidation, "source and destination owner must differ")
	}
	return validateLines(r.Lines)
}

type UpdateTransferRequest struct {
	FromOwnerID *id.ShareholderID `json:"from_owner_id"`
	ToOwnerID   *id.ShareholderID `json:"to_owner_id"`
	MeetingID   *id.MeetingID     `json:"meeting_id"`
	Notes       *string           `json:"notes"`
	Lines       *[]TransferLine   `json:"lines"`
}

func (r *UpdateTransferRequest) Normalize() {
	if r != nil && r.Notes != nil {
		*r.Notes = strings.TrimSpace(*r.Notes)
	}
}

func (r *UpdateTransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Notes != nil && len(*r.Notes) > 2000 {
		return dErrors.New(dErrors.CodeValidation, "notes must be 2000 characters or less")
	}
	if r.Lines != nil {
		return validateLines(*r.Lines)
	}
	return nil
}

const maxTransferLines = 500

func validateLines(lines []TransferLine) error {
	if len(lines) > maxTransferLines {
		return dErrors.New(dErrors.CodeValidation, "too many transfer lines")
	}
	for _, l := range lines {
		if l.LotID.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "line lot_id is required")
		}
		if l.SharesTaken <= 0 {
			return dErrors.New(dErrors.CodeValidation, "line shares_taken must be a positive integer")
		}
	}
	return nil
}

// Posting is a posted transfer together with the lots it issued.
type Posting struct {
	Transfer   *Transfer                `json:"transfer"`
	IssuedLots []*ledgermodels.ShareLot `json:"issued_lots"`
}
