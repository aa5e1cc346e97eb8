package models

import (
	"time"

	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

type LotStatus string

const (
	LotStatusActive         LotStatus = "Active"
	LotStatusTreasury       LotStatus = "Treasury"
	LotStatusTransferredOut LotStatus = "TransferredOut"
	LotStatusSurrendered    LotStatus = "Surrendered"
	LotStatusDisputed       LotStatus = "Disputed"
)

func (s LotStatus) IsValid() bool {
	switch s {
	case LotStatusActive, LotStatusTreasury, LotStatusTransferredOut, LotStatusSurrendered, LotStatusDisputed:
		return true
	}
	return false
}

// ShareLot is a block of shares owned by one shareholder.
//
// Invariants:
//   - Shares >= 0, and > 0 at creation
//   - A lot whose shares reach 0 is TransferredOut and never reactivated
//   - CertificateNumber is unique per tenant
//   - Shares cannot be edited once the lot is referenced by a posted transfer
type ShareLot struct {
	ID                id.LotID         `json:"id" db:"id"`
	TenantID          id.TenantID      `json:"tenant_id" db:"tenant_id"`
	OwnerID           id.ShareholderID `json:"owner_id" db:"owner_id"`
	Shares            int64            `json:"shares" db:"shares"`
	Status            LotStatus        `json:"status" db:"status"`
	CertificateNumber string           `json:"certificate_number" db:"certificate_number"`
	AcquiredDate      *time.Time       `json:"acquired_date,omitempty" db:"acquired_date"`
	Source            string           `json:"source,omitempty" db:"source"`
	SourceTransferID  *id.TransferID   `json:"source_transfer_id,omitempty" db:"source_transfer_id"`
	Notes             string           `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

func NewShareLot(
	lotID id.LotID,
	tenantID id.TenantID,
	ownerID id.ShareholderID,
	shares int64,
	status LotStatus,
	certificateNumber string,
	now time.Time,
) (*ShareLot, error) {
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "lot owner is required")
	}
	if shares <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "lot shares must be a positive integer")
	}
	if status == "" {
		status = LotStatusActive
	}
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid lot status")
	}
	if certificateNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate number is required")
	}
	return &ShareLot{
		ID:                lotID,
		TenantID:          tenantID,
		OwnerID:           ownerID,
		Shares:            shares,
		Status:            status,
		CertificateNumber: certificateNumber,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Withdraw removes n shares for a transfer line. A lot drained to zero becomes
// TransferredOut.
func (l *ShareLot) Withdraw(n int64, now time.Time) error {
	if n <= 0 {
		return dErrors.New(dErrors.CodeValidation, "shares taken must be positive")
	}
	if l.Shares < n {
		return dErrors.New(dErrors.CodeValidation, "insufficient shares in lot "+l.CertificateNumber)
	}
	l.Shares -= n
	if l.Shares == 0 {
		l.Status = LotStatusTransferredOut
	}
	l.UpdatedAt = now
	return nil
}

// Apply merges a partial update. Callers must reject share changes for lots
// with posted usage before calling.
func (l *ShareLot) Apply(req *UpdateLotRequest, now time.Time) error {
	next := *l
	if req.OwnerID != nil {
		next.OwnerID = *req.OwnerID
	}
	if req.Shares != nil {
		if *req.Shares < 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, "lot shares cannot be negative")
		}
		next.Shares = *req.Shares
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return dErrors.New(dErrors.CodeInvariantViolation, "invalid lot status")
		}
		next.Status = *req.Status
	}
	if req.CertificateNumber != nil {
		if *req.CertificateNumber == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "certificate number cannot be empty")
		}
		next.CertificateNumber = *req.CertificateNumber
	}
	if req.AcquiredDate != nil {
		t := *req.AcquiredDate
		next.AcquiredDate = &t
	}
	if req.Source != nil {
		next.Source = *req.Source
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}
	if next.Shares == 0 {
		next.Status = LotStatusTransferredOut
	}
	next.UpdatedAt = now
	*l = next
	return nil
}

// ChangesShares reports whether req would alter the share count.
func (req *UpdateLotRequest) ChangesShares(current int64) bool {
	return req.Shares != nil && *req.Shares != current
}

// Holding is the evaluator's view of a lot joined with its owner's status.
type Holding struct {
	LotID       id.LotID          `json:"lot_id" db:"lot_id"`
	OwnerID     id.ShareholderID  `json:"owner_id" db:"owner_id"`
	Shares      int64             `json:"shares" db:"shares"`
	LotStatus   LotStatus         `json:"lot_status" db:"lot_status"`
	OwnerStatus ShareholderStatus `json:"owner_status" db:"owner_status"`
}

type LotFilter struct {
	OwnerID *id.ShareholderID
	Status  *LotStatus
}

func (f LotFilter) Matches(l *ShareLot) bool {
	if f.OwnerID != nil && l.OwnerID != *f.OwnerID {
		return false
	}
	if f.Status != nil && l.Status != *f.Status {
		return false
	}
	return true
}
