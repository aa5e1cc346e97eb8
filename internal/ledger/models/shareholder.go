package models

import (
	"strings"
	"time"

	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

type ShareholderType string

const (
	ShareholderTypeIndividual ShareholderType = "INDIVIDUAL"
	ShareholderTypeEntity     ShareholderType = "ENTITY"
)

func (t ShareholderType) IsValid() bool {
	return t == ShareholderTypeIndividual || t == ShareholderTypeEntity
}

type ShareholderStatus string

const (
	ShareholderStatusActive              ShareholderStatus = "Active"
	ShareholderStatusInactive            ShareholderStatus = "Inactive"
	ShareholderStatusDeceasedOutstanding ShareholderStatus = "DeceasedOutstanding"
	ShareholderStatusDeceasedSurrendered ShareholderStatus = "DeceasedSurrendered"
)

func (s ShareholderStatus) IsValid() bool {
	switch s {
	case ShareholderStatusActive, ShareholderStatusInactive,
		ShareholderStatusDeceasedOutstanding, ShareholderStatusDeceasedSurrendered:
		return true
	}
	return false
}

// ExcludesVoting reports whether every share owned under this status is
// removed from voting regardless of lot status.
func (s ShareholderStatus) ExcludesVoting() bool {
	return s != ShareholderStatusActive
}

// Shareholder is a registered owner of share lots.
//
// Invariants:
//   - Individuals carry a first or last name; entities carry an entity name
//   - Status is one of the four ShareholderStatus values
//   - A shareholder owning lots or having granted proxies cannot be deleted
type Shareholder struct {
	ID         id.ShareholderID  `json:"id" db:"id"`
	TenantID   id.TenantID       `json:"tenant_id" db:"tenant_id"`
	Type       ShareholderType   `json:"type" db:"type"`
	FirstName  string            `json:"first_name,omitempty" db:"first_name"`
	LastName   string            `json:"last_name,omitempty" db:"last_name"`
	EntityName string            `json:"entity_name,omitempty" db:"entity_name"`
	Email      string            `json:"email,omitempty" db:"email"`
	Phone      string            `json:"phone,omitempty" db:"phone"`
	Status     ShareholderStatus `json:"status" db:"status"`
	Notes      string            `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// DisplayName is the entity name when set, otherwise "first last".
func (s *Shareholder) DisplayName() string {
	if name := strings.TrimSpace(s.EntityName); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
}

func (s *Shareholder) validate() error {
	if !s.Type.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "shareholder type must be INDIVIDUAL or ENTITY")
	}
	if !s.Status.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid shareholder status")
	}
	switch s.Type {
	case ShareholderTypeEntity:
		if s.EntityName == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "entity name is required for entity shareholders")
		}
	case ShareholderTypeIndividual:
		if s.FirstName == "" && s.LastName == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "first or last name is required for individual shareholders")
		}
	}
	return nil
}

func NewShareholder(shareholderID id.ShareholderID, tenantID id.TenantID, req *CreateShareholderRequest, now time.Time) (*Shareholder, error) {
	status := req.Status
	if status == "" {
		status = ShareholderStatusActive
	}
	s := &Shareholder{
		ID:         shareholderID,
		TenantID:   tenantID,
		Type:       req.Type,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		EntityName: req.EntityName,
		Email:      req.Email,
		Phone:      req.Phone,
		Status:     status,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply merges a partial update and re-checks invariants.
func (s *Shareholder) Apply(req *UpdateShareholderRequest, now time.Time) error {
	next := *s
	if req.Type != nil {
		next.Type = *req.Type
	}
	if req.FirstName != nil {
		next.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		next.LastName = *req.LastName
	}
	if req.EntityName != nil {
		next.EntityName = *req.EntityName
	}
	if req.Email != nil {
		next.Email = *req.Email
	}
	if req.Phone != nil {
		next.Phone = *req.Phone
	}
	if req.Status != nil {
		next.Status = *req.Status
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}
	if err := next.validate(); err != nil {
		return err
	}
	next.UpdatedAt = now
	*s = next
	return nil
}

// ShareholderDetail is a shareholder with its lots and live voting weight.
type ShareholderDetail struct {
	*Shareholder
	Lots           []*ShareLot `json:"lots"`
	ActiveShares   int64       `json:"active_shares"`
	ExcludedShares int64       `json:"excluded_shares"`
}
