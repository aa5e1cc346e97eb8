package models

import (
	"strings"
	"time"

	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

type ProxyStatus string

const (
	ProxyStatusPending  ProxyStatus = "PENDING"
	ProxyStatusAccepted ProxyStatus = "ACCEPTED"
	ProxyStatusRejected ProxyStatus = "REJECTED"
	ProxyStatusRevoked  ProxyStatus = "REVOKED"
)

func (s ProxyStatus) IsValid() bool {
	switch s {
	case ProxyStatusPending, ProxyStatusAccepted, ProxyStatusRejected, ProxyStatusRevoked:
		return true
	}
	return false
}

// Delegates reports whether a proxy in this status carries voting power.
func (s ProxyStatus) Delegates() bool {
	return s == ProxyStatusAccepted
}

type ProxyType string

const (
	ProxyTypeMeeting  ProxyType = "MEETING"
	ProxyTypeStanding ProxyType = "STANDING"
)

func (t ProxyType) IsValid() bool {
	return t == ProxyTypeMeeting || t == ProxyTypeStanding
}

type ProxyScope string

const (
	ProxyScopeGeneral ProxyScope = "GENERAL"
	ProxyScopeLimited ProxyScope = "LIMITED"
)

func (s ProxyScope) IsValid() bool {
	return s == ProxyScopeGeneral || s == ProxyScopeLimited
}

// Proxy authorizes a holder to vote a grantor's shares.
//
// Invariants:
//   - MEETING proxies name a meeting; STANDING proxies do not
//   - The holder is a shareholder of the tenant or a non-empty name
//   - SharesSnapshot is captured at creation and again at acceptance, never
//     recomputed afterwards
//   - Status transitions: PENDING → ACCEPTED | REJECTED, any → REVOKED
type Proxy struct {
	ID                  id.ProxyID        `json:"id" db:"id"`
	TenantID            id.TenantID       `json:"tenant_id" db:"tenant_id"`
	GrantorID           id.ShareholderID  `json:"grantor_id" db:"grantor_id"`
	HolderShareholderID *id.ShareholderID `json:"holder_shareholder_id,omitempty" db:"holder_shareholder_id"`
	HolderName          string            `json:"holder_name" db:"holder_name"`
	MeetingID           *id.MeetingID     `json:"meeting_id,omitempty" db:"meeting_id"`
	Type                ProxyType         `json:"type" db:"type"`
	Scope               ProxyScope        `json:"scope" db:"scope"`
	Instructions        string            `json:"instructions,omitempty" db:"instructions"`
	Status              ProxyStatus       `json:"status" db:"status"`
	SharesSnapshot      int64             `json:"proxy_shares_snapshot" db:"shares_snapshot"`
	ReceivedDate        *time.Time        `json:"received_date,omitempty" db:"received_date"`
	EffectiveAt         *time.Time        `json:"effective_at,omitempty" db:"effective_at"`
	ExpiresAt           *time.Time        `json:"expires_at,omitempty" db:"expires_at"`
	DecidedAt           *time.Time        `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" db:"updated_at"`
}

// InEffect reports whether the proxy's validity window covers at.
func (p *Proxy) InEffect(at time.Time) bool {
	if p.EffectiveAt != nil && at.Before(*p.EffectiveAt) {
		return false
	}
	if p.ExpiresAt != nil && !at.Before(*p.ExpiresAt) {
		return false
	}
	return true
}

func (p *Proxy) Accept(snapshot int64, now time.Time) error {
	if p.Status != ProxyStatusPending {
		return dErrors.New(dErrors.CodeConflict, "only pending proxies can be accepted")
	}
	p.Status = ProxyStatusAccepted
	p.SharesSnapshot = snapshot
	p.DecidedAt = &now
	p.UpdatedAt = now
	return nil
}

func (p *Proxy) Reject(now time.Time) error {
	if p.Status != ProxyStatusPending {
		return dErrors.New(dErrors.CodeConflict, "only pending proxies can be rejected")
	}
	p.Status = ProxyStatusRejected
	p.DecidedAt = &now
	p.UpdatedAt = now
	return nil
}

// Revoke moves the proxy to REVOKED. It reports false when the proxy was
// already revoked.
func (p *Proxy) Revoke(now time.Time) bool {
	if p.Status == ProxyStatusRevoked {
		return false
	}
	p.Status = ProxyStatusRevoked
	p.UpdatedAt = now
	return true
}

type CreateProxyRequest struct {
	GrantorID           id.ShareholderID  `json:"grantor_id"`
	HolderShareholderID *id.ShareholderID `json:"holder_shareholder_id"`
	HolderName          string            `json:"holder_name"`
	MeetingID           *id.MeetingID     `json:"meeting_id"`
	Type                ProxyType         `json:"type"`
	Scope               ProxyScope        `json:"scope"`
	Instructions        string            `json:"instructions"`
	ReceivedDate        *time.Time        `json:"received_date"`
	EffectiveAt         *time.Time        `json:"effective_at"`
	ExpiresAt           *time.Time        `json:"expires_at"`
}

func (r *CreateProxyRequest) Normalize() {
	if r == nil {
		return
	}
	r.HolderName = strings.TrimSpace(r.HolderName)
	r.Instructions = strings.TrimSpace(r.Instructions)
	r.Type = ProxyType(strings.ToUpper(strings.TrimSpace(string(r.Type))))
	r.Scope = ProxyScope(strings.ToUpper(strings.TrimSpace(string(r.Scope))))
	if r.Type == "" {
		r.Type = ProxyTypeMeeting
	}
	if r.Scope == "" {
		r.Scope = ProxyScopeGeneral
	}
	if r.HolderShareholderID != nil && r.HolderShareholderID.IsNil() {
		r.HolderShareholderID = nil
	}
	if r.MeetingID != nil && r.MeetingID.IsNil() {
		r.MeetingID = nil
	}
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *CreateProxyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.HolderName) > 256 {
		return dErrors.New(dErrors.CodeValidation, "holder name must be 256 characters or less")
	}
	if len(r.Instructions) > 2000 {
		return dErrors.New(dErrors.CodeValidation, "instructions must be 2000 characters or less")
	}
	if r.GrantorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "grantor_id is required")
	}
	if r.HolderShareholderID == nil && r.HolderName == "" {
		return dErrors.New(dErrors.CodeValidation, "proxy holder shareholder or name is required")
	}
	if !r.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "type must be MEETING or STANDING")
	}
	if !r.Scope.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "scope must be GENERAL or LIMITED")
	}
	if r.Type == ProxyTypeMeeting && r.MeetingID == nil {
		return dErrors.New(dErrors.CodeValidation, "meeting proxies require meeting_id")
	}
	if r.Type == ProxyTypeStanding && r.MeetingID != nil {
		return dErrors.New(dErrors.CodeValidation, "standing proxies cannot be bound to a meeting")
	}
	if r.HolderShareholderID != nil && *r.HolderShareholderID == r.GrantorID {
		return dErrors.New(dErrors.CodeValidation, "grantor cannot appoint themselves as proxy holder")
	}
	if r.EffectiveAt != nil && r.ExpiresAt != nil && !r.ExpiresAt.After(*r.EffectiveAt) {
		return dErrors.New(dErrors.CodeValidation, "expires_at must be after effective_at")
	}
	return nil
}

type ProxyFilter struct {
	MeetingID *id.MeetingID
	GrantorID *id.ShareholderID
	Status    *ProxyStatus
}

func (f ProxyFilter) Matches(p *Proxy) bool {
	if f.MeetingID != nil && (p.MeetingID == nil || *p.MeetingID != *f.MeetingID) {
		return false
	}
	if f.GrantorID != nil && p.GrantorID != *f.GrantorID {
		return false
	}
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	return true
}
