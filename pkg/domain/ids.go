// Package domain holds typed identifiers shared across the registry.
//
// Every aggregate gets its own UUID-backed ID type so a LotID can never be passed
// where a ShareholderID is expected. Parse functions enforce the trust-boundary
// invariant: IDs are valid, non-nil UUIDs.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "sharereg/pkg/domain-errors"
)

type (
	TenantID      uuid.UUID
	UserID        uuid.UUID
	ShareholderID uuid.UUID
	LotID         uuid.UUID
	TransferID    uuid.UUID
	MeetingID     uuid.UUID
	MotionID      uuid.UUID
	VoteID        uuid.UUID
	ProxyID       uuid.UUID
)

const maxIDLength = 64

func parse[T ~[16]byte](kind, raw string) (T, error) {
	var zero T
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zero, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(raw) > maxIDLength {
		return zero, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.Parse(raw)
	if err != nil || u == uuid.Nil {
		return zero, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return T(u), nil
}

func ParseTenantID(s string) (TenantID, error) { return parse[TenantID]("tenant id", s) }
func ParseUserID(s string) (UserID, error)     { return parse[UserID]("user id", s) }
func ParseShareholderID(s string) (ShareholderID, error) {
	return parse[ShareholderID]("shareholder id", s)
}
func ParseLotID(s string) (LotID, error)           { return parse[LotID]("lot id", s) }
func ParseTransferID(s string) (TransferID, error) { return parse[TransferID]("transfer id", s) }
func ParseMeetingID(s string) (MeetingID, error)   { return parse[MeetingID]("meeting id", s) }
func ParseMotionID(s string) (MotionID, error)     { return parse[MotionID]("motion id", s) }
func ParseProxyID(s string) (ProxyID, error)       { return parse[ProxyID]("proxy id", s) }

func NewShareholderID() ShareholderID { return ShareholderID(uuid.New()) }
func NewLotID() LotID                 { return LotID(uuid.New()) }
func NewTransferID() TransferID       { return TransferID(uuid.New()) }
func NewMeetingID() MeetingID         { return MeetingID(uuid.New()) }
func NewMotionID() MotionID           { return MotionID(uuid.New()) }
func NewVoteID() VoteID               { return VoteID(uuid.New()) }
func NewProxyID() ProxyID             { return ProxyID(uuid.New()) }

func (id TenantID) String() string      { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id ShareholderID) String() string { return uuid.UUID(id).String() }
func (id LotID) String() string         { return uuid.UUID(id).String() }
func (id TransferID) String() string    { return uuid.UUID(id).String() }
func (id MeetingID) String() string     { return uuid.UUID(id).String() }
func (id MotionID) String() string      { return uuid.UUID(id).String() }
func (id VoteID) String() string        { return uuid.UUID(id).String() }
func (id ProxyID) String() string       { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ShareholderID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id LotID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id TransferID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MeetingID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id MotionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id VoteID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ProxyID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps IDs rendered as canonical UUID strings in JSON
// and usable as JSON object keys.

func (id TenantID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id ShareholderID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id LotID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id TransferID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id MeetingID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id MotionID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id VoteID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id ProxyID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *TenantID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ShareholderID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *LotID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TransferID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *MeetingID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *MotionID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *VoteID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProxyID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
