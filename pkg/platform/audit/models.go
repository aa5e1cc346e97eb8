package audit

import (
	"context"
	"encoding/json"
	"time"

	id "sharereg/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// route and retain them differently.
type EventCategory string

const (
	// CategoryCompliance covers events that change ownership or voting outcomes:
	// transfer posting, vote recording and proxy decisions.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine registrar edits.
	CategoryOperations EventCategory = "operations"
)

// Action is the verb recorded for a state change.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionPost   Action = "POST"
	ActionAccept Action = "ACCEPT"
	ActionReject Action = "REJECT"
	ActionRevoke Action = "REVOKE"
	ActionReopen Action = "REOPEN"
)

// EntityType names the aggregate an event refers to.
type EntityType string

const (
	EntityShareholder EntityType = "Shareholder"
	EntityShareLot    EntityType = "ShareLot"
	EntityTransfer    EntityType = "Transfer"
	EntityMeeting     EntityType = "Meeting"
	EntityAttendance  EntityType = "Attendance"
	EntityMotion      EntityType = "Motion"
	EntityVote        EntityType = "Vote"
	EntityProxy       EntityType = "ProxyAuthorization"
	EntitySettings    EntityType = "AppConfig"
)

// Event is emitted from services for every state change. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time       `json:"timestamp"`
	TenantID   id.TenantID     `json:"tenant_id"`
	ActorID    id.UserID       `json:"actor_id"`
	Action     Action          `json:"action"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Diff       json.RawMessage `json:"diff,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
}

var complianceEvents = map[EntityType]map[Action]bool{
	EntityTransfer: {ActionPost: true},
	EntityVote:     {ActionCreate: true},
	EntityProxy:    {ActionAccept: true, ActionReject: true, ActionRevoke: true},
	EntityShareLot: {ActionUpdate: true, ActionDelete: true},
}

// Category returns the EventCategory for this event.
// Unknown combinations default to CategoryOperations.
func (e Event) Category() EventCategory {
	if complianceEvents[e.EntityType][e.Action] {
		return CategoryCompliance
	}
	return CategoryOperations
}

// Diff marshals a before/after or parameter payload. A payload that cannot be
// encoded is recorded as absent rather than failing the audited operation.
func Diff(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// BeforeAfter is the conventional payload for updates.
type BeforeAfter struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
