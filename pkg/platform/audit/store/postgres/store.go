package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	id "sharereg/pkg/domain"
	audit "sharereg/pkg/platform/audit"
	txcontext "sharereg/pkg/platform/tx"
)

// Store appends audit events to the audit_log table. When called inside a
// registry transaction the insert joins it.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_log (id, tenant_id, actor_id, action, entity_type, entity_id, diff, category, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var diff any
	if len(event.Diff) > 0 {
		diff = []byte(event.Diff)
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		uuid.UUID(event.TenantID),
		uuid.UUID(event.ActorID),
		string(event.Action),
		string(event.EntityType),
		event.EntityID,
		diff,
		string(event.Category()),
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

type auditRow struct {
	TenantID   uuid.UUID    `db:"tenant_id"`
	ActorID    uuid.UUID    `db:"actor_id"`
	Action     string       `db:"action"`
	EntityType string       `db:"entity_type"`
	EntityID   string       `db:"entity_id"`
	Diff       []byte       `db:"diff"`
	RequestID  string       `db:"request_id"`
	CreatedAt  sql.NullTime `db:"created_at"`
}

// ListRecent returns the newest events for a tenant.
func (s *Store) ListRecent(ctx context.Context, tenantID id.TenantID, limit int) ([]audit.Event, error) {
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT tenant_id, actor_id, action, entity_type, entity_id, diff, request_id, created_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, uuid.UUID(tenantID), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	events := make([]audit.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, audit.Event{
			Timestamp:  r.CreatedAt.Time,
			TenantID:   id.TenantID(r.TenantID),
			ActorID:    id.UserID(r.ActorID),
			Action:     audit.Action(r.Action),
			EntityType: audit.EntityType(r.EntityType),
			EntityID:   r.EntityID,
			Diff:       r.Diff,
			RequestID:  r.RequestID,
		})
	}
	return events, nil
}
