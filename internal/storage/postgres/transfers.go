package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	transfermodels "sharereg/internal/transfer/models"
	id "sharereg/pkg/domain"
)

const transferColumns = `id, tenant_id, from_owner_id, to_owner_id, meeting_id, status, notes, posted_at, posted_by, created_at, updated_at`

type lineRow struct {
	TransferID id.TransferID `db:"transfer_id"`
	transfermodels.TransferLine
}

func (s *Store) CreateTransfer(ctx context.Context, t *transfermodels.Transfer) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO transfers (`+transferColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.TenantID, t.FromOwnerID, t.ToOwnerID, t.MeetingID, t.Status, t.Notes,
		t.PostedAt, t.PostedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return writeErr(err, "insert transfer")
	}
	return s.insertLines(ctx, t)
}

// UpdateTransfer writes the header and replaces the lines.
func (s *Store) UpdateTransfer(ctx context.Context, t *transfermodels.Transfer) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE transfers
		SET from_owner_id = $3, to_owner_id = $4, meeting_id = $5, status = $6, notes = $7,
		    posted_at = $8, posted_by = $9, updated_at = $10
		WHERE id = $1 AND tenant_id = $2`,
		t.ID, t.TenantID, t.FromOwnerID, t.ToOwnerID, t.MeetingID, t.Status, t.Notes,
		t.PostedAt, t.PostedBy, t.UpdatedAt,
	)
	if err := affected(res, err, "update transfer"); err != nil {
		return err
	}
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM transfer_lines WHERE transfer_id = $1`, t.ID); err != nil {
		return writeErr(err, "clear transfer lines")
	}
	return s.insertLines(ctx, t)
}

func (s *Store) insertLines(ctx context.Context, t *transfermodels.Transfer) error {
	for i, line := range t.Lines {
		_, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO transfer_lines (transfer_id, position, lot_id, shares_taken)
			VALUES ($1, $2, $3, $4)`, t.ID, i, line.LotID, line.SharesTaken)
		if err != nil {
			return writeErr(err, "insert transfer line")
		}
	}
	return nil
}

func (s *Store) DeleteTransfer(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM transfers WHERE id = $1 AND tenant_id = $2`, transferID, tenantID)
	return affected(res, err, "delete transfer")
}

func (s *Store) FindTransfer(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) (*transfermodels.Transfer, error) {
	return s.getTransfer(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1 AND tenant_id = $2`, transferID, tenantID)
}

// LockTransfer reads FOR UPDATE so two postings of one transfer serialize
// and the second sees POSTED.
func (s *Store) LockTransfer(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) (*transfermodels.Transfer, error) {
	return s.getTransfer(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, transferID, tenantID)
}

func (s *Store) getTransfer(ctx context.Context, query string, args ...any) (*transfermodels.Transfer, error) {
	var t transfermodels.Transfer
	if err := sqlx.GetContext(ctx, s.q(ctx), &t, query, args...); err != nil {
		return nil, readErr(err, "find transfer")
	}
	if err := s.attachLines(ctx, []*transfermodels.Transfer{&t}); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTransfers(ctx context.Context, tenantID id.TenantID) ([]*transfermodels.Transfer, error) {
	var rows []*transfermodels.Transfer
	err := sqlx.SelectContext(ctx, s.q(ctx), &rows,
		`SELECT `+transferColumns+` FROM transfers WHERE tenant_id = $1 ORDER BY created_at DESC, id`, tenantID)
	if err != nil {
		return nil, readErr(err, "list transfers")
	}
	if err := s.attachLines(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// attachLines loads lines for a set of transfers in one query.
func (s *Store) attachLines(ctx context.Context, transfers []*transfermodels.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	ids := make([]string, len(transfers))
	byID := make(map[id.TransferID]*transfermodels.Transfer, len(transfers))
	for i, t := range transfers {
		ids[i] = t.ID.String()
		t.Lines = []transfermodels.TransferLine{}
		byID[t.ID] = t
	}
	var lines []lineRow
	err := sqlx.SelectContext(ctx, s.q(ctx), &lines, `
		SELECT transfer_id, lot_id, shares_taken
		FROM transfer_lines
		WHERE transfer_id = ANY($1::uuid[])
		ORDER BY transfer_id, position`, pq.Array(ids))
	if err != nil {
		return readErr(err, "list transfer lines")
	}
	for _, l := range lines {
		if t, ok := byID[l.TransferID]; ok {
			t.Lines = append(t.Lines, l.TransferLine)
		}
	}
	return nil
}
