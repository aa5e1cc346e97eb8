package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	ledgermodels "sharereg/internal/ledger/models"
	id "sharereg/pkg/domain"
)

const shareholderColumns = `id, tenant_id, type, first_name, last_name, entity_name, email, phone, status, notes, created_at, updated_at`

const lotColumns = `id, tenant_id, owner_id, shares, status, certificate_number, acquired_date, source, source_transfer_id, notes, created_at, updated_at`

func (s *Store) CreateShareholder(ctx context.Context, sh *ledgermodels.Shareholder) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO shareholders (`+shareholderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sh.ID, sh.TenantID, sh.Type, sh.FirstName, sh.LastName, sh.EntityName,
		sh.Email, sh.Phone, sh.Status, sh.Notes, sh.CreatedAt, sh.UpdatedAt,
	)
	return writeErr(err, "insert shareholder")
}

func (s *Store) UpdateShareholder(ctx context.Context, sh *ledgermodels.Shareholder) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE shareholders
		SET type = $3, first_name = $4, last_name = $5, entity_name = $6, email = $7,
		    phone = $8, status = $9, notes = $10, updated_at = $11
		WHERE id = $1 AND tenant_id = $2`,
		sh.ID, sh.TenantID, sh.Type, sh.FirstName, sh.LastName, sh.EntityName,
		sh.Email, sh.Phone, sh.Status, sh.Notes, sh.UpdatedAt,
	)
	return affected(res, err, "update shareholder")
}

func (s *Store) DeleteShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM shareholders WHERE id = $1 AND tenant_id = $2`, shareholderID, tenantID)
	return affected(res, err, "delete shareholder")
}

func (s *Store) FindShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (*ledgermodels.Shareholder, error) {
	var sh ledgermodels.Shareholder
	err := sqlx.GetContext(ctx, s.q(ctx), &sh,
		`SELECT `+shareholderColumns+` FROM shareholders WHERE id = $1 AND tenant_id = $2`,
		shareholderID, tenantID)
	if err != nil {
		return nil, readErr(err, "find shareholder")
	}
	return &sh, nil
}

func (s *Store) ListShareholders(ctx context.Context, tenantID id.TenantID, query string) ([]*ledgermodels.Shareholder, error) {
	pattern := "%" + strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(query)) + "%"
	var rows []*ledgermodels.Shareholder
	err := sqlx.SelectContext(ctx, s.q(ctx), &rows, `
		SELECT `+shareholderColumns+`
		FROM shareholders
		WHERE tenant_id = $1
		  AND ($2 = '' OR first_name ILIKE $3 OR last_name ILIKE $3 OR entity_name ILIKE $3 OR email ILIKE $3)
		ORDER BY lower(COALESCE(NULLIF(entity_name, ''), trim(first_name || ' ' || last_name))), created_at`,
		tenantID, strings.TrimSpace(query), pattern)
	if err != nil {
		return nil, readErr(err, "list shareholders")
	}
	return rows, nil
}

func (s *Store) ShareholderReferences(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (int, int, error) {
	var refs struct {
		Lots    int `db:"lots"`
		Proxies int `db:"proxies"`
	}
	err := sqlx.GetContext(ctx, s.q(ctx), &refs, `
		SELECT
			(SELECT COUNT(*) FROM share_lots WHERE tenant_id = $1 AND owner_id = $2) AS lots,
			(SELECT COUNT(*) FROM proxies WHERE tenant_id = $1 AND grantor_id = $2) AS proxies`,
		tenantID, shareholderID)
	if err != nil {
		return 0, 0, readErr(err, "count shareholder references")
	}
	return refs.Lots, refs.Proxies, nil
}

func (s *Store) CreateLot(ctx context.Context, lot *ledgermodels.ShareLot) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO share_lots (`+lotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		lot.ID, lot.TenantID, lot.OwnerID, lot.Shares, lot.Status, lot.CertificateNumber,
		lot.AcquiredDate, lot.Source, lot.SourceTransferID, lot.Notes, lot.CreatedAt, lot.UpdatedAt,
	)
	return writeErr(err, "insert share lot")
}

func (s *Store) UpdateLot(ctx context.Context, lot *ledgermodels.ShareLot) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE share_lots
		SET owner_id = $3, shares = $4, status = $5, certificate_number = $6, acquired_date = $7,
		    source = $8, source_transfer_id = $9, notes = $10, updated_at = $11
		WHERE id = $1 AND tenant_id = $2`,
		lot.ID, lot.TenantID, lot.OwnerID, lot.Shares, lot.Status, lot.CertificateNumber,
		lot.AcquiredDate, lot.Source, lot.SourceTransferID, lot.Notes, lot.UpdatedAt,
	)
	return affected(res, err, "update share lot")
}

func (s *Store) DeleteLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM share_lots WHERE id = $1 AND tenant_id = $2`, lotID, tenantID)
	return affected(res, err, "delete share lot")
}

func (s *Store) FindLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (*ledgermodels.ShareLot, error) {
	return s.getLot(ctx, `SELECT `+lotColumns+` FROM share_lots WHERE id = $1 AND tenant_id = $2`, lotID, tenantID)
}

// LockLot reads the lot FOR UPDATE so concurrent postings against it
// serialize and cannot both pass the insufficient-shares check.
func (s *Store) LockLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (*ledgermodels.ShareLot, error) {
	return s.getLot(ctx, `SELECT `+lotColumns+` FROM share_lots WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, lotID, tenantID)
}

func (s *Store) getLot(ctx context.Context, query string, args ...any) (*ledgermodels.ShareLot, error) {
	var lot ledgermodels.ShareLot
	if err := sqlx.GetContext(ctx, s.q(ctx), &lot, query, args...); err != nil {
		return nil, readErr(err, "find share lot")
	}
	return &lot, nil
}

func (s *Store) ListLots(ctx context.Context, tenantID id.TenantID, filter ledgermodels.LotFilter) ([]*ledgermodels.ShareLot, error) {
	var status *string
	if filter.Status != nil {
		st := string(*filter.Status)
		status = &st
	}
	var rows []*ledgermodels.ShareLot
	err := sqlx.SelectContext(ctx, s.q(ctx), &rows, `
		SELECT `+lotColumns+`
		FROM share_lots
		WHERE tenant_id = $1
		  AND ($2::uuid IS NULL OR owner_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at, id`,
		tenantID, filter.OwnerID, status)
	if err != nil {
		return nil, readErr(err, "list share lots")
	}
	return rows, nil
}

func (s *Store) LotHasPostedUsage(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (bool, error) {
	var used bool
	err := sqlx.GetContext(ctx, s.q(ctx), &used, `
		SELECT EXISTS (
			SELECT 1
			FROM transfer_lines tl
			JOIN transfers t ON t.id = tl.transfer_id
			WHERE t.tenant_id = $1 AND t.status = 'POSTED' AND tl.lot_id = $2
		)`, tenantID, lotID)
	if err != nil {
		return false, readErr(err, "check posted lot usage")
	}
	return used, nil
}

// LockCertificates takes a per-tenant advisory lock released at commit, so
// scan-then-increment certificate assignment never hands out a number
// twice.
func (s *Store) LockCertificates(ctx context.Context, tenantID id.TenantID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('sharereg:certificates:' || $1::text, 0))`,
		tenantID.String())
	if err != nil {
		return writeErr(err, "lock certificate numbering")
	}
	return nil
}

// numericCertificate matches the certificates ParseCertificateNumber accepts.
var numericCertificate = fmt.Sprintf("^[0-9]{1,%d}$", ledgermodels.MaxCertificateDigits)

func (s *Store) MaxCertificateNumber(ctx context.Context, tenantID id.TenantID) (int64, error) {
	var highest int64
	err := sqlx.GetContext(ctx, s.q(ctx), &highest, `
		SELECT COALESCE(MAX(trim(certificate_number)::bigint), 0)
		FROM share_lots
		WHERE tenant_id = $1 AND trim(certificate_number) ~ $2`, tenantID, numericCertificate)
	if err != nil {
		return 0, readErr(err, "scan certificate numbers")
	}
	return highest, nil
}

func (s *Store) ListHoldings(ctx context.Context, tenantID id.TenantID) ([]ledgermodels.Holding, error) {
	var rows []ledgermodels.Holding
	err := sqlx.SelectContext(ctx, s.q(ctx), &rows, `
		SELECT l.id AS lot_id, l.owner_id, l.shares, l.status AS lot_status, sh.status AS owner_status
		FROM share_lots l
		JOIN shareholders sh ON sh.id = l.owner_id
		WHERE l.tenant_id = $1
		ORDER BY l.created_at, l.id`, tenantID)
	if err != nil {
		return nil, readErr(err, "list holdings")
	}
	return rows, nil
}
