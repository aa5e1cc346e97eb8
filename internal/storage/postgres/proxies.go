package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	proxymodels "sharereg/internal/proxy/models"
	id "sharereg/pkg/domain"
)

const proxyColumns = `id, tenant_id, grantor_id, holder_shareholder_id, holder_name, meeting_id, type, scope, instructions, status, shares_snapshot, received_date, effective_at, expires_at, decided_at, created_at, updated_at`

func (s *Store) CreateProxy(ctx context.Context, p *proxymodels.Proxy) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO proxies (`+proxyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		p.ID, p.TenantID, p.GrantorID, p.HolderShareholderID, p.HolderName, p.MeetingID,
		p.Type, p.Scope, p.Instructions, p.Status, p.SharesSnapshot, p.ReceivedDate,
		p.EffectiveAt, p.ExpiresAt, p.DecidedAt, p.CreatedAt, p.UpdatedAt)
	return writeErr(err, "insert proxy")
}

func (s *Store) UpdateProxy(ctx context.Context, p *proxymodels.Proxy) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE proxies
		SET holder_shareholder_id = $3, holder_name = $4, meeting_id = $5, type = $6, scope = $7,
		    instructions = $8, status = $9, shares_snapshot = $10, received_date = $11,
		    effective_at = $12, expires_at = $13, decided_at = $14, updated_at = $15
		WHERE id = $1 AND tenant_id = $2`,
		p.ID, p.TenantID, p.HolderShareholderID, p.HolderName, p.MeetingID, p.Type, p.Scope,
		p.Instructions, p.Status, p.SharesSnapshot, p.ReceivedDate, p.EffectiveAt,
		p.ExpiresAt, p.DecidedAt, p.UpdatedAt)
	return affected(res, err, "update proxy")
}

func (s *Store) DeleteProxy(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM proxies WHERE id = $1 AND tenant_id = $2`, proxyID, tenantID)
	return affected(res, err, "delete proxy")
}

func (s *Store) FindProxy(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*proxymodels.Proxy, error) {
	var p proxymodels.Proxy
	err := sqlx.GetContext(ctx, s.q(ctx), &p,
		`SELECT `+proxyColumns+` FROM proxies WHERE id = $1 AND tenant_id = $2`, proxyID, tenantID)
	if err != nil {
		return nil, readErr(err, "find proxy")
	}
	return &p, nil
}

func (s *Store) ListProxies(ctx context.Context, tenantID id.TenantID, filter proxymodels.ProxyFilter) ([]*proxymodels.Proxy, error) {
	var status *string
	if filter.Status != nil {
		st := string(*filter.Status)
		status = &st
	}
	var rows []*proxymodels.Proxy
	err := sqlx.SelectContext(ctx, s.q(ctx), &rows, `
		SELECT `+proxyColumns+`
		FROM proxies
		WHERE tenant_id = $1
		  AND ($2::uuid IS NULL OR meeting_id = $2)
		  AND ($3::uuid IS NULL OR grantor_id = $3)
		  AND ($4::text IS NULL OR status = $4)
		ORDER BY created_at, id`,
		tenantID, filter.MeetingID, filter.GrantorID, status)
	if err != nil {
		return nil, readErr(err, "list proxies")
	}
	return rows, nil
}

func (s *Store) ProxiesForMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]*proxymodels.Proxy, error) {
	var rows []*proxymodels.Proxy
	err := sqlx.SelectContext(ctx, s.q(ctx), &rows, `
		SELECT `+proxyColumns+`
		FROM proxies
		WHERE tenant_id = $1
		  AND (meeting_id = $2 OR (type = 'STANDING' AND status = 'ACCEPTED'))
		ORDER BY created_at, id`, tenantID, meetingID)
	if err != nil {
		return nil, readErr(err, "list meeting proxies")
	}
	return rows, nil
}

func (s *Store) CountPendingProxies(ctx context.Context, tenantID id.TenantID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, s.q(ctx), &n,
		`SELECT COUNT(*) FROM proxies WHERE tenant_id = $1 AND status = 'PENDING'`, tenantID)
	if err != nil {
		return 0, readErr(err, "count pending proxies")
	}
	return n, nil
}
