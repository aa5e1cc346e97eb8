package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	id "sharereg/pkg/domain"
)

func (s *Store) GetSetting(ctx context.Context, tenantID id.TenantID, key string) (string, error) {
	var value string
	err := sqlx.GetContext(ctx, s.q(ctx), &value,
		`SELECT value FROM app_settings WHERE tenant_id = $1 AND key = $2`, tenantID, key)
	if err != nil {
		return "", readErr(err, "get setting")
	}
	return value, nil
}

func (s *Store) PutSetting(ctx context.Context, tenantID id.TenantID, key, value string) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO app_settings (tenant_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		tenantID, key, value)
	return writeErr(err, "put setting")
}
