package memory

import (
	"context"

	id "sharereg/pkg/domain"
	"sharereg/pkg/platform/sentinel"
)

func (s *Store) GetSetting(ctx context.Context, tenantID id.TenantID, key string) (string, error) {
	defer s.lock(ctx)()
	v, ok := s.t.settings[settingKey{tenantID: tenantID, key: key}]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return v, nil
}

func (s *Store) PutSetting(ctx context.Context, tenantID id.TenantID, key, value string) error {
	defer s.lock(ctx)()
	s.t.settings[settingKey{tenantID: tenantID, key: key}] = value
	return nil
}
