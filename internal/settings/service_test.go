package settings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"sharereg/internal/settings"
	"sharereg/internal/storage/memory"
	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/audit/mocks"
)

type mapCache struct {
	rules   map[id.TenantID]voting.Rules
	gets    int
	failGet bool
}

func newMapCache() *mapCache {
	return &mapCache{rules: make(map[id.TenantID]voting.Rules)}
}

func (c *mapCache) Get(_ context.Context, tenantID id.TenantID) (voting.Rules, bool, error) {
	c.gets++
	if c.failGet {
		return voting.Rules{}, false, errors.New("cache down")
	}
	r, ok := c.rules[tenantID]
	return r, ok, nil
}

func (c *mapCache) Set(_ context.Context, tenantID id.TenantID, rules voting.Rules) error {
	c.rules[tenantID] = rules
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, tenantID id.TenantID) error {
	delete(c.rules, tenantID)
	return nil
}

func boolPtr(b bool) *bool { return &b }

func TestRulesDefaultsToCountingDisputed(t *testing.T) {
	svc, err := settings.New(memory.New())
	require.NoError(t, err)

	rules, err := svc.Rules(context.Background(), id.TenantID(uuid.New()))
	require.NoError(t, err)
	assert.False(t, rules.ExcludeDisputedFromVoting)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	cache := newMapCache()
	svc, err := settings.New(memory.New(), settings.WithCache(cache))
	require.NoError(t, err)

	_, err = svc.Rules(ctx, tenant)
	require.NoError(t, err)
	assert.Contains(t, cache.rules, tenant, "read populates the cache")

	_, err = svc.Update(ctx, tenant, &settings.UpdateRequest{ExcludeDisputedFromVoting: boolPtr(true)})
	require.NoError(t, err)
	assert.NotContains(t, cache.rules, tenant)

	rules, err := svc.Rules(ctx, tenant)
	require.NoError(t, err)
	assert.True(t, rules.ExcludeDisputedFromVoting)
}

func TestRulesSurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	store := memory.New()
	require.NoError(t, store.PutSetting(ctx, tenant, settings.KeyExcludeDisputedFromVoting, "true"))

	cache := newMapCache()
	cache.failGet = true
	svc, err := settings.New(store, settings.WithCache(cache))
	require.NoError(t, err)

	rules, err := svc.Rules(ctx, tenant)
	require.NoError(t, err)
	assert.True(t, rules.ExcludeDisputedFromVoting)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())

	t.Run("flag is required", func(t *testing.T) {
		svc, err := settings.New(memory.New())
		require.NoError(t, err)
		_, err = svc.Update(ctx, tenant, &settings.UpdateRequest{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("audits before and after", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		auditor := mocks.NewMockPublisher(ctrl)
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			assert.Equal(t, audit.ActionUpdate, e.Action)
			assert.Equal(t, audit.EntitySettings, e.EntityType)
			assert.JSONEq(t,
				`{"before":{"excludeDisputedFromVoting":false},"after":{"excludeDisputedFromVoting":true}}`,
				string(e.Diff))
			return nil
		})

		svc, err := settings.New(memory.New(), settings.WithAuditPublisher(auditor))
		require.NoError(t, err)
		_, err = svc.Update(ctx, tenant, &settings.UpdateRequest{ExcludeDisputedFromVoting: boolPtr(true)})
		require.NoError(t, err)
	})
}
