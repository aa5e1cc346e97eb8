package dashboard_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgermodels "sharereg/internal/ledger/models"
	"sharereg/internal/settings"
	"sharereg/internal/voting/dashboard"
	id "sharereg/pkg/domain"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/testutil"
)

func TestSummary(t *testing.T) {
	tenant := testutil.NewTenant()
	ctx := testutil.CallerContext(tenant, time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC))
	reg := testutil.NewRegistry(t, nil)

	// Holders H01..H12 own 1..12 shares: 78 active in total.
	holders := make([]*ledgermodels.Shareholder, 0, 12)
	for i := 1; i <= 12; i++ {
		sh := reg.Shareholder(t, ctx, tenant, "Holder", fmt.Sprintf("H%02d", i))
		reg.Lot(t, ctx, tenant, sh.ID, int64(i), "")
		holders = append(holders, sh)
	}

	bloc := []id.ShareholderID{holders[11].ID, holders[10].ID, holders[11].ID, holders[0].ID}
	summary, err := reg.Dashboard.Summary(ctx, tenant, bloc)
	require.NoError(t, err)

	assert.Equal(t, int64(78), summary.ActiveVotingShares)
	assert.Equal(t, int64(40), summary.MajorityThreshold)

	require.Len(t, summary.TopShareholders, 10)
	assert.Equal(t, holders[11].ID, summary.TopShareholders[0].ID)
	assert.Equal(t, int64(12), summary.TopShareholders[0].ActiveShares)
	assert.Equal(t, int64(3), summary.TopShareholders[9].ActiveShares)

	// H01 is outside the top ten and does not count.
	assert.Len(t, summary.BlocBuilder.SelectedIDs, 3)
	assert.Equal(t, int64(23), summary.BlocBuilder.Shares)
	assert.InDelta(t, 29.49, summary.BlocBuilder.Percent, 1e-9)

	require.Len(t, summary.RecentActivity, 20)
	newest := summary.RecentActivity[0]
	assert.Equal(t, audit.EntityShareLot, newest.EntityType)
	assert.Equal(t, audit.ActionCreate, newest.Action)
}

func TestSummaryFollowsDisputedRule(t *testing.T) {
	tenant := testutil.NewTenant()
	ctx := testutil.CallerContext(tenant, time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC))
	reg := testutil.NewRegistry(t, nil)

	sh := reg.Shareholder(t, ctx, tenant, "Dee", "Disputed")
	reg.Lot(t, ctx, tenant, sh.ID, 40, "")
	reg.Lot(t, ctx, tenant, sh.ID, 60, ledgermodels.LotStatusDisputed)

	summary, err := reg.Dashboard.Summary(ctx, tenant, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), summary.ActiveVotingShares)

	exclude := true
	_, err = reg.Settings.Update(ctx, tenant, &settings.UpdateRequest{ExcludeDisputedFromVoting: &exclude})
	require.NoError(t, err)

	summary, err = reg.Dashboard.Summary(ctx, tenant, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(40), summary.ActiveVotingShares)
	assert.Equal(t, int64(60), summary.Breakdown.ExcludedByDisputed)
	assert.Equal(t, int64(40), summary.TopShareholders[0].ActiveShares)
}

func TestBuildBloc(t *testing.T) {
	a, b := id.NewShareholderID(), id.NewShareholderID()
	top := []dashboard.Holder{{ID: a, ActiveShares: 1}, {ID: b, ActiveShares: 2}}

	tests := []struct {
		name     string
		selected []id.ShareholderID
		active   int64
		shares   int64
		percent  float64
	}{
		{"one third rounds down", []id.ShareholderID{a}, 3, 1, 33.33},
		{"two thirds rounds up", []id.ShareholderID{b}, 3, 2, 66.67},
		{"no active shares", []id.ShareholderID{a, b}, 0, 3, 0},
		{"empty selection", nil, 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bloc := dashboard.BuildBloc(top, tt.selected, tt.active)
			assert.Equal(t, tt.shares, bloc.Shares)
			assert.InDelta(t, tt.percent, bloc.Percent, 1e-9)
		})
	}
}

func TestSummaryWithoutActivityReader(t *testing.T) {
	reg := testutil.NewRegistry(t, nil)
	svc, err := dashboard.New(reg.Store, reg.Settings)
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background(), testutil.NewTenant(), nil)
	require.NoError(t, err)
	assert.Empty(t, summary.TopShareholders)
	assert.NotNil(t, summary.RecentActivity)
	assert.Equal(t, int64(1), summary.MajorityThreshold)
}
