package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	ledgermodels "sharereg/internal/ledger/models"
	ledgerservice "sharereg/internal/ledger/service"
	meetingservice "sharereg/internal/meeting/service"
	proxyservice "sharereg/internal/proxy/service"
	"sharereg/internal/settings"
	"sharereg/internal/storage/memory"
	transferservice "sharereg/internal/transfer/service"
	"sharereg/internal/voting/dashboard"
	id "sharereg/pkg/domain"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/audit/publisher"
	auditmemory "sharereg/pkg/platform/audit/store/memory"
)

// Registry is every service wired over one in-memory store, with audit
// events captured synchronously so tests can assert on them.
type Registry struct {
	Store     *memory.Store
	Audit     *auditmemory.InMemoryStore
	Publisher *publisher.Publisher
	Settings  *settings.Service
	Ledger    *ledgerservice.Service
	Proxies   *proxyservice.Service
	Meetings  *meetingservice.Service
	Transfers *transferservice.Service
	Dashboard *dashboard.Service
}

// NewRegistry wires the services. pub overrides the audit publisher when
// non-nil, e.g. with a gomock publisher.
func NewRegistry(t testing.TB, pub audit.Publisher) *Registry {
	t.Helper()

	r := &Registry{Store: memory.New(), Audit: auditmemory.NewInMemoryStore()}
	r.Publisher = publisher.NewPublisher(r.Audit)
	if pub == nil {
		pub = r.Publisher
	}

	var err error
	r.Settings, err = settings.New(r.Store, settings.WithAuditPublisher(pub))
	require.NoError(t, err)
	r.Ledger, err = ledgerservice.New(r.Store, r.Store, r.Settings, ledgerservice.WithAuditPublisher(pub))
	require.NoError(t, err)
	r.Proxies, err = proxyservice.New(r.Store, r.Store, r.Store, r.Store, r.Settings, proxyservice.WithAuditPublisher(pub))
	require.NoError(t, err)
	r.Meetings, err = meetingservice.New(r.Store, r.Store, r.Store, r.Store, r.Settings, meetingservice.WithAuditPublisher(pub))
	require.NoError(t, err)
	r.Transfers, err = transferservice.New(r.Store, r.Store, r.Store, r.Store, transferservice.WithAuditPublisher(pub))
	require.NoError(t, err)
	r.Dashboard, err = dashboard.New(r.Store, r.Settings, dashboard.WithActivity(r.Publisher))
	require.NoError(t, err)
	return r
}

// Shareholder creates an Active individual.
func (r *Registry) Shareholder(t testing.TB, ctx context.Context, tenantID id.TenantID, first, last string) *ledgermodels.Shareholder {
	t.Helper()
	sh, err := r.Ledger.CreateShareholder(ctx, tenantID, &ledgermodels.CreateShareholderRequest{
		Type:      ledgermodels.ShareholderTypeIndividual,
		FirstName: first,
		LastName:  last,
	})
	require.NoError(t, err)
	return sh
}

// Lot issues a lot with an auto-assigned certificate. An empty status means
// Active.
func (r *Registry) Lot(t testing.TB, ctx context.Context, tenantID id.TenantID, owner id.ShareholderID, shares int64, status ledgermodels.LotStatus) *ledgermodels.ShareLot {
	t.Helper()
	lot, err := r.Ledger.CreateLot(ctx, tenantID, &ledgermodels.CreateLotRequest{OwnerID: owner, Shares: shares, Status: status})
	require.NoError(t, err)
	return lot
}

// Events returns the tenant's captured audit events, oldest first.
func (r *Registry) Events(t testing.TB, tenantID id.TenantID) []audit.Event {
	t.Helper()
	events, err := r.Audit.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	return events
}
