package memory

import (
	"context"

	proxymodels "sharereg/internal/proxy/models"
	id "sharereg/pkg/domain"
	"sharereg/pkg/platform/sentinel"
)

func (s *Store) CreateProxy(ctx context.Context, p *proxymodels.Proxy) error {
	defer s.lock(ctx)()
	if _, ok := s.t.proxies[p.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.t.proxies[p.ID] = rec[proxymodels.Proxy]{v: *p, seq: s.next()}
	return nil
}

func (s *Store) UpdateProxy(ctx context.Context, p *proxymodels.Proxy) error {
	defer s.lock(ctx)()
	r, ok := s.t.proxies[p.ID]
	if !ok || r.v.TenantID != p.TenantID {
		return sentinel.ErrNotFound
	}
	r.v = *p
	s.t.proxies[p.ID] = r
	return nil
}

func (s *Store) DeleteProxy(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) error {
	defer s.lock(ctx)()
	r, ok := s.t.proxies[proxyID]
	if !ok || r.v.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	delete(s.t.proxies, proxyID)
	return nil
}

func (s *Store) FindProxy(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*proxymodels.Proxy, error) {
	defer s.lock(ctx)()
	r, ok := s.t.proxies[proxyID]
	if !ok || r.v.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	p := r.v
	return &p, nil
}

func (s *Store) ListProxies(ctx context.Context, tenantID id.TenantID, filter proxymodels.ProxyFilter) ([]*proxymodels.Proxy, error) {
	defer s.lock(ctx)()
	return pointers(sorted(s.t.proxies, func(p *proxymodels.Proxy) bool {
		return p.TenantID == tenantID && filter.Matches(p)
	})), nil
}

// ProxiesForMeeting returns proxies bound to the meeting plus accepted
// standing proxies of the tenant.
func (s *Store) ProxiesForMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]*proxymodels.Proxy, error) {
	defer s.lock(ctx)()
	return pointers(sorted(s.t.proxies, func(p *proxymodels.Proxy) bool {
		if p.TenantID != tenantID {
			return false
		}
		if p.MeetingID != nil && *p.MeetingID == meetingID {
			return true
		}
		return p.Type == proxymodels.ProxyTypeStanding && p.Status == proxymodels.ProxyStatusAccepted
	})), nil
}

func (s *Store) CountPendingProxies(ctx context.Context, tenantID id.TenantID) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, r := range s.t.proxies {
		if r.v.TenantID == tenantID && r.v.Status == proxymodels.ProxyStatusPending {
			n++
		}
	}
	return n, nil
}

func pointers[T any](rows []T) []*T {
	out := make([]*T, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}
