package memory

import (
	"context"
	"sort"
	"strings"

	ledgermodels "sharereg/internal/ledger/models"
	transfermodels "sharereg/internal/transfer/models"
	id "sharereg/pkg/domain"
	"sharereg/pkg/platform/sentinel"
)

func (s *Store) CreateShareholder(ctx context.Context, sh *ledgermodels.Shareholder) error {
	defer s.lock(ctx)()
	if _, ok := s.t.shareholders[sh.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.t.shareholders[sh.ID] = rec[ledgermodels.Shareholder]{v: *sh, seq: s.next()}
	return nil
}

func (s *Store) UpdateShareholder(ctx context.Context, sh *ledgermodels.Shareholder) error {
	defer s.lock(ctx)()
	r, ok := s.t.shareholders[sh.ID]
	if !ok || r.v.TenantID != sh.TenantID {
		return sentinel.ErrNotFound
	}
	r.v = *sh
	s.t.shareholders[sh.ID] = r
	return nil
}

func (s *Store) DeleteShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) error {
	defer s.lock(ctx)()
	r, ok := s.t.shareholders[shareholderID]
	if !ok || r.v.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	delete(s.t.shareholders, shareholderID)
	return nil
}

func (s *Store) FindShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (*ledgermodels.Shareholder, error) {
	defer s.lock(ctx)()
	r, ok := s.t.shareholders[shareholderID]
	if !ok || r.v.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	sh := r.v
	return &sh, nil
}

// ListShareholders matches query case-insensitively against names and email
// and orders by display name.
func (s *Store) ListShareholders(ctx context.Context, tenantID id.TenantID, query string) ([]*ledgermodels.Shareholder, error) {
	defer s.lock(ctx)()
	q := strings.ToLower(strings.TrimSpace(query))
	rows := sorted(s.t.shareholders, func(sh *ledgermodels.Shareholder) bool {
		if sh.TenantID != tenantID {
			return false
		}
		if q == "" {
			return true
		}
		for _, field := range []string{sh.FirstName, sh.LastName, sh.EntityName, sh.Email} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	})
	sort.SliceStable(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].DisplayName()) < strings.ToLower(rows[j].DisplayName())
	})
	out := make([]*ledgermodels.Shareholder, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *Store) ShareholderReferences(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (int, int, error) {
	defer s.lock(ctx)()
	var lots, proxies int
	for _, r := range s.t.lots {
		if r.v.TenantID == tenantID && r.v.OwnerID == shareholderID {
			lots++
		}
	}
	for _, r := range s.t.proxies {
		if r.v.TenantID == tenantID && r.v.GrantorID == shareholderID {
			proxies++
		}
	}
	return lots, proxies, nil
}

func (s *Store) certificateTaken(lot *ledgermodels.ShareLot) bool {
	for lotID, r := range s.t.lots {
		if lotID != lot.ID && r.v.TenantID == lot.TenantID && r.v.CertificateNumber == lot.CertificateNumber {
			return true
		}
	}
	return false
}

func (s *Store) CreateLot(ctx context.Context, lot *ledgermodels.ShareLot) error {
	defer s.lock(ctx)()
	if _, ok := s.t.lots[lot.ID]; ok || s.certificateTaken(lot) {
		return sentinel.ErrAlreadyUsed
	}
	s.t.lots[lot.ID] = rec[ledgermodels.ShareLot]{v: *lot, seq: s.next()}
	return nil
}

func (s *Store) UpdateLot(ctx context.Context, lot *ledgermodels.ShareLot) error {
	defer s.lock(ctx)()
	r, ok := s.t.lots[lot.ID]
	if !ok || r.v.TenantID != lot.TenantID {
		return sentinel.ErrNotFound
	}
	if s.certificateTaken(lot) {
		return sentinel.ErrAlreadyUsed
	}
	r.v = *lot
	s.t.lots[lot.ID] = r
	return nil
}

func (s *Store) DeleteLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) error {
	defer s.lock(ctx)()
	r, ok := s.t.lots[lotID]
	if !ok || r.v.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	delete(s.t.lots, lotID)
	return nil
}

func (s *Store) FindLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (*ledgermodels.ShareLot, error) {
	defer s.lock(ctx)()
	r, ok := s.t.lots[lotID]
	if !ok || r.v.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	lot := r.v
	return &lot, nil
}

// LockLot is FindLot; the transaction already holds the store exclusively.
func (s *Store) LockLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (*ledgermodels.ShareLot, error) {
	return s.FindLot(ctx, tenantID, lotID)
}

func (s *Store) ListLots(ctx context.Context, tenantID id.TenantID, filter ledgermodels.LotFilter) ([]*ledgermodels.ShareLot, error) {
	defer s.lock(ctx)()
	rows := sorted(s.t.lots, func(l *ledgermodels.ShareLot) bool {
		return l.TenantID == tenantID && filter.Matches(l)
	})
	out := make([]*ledgermodels.ShareLot, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *Store) LotHasPostedUsage(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (bool, error) {
	defer s.lock(ctx)()
	for _, r := range s.t.transfers {
		if r.v.TenantID != tenantID || r.v.Status != transfermodels.TransferStatusPosted {
			continue
		}
		for _, line := range r.v.Lines {
			if line.LotID == lotID {
				return true, nil
			}
		}
	}
	return false, nil
}

// LockCertificates is a no-op: certificate assignment already runs inside an
// exclusive transaction.
func (s *Store) LockCertificates(context.Context, id.TenantID) error {
	return nil
}

func (s *Store) MaxCertificateNumber(ctx context.Context, tenantID id.TenantID) (int64, error) {
	defer s.lock(ctx)()
	numbers := make([]string, 0, len(s.t.lots))
	for _, r := range s.t.lots {
		if r.v.TenantID == tenantID {
			numbers = append(numbers, r.v.CertificateNumber)
		}
	}
	return ledgermodels.MaxCertificateNumber(numbers), nil
}

// ListHoldings joins every lot of the tenant with its owner's status.
func (s *Store) ListHoldings(ctx context.Context, tenantID id.TenantID) ([]ledgermodels.Holding, error) {
	defer s.lock(ctx)()
	lots := sorted(s.t.lots, func(l *ledgermodels.ShareLot) bool { return l.TenantID == tenantID })
	holdings := make([]ledgermodels.Holding, 0, len(lots))
	for _, lot := range lots {
		owner, ok := s.t.shareholders[lot.OwnerID]
		if !ok {
			continue
		}
		holdings = append(holdings, ledgermodels.Holding{
			LotID:       lot.ID,
			OwnerID:     lot.OwnerID,
			Shares:      lot.Shares,
			LotStatus:   lot.Status,
			OwnerStatus: owner.v.Status,
		})
	}
	return holdings, nil
}
