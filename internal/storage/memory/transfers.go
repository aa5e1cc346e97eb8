package memory

import (
	"context"

	transfermodels "sharereg/internal/transfer/models"
	id "sharereg/pkg/domain"
	"sharereg/pkg/platform/sentinel"
)

func copyTransfer(t transfermodels.Transfer) transfermodels.Transfer {
	t.Lines = append([]transfermodels.TransferLine{}, t.Lines...)
	return t
}

func (s *Store) CreateTransfer(ctx context.Context, t *transfermodels.Transfer) error {
	defer s.lock(ctx)()
	if _, ok := s.t.transfers[t.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.t.transfers[t.ID] = rec[transfermodels.Transfer]{v: copyTransfer(*t), seq: s.next()}
	return nil
}

func (s *Store) UpdateTransfer(ctx context.Context, t *transfermodels.Transfer) error {
	defer s.lock(ctx)()
	r, ok := s.t.transfers[t.ID]
	if !ok || r.v.TenantID != t.TenantID {
		return sentinel.ErrNotFound
	}
	r.v = copyTransfer(*t)
	s.t.transfers[t.ID] = r
	return nil
}

func (s *Store) DeleteTransfer(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) error {
	defer s.lock(ctx)()
	r, ok := s.t.transfers[transferID]
	if !ok || r.v.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	delete(s.t.transfers, transferID)
	return nil
}

func (s *Store) FindTransfer(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) (*transfermodels.Transfer, error) {
	defer s.lock(ctx)()
	r, ok := s.t.transfers[transferID]
	if !ok || r.v.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	t := copyTransfer(r.v)
	return &t, nil
}

func (s *Store) LockTransfer(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) (*transfermodels.Transfer, error) {
	return s.FindTransfer(ctx, tenantID, transferID)
}

// ListTransfers returns newest first.
func (s *Store) ListTransfers(ctx context.Context, tenantID id.TenantID) ([]*transfermodels.Transfer, error) {
	defer s.lock(ctx)()
	rows := sorted(s.t.transfers, func(t *transfermodels.Transfer) bool { return t.TenantID == tenantID })
	out := make([]*transfermodels.Transfer, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		t := copyTransfer(rows[i])
		out = append(out, &t)
	}
	return out, nil
}
