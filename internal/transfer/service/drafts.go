package service

import (
	"context"

	"sharereg/internal/transfer/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/requestcontext"
)

func (s *Service) Create(ctx context.Context, tenantID id.TenantID, req *models.CreateTransferRequest) (*models.Transfer, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *models.Transfer
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkReferences(ctx, tenantID, req.FromOwnerID, req.ToOwnerID, req.MeetingID); err != nil {
			return err
		}
		t := models.NewTransfer(id.NewTransferID(), tenantID, req, requestcontext.Now(ctx))
		if err := s.store.CreateTransfer(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create transfer")
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, audit.ActionCreate, created.ID.String(), req)
	return created, nil
}

func (s *Service) Get(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) (*models.Transfer, error) {
	t, err := s.store.FindTransfer(ctx, tenantID, transferID)
	if err != nil {
		return nil, notFoundOr(err, "transfer not found", "failed to load transfer")
	}
	return t, nil
}

// List returns the tenant's transfers, newest first.
func (s *Service) List(ctx context.Context, tenantID id.TenantID) ([]*models.Transfer, error) {
	list, err := s.store.ListTransfers(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transfers")
	}
	return list, nil
}

func (s *Service) Update(ctx context.Context, tenantID id.TenantID, transferID id.TransferID, req *models.UpdateTransferRequest) (*models.Transfer, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var before, after models.Transfer
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.store.LockTransfer(ctx, tenantID, transferID)
		if err != nil {
			return notFoundOr(err, "transfer not found", "failed to load transfer")
		}
		before = *t
		if err := t.Apply(req, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if t.FromOwnerID != nil && t.ToOwnerID != nil && *t.FromOwnerID == *t.ToOwnerID {
			return dErrors.New(dErrors.CodeValidation, "source and destination owner must differ")
		}
		if err := s.checkReferences(ctx, tenantID, t.FromOwnerID, t.ToOwnerID, t.MeetingID); err != nil {
			return err
		}
		if err := s.store.UpdateTransfer(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update transfer")
		}
		after = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, audit.ActionUpdate, transferID.String(), audit.BeforeAfter{Before: before, After: after})
	return &after, nil
}

func (s *Service) Delete(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.store.LockTransfer(ctx, tenantID, transferID)
		if err != nil {
			return notFoundOr(err, "transfer not found", "failed to load transfer")
		}
		if err := t.EnsureMutable(); err != nil {
			return err
		}
		if err := s.store.DeleteTransfer(ctx, tenantID, transferID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete transfer")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenantID, audit.ActionDelete, transferID.String(), nil)
	return nil
}

// checkReferences confirms that owners and meeting belong to the tenant.
func (s *Service) checkReferences(ctx context.Context, tenantID id.TenantID, from, to *id.ShareholderID, meetingID *id.MeetingID) error {
	for _, owner := range []*id.ShareholderID{from, to} {
		if owner == nil {
			continue
		}
		if _, err := s.ledger.FindShareholder(ctx, tenantID, *owner); err != nil {
			return notFoundOr(err, "shareholder not found", "failed to load shareholder")
		}
	}
	if meetingID != nil {
		if _, err := s.meetings.FindMeeting(ctx, tenantID, *meetingID); err != nil {
			return notFoundOr(err, "meeting not found", "failed to load meeting")
		}
	}
	return nil
}
