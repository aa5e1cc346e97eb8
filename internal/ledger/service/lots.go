package service

import (
	"context"
	"errors"

	"sharereg/internal/ledger/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/sentinel"
	"sharereg/pkg/requestcontext"
)

// CreateLot issues a lot to an existing shareholder. Without an explicit
// certificate number the next number above the tenant's highest numeric
// certificate is assigned inside the same transaction.
func (s *Service) CreateLot(ctx context.Context, tenantID id.TenantID, req *models.CreateLotRequest) (*models.ShareLot, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *models.ShareLot
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.findShareholder(ctx, tenantID, req.OwnerID); err != nil {
			return err
		}
		cert := req.CertificateNumber
		if cert == "" {
			next, err := s.NextCertificate(ctx, tenantID)
			if err != nil {
				return err
			}
			if cert, err = next.Next(); err != nil {
				return err
			}
		}
		lot, err := models.NewShareLot(id.NewLotID(), tenantID, req.OwnerID, req.Shares, req.Status, cert, requestcontext.Now(ctx))
		if err != nil {
			return asValidation(err)
		}
		lot.AcquiredDate = req.AcquiredDate
		lot.Source = req.Source
		lot.Notes = req.Notes
		if err := s.store.CreateLot(ctx, lot); err != nil {
			return translateLotWrite(err, "failed to create lot")
		}
		created = lot
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, audit.ActionCreate, audit.EntityShareLot, created.ID.String(), req)
	return created, nil
}

// NextCertificate locks the tenant's certificate numbering and returns a
// sequence seeded from the current maximum. Callers must be inside a
// transaction and insert the numbered lots before it commits.
func (s *Service) NextCertificate(ctx context.Context, tenantID id.TenantID) (*models.CertificateSequence, error) {
	return models.ReserveCertificates(ctx, s.store, tenantID)
}

func (s *Service) GetLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (*models.ShareLot, error) {
	return s.findLot(ctx, tenantID, lotID)
}

func (s *Service) ListLots(ctx context.Context, tenantID id.TenantID, filter models.LotFilter) ([]*models.ShareLot, error) {
	lots, err := s.store.ListLots(ctx, tenantID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list lots")
	}
	return lots, nil
}

// UpdateLot edits a lot. Share counts of lots referenced by a posted transfer
// are frozen.
func (s *Service) UpdateLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID, req *models.UpdateLotRequest) (*models.ShareLot, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var before, after models.ShareLot
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		lot, err := s.findLot(ctx, tenantID, lotID)
		if err != nil {
			return err
		}
		before = *lot
		if req.ChangesShares(lot.Shares) {
			used, err := s.store.LotHasPostedUsage(ctx, tenantID, lotID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lot usage")
			}
			if used {
				return dErrors.New(dErrors.CodeValidation, "cannot edit lot shares after posted transfer usage")
			}
		}
		if req.OwnerID != nil && *req.OwnerID != lot.OwnerID {
			if _, err := s.findShareholder(ctx, tenantID, *req.OwnerID); err != nil {
				return err
			}
		}
		if err := lot.Apply(req, requestcontext.Now(ctx)); err != nil {
			return asValidation(err)
		}
		if err := s.store.UpdateLot(ctx, lot); err != nil {
			return translateLotWrite(err, "failed to update lot")
		}
		after = *lot
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, audit.ActionUpdate, audit.EntityShareLot, lotID.String(), audit.BeforeAfter{Before: before, After: after})
	return &after, nil
}

func (s *Service) DeleteLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.findLot(ctx, tenantID, lotID); err != nil {
			return err
		}
		used, err := s.store.LotHasPostedUsage(ctx, tenantID, lotID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lot usage")
		}
		if used {
			return dErrors.New(dErrors.CodeValidation, "cannot delete lot used in posted transfer")
		}
		if err := s.store.DeleteLot(ctx, tenantID, lotID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete lot")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenantID, audit.ActionDelete, audit.EntityShareLot, lotID.String(), nil)
	return nil
}

func (s *Service) findLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (*models.ShareLot, error) {
	lot, err := s.store.FindLot(ctx, tenantID, lotID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lot not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lot")
	}
	return lot, nil
}

func translateLotWrite(err error, msg string) error {
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return dErrors.New(dErrors.CodeConflict, "certificate number already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
