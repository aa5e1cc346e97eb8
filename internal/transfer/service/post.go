package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	ledgermodels "sharereg/internal/ledger/models"
	"sharereg/internal/transfer/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/sentinel"
	"sharereg/pkg/requestcontext"
)

// Post applies a draft transfer to the ledger in one transaction. Each line
// withdraws from its source lot and, when the transfer has a destination
// owner, issues a new Active lot with the next certificate number. Any
// failing line rolls back every line.
func (s *Service) Post(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) (*models.Posting, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "transfer.post")
	defer span.End()
	span.SetAttributes(attribute.String("transfer.id", transferID.String()))

	var (
		posting *models.Posting
		moved   int64
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.store.LockTransfer(ctx, tenantID, transferID)
		if err != nil {
			return notFoundOr(err, "transfer not found", "failed to load transfer")
		}
		if err := t.CanPost(); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		var certs *ledgermodels.CertificateSequence
		if t.ToOwnerID != nil {
			if certs, err = ledgermodels.ReserveCertificates(ctx, s.ledger, tenantID); err != nil {
				return err
			}
		}

		issued := make([]*ledgermodels.ShareLot, 0, len(t.Lines))
		for _, line := range t.Lines {
			lot, err := s.ledger.LockLot(ctx, tenantID, line.LotID)
			if err != nil {
				return notFoundOr(err, "lot "+line.LotID.String()+" not found", "failed to load lot")
			}
			if t.FromOwnerID != nil && lot.OwnerID != *t.FromOwnerID {
				return dErrors.New(dErrors.CodeValidation, "lot "+lot.CertificateNumber+" is not owned by the transfer source")
			}
			if err := lot.Withdraw(line.SharesTaken, now); err != nil {
				return err
			}
			if err := s.ledger.UpdateLot(ctx, lot); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update lot")
			}
			moved += line.SharesTaken

			if certs == nil {
				continue
			}
			cert, err := certs.Next()
			if err != nil {
				return err
			}
			dest, err := ledgermodels.NewShareLot(id.NewLotID(), tenantID, *t.ToOwnerID, line.SharesTaken, ledgermodels.LotStatusActive, cert, now)
			if err != nil {
				return asValidation(err)
			}
			acquired := now
			sourceID := t.ID
			dest.AcquiredDate = &acquired
			dest.Source = t.SourceLabel()
			dest.SourceTransferID = &sourceID
			dest.Notes = t.Notes
			if err := s.ledger.CreateLot(ctx, dest); err != nil {
				if errors.Is(err, sentinel.ErrAlreadyUsed) {
					return dErrors.New(dErrors.CodeConflict, "certificate number already exists")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue lot")
			}
			issued = append(issued, dest)
		}

		t.MarkPosted(requestcontext.UserID(ctx), now)
		if err := s.store.UpdateTransfer(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark transfer posted")
		}
		posting = &models.Posting{Transfer: t, IssuedLots: issued}
		return nil
	})
	if err != nil {
		failSpan(span, err)
		if s.metrics != nil {
			s.metrics.IncrementPostFailure(string(dErrors.CodeOf(err)))
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("transfer.shares_moved", moved),
		attribute.Int("transfer.lots_issued", len(posting.IssuedLots)),
	)
	if s.metrics != nil {
		s.metrics.RecordPosted(moved, len(posting.IssuedLots))
		s.metrics.ObservePost(start)
	}
	s.record(ctx, tenantID, audit.ActionPost, transferID.String(), map[string]any{
		"status":      models.TransferStatusPosted,
		"sharesMoved": moved,
		"issuedLots":  len(posting.IssuedLots),
	})
	return posting, nil
}
