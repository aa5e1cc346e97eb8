package service

import (
	"context"
	"errors"
	"log/slog"

	"sharereg/internal/ledger/models"
	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/sentinel"
	"sharereg/pkg/requestcontext"
)

type ShareholderStore interface {
	CreateShareholder(ctx context.Context, shareholder *models.Shareholder) error
	UpdateShareholder(ctx context.Context, shareholder *models.Shareholder) error
	DeleteShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) error
	FindShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (*models.Shareholder, error)
	ListShareholders(ctx context.Context, tenantID id.TenantID, query string) ([]*models.Shareholder, error)
	// ShareholderReferences counts the lots owned and proxies granted.
	ShareholderReferences(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (lots int, grantedProxies int, err error)
}

type LotStore interface {
	CreateLot(ctx context.Context, lot *models.ShareLot) error
	UpdateLot(ctx context.Context, lot *models.ShareLot) error
	DeleteLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) error
	FindLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (*models.ShareLot, error)
	ListLots(ctx context.Context, tenantID id.TenantID, filter models.LotFilter) ([]*models.ShareLot, error)
	LotHasPostedUsage(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (bool, error)
	models.CertificateNumbering
	ListHoldings(ctx context.Context, tenantID id.TenantID) ([]models.Holding, error)
}

type Store interface {
	ShareholderStore
	LotStore
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type RulesProvider interface {
	Rules(ctx context.Context, tenantID id.TenantID) (voting.Rules, error)
}

// Service manages shareholders and share lots outside of transfer posting.
type Service struct {
	store          Store
	tx             StoreTx
	rules          RulesProvider
	logger         *slog.Logger
	auditPublisher audit.Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, tx StoreTx, rules RulesProvider, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if rules == nil {
		return nil, errors.New("rules provider is required")
	}
	s := &Service{store: store, tx: tx, rules: rules, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) record(ctx context.Context, tenantID id.TenantID, action audit.Action, entity audit.EntityType, entityID string, payload any) {
	audit.Record(ctx, s.auditPublisher, s.logger, tenantID, action, entity, entityID, payload)
}

func (s *Service) CreateShareholder(ctx context.Context, tenantID id.TenantID, req *models.CreateShareholderRequest) (*models.Shareholder, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sh, err := models.NewShareholder(id.NewShareholderID(), tenantID, req, requestcontext.Now(ctx))
	if err != nil {
		return nil, asValidation(err)
	}
	if err := s.store.CreateShareholder(ctx, sh); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create shareholder")
	}
	s.record(ctx, tenantID, audit.ActionCreate, audit.EntityShareholder, sh.ID.String(), req)
	return sh, nil
}

func (s *Service) GetShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (*models.ShareholderDetail, error) {
	sh, err := s.findShareholder(ctx, tenantID, shareholderID)
	if err != nil {
		return nil, err
	}
	lots, err := s.store.ListLots(ctx, tenantID, models.LotFilter{OwnerID: &shareholderID})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lots")
	}
	rules, err := s.rules.Rules(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	holdings := make([]models.Holding, 0, len(lots))
	var total int64
	for _, l := range lots {
		holdings = append(holdings, models.Holding{
			LotID:       l.ID,
			OwnerID:     l.OwnerID,
			Shares:      l.Shares,
			LotStatus:   l.Status,
			OwnerStatus: sh.Status,
		})
		total += l.Shares
	}
	active, err := voting.ShareholderActiveShares(holdings, shareholderID, rules)
	if err != nil {
		return nil, err
	}
	return &models.ShareholderDetail{
		Shareholder:    sh,
		Lots:           lots,
		ActiveShares:   active,
		ExcludedShares: total - active,
	}, nil
}

func (s *Service) ListShareholders(ctx context.Context, tenantID id.TenantID, query string) ([]*models.Shareholder, error) {
	list, err := s.store.ListShareholders(ctx, tenantID, query)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list shareholders")
	}
	return list, nil
}

func (s *Service) UpdateShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID, req *models.UpdateShareholderRequest) (*models.Shareholder, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var before, after models.Shareholder
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		sh, err := s.findShareholder(ctx, tenantID, shareholderID)
		if err != nil {
			return err
		}
		before = *sh
		if err := sh.Apply(req, requestcontext.Now(ctx)); err != nil {
			return asValidation(err)
		}
		if err := s.store.UpdateShareholder(ctx, sh); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update shareholder")
		}
		after = *sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, audit.ActionUpdate, audit.EntityShareholder, shareholderID.String(), audit.BeforeAfter{Before: before, After: after})
	return &after, nil
}

// DeleteShareholder refuses shareholders that still own lots or have granted
// proxies.
func (s *Service) DeleteShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.findShareholder(ctx, tenantID, shareholderID); err != nil {
			return err
		}
		lots, proxies, err := s.store.ShareholderReferences(ctx, tenantID, shareholderID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check shareholder references")
		}
		if lots > 0 || proxies > 0 {
			return dErrors.New(dErrors.CodeConflict,
				"cannot delete shareholder with linked share lots or granted proxies; remove or reassign those records first")
		}
		if err := s.store.DeleteShareholder(ctx, tenantID, shareholderID); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "cannot delete shareholder because related records still reference it")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete shareholder")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenantID, audit.ActionDelete, audit.EntityShareholder, shareholderID.String(), nil)
	return nil
}

func (s *Service) findShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (*models.Shareholder, error) {
	sh, err := s.store.FindShareholder(ctx, tenantID, shareholderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "shareholder not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load shareholder")
	}
	return sh, nil
}

// asValidation converts model invariant violations into validation errors
// for the API response.
func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		de, _ := dErrors.As(err)
		return dErrors.New(dErrors.CodeValidation, de.Message)
	}
	return err
}
