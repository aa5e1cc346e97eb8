package service

import (
	"context"
	"errors"
	"log/slog"

	ledgermodels "sharereg/internal/ledger/models"
	meetingmodels "sharereg/internal/meeting/models"
	"sharereg/internal/proxy/models"
	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/sentinel"
	"sharereg/pkg/requestcontext"
)

type Store interface {
	CreateProxy(ctx context.Context, proxy *models.Proxy) error
	UpdateProxy(ctx context.Context, proxy *models.Proxy) error
	DeleteProxy(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) error
	FindProxy(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*models.Proxy, error)
	ListProxies(ctx context.Context, tenantID id.TenantID, filter models.ProxyFilter) ([]*models.Proxy, error)
}

type Ledger interface {
	FindShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (*ledgermodels.Shareholder, error)
	ListHoldings(ctx context.Context, tenantID id.TenantID) ([]ledgermodels.Holding, error)
}

type Meetings interface {
	FindMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) (*meetingmodels.Meeting, error)
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type RulesProvider interface {
	Rules(ctx context.Context, tenantID id.TenantID) (voting.Rules, error)
}

// Service manages the proxy authorization lifecycle. The share snapshot is
// taken from the grantor's live voting weight at creation and again at
// acceptance, and never recomputed after that.
type Service struct {
	store          Store
	ledger         Ledger
	meetings       Meetings
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

func New(store Store, ledger Ledger, meetings Meetings, tx StoreTx, rules RulesProvider, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("proxy store is required")
	case ledger == nil:
		return nil, errors.New("ledger is required")
	case meetings == nil:
		return nil, errors.New("meeting lookup is required")
	case tx == nil:
		return nil, errors.New("transaction runner is required")
	case rules == nil:
		return nil, errors.New("rules provider is required")
	}
	s := &Service{store: store, ledger: ledger, meetings: meetings, tx: tx, rules: rules, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Create(ctx context.Context, tenantID id.TenantID, req *models.CreateProxyRequest) (*models.Proxy, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created *models.Proxy
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.shareholder(ctx, tenantID, req.GrantorID, "grantor"); err != nil {
			return err
		}
		holderName := req.HolderName
		if req.HolderShareholderID != nil {
			holder, err := s.shareholder(ctx, tenantID, *req.HolderShareholderID, "proxy holder")
			if err != nil {
				return err
			}
			if holderName == "" {
				holderName = holder.DisplayName()
			}
		}
		if req.MeetingID != nil {
			if _, err := s.meetings.FindMeeting(ctx, tenantID, *req.MeetingID); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "meeting not found")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load meeting")
			}
		}
		snapshot, err := s.activeShares(ctx, tenantID, req.GrantorID)
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		p := &models.Proxy{
			ID:                  id.NewProxyID(),
			TenantID:            tenantID,
			GrantorID:           req.GrantorID,
			HolderShareholderID: req.HolderShareholderID,
			HolderName:          holderName,
			MeetingID:           req.MeetingID,
			Type:                req.Type,
			Scope:               req.Scope,
			Instructions:        req.Instructions,
			Status:              models.ProxyStatusPending,
			SharesSnapshot:      snapshot,
			ReceivedDate:        req.ReceivedDate,
			EffectiveAt:         req.EffectiveAt,
			ExpiresAt:           req.ExpiresAt,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.store.CreateProxy(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create proxy")
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	audit.Record(ctx, s.auditPublisher, s.logger, tenantID, audit.ActionCreate, audit.EntityProxy, created.ID.String(), req)
	return created, nil
}

func (s *Service) Get(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*models.Proxy, error) {
	return s.find(ctx, tenantID, proxyID)
}

func (s *Service) List(ctx context.Context, tenantID id.TenantID, filter models.ProxyFilter) ([]*models.Proxy, error) {
	list, err := s.store.ListProxies(ctx, tenantID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list proxies")
	}
	return list, nil
}

// Accept verifies a pending proxy and recaptures the grantor's voting weight.
func (s *Service) Accept(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*models.Proxy, error) {
	return s.transition(ctx, tenantID, proxyID, audit.ActionAccept, func(ctx context.Context, p *models.Proxy) (bool, error) {
		snapshot, err := s.activeShares(ctx, tenantID, p.GrantorID)
		if err != nil {
			return false, err
		}
		return true, p.Accept(snapshot, requestcontext.Now(ctx))
	})
}

func (s *Service) Reject(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*models.Proxy, error) {
	return s.transition(ctx, tenantID, proxyID, audit.ActionReject, func(ctx context.Context, p *models.Proxy) (bool, error) {
		return true, p.Reject(requestcontext.Now(ctx))
	})
}

// Revoke is idempotent: revoking a revoked proxy returns it unchanged and
// emits nothing.
func (s *Service) Revoke(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*models.Proxy, error) {
	return s.transition(ctx, tenantID, proxyID, audit.ActionRevoke, func(ctx context.Context, p *models.Proxy) (bool, error) {
		return p.Revoke(requestcontext.Now(ctx)), nil
	})
}

func (s *Service) Delete(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.find(ctx, tenantID, proxyID); err != nil {
			return err
		}
		if err := s.store.DeleteProxy(ctx, tenantID, proxyID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete proxy")
		}
		return nil
	})
	if err != nil {
		return err
	}
	audit.Record(ctx, s.auditPublisher, s.logger, tenantID, audit.ActionDelete, audit.EntityProxy, proxyID.String(), nil)
	return nil
}

func (s *Service) transition(
	ctx context.Context,
	tenantID id.TenantID,
	proxyID id.ProxyID,
	action audit.Action,
	apply func(ctx context.Context, p *models.Proxy) (changed bool, err error),
) (*models.Proxy, error) {
	var before, after models.Proxy
	changed := false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.find(ctx, tenantID, proxyID)
		if err != nil {
			return err
		}
		before = *p
		changed, err = apply(ctx, p)
		if err != nil {
			return err
		}
		after = *p
		if !changed {
			return nil
		}
		if err := s.store.UpdateProxy(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update proxy")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		audit.Record(ctx, s.auditPublisher, s.logger, tenantID, action, audit.EntityProxy, proxyID.String(),
			audit.BeforeAfter{Before: before.Status, After: after.Status})
	}
	return &after, nil
}

func (s *Service) activeShares(ctx context.Context, tenantID id.TenantID, grantorID id.ShareholderID) (int64, error) {
	rules, err := s.rules.Rules(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	holdings, err := s.ledger.ListHoldings(ctx, tenantID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holdings")
	}
	return voting.ShareholderActiveShares(holdings, grantorID, rules)
}

func (s *Service) shareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID, role string) (*ledgermodels.Shareholder, error) {
	sh, err := s.ledger.FindShareholder(ctx, tenantID, shareholderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, role+" not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+role)
	}
	return sh, nil
}

func (s *Service) find(ctx context.Context, tenantID id.TenantID, proxyID id.ProxyID) (*models.Proxy, error) {
	p, err := s.store.FindProxy(ctx, tenantID, proxyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "proxy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load proxy")
	}
	return p, nil
}
