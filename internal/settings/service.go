// Package settings persists the voting configuration of a tenant. The
// evaluator reads it on every call, so reads go through a short-TTL cache
// that writes invalidate.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/sentinel"
	"sharereg/pkg/requestcontext"
)

const KeyExcludeDisputedFromVoting = "excludeDisputedFromVoting"

type Store interface {
	GetSetting(ctx context.Context, tenantID id.TenantID, key string) (string, error)
	PutSetting(ctx context.Context, tenantID id.TenantID, key, value string) error
}

// Cache holds decoded rules per tenant. Implementations must tolerate
// being unavailable; errors only cost a store read.
type Cache interface {
	Get(ctx context.Context, tenantID id.TenantID) (voting.Rules, bool, error)
	Set(ctx context.Context, tenantID id.TenantID, rules voting.Rules) error
	Invalidate(ctx context.Context, tenantID id.TenantID) error
}

type Service struct {
	store          Store
	cache          Cache
	logger         *slog.Logger
	auditPublisher audit.Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Rules returns the tenant's voting rules. A tenant that never saved the
// flag counts disputed lots.
func (s *Service) Rules(ctx context.Context, tenantID id.TenantID) (voting.Rules, error) {
	if s.cache != nil {
		rules, ok, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			s.logger.WarnContext(ctx, "settings cache read failed", "error", err, "tenant_id", tenantID)
		} else if ok {
			return rules, nil
		}
	}

	rules, err := s.load(ctx, tenantID)
	if err != nil {
		return voting.Rules{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, rules); err != nil {
			s.logger.WarnContext(ctx, "settings cache write failed", "error", err, "tenant_id", tenantID)
		}
	}
	return rules, nil
}

func (s *Service) load(ctx context.Context, tenantID id.TenantID) (voting.Rules, error) {
	raw, err := s.store.GetSetting(ctx, tenantID, KeyExcludeDisputedFromVoting)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return voting.Rules{}, nil
		}
		return voting.Rules{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voting settings")
	}
	return voting.Rules{ExcludeDisputedFromVoting: raw == "true"}, nil
}

type UpdateRequest struct {
	ExcludeDisputedFromVoting *bool `json:"excludeDisputedFromVoting"`
}

func (r *UpdateRequest) Validate() error {
	if r == nil || r.ExcludeDisputedFromVoting == nil {
		return dErrors.New(dErrors.CodeValidation, "excludeDisputedFromVoting is required")
	}
	return nil
}

// Update persists the rules and drops the cached copy so the next evaluation
// sees the change.
func (s *Service) Update(ctx context.Context, tenantID id.TenantID, req *UpdateRequest) (voting.Rules, error) {
	if err := req.Validate(); err != nil {
		return voting.Rules{}, err
	}
	before, err := s.load(ctx, tenantID)
	if err != nil {
		return voting.Rules{}, err
	}
	after := voting.Rules{ExcludeDisputedFromVoting: *req.ExcludeDisputedFromVoting}

	value := strconv.FormatBool(after.ExcludeDisputedFromVoting)
	if err := s.store.PutSetting(ctx, tenantID, KeyExcludeDisputedFromVoting, value); err != nil {
		return voting.Rules{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save voting settings")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, tenantID); err != nil {
			s.logger.WarnContext(ctx, "settings cache invalidation failed", "error", err, "tenant_id", tenantID)
		}
	}

	audit.Record(ctx, s.auditPublisher, s.logger, tenantID, audit.ActionUpdate, audit.EntitySettings,
		KeyExcludeDisputedFromVoting, audit.BeforeAfter{Before: before, After: after})
	s.logger.InfoContext(ctx, "voting settings updated",
		"tenant_id", tenantID,
		"actor_id", requestcontext.UserID(ctx),
		"exclude_disputed", after.ExcludeDisputedFromVoting,
	)
	return after, nil
}
