// Package service implements meeting snapshots, attendance, motions and vote
// recording.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgermodels "sharereg/internal/ledger/models"
	"sharereg/internal/meeting/metrics"
	"sharereg/internal/meeting/models"
	proxymodels "sharereg/internal/proxy/models"
	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/sentinel"
)

type Store interface {
	CreateMeeting(ctx context.Context, meeting *models.Meeting) error
	UpdateMeeting(ctx context.Context, meeting *models.Meeting) error
	DeleteMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) error
	FindMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) (*models.Meeting, error)
	ListMeetings(ctx context.Context, tenantID id.TenantID) ([]*models.Meeting, error)

	UpsertAttendance(ctx context.Context, tenantID id.TenantID, attendance *models.Attendance) error
	ListAttendance(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]*models.Attendance, error)

	CreateMotion(ctx context.Context, motion *models.Motion) error
	UpdateMotion(ctx context.Context, motion *models.Motion) error
	FindMotion(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) (*models.Motion, error)
	// LockMotion loads a motion and holds it until the transaction ends.
	LockMotion(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) (*models.Motion, error)
	ListMotions(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]*models.Motion, error)
	CountOpenMotions(ctx context.Context, tenantID id.TenantID) (int, error)

	CreateVote(ctx context.Context, vote *models.Vote) error
	ListVotes(ctx context.Context, tenantID id.TenantID, motionID id.MotionID) ([]*models.Vote, error)
}

type Ledger interface {
	FindShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (*ledgermodels.Shareholder, error)
	ListShareholders(ctx context.Context, tenantID id.TenantID, query string) ([]*ledgermodels.Shareholder, error)
	ListHoldings(ctx context.Context, tenantID id.TenantID) ([]ledgermodels.Holding, error)
}

type Proxies interface {
	// ProxiesForMeeting returns proxies bound to the meeting plus the
	// tenant's standing proxies.
	ProxiesForMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) ([]*proxymodels.Proxy, error)
	CountPendingProxies(ctx context.Context, tenantID id.TenantID) (int, error)
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type RulesProvider interface {
	Rules(ctx context.Context, tenantID id.TenantID) (voting.Rules, error)
}

type Service struct {
	store          Store
	ledger         Ledger
	proxies        Proxies
	tx             StoreTx
	rules          RulesProvider
	logger         *slog.Logger
	auditPublisher audit.Publisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store Store, ledger Ledger, proxies Proxies, tx StoreTx, rules RulesProvider, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("meeting store is required")
	case ledger == nil:
		return nil, errors.New("ledger is required")
	case proxies == nil:
		return nil, errors.New("proxy reader is required")
	case tx == nil:
		return nil, errors.New("transaction runner is required")
	case rules == nil:
		return nil, errors.New("rules provider is required")
	}
	s := &Service{
		store:   store,
		ledger:  ledger,
		proxies: proxies,
		tx:      tx,
		rules:   rules,
		logger:  slog.Default(),
		tracer:  otel.Tracer("sharereg/meeting"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) record(ctx context.Context, tenantID id.TenantID, action audit.Action, entity audit.EntityType, entityID string, payload any) {
	audit.Record(ctx, s.auditPublisher, s.logger, tenantID, action, entity, entityID, payload)
}

func (s *Service) findMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) (*models.Meeting, error) {
	m, err := s.store.FindMeeting(ctx, tenantID, meetingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "meeting not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load meeting")
	}
	return m, nil
}

func (s *Service) findMotion(ctx context.Context, tenantID id.TenantID, motionID id.MotionID, lock bool) (*models.Motion, error) {
	var (
		m   *models.Motion
		err error
	)
	if lock {
		m, err = s.store.LockMotion(ctx, tenantID, motionID)
	} else {
		m, err = s.store.FindMotion(ctx, tenantID, motionID)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "motion not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load motion")
	}
	return m, nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFound)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internal)
}

func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		de, _ := dErrors.As(err)
		return dErrors.New(dErrors.CodeValidation, de.Message)
	}
	return err
}
