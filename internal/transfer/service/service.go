// Package service implements transfer drafts and posting, the only path that
// changes lot balances after a lot is created.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgermodels "sharereg/internal/ledger/models"
	meetingmodels "sharereg/internal/meeting/models"
	"sharereg/internal/transfer/metrics"
	"sharereg/internal/transfer/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/sentinel"
)

type Store interface {
	CreateTransfer(ctx context.Context, transfer *models.Transfer) error
	// UpdateTransfer persists header fields and replaces all lines.
	UpdateTransfer(ctx context.Context, transfer *models.Transfer) error
	DeleteTransfer(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) error
	FindTransfer(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) (*models.Transfer, error)
	// LockTransfer loads a transfer and holds it until the transaction ends.
	LockTransfer(ctx context.Context, tenantID id.TenantID, transferID id.TransferID) (*models.Transfer, error)
	ListTransfers(ctx context.Context, tenantID id.TenantID) ([]*models.Transfer, error)
}

// Ledger is the slice of the lot store posting writes through.
type Ledger interface {
	FindShareholder(ctx context.Context, tenantID id.TenantID, shareholderID id.ShareholderID) (*ledgermodels.Shareholder, error)
	// LockLot loads a lot and holds it until the transaction ends.
	LockLot(ctx context.Context, tenantID id.TenantID, lotID id.LotID) (*ledgermodels.ShareLot, error)
	UpdateLot(ctx context.Context, lot *ledgermodels.ShareLot) error
	CreateLot(ctx context.Context, lot *ledgermodels.ShareLot) error
	ledgermodels.CertificateNumbering
}

type Meetings interface {
	FindMeeting(ctx context.Context, tenantID id.TenantID, meetingID id.MeetingID) (*meetingmodels.Meeting, error)
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store          Store
	ledger         Ledger
	meetings       Meetings
	tx             StoreTx
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

func New(store Store, ledger Ledger, meetings Meetings, tx StoreTx, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("transfer store is required")
	case ledger == nil:
		return nil, errors.New("ledger is required")
	case meetings == nil:
		return nil, errors.New("meeting reader is required")
	case tx == nil:
		return nil, errors.New("transaction runner is required")
	}
	s := &Service{
		store:    store,
		ledger:   ledger,
		meetings: meetings,
		tx:       tx,
		logger:   slog.Default(),
		tracer:   otel.Tracer("sharereg/transfer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) record(ctx context.Context, tenantID id.TenantID, action audit.Action, entityID string, payload any) {
	audit.Record(ctx, s.auditPublisher, s.logger, tenantID, action, audit.EntityTransfer, entityID, payload)
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

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
