// Package dashboard builds the live voting summary: evaluator totals, the
// largest holders and a bloc of selected holders.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	ledgermodels "sharereg/internal/ledger/models"
	"sharereg/internal/voting"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
)

const (
	topHolders     = 10
	recentActivity = 20
)

type Ledger interface {
	ListShareholders(ctx context.Context, tenantID id.TenantID, query string) ([]*ledgermodels.Shareholder, error)
	ListHoldings(ctx context.Context, tenantID id.TenantID) ([]ledgermodels.Holding, error)
}

type RulesProvider interface {
	Rules(ctx context.Context, tenantID id.TenantID) (voting.Rules, error)
}

// ActivityReader lists recent audit events, newest first.
type ActivityReader interface {
	List(ctx context.Context, tenantID id.TenantID, limit int) ([]audit.Event, error)
}

type Holder struct {
	ID           id.ShareholderID `json:"id"`
	Name         string           `json:"name"`
	ActiveShares int64            `json:"activeShares"`
}

type Bloc struct {
	SelectedIDs []id.ShareholderID `json:"selectedIds"`
	Shares      int64              `json:"shares"`
	// Percent of active voting shares, rounded to two decimals.
	Percent float64 `json:"percent"`
}

type Summary struct {
	voting.Result
	TopShareholders []Holder      `json:"topShareholders"`
	BlocBuilder     Bloc          `json:"blocBuilder"`
	RecentActivity  []audit.Event `json:"recentActivity"`
}

type Service struct {
	ledger   Ledger
	rules    RulesProvider
	activity ActivityReader
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithActivity(reader ActivityReader) Option {
	return func(s *Service) {
		s.activity = reader
	}
}

func New(ledger Ledger, rules RulesProvider, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if rules == nil {
		return nil, errors.New("rules provider is required")
	}
	s := &Service{ledger: ledger, rules: rules, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Summary evaluates the current ledger. Bloc shares only count selected ids
// that are among the top holders.
func (s *Service) Summary(ctx context.Context, tenantID id.TenantID, blocIDs []id.ShareholderID) (*Summary, error) {
	rules, err := s.rules.Rules(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.ledger.ListHoldings(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holdings")
	}
	res, err := voting.Evaluate(holdings, rules)
	if err != nil {
		return nil, err
	}
	weights, err := voting.ComputeWeights(holdings, rules)
	if err != nil {
		return nil, err
	}
	shareholders, err := s.ledger.ListShareholders(ctx, tenantID, "")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load shareholders")
	}

	top := TopHolders(shareholders, weights, topHolders)
	summary := &Summary{
		Result:          res,
		TopShareholders: top,
		BlocBuilder:     BuildBloc(top, blocIDs, res.ActiveVotingShares),
		RecentActivity:  []audit.Event{},
	}
	if s.activity != nil {
		events, err := s.activity.List(ctx, tenantID, recentActivity)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load recent activity", "tenant_id", tenantID.String(), "error", err)
		} else {
			summary.RecentActivity = events
		}
	}
	return summary, nil
}

// TopHolders ranks shareholders by active shares, then name.
func TopHolders(shareholders []*ledgermodels.Shareholder, weights voting.Weights, limit int) []Holder {
	holders := make([]Holder, 0, len(shareholders))
	for _, sh := range shareholders {
		holders = append(holders, Holder{ID: sh.ID, Name: sh.DisplayName(), ActiveShares: weights.Of(sh.ID)})
	}
	sort.SliceStable(holders, func(i, j int) bool {
		if holders[i].ActiveShares != holders[j].ActiveShares {
			return holders[i].ActiveShares > holders[j].ActiveShares
		}
		return holders[i].Name < holders[j].Name
	})
	if len(holders) > limit {
		holders = holders[:limit]
	}
	return holders
}

func BuildBloc(top []Holder, selected []id.ShareholderID, active int64) Bloc {
	set := make(map[id.ShareholderID]struct{}, len(selected))
	ids := make([]id.ShareholderID, 0, len(selected))
	for _, shID := range selected {
		if _, dup := set[shID]; dup {
			continue
		}
		set[shID] = struct{}{}
		ids = append(ids, shID)
	}
	bloc := Bloc{SelectedIDs: ids}
	for _, h := range top {
		if _, ok := set[h.ID]; ok {
			bloc.Shares += h.ActiveShares
		}
	}
	if active > 0 {
		bloc.Percent = decimal.NewFromInt(bloc.Shares).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(active), 2).
			InexactFloat64()
	}
	return bloc
}
