// Package voting partitions ledger holdings into voting and excluded shares.
//
// Evaluate is pure and deterministic: the dashboard calls it live and the
// meeting service calls it once to freeze a meeting's snapshot.
package voting

import (
	"fmt"

	"sharereg/internal/ledger/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

// Rules is the configuration the evaluator reads. It is persisted verbatim
// with every meeting snapshot.
type Rules struct {
	ExcludeDisputedFromVoting bool `json:"excludeDisputedFromVoting"`
}

// Bucket is where a single lot's shares land.
type Bucket int

const (
	BucketInert Bucket = iota
	BucketActive
	BucketExcludedByOwner
	BucketExcludedBySurrendered
	BucketExcludedByTreasury
	BucketExcludedByDisputed
)

type Breakdown struct {
	ExcludedByOwner       int64 `json:"excludedByOwner"`
	ExcludedBySurrendered int64 `json:"excludedBySurrendered"`
	ExcludedByTreasury    int64 `json:"excludedByTreasury"`
	ExcludedByDisputed    int64 `json:"excludedByDisputed"`
}

func (b Breakdown) Total() int64 {
	return b.ExcludedByOwner + b.ExcludedBySurrendered + b.ExcludedByTreasury + b.ExcludedByDisputed
}

type Result struct {
	ActiveVotingShares int64     `json:"activeVotingShares"`
	ExcludedShares     int64     `json:"excludedShares"`
	MajorityThreshold  int64     `json:"majorityThreshold"`
	Breakdown          Breakdown `json:"breakdown"`
	Rules              Rules     `json:"rules"`
}

// MajorityThreshold is floor(active/2)+1. With zero active shares it is 1,
// so nothing can pass.
func MajorityThreshold(active int64) int64 {
	return active/2 + 1
}

// Classify assigns a holding to its bucket. The first matching rule wins:
// owner exclusion, surrendered, treasury, disputed under the flag, then
// active. Every lot status is enumerated; an unknown one is an error rather
// than silently inert.
func Classify(h models.Holding, rules Rules) (Bucket, error) {
	if !h.OwnerStatus.IsValid() {
		return BucketInert, unknownStatus("shareholder", string(h.OwnerStatus), h.LotID)
	}
	if h.OwnerStatus.ExcludesVoting() {
		return BucketExcludedByOwner, nil
	}
	switch h.LotStatus {
	case models.LotStatusSurrendered:
		return BucketExcludedBySurrendered, nil
	case models.LotStatusTreasury:
		return BucketExcludedByTreasury, nil
	case models.LotStatusDisputed:
		if rules.ExcludeDisputedFromVoting {
			return BucketExcludedByDisputed, nil
		}
		return BucketActive, nil
	case models.LotStatusActive:
		return BucketActive, nil
	case models.LotStatusTransferredOut:
		return BucketInert, nil
	default:
		return BucketInert, unknownStatus("lot", string(h.LotStatus), h.LotID)
	}
}

func unknownStatus(kind, status string, lotID id.LotID) error {
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("unknown %s status %q on lot %s", kind, status, lotID))
}

func Evaluate(holdings []models.Holding, rules Rules) (Result, error) {
	res := Result{Rules: rules}
	for _, h := range holdings {
		bucket, err := Classify(h, rules)
		if err != nil {
			return Result{}, err
		}
		switch bucket {
		case BucketActive:
			res.ActiveVotingShares += h.Shares
		case BucketExcludedByOwner:
			res.Breakdown.ExcludedByOwner += h.Shares
		case BucketExcludedBySurrendered:
			res.Breakdown.ExcludedBySurrendered += h.Shares
		case BucketExcludedByTreasury:
			res.Breakdown.ExcludedByTreasury += h.Shares
		case BucketExcludedByDisputed:
			res.Breakdown.ExcludedByDisputed += h.Shares
		case BucketInert:
		}
	}
	res.ExcludedShares = res.Breakdown.Total()
	res.MajorityThreshold = MajorityThreshold(res.ActiveVotingShares)
	return res, nil
}

// Weights is the active share count per shareholder. Shareholders whose
// status excludes them, or who own no active lots, are absent (weight 0).
type Weights map[id.ShareholderID]int64

func (w Weights) Of(shareholderID id.ShareholderID) int64 {
	return w[shareholderID]
}

// ComputeWeights applies the same classification as Evaluate, per owner.
func ComputeWeights(holdings []models.Holding, rules Rules) (Weights, error) {
	w := make(Weights)
	for _, h := range holdings {
		bucket, err := Classify(h, rules)
		if err != nil {
			return nil, err
		}
		if bucket == BucketActive {
			w[h.OwnerID] += h.Shares
		}
	}
	return w, nil
}

// ShareholderActiveShares returns one shareholder's voting weight. Unknown
// shareholders and excluded owners get 0.
func ShareholderActiveShares(holdings []models.Holding, shareholderID id.ShareholderID, rules Rules) (int64, error) {
	var total int64
	for _, h := range holdings {
		if h.OwnerID != shareholderID {
			continue
		}
		bucket, err := Classify(h, rules)
		if err != nil {
			return 0, err
		}
		if bucket == BucketActive {
			total += h.Shares
		}
	}
	return total, nil
}
