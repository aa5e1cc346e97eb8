package models

import (
	"context"
	"strconv"
	"strings"

	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

// certificateFloor is the highest number treated as already issued; the
// first auto-assigned certificate is 1000.
const certificateFloor int64 = 999

// MaxCertificateDigits bounds the certificates auto-numbering treats as
// numeric. Every store applies the same limit, and sequence values stay
// inside int64.
const MaxCertificateDigits = 18

const maxCertificateNumber int64 = 999_999_999_999_999_999

// ParseCertificateNumber returns the numeric value of a certificate number.
// Non-numeric certificates (e.g. "A-12") and numbers longer than
// MaxCertificateDigits are ignored by auto-numbering.
func ParseCertificateNumber(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxCertificateDigits {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// MaxCertificateNumber scans existing certificate numbers for the highest
// numeric value, or 0 when none is numeric.
func MaxCertificateNumber(numbers []string) int64 {
	var highest int64
	for _, raw := range numbers {
		if n, ok := ParseCertificateNumber(raw); ok && n > highest {
			highest = n
		}
	}
	return highest
}

// CertificateSequence hands out consecutive certificate numbers above the
// tenant's current maximum. It must be seeded inside the transaction that
// inserts the lots it numbers.
type CertificateSequence struct {
	last int64
}

func NewCertificateSequence(currentMax int64) *CertificateSequence {
	return &CertificateSequence{last: min(max(certificateFloor, currentMax), maxCertificateNumber)}
}

// Next returns the following certificate number, or a conflict once the
// numbering has reached MaxCertificateDigits.
func (s *CertificateSequence) Next() (string, error) {
	if s.last >= maxCertificateNumber {
		return "", dErrors.New(dErrors.CodeConflict, "certificate numbering is exhausted")
	}
	s.last++
	return strconv.FormatInt(s.last, 10), nil
}

// CertificateNumbering is the store surface certificate assignment needs.
type CertificateNumbering interface {
	// LockCertificates serializes assignment for a tenant until the
	// enclosing transaction ends.
	LockCertificates(ctx context.Context, tenantID id.TenantID) error
	MaxCertificateNumber(ctx context.Context, tenantID id.TenantID) (int64, error)
}

// ReserveCertificates locks the tenant's numbering and seeds a sequence
// from the current maximum. Callers must be inside a transaction and insert
// the numbered lots before it commits.
func ReserveCertificates(ctx context.Context, store CertificateNumbering, tenantID id.TenantID) (*CertificateSequence, error) {
	if err := store.LockCertificates(ctx, tenantID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock certificate numbering")
	}
	current, err := store.MaxCertificateNumber(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan certificate numbers")
	}
	return NewCertificateSequence(current), nil
}
