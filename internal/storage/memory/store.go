// Package memory is an in-process implementation of every sharereg store.
// It backs tests and runs the server when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	ledgermodels "sharereg/internal/ledger/models"
	meetingmodels "sharereg/internal/meeting/models"
	proxymodels "sharereg/internal/proxy/models"
	transfermodels "sharereg/internal/transfer/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// rec pairs a stored value with its insertion sequence so listings are
// stable.
type rec[T any] struct {
	v   T
	seq uint64
}

type attendanceKey struct {
	meetingID     id.MeetingID
	shareholderID id.ShareholderID
}

type attendanceRow struct {
	tenantID id.TenantID
	row      meetingmodels.Attendance
}

type settingKey struct {
	tenantID id.TenantID
	key      string
}

type tables struct {
	shareholders map[id.ShareholderID]rec[ledgermodels.Shareholder]
	lots         map[id.LotID]rec[ledgermodels.ShareLot]
	transfers    map[id.TransferID]rec[transfermodels.Transfer]
	meetings     map[id.MeetingID]rec[meetingmodels.Meeting]
	attendance   map[attendanceKey]rec[attendanceRow]
	motions      map[id.MotionID]rec[meetingmodels.Motion]
	votes        map[id.VoteID]rec[meetingmodels.Vote]
	proxies      map[id.ProxyID]rec[proxymodels.Proxy]
	settings     map[settingKey]string
}

func newTables() *tables {
	return &tables{
		shareholders: make(map[id.ShareholderID]rec[ledgermodels.Shareholder]),
		lots:         make(map[id.LotID]rec[ledgermodels.ShareLot]),
		transfers:    make(map[id.TransferID]rec[transfermodels.Transfer]),
		meetings:     make(map[id.MeetingID]rec[meetingmodels.Meeting]),
		attendance:   make(map[attendanceKey]rec[attendanceRow]),
		motions:      make(map[id.MotionID]rec[meetingmodels.Motion]),
		votes:        make(map[id.VoteID]rec[meetingmodels.Vote]),
		proxies:      make(map[id.ProxyID]rec[proxymodels.Proxy]),
		settings:     make(map[settingKey]string),
	}
}

// clone copies the maps. Stored values never share mutable state with
// callers, so a shallow copy is a full snapshot.
func (t *tables) clone() *tables {
	return &tables{
		shareholders: cloneMap(t.shareholders),
		lots:         cloneMap(t.lots),
		transfers:    cloneMap(t.transfers),
		meetings:     cloneMap(t.meetings),
		attendance:   cloneMap(t.attendance),
		motions:      cloneMap(t.motions),
		votes:        cloneMap(t.votes),
		proxies:      cloneMap(t.proxies),
		settings:     cloneMap(t.settings),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store holds all tables behind one mutex. A transaction holds the mutex
// for its whole duration, which serializes writers the way row locks do in
// Postgres.
type Store struct {
	mu      sync.Mutex
	seq     uint64
	t       *tables
	timeout time.Duration
}

type Option func(*Store)

func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

func New(opts ...Option) *Store {
	s := &Store{t: newTables(), timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the store mutex unless the caller already runs inside one of
// this store's transactions.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) next() uint64 {
	s.seq++
	return s.seq
}

// RunInTx runs fn with exclusive access to the store. If fn fails every
// change it made is discarded. Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	saved := s.t.clone()
	savedSeq := s.seq
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.t = saved
		s.seq = savedSeq
		return err
	}
	return nil
}

// sorted returns the values of m accepted by keep, in insertion order.
func sorted[K comparable, T any](m map[K]rec[T], keep func(*T) bool) []T {
	recs := make([]rec[T], 0, len(m))
	for _, r := range m {
		if keep(&r.v) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]T, len(recs))
	for i, r := range recs {
		out[i] = r.v
	}
	return out
}
