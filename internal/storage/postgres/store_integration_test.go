//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	ledgermodels "sharereg/internal/ledger/models"
	ledgerservice "sharereg/internal/ledger/service"
	meetingmodels "sharereg/internal/meeting/models"
	meetingservice "sharereg/internal/meeting/service"
	proxymodels "sharereg/internal/proxy/models"
	proxyservice "sharereg/internal/proxy/service"
	"sharereg/internal/settings"
	"sharereg/internal/storage/postgres"
	transfermodels "sharereg/internal/transfer/models"
	transferservice "sharereg/internal/transfer/service"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/testutil"
	"sharereg/pkg/testutil/containers"
)

var (
	_ ledgerservice.Store     = (*postgres.Store)(nil)
	_ ledgerservice.StoreTx   = (*postgres.Store)(nil)
	_ meetingservice.Store    = (*postgres.Store)(nil)
	_ meetingservice.Ledger   = (*postgres.Store)(nil)
	_ meetingservice.Proxies  = (*postgres.Store)(nil)
	_ proxyservice.Store      = (*postgres.Store)(nil)
	_ transferservice.Store   = (*postgres.Store)(nil)
	_ transferservice.Ledger  = (*postgres.Store)(nil)
	_ transferservice.StoreTx = (*postgres.Store)(nil)
	_ settings.Store          = (*postgres.Store)(nil)
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store

	settings  *settings.Service
	ledger    *ledgerservice.Service
	proxies   *proxyservice.Service
	meetings  *meetingservice.Service
	transfers *transferservice.Service

	ctx    context.Context
	tenant id.TenantID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB, postgres.WithTxTimeout(10*time.Second))

	var err error
	s.settings, err = settings.New(s.store)
	s.Require().NoError(err)
	s.ledger, err = ledgerservice.New(s.store, s.store, s.settings)
	s.Require().NoError(err)
	s.proxies, err = proxyservice.New(s.store, s.store, s.store, s.store, s.settings)
	s.Require().NoError(err)
	s.meetings, err = meetingservice.New(s.store, s.store, s.store, s.store, s.settings)
	s.Require().NoError(err)
	s.transfers, err = transferservice.New(s.store, s.store, s.store, s.store)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background()))
	s.tenant = testutil.NewTenant()
	s.ctx = testutil.CallerContext(s.tenant, time.Now().UTC().Truncate(time.Microsecond))
}

func (s *PostgresStoreSuite) shareholder(first string) *ledgermodels.Shareholder {
	sh, err := s.ledger.CreateShareholder(s.ctx, s.tenant, &ledgermodels.CreateShareholderRequest{
		Type:      ledgermodels.ShareholderTypeIndividual,
		FirstName: first,
		LastName:  "Pg",
	})
	s.Require().NoError(err)
	return sh
}

func (s *PostgresStoreSuite) lot(owner id.ShareholderID, shares int64) *ledgermodels.ShareLot {
	lot, err := s.ledger.CreateLot(s.ctx, s.tenant, &ledgermodels.CreateLotRequest{OwnerID: owner, Shares: shares})
	s.Require().NoError(err)
	return lot
}

func (s *PostgresStoreSuite) TestShareholderSearchAndTenantScope() {
	s.shareholder("Quincy")
	s.shareholder("Rita")

	found, err := s.ledger.ListShareholders(s.ctx, s.tenant, "quin")
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("Quincy", found[0].FirstName)

	other, err := s.ledger.ListShareholders(s.ctx, testutil.NewTenant(), "")
	s.Require().NoError(err)
	s.Empty(other)
}

func (s *PostgresStoreSuite) TestDuplicateCertificateIsConflict() {
	sh := s.shareholder("Uma")
	first := s.lot(sh.ID, 10)

	_, err := s.ledger.CreateLot(s.ctx, s.tenant, &ledgermodels.CreateLotRequest{
		OwnerID:           sh.ID,
		Shares:            5,
		CertificateNumber: first.CertificateNumber,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *PostgresStoreSuite) TestOversizedCertificatesAreNotNumbered() {
	sh := s.shareholder("Wes")
	for _, cert := range []string{"2000", "1234567890123456789"} {
		_, err := s.ledger.CreateLot(s.ctx, s.tenant, &ledgermodels.CreateLotRequest{
			OwnerID:           sh.ID,
			Shares:            1,
			CertificateNumber: cert,
		})
		s.Require().NoError(err)
	}

	highest, err := s.store.MaxCertificateNumber(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(int64(2000), highest)
	s.Equal(ledgermodels.MaxCertificateNumber([]string{"2000", "1234567890123456789"}), highest)

	next := s.lot(sh.ID, 1)
	s.Equal("2001", next.CertificateNumber)
}

// Concurrent auto-numbered issues must never hand out the same certificate.
func (s *PostgresStoreSuite) TestConcurrentCertificateNumbering() {
	sh := s.shareholder("Vic")
	const workers = 10

	var wg sync.WaitGroup
	certs := make(chan string, workers)
	for range workers {
		wg.Go(func() {
			lot, err := s.ledger.CreateLot(s.ctx, s.tenant, &ledgermodels.CreateLotRequest{OwnerID: sh.ID, Shares: 1})
			if err == nil {
				certs <- lot.CertificateNumber
			}
		})
	}
	wg.Wait()
	close(certs)

	seen := make(map[string]struct{})
	for c := range certs {
		_, dup := seen[c]
		s.False(dup, "certificate %s issued twice", c)
		seen[c] = struct{}{}
	}
	s.Len(seen, workers)
}

func (s *PostgresStoreSuite) TestTransferPostRollsBack() {
	seller := s.shareholder("Walt")
	buyer := s.shareholder("Xena")
	a := s.lot(seller.ID, 100)
	b := s.lot(seller.ID, 10)

	t, err := s.transfers.Create(s.ctx, s.tenant, &transfermodels.CreateTransferRequest{
		FromOwnerID: &seller.ID,
		ToOwnerID:   &buyer.ID,
		Lines: []transfermodels.TransferLine{
			{LotID: a.ID, SharesTaken: 50},
			{LotID: b.ID, SharesTaken: 11},
		},
	})
	s.Require().NoError(err)

	_, err = s.transfers.Post(s.ctx, s.tenant, t.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	reloaded, err := s.ledger.GetLot(s.ctx, s.tenant, a.ID)
	s.Require().NoError(err)
	s.Equal(int64(100), reloaded.Shares)

	lines := []transfermodels.TransferLine{{LotID: a.ID, SharesTaken: 50}}
	_, err = s.transfers.Update(s.ctx, s.tenant, t.ID, &transfermodels.UpdateTransferRequest{Lines: &lines})
	s.Require().NoError(err)

	posting, err := s.transfers.Post(s.ctx, s.tenant, t.ID)
	s.Require().NoError(err)
	s.Require().Len(posting.IssuedLots, 1)
	s.Equal("1002", posting.IssuedLots[0].CertificateNumber)

	used, err := s.store.LotHasPostedUsage(s.ctx, s.tenant, a.ID)
	s.Require().NoError(err)
	s.True(used)
}

func (s *PostgresStoreSuite) TestMeetingSnapshotAndVoteRoundTrip() {
	alice := s.shareholder("Alice")
	bob := s.shareholder("Bob")
	s.lot(alice.ID, 70)
	s.lot(bob.ID, 30)

	m, err := s.meetings.CreateMeeting(s.ctx, s.tenant, &meetingmodels.CreateMeetingRequest{
		Title:    "Special meeting",
		DateTime: time.Date(2026, 6, 1, 17, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)

	p, err := s.proxies.Create(s.ctx, s.tenant, &proxymodels.CreateProxyRequest{
		GrantorID:           bob.ID,
		HolderShareholderID: &alice.ID,
		MeetingID:           &m.ID,
	})
	s.Require().NoError(err)
	_, err = s.proxies.Accept(s.ctx, s.tenant, p.ID)
	s.Require().NoError(err)

	s.lot(bob.ID, 1000)
	detail, err := s.meetings.GetMeeting(s.ctx, s.tenant, m.ID)
	s.Require().NoError(err)
	s.Equal(int64(100), detail.Snapshot.ActiveVotingShares)
	s.Equal(int64(51), detail.Snapshot.MajorityThreshold)

	_, err = s.meetings.SetAttendance(s.ctx, s.tenant, m.ID, &meetingmodels.AttendanceRequest{ShareholderID: alice.ID, Present: true})
	s.Require().NoError(err)

	motion, err := s.meetings.CreateMotion(s.ctx, s.tenant, m.ID, &meetingmodels.CreateMotionRequest{
		Type:        meetingmodels.MotionTypeElection,
		OfficeTitle: "Chair",
		Candidates:  []string{"Alice", "Bob"},
	})
	s.Require().NoError(err)

	vote, err := s.meetings.RecordVote(s.ctx, s.tenant, motion.ID, &meetingmodels.RecordVoteRequest{
		ElectionBallots: []meetingmodels.ElectionBallot{{ShareholderID: alice.ID, Candidate: "Alice"}},
	})
	s.Require().NoError(err)
	s.Equal([]string{"Alice"}, vote.Details.Winners)

	detail, err = s.meetings.GetMeeting(s.ctx, s.tenant, m.ID)
	s.Require().NoError(err)
	s.Require().Len(detail.Motions, 1)
	s.True(detail.Motions[0].IsClosed)
	s.Equal([]string{"Alice", "Bob"}, detail.Motions[0].Candidates)
	s.Require().Len(detail.Motions[0].Votes, 1)
	s.Equal(vote.YesShares, detail.Motions[0].Votes[0].YesShares)
	s.Equal([]string{"Alice"}, detail.Motions[0].Votes[0].Details.Winners)
}

func (s *PostgresStoreSuite) TestSettingsPersist() {
	exclude := true
	_, err := s.settings.Update(s.ctx, s.tenant, &settings.UpdateRequest{ExcludeDisputedFromVoting: &exclude})
	s.Require().NoError(err)

	rules, err := s.settings.Rules(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.True(rules.ExcludeDisputedFromVoting)

	fresh, err := settings.New(s.store)
	s.Require().NoError(err)
	rules, err = fresh.Rules(s.ctx, testutil.NewTenant())
	s.Require().NoError(err)
	s.False(rules.ExcludeDisputedFromVoting)
}
