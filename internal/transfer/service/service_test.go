package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	ledgermodels "sharereg/internal/ledger/models"
	"sharereg/internal/transfer/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/testutil"
)

type TransferServiceSuite struct {
	suite.Suite
	ctx    context.Context
	tenant id.TenantID
	reg    *testutil.Registry

	seller *ledgermodels.Shareholder
	buyer  *ledgermodels.Shareholder
	lotA   *ledgermodels.ShareLot
	lotB   *ledgermodels.ShareLot
}

func TestTransferServiceSuite(t *testing.T) {
	suite.Run(t, new(TransferServiceSuite))
}

func (s *TransferServiceSuite) SetupTest() {
	s.tenant = testutil.NewTenant()
	s.ctx = testutil.CallerContext(s.tenant, time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC))
	s.reg = testutil.NewRegistry(s.T(), nil)

	s.seller = s.reg.Shareholder(s.T(), s.ctx, s.tenant, "Sam", "Seller")
	s.buyer = s.reg.Shareholder(s.T(), s.ctx, s.tenant, "Bea", "Buyer")
	s.lotA = s.reg.Lot(s.T(), s.ctx, s.tenant, s.seller.ID, 100, "")
	s.lotB = s.reg.Lot(s.T(), s.ctx, s.tenant, s.seller.ID, 50, "")
}

func (s *TransferServiceSuite) draft(lines ...models.TransferLine) *models.Transfer {
	t, err := s.reg.Transfers.Create(s.ctx, s.tenant, &models.CreateTransferRequest{
		FromOwnerID: &s.seller.ID,
		ToOwnerID:   &s.buyer.ID,
		Notes:       "Private sale",
		Lines:       lines,
	})
	s.Require().NoError(err)
	return t
}

func (s *TransferServiceSuite) lotShares(lotID id.LotID) int64 {
	lot, err := s.reg.Ledger.GetLot(s.ctx, s.tenant, lotID)
	s.Require().NoError(err)
	return lot.Shares
}

func (s *TransferServiceSuite) TestPost() {
	t := s.draft(
		models.TransferLine{LotID: s.lotA.ID, SharesTaken: 40},
		models.TransferLine{LotID: s.lotB.ID, SharesTaken: 50},
	)
	s.Equal(models.TransferStatusDraft, t.Status)

	posting, err := s.reg.Transfers.Post(s.ctx, s.tenant, t.ID)
	s.Require().NoError(err)
	s.Equal(models.TransferStatusPosted, posting.Transfer.Status)
	s.NotNil(posting.Transfer.PostedAt)

	s.Equal(int64(60), s.lotShares(s.lotA.ID))
	drained, err := s.reg.Ledger.GetLot(s.ctx, s.tenant, s.lotB.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), drained.Shares)
	s.Equal(ledgermodels.LotStatusTransferredOut, drained.Status)

	s.Require().Len(posting.IssuedLots, 2)
	s.Equal("1002", posting.IssuedLots[0].CertificateNumber)
	s.Equal("1003", posting.IssuedLots[1].CertificateNumber)
	for _, lot := range posting.IssuedLots {
		s.Equal(s.buyer.ID, lot.OwnerID)
		s.Equal(ledgermodels.LotStatusActive, lot.Status)
		s.Require().NotNil(lot.SourceTransferID)
		s.Equal(t.ID, *lot.SourceTransferID)
	}

	var posted int
	for _, e := range s.reg.Events(s.T(), s.tenant) {
		if e.EntityType == audit.EntityTransfer && e.Action == audit.ActionPost {
			posted++
		}
	}
	s.Equal(1, posted)
}

func (s *TransferServiceSuite) TestPostIsAllOrNothing() {
	t := s.draft(
		models.TransferLine{LotID: s.lotA.ID, SharesTaken: 40},
		models.TransferLine{LotID: s.lotB.ID, SharesTaken: 51},
	)

	_, err := s.reg.Transfers.Post(s.ctx, s.tenant, t.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Equal(int64(100), s.lotShares(s.lotA.ID))
	s.Equal(int64(50), s.lotShares(s.lotB.ID))

	stored, err := s.reg.Transfers.Get(s.ctx, s.tenant, t.ID)
	s.Require().NoError(err)
	s.Equal(models.TransferStatusDraft, stored.Status)

	detail, err := s.reg.Ledger.GetShareholder(s.ctx, s.tenant, s.buyer.ID)
	s.Require().NoError(err)
	s.Empty(detail.Lots)
}

func (s *TransferServiceSuite) TestPostRejectsForeignLot() {
	other := s.reg.Shareholder(s.T(), s.ctx, s.tenant, "Oscar", "Other")
	foreign := s.reg.Lot(s.T(), s.ctx, s.tenant, other.ID, 10, "")
	t := s.draft(models.TransferLine{LotID: foreign.ID, SharesTaken: 5})

	_, err := s.reg.Transfers.Post(s.ctx, s.tenant, t.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(int64(10), s.lotShares(foreign.ID))
}

func (s *TransferServiceSuite) TestPostedTransfersAreImmutable() {
	t := s.draft(models.TransferLine{LotID: s.lotA.ID, SharesTaken: 10})
	posting, err := s.reg.Transfers.Post(s.ctx, s.tenant, t.ID)
	s.Require().NoError(err)
	s.Require().Len(posting.IssuedLots, 1)

	s.Run("double post", func() {
		_, err := s.reg.Transfers.Post(s.ctx, s.tenant, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(int64(90), s.lotShares(s.lotA.ID))
		s.Equal(int64(50), s.lotShares(s.lotB.ID))

		owned, err := s.reg.Ledger.ListLots(s.ctx, s.tenant, ledgermodels.LotFilter{OwnerID: &s.buyer.ID})
		s.Require().NoError(err)
		s.Require().Len(owned, 1)
		s.Equal(posting.IssuedLots[0].ID, owned[0].ID)
		s.Equal(int64(10), owned[0].Shares)
		s.Equal(posting.IssuedLots[0].CertificateNumber, owned[0].CertificateNumber)
	})

	s.Run("update", func() {
		notes := "changed"
		_, err := s.reg.Transfers.Update(s.ctx, s.tenant, t.ID, &models.UpdateTransferRequest{Notes: &notes})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("delete", func() {
		err := s.reg.Transfers.Delete(s.ctx, s.tenant, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("source lot shares are locked", func() {
		shares := int64(500)
		_, err := s.reg.Ledger.UpdateLot(s.ctx, s.tenant, s.lotA.ID, &ledgermodels.UpdateLotRequest{Shares: &shares})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		err = s.reg.Ledger.DeleteLot(s.ctx, s.tenant, s.lotA.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("untouched lot stays editable", func() {
		shares := int64(75)
		lot, err := s.reg.Ledger.UpdateLot(s.ctx, s.tenant, s.lotB.ID, &ledgermodels.UpdateLotRequest{Shares: &shares})
		s.Require().NoError(err)
		s.Equal(int64(75), lot.Shares)
	})
}

func (s *TransferServiceSuite) TestDrafts() {
	s.Run("draft edits replace lines", func() {
		t := s.draft(models.TransferLine{LotID: s.lotA.ID, SharesTaken: 10})
		lines := []models.TransferLine{{LotID: s.lotB.ID, SharesTaken: 5}}
		updated, err := s.reg.Transfers.Update(s.ctx, s.tenant, t.ID, &models.UpdateTransferRequest{Lines: &lines})
		s.Require().NoError(err)
		s.Equal(lines, updated.Lines)
	})

	s.Run("draft delete", func() {
		t := s.draft(models.TransferLine{LotID: s.lotA.ID, SharesTaken: 10})
		s.Require().NoError(s.reg.Transfers.Delete(s.ctx, s.tenant, t.ID))
		_, err := s.reg.Transfers.Get(s.ctx, s.tenant, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("same source and destination", func() {
		_, err := s.reg.Transfers.Create(s.ctx, s.tenant, &models.CreateTransferRequest{
			FromOwnerID: &s.seller.ID,
			ToOwnerID:   &s.seller.ID,
			Lines:       []models.TransferLine{{LotID: s.lotA.ID, SharesTaken: 1}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("non-positive line", func() {
		_, err := s.reg.Transfers.Create(s.ctx, s.tenant, &models.CreateTransferRequest{
			FromOwnerID: &s.seller.ID,
			Lines:       []models.TransferLine{{LotID: s.lotA.ID, SharesTaken: 0}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("empty draft cannot post", func() {
		t := s.draft()
		_, err := s.reg.Transfers.Post(s.ctx, s.tenant, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *TransferServiceSuite) TestPostWithoutDestinationRetiresShares() {
	t, err := s.reg.Transfers.Create(s.ctx, s.tenant, &models.CreateTransferRequest{
		FromOwnerID: &s.seller.ID,
		Lines:       []models.TransferLine{{LotID: s.lotA.ID, SharesTaken: 30}},
	})
	s.Require().NoError(err)

	posting, err := s.reg.Transfers.Post(s.ctx, s.tenant, t.ID)
	s.Require().NoError(err)
	s.Empty(posting.IssuedLots)
	s.Equal(int64(70), s.lotShares(s.lotA.ID))
}

func TestPartialTransferScenario(t *testing.T) {
	tenant := testutil.NewTenant()
	ctx := testutil.CallerContext(tenant, time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC))
	reg := testutil.NewRegistry(t, nil)

	testutil.Given(t, "a holder with a 100 share lot", func(t *testing.T) {
		seller := reg.Shareholder(t, ctx, tenant, "Gil", "Giver")
		buyer := reg.Shareholder(t, ctx, tenant, "Tom", "Taker")
		lot := reg.Lot(t, ctx, tenant, seller.ID, 100, "")

		testutil.When(t, "40 shares are posted to a buyer", func(t *testing.T) {
			draft, err := reg.Transfers.Create(ctx, tenant, &models.CreateTransferRequest{
				FromOwnerID: &seller.ID,
				ToOwnerID:   &buyer.ID,
				Lines:       []models.TransferLine{{LotID: lot.ID, SharesTaken: 40}},
			})
			require.NoError(t, err)
			_, err = reg.Transfers.Post(ctx, tenant, draft.ID)
			require.NoError(t, err)

			testutil.Then(t, "voting weight moves with the shares", func(t *testing.T) {
				sellerDetail, err := reg.Ledger.GetShareholder(ctx, tenant, seller.ID)
				require.NoError(t, err)
				assert.Equal(t, int64(60), sellerDetail.ActiveShares)

				buyerDetail, err := reg.Ledger.GetShareholder(ctx, tenant, buyer.ID)
				require.NoError(t, err)
				assert.Equal(t, int64(40), buyerDetail.ActiveShares)
			})
		})
	})
}
