package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	ledgermodels "sharereg/internal/ledger/models"
	meetingmodels "sharereg/internal/meeting/models"
	"sharereg/internal/proxy/models"
	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/audit"
	"sharereg/pkg/platform/audit/mocks"
	"sharereg/pkg/testutil"
)

type ProxyServiceSuite struct {
	suite.Suite
	ctx     context.Context
	tenant  id.TenantID
	reg     *testutil.Registry
	grantor *ledgermodels.Shareholder
	holder  *ledgermodels.Shareholder
	meeting *meetingmodels.Meeting
}

func TestProxyServiceSuite(t *testing.T) {
	suite.Run(t, new(ProxyServiceSuite))
}

func (s *ProxyServiceSuite) SetupTest() {
	s.tenant = testutil.NewTenant()
	s.ctx = testutil.CallerContext(s.tenant, time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	s.reg = testutil.NewRegistry(s.T(), nil)

	s.grantor = s.reg.Shareholder(s.T(), s.ctx, s.tenant, "Mary", "Grantor")
	s.holder = s.reg.Shareholder(s.T(), s.ctx, s.tenant, "Hal", "Holder")
	s.reg.Lot(s.T(), s.ctx, s.tenant, s.grantor.ID, 300, "")

	var err error
	s.meeting, err = s.reg.Meetings.CreateMeeting(s.ctx, s.tenant, &meetingmodels.CreateMeetingRequest{
		Title:    "Annual meeting",
		DateTime: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
}

func (s *ProxyServiceSuite) meetingProxy() *models.Proxy {
	p, err := s.reg.Proxies.Create(s.ctx, s.tenant, &models.CreateProxyRequest{
		GrantorID:           s.grantor.ID,
		HolderShareholderID: &s.holder.ID,
		MeetingID:           &s.meeting.ID,
	})
	s.Require().NoError(err)
	return p
}

func (s *ProxyServiceSuite) TestCreate() {
	s.Run("captures grantor weight and holder name", func() {
		p := s.meetingProxy()
		s.Equal(models.ProxyStatusPending, p.Status)
		s.Equal(int64(300), p.SharesSnapshot)
		s.Equal("Hal Holder", p.HolderName)
		s.Equal(models.ProxyTypeMeeting, p.Type)
	})

	s.Run("meeting proxies require a meeting", func() {
		_, err := s.reg.Proxies.Create(s.ctx, s.tenant, &models.CreateProxyRequest{
			GrantorID:  s.grantor.ID,
			HolderName: "Someone",
			Type:       models.ProxyTypeMeeting,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("standing proxies cannot name a meeting", func() {
		_, err := s.reg.Proxies.Create(s.ctx, s.tenant, &models.CreateProxyRequest{
			GrantorID:  s.grantor.ID,
			HolderName: "Someone",
			Type:       models.ProxyTypeStanding,
			MeetingID:  &s.meeting.ID,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("holder is required", func() {
		_, err := s.reg.Proxies.Create(s.ctx, s.tenant, &models.CreateProxyRequest{
			GrantorID: s.grantor.ID,
			Type:      models.ProxyTypeStanding,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("grantor from another tenant is not found", func() {
		_, err := s.reg.Proxies.Create(s.ctx, testutil.NewTenant(), &models.CreateProxyRequest{
			GrantorID:  s.grantor.ID,
			HolderName: "Someone",
			Type:       models.ProxyTypeStanding,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ProxyServiceSuite) TestLifecycle() {
	s.Run("accept recaptures the snapshot", func() {
		p := s.meetingProxy()
		s.reg.Lot(s.T(), s.ctx, s.tenant, s.grantor.ID, 50, "")

		accepted, err := s.reg.Proxies.Accept(s.ctx, s.tenant, p.ID)
		s.Require().NoError(err)
		s.Equal(models.ProxyStatusAccepted, accepted.Status)
		s.Equal(int64(350), accepted.SharesSnapshot)
		s.NotNil(accepted.DecidedAt)

		_, err = s.reg.Proxies.Accept(s.ctx, s.tenant, p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("snapshot is not recomputed after acceptance", func() {
		p := s.meetingProxy()
		_, err := s.reg.Proxies.Accept(s.ctx, s.tenant, p.ID)
		s.Require().NoError(err)
		before, err := s.reg.Proxies.Get(s.ctx, s.tenant, p.ID)
		s.Require().NoError(err)

		s.reg.Lot(s.T(), s.ctx, s.tenant, s.grantor.ID, 1000, "")
		after, err := s.reg.Proxies.Get(s.ctx, s.tenant, p.ID)
		s.Require().NoError(err)
		s.Equal(before.SharesSnapshot, after.SharesSnapshot)
	})

	s.Run("reject only from pending", func() {
		p := s.meetingProxy()
		rejected, err := s.reg.Proxies.Reject(s.ctx, s.tenant, p.ID)
		s.Require().NoError(err)
		s.Equal(models.ProxyStatusRejected, rejected.Status)

		_, err = s.reg.Proxies.Accept(s.ctx, s.tenant, p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("revoking twice is a no-op", func() {
		p := s.meetingProxy()
		_, err := s.reg.Proxies.Accept(s.ctx, s.tenant, p.ID)
		s.Require().NoError(err)

		revoked, err := s.reg.Proxies.Revoke(s.ctx, s.tenant, p.ID)
		s.Require().NoError(err)
		s.Equal(models.ProxyStatusRevoked, revoked.Status)

		eventsBefore := len(s.reg.Events(s.T(), s.tenant))
		again, err := s.reg.Proxies.Revoke(s.ctx, s.tenant, p.ID)
		s.Require().NoError(err)
		s.Equal(models.ProxyStatusRevoked, again.Status)
		s.Len(s.reg.Events(s.T(), s.tenant), eventsBefore)
	})
}

func (s *ProxyServiceSuite) TestDecisionsAreAudited() {
	p := s.meetingProxy()
	_, err := s.reg.Proxies.Accept(s.ctx, s.tenant, p.ID)
	s.Require().NoError(err)
	_, err = s.reg.Proxies.Revoke(s.ctx, s.tenant, p.ID)
	s.Require().NoError(err)

	var actions []audit.Action
	for _, e := range s.reg.Events(s.T(), s.tenant) {
		if e.EntityType == audit.EntityProxy {
			actions = append(actions, e.Action)
		}
	}
	s.Equal([]audit.Action{audit.ActionCreate, audit.ActionAccept, audit.ActionRevoke}, actions)

	last := s.reg.Events(s.T(), s.tenant)
	s.Equal(audit.CategoryCompliance, last[len(last)-1].Category())
}

func (s *ProxyServiceSuite) TestAuditFailureDoesNotFailOperation() {
	ctrl := gomock.NewController(s.T())
	failing := mocks.NewMockPublisher(ctrl)
	failing.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit sink down")).AnyTimes()

	reg := testutil.NewRegistry(s.T(), failing)
	grantor := reg.Shareholder(s.T(), s.ctx, s.tenant, "Fay", "Failing")
	p, err := reg.Proxies.Create(s.ctx, s.tenant, &models.CreateProxyRequest{
		GrantorID:  grantor.ID,
		HolderName: "Chair",
		Type:       models.ProxyTypeStanding,
	})
	s.Require().NoError(err)
	_, err = reg.Proxies.Accept(s.ctx, s.tenant, p.ID)
	s.Require().NoError(err)
}

func (s *ProxyServiceSuite) TestList() {
	s.meetingProxy()
	standing, err := s.reg.Proxies.Create(s.ctx, s.tenant, &models.CreateProxyRequest{
		GrantorID:  s.grantor.ID,
		HolderName: "Board chair",
		Type:       models.ProxyTypeStanding,
	})
	s.Require().NoError(err)

	all, err := s.reg.Proxies.List(s.ctx, s.tenant, models.ProxyFilter{})
	s.Require().NoError(err)
	s.Len(all, 2)

	forMeeting, err := s.reg.Proxies.List(s.ctx, s.tenant, models.ProxyFilter{MeetingID: &s.meeting.ID})
	s.Require().NoError(err)
	s.Len(forMeeting, 1)
	s.NotEqual(standing.ID, forMeeting[0].ID)
}
