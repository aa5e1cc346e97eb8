package httptransport_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	ledgermodels "sharereg/internal/ledger/models"
	"sharereg/internal/platform/metrics"
	"sharereg/internal/platform/middleware"
	transfermodels "sharereg/internal/transfer/models"
	httptransport "sharereg/internal/transport/http"
	"sharereg/internal/voting"
	"sharereg/internal/voting/dashboard"
	id "sharereg/pkg/domain"
	"sharereg/pkg/testutil"
)

const signingKey = "router-test-signing-key"

type RouterSuite struct {
	suite.Suite
	reg    *testutil.Registry
	router http.Handler
	tenant id.TenantID
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.reg = testutil.NewRegistry(s.T(), nil)
	s.tenant = testutil.NewTenant()

	reg := prometheus.NewRegistry()
	s.router = httptransport.NewRouter(httptransport.Deps{
		Ledger:      s.reg.Ledger,
		Transfers:   s.reg.Transfers,
		Meetings:    s.reg.Meetings,
		Proxies:     s.reg.Proxies,
		Settings:    s.reg.Settings,
		Dashboard:   s.reg.Dashboard,
		Verifier:    middleware.NewTokenVerifier(signingKey),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Metrics:     metrics.Handler(reg),
	})
}

func (s *RouterSuite) token(tenant id.TenantID, expiresAt time.Time, roles ...string) string {
	claims := middleware.Claims{
		UserID:   uuid.NewString(),
		TenantID: uuid.UUID(tenant).String(),
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	s.Require().NoError(err)
	return signed
}

func (s *RouterSuite) do(method, path string, body any, roles ...string) *httptest.ResponseRecorder {
	return s.doAs(s.tenant, method, path, body, roles...)
}

func (s *RouterSuite) doAs(tenant id.TenantID, method, path string, body any, roles ...string) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set("Authorization", "Bearer "+s.token(tenant, time.Now().Add(time.Hour), roles...))
	return testutil.DoRequest(s.router, req)
}

func (s *RouterSuite) createShareholder(first string) *ledgermodels.Shareholder {
	rr := s.do(http.MethodPost, "/api/v1/shareholders", map[string]any{
		"type":       "INDIVIDUAL",
		"first_name": first,
		"last_name":  "Tester",
	}, middleware.RoleClerk)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[ledgermodels.Shareholder](s.T(), rr)
}

func (s *RouterSuite) createLot(owner id.ShareholderID, shares int64) *ledgermodels.ShareLot {
	rr := s.do(http.MethodPost, "/api/v1/lots", map[string]any{
		"owner_id": owner,
		"shares":   shares,
	}, middleware.RoleRegistrar)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[ledgermodels.ShareLot](s.T(), rr)
}

func (s *RouterSuite) TestAuthentication() {
	s.Run("health is public", func() {
		rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("missing token", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/shareholders", nil)
		testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusUnauthorized, "unauthorized")
	})

	s.Run("expired token", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/shareholders", nil)
		req.Header.Set("Authorization", "Bearer "+s.token(s.tenant, time.Now().Add(-time.Minute), middleware.RoleAdmin))
		testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusUnauthorized, "unauthorized")
	})

	s.Run("token signed with another key", func() {
		claims := middleware.Claims{UserID: uuid.NewString(), TenantID: uuid.NewString()}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-key"))
		s.Require().NoError(err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/shareholders", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusUnauthorized, "unauthorized")
	})
}

func (s *RouterSuite) TestRoles() {
	s.Run("viewer reads", func() {
		rr := s.do(http.MethodGet, "/api/v1/shareholders", nil, middleware.RoleViewer)
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("viewer cannot write", func() {
		rr := s.do(http.MethodPost, "/api/v1/shareholders", map[string]any{"type": "ENTITY", "entity_name": "Acme"}, middleware.RoleViewer)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("settings need admin", func() {
		body := map[string]any{"excludeDisputedFromVoting": true}
		rr := s.do(http.MethodPut, "/api/v1/settings/voting", body, middleware.RoleRegistrar)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")

		rr = s.do(http.MethodPut, "/api/v1/settings/voting", body, middleware.RoleAdmin)
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		rules := testutil.UnmarshalResponse[voting.Rules](s.T(), rr)
		s.True(rules.ExcludeDisputedFromVoting)
	})
}

func (s *RouterSuite) TestErrorMapping() {
	s.Run("malformed id", func() {
		rr := s.do(http.MethodGet, "/api/v1/shareholders/not-a-uuid", nil, middleware.RoleViewer)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("unknown id", func() {
		rr := s.do(http.MethodGet, "/api/v1/shareholders/"+uuid.NewString(), nil, middleware.RoleViewer)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed body", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/shareholders", strings.NewReader("{"))
		req.Header.Set("Authorization", "Bearer "+s.token(s.tenant, time.Now().Add(time.Hour), middleware.RoleClerk))
		testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest, "bad_request")
	})

	s.Run("validation", func() {
		rr := s.do(http.MethodPost, "/api/v1/shareholders", map[string]any{"type": "INDIVIDUAL"}, middleware.RoleClerk)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("other tenants are invisible", func() {
		sh := s.createShareholder("Private")
		rr := s.doAs(testutil.NewTenant(), http.MethodGet, "/api/v1/shareholders/"+sh.ID.String(), nil, middleware.RoleAdmin)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *RouterSuite) TestLedgerFlow() {
	sh := s.createShareholder("Lena")

	rr := s.do(http.MethodGet, "/api/v1/lots/next-certificate", nil, middleware.RoleViewer)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("1000", (*testutil.UnmarshalResponse[map[string]string](s.T(), rr))["certificate_number"])

	lot := s.createLot(sh.ID, 250)
	s.Equal("1000", lot.CertificateNumber)

	rr = s.do(http.MethodGet, "/api/v1/shareholders/"+sh.ID.String(), nil, middleware.RoleViewer)
	s.Require().Equal(http.StatusOK, rr.Code)
	detail := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.EqualValues(250, (*detail)["active_shares"])

	rr = s.do(http.MethodDelete, "/api/v1/shareholders/"+sh.ID.String(), nil, middleware.RoleRegistrar)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}

func (s *RouterSuite) TestTransferFlow() {
	seller := s.createShareholder("Seller")
	buyer := s.createShareholder("Buyer")
	lot := s.createLot(seller.ID, 100)

	rr := s.do(http.MethodPost, "/api/v1/transfers", map[string]any{
		"from_owner_id": seller.ID,
		"to_owner_id":   buyer.ID,
		"lines":         []map[string]any{{"lot_id": lot.ID, "shares_taken": 25}},
	}, middleware.RoleClerk)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	t := testutil.UnmarshalResponse[transfermodels.Transfer](s.T(), rr)

	path := "/api/v1/transfers/" + t.ID.String() + "/post"
	rr = s.do(http.MethodPost, path, nil, middleware.RoleRegistrar)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	posting := testutil.UnmarshalResponse[transfermodels.Posting](s.T(), rr)
	s.Require().Len(posting.IssuedLots, 1)
	s.Equal(int64(25), posting.IssuedLots[0].Shares)

	rr = s.do(http.MethodPost, path, nil, middleware.RoleRegistrar)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}

func (s *RouterSuite) TestDashboard() {
	a := s.createShareholder("Ann")
	b := s.createShareholder("Ben")
	s.createLot(a.ID, 2)
	s.createLot(b.ID, 1)

	rr := s.do(http.MethodGet, "/api/v1/dashboard?bloc="+a.ID.String(), nil, middleware.RoleViewer)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	summary := testutil.UnmarshalResponse[dashboard.Summary](s.T(), rr)
	s.Equal(int64(3), summary.ActiveVotingShares)
	s.Equal(int64(2), summary.BlocBuilder.Shares)
	s.InDelta(66.67, summary.BlocBuilder.Percent, 1e-9)

	rr = s.do(http.MethodGet, "/api/v1/dashboard?bloc=nope", nil, middleware.RoleViewer)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *RouterSuite) TestMetricsEndpoint() {
	s.do(http.MethodGet, "/api/v1/shareholders", nil, middleware.RoleViewer)

	rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "sharereg_http_request_duration_seconds")
}

func (s *RouterSuite) TestRequestIDEcho() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := testutil.DoRequest(s.router, req)
	s.Equal("req-123", rr.Header().Get("X-Request-ID"))
}
