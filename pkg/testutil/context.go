package testutil

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	id "sharereg/pkg/domain"
	"sharereg/pkg/requestcontext"
)

// CallerContext is what the auth and request-time middleware would produce
// for an authenticated request at now.
func CallerContext(tenantID id.TenantID, now time.Time, roles ...string) context.Context {
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithUserID(ctx, id.UserID(uuid.New()))
	ctx = requestcontext.WithTenantID(ctx, tenantID)
	return requestcontext.WithRoles(ctx, roles)
}

// WithCaller attaches a caller identity to req, bypassing token checks.
func WithCaller(req *http.Request, tenantID id.TenantID, roles ...string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), id.UserID(uuid.New()))
	ctx = requestcontext.WithTenantID(ctx, tenantID)
	ctx = requestcontext.WithRoles(ctx, roles)
	return req.WithContext(ctx)
}

func NewTenant() id.TenantID {
	return id.TenantID(uuid.New())
}
