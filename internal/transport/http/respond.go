package httptransport

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
	"sharereg/pkg/platform/httputil"
	"sharereg/pkg/requestcontext"
)

// fail logs and writes err. Client errors are warnings; anything that maps to
// a 5xx is logged as an error with the cause.
func fail(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := httputil.StatusFor(dErrors.CodeOf(err))
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		logger.WarnContext(ctx, "request rejected",
			"error", err,
			"status", status,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

func tenantOf(r *http.Request) id.TenantID {
	return requestcontext.TenantID(r.Context())
}

// pathID parses a chi URL parameter into a typed ID.
func pathID[T any](r *http.Request, name string, parse func(string) (T, error)) (T, error) {
	return parse(chi.URLParam(r, name))
}

// queryID parses an optional query parameter. Absent yields nil.
func queryID[T any](r *http.Request, name string, parse func(string) (T, error)) (*T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := parse(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// decode reads a JSON body; type mismatches and unknown fields are bad
// requests.
func decode(r *http.Request, v any) error {
	return httputil.DecodeJSON(r, v)
}
