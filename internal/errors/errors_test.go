package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npmwatch/npmwatch/internal/core/registry"
	"github.com/npmwatch/npmwatch/internal/core/watch"
)

func TestFromWatchError(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		err     error
		code    string
		status  int
		pkg     string
		message string
	}{
		{
			name:    "LatestTagMissing",
			err:     &watch.ItemError{ItemIndex: 2, PackageName: "left-pad", Err: fmt.Errorf("%w: left-pad", watch.ErrLatestTagNotFound)},
			code:    CodeLatestTagNotFound,
			status:  http.StatusBadGateway,
			pkg:     "left-pad",
			message: "could not find 'latest' tag for package: left-pad",
		},
		{
			name:    "MissingName",
			err:     &watch.ItemError{ItemIndex: 0, Err: watch.ErrMissingPackageName},
			code:    CodeValidationFailed,
			status:  http.StatusBadRequest,
			message: "package name is required",
		},
		{
			name:    "RegistryStatus",
			err:     &watch.ItemError{ItemIndex: 1, PackageName: "nope", Err: &registry.StatusError{Package: "nope", StatusCode: http.StatusNotFound}},
			code:    CodeExternalService,
			status:  http.StatusBadGateway,
			pkg:     "nope",
			message: "registry request for nope failed: 404 Not Found",
		},
		{
			name:   "RateLimited",
			err:    &watch.ItemError{ItemIndex: 0, PackageName: "n8n", Err: fmt.Errorf("fetch n8n: %w", registry.ErrRateLimited)},
			code:   CodeRateLimited,
			status: http.StatusTooManyRequests,
			pkg:    "n8n",
		},
		{
			name:   "UnreadableParameters",
			err:    &watch.ItemError{ItemIndex: 3, Err: fmt.Errorf("invalid packages parameter: bad")},
			code:   CodeValidationFailed,
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envelope := FromWatchError(ctx, tc.err)
			require.NotNil(t, envelope)
			assert.Equal(t, tc.code, envelope.Code)
			assert.Equal(t, tc.status, HTTPStatusFromEnvelope(envelope))
			assert.NotEmpty(t, envelope.CorrelationID)
			if tc.message != "" {
				assert.Equal(t, tc.message, envelope.Message)
			}

			details := ResponseDetails(envelope)
			require.NotNil(t, details)
			assert.Contains(t, details, "item_index")
			if tc.pkg != "" {
				assert.Equal(t, tc.pkg, details["package_name"])
			} else {
				assert.NotContains(t, details, "package_name")
			}
		})
	}
}

func TestEnsureEnvelope(t *testing.T) {
	envelope := EnsureEnvelope(nil)
	assert.Equal(t, CodeInternal, envelope.Code)

	original := NewNotFoundError("missing")
	assert.Same(t, original, EnsureEnvelope(original))

	wrapped := EnsureEnvelope(fmt.Errorf("boom"))
	assert.Equal(t, CodeInternal, wrapped.Code)
	assert.Equal(t, "boom", ResponseDetails(wrapped)["wrapped_error"])
}

func TestRespondWithEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/watch", nil)
	rec := httptest.NewRecorder()

	RespondWithEnvelope(rec, req, NewValidationError("bad body"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeValidationFailed, body.Error.Code)
	assert.Equal(t, "bad body", body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)
}
