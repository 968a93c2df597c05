package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/npmwatch/npmwatch/internal/core"
)

type stubLimiter struct {
	allow    bool
	wait     time.Duration
	recorded []string
	backoff  time.Duration
}

func (s *stubLimiter) Allow(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	return s.allow, s.wait, nil
}

func (s *stubLimiter) Record(ctx context.Context, endpoint string) error {
	s.recorded = append(s.recorded, endpoint)
	return nil
}

func (s *stubLimiter) Record429(ctx context.Context, endpoint string, retryAfter time.Duration) error {
	s.backoff = retryAfter
	return nil
}

func TestNPMClientFetch(t *testing.T) {
	var gotPath, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "example",
			"dist-tags": {"latest": "1.1.0", "next": "2.0.0-rc.1"},
			"versions": {
				"1.0.0": {"version": "1.0.0"},
				"1.1.0": {"version": "1.1.0", "repository": "github:acme/example"},
				"2.0.0-rc.1": {"version": "2.0.0-rc.1", "repository": {"type": "git", "url": "git+https://github.com/acme/example.git"}}
			},
			"time": {"created": "2020-01-01T00:00:00.000Z", "1.1.0": "2021-02-03T04:05:06.000Z"}
		}`))
	}))
	defer server.Close()

	client := &NPMClient{Client: server.Client(), BaseURL: server.URL}

	doc, err := client.Fetch(context.Background(), "example")
	require.NoError(t, err)
	require.Equal(t, "/example", gotPath)
	require.Equal(t, "application/json", gotAccept)
	require.Equal(t, "1.1.0", doc.Latest())
	require.Len(t, doc.VersionList(), 3)
	require.Equal(t, "github:acme/example", doc.Versions["1.1.0"].Repository.URL)
	require.Equal(t, "git", doc.Versions["2.0.0-rc.1"].Repository.Type)

	published := doc.PublishedAt("1.1.0")
	require.NotNil(t, published)
	require.Equal(t, "2021-02-03T04:05:06.000Z", *published)
	require.Nil(t, doc.PublishedAt("1.0.0"))
}

func TestNPMClientFetchScopedPackage(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"name":"@acme/widgets","dist-tags":{"latest":"1.0.0"},"versions":{"1.0.0":{}}}`))
	}))
	defer server.Close()

	client := &NPMClient{Client: server.Client(), BaseURL: server.URL}

	doc, err := client.Fetch(context.Background(), "@acme/widgets")
	require.NoError(t, err)
	require.Equal(t, "/@acme%2Fwidgets", gotPath)
	require.Equal(t, "@acme/widgets", doc.Name)
}

func serveDocument(t *testing.T, body string) *NPMClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return &NPMClient{Client: server.Client(), BaseURL: server.URL}
}

func TestNPMClientFetchUnpublishedDocument(t *testing.T) {
	client := serveDocument(t, `{
		"name": "gone",
		"time": {
			"created": "2019-01-01T00:00:00.000Z",
			"modified": "2020-01-01T00:00:00.000Z",
			"unpublished": {"time": "2020-01-01T00:00:00.000Z", "versions": ["1.0.0"]}
		}
	}`)

	doc, err := client.Fetch(context.Background(), "gone")
	require.NoError(t, err)
	require.Equal(t, "", doc.Latest())
	require.Empty(t, doc.VersionList())
	require.NotContains(t, doc.Time, "unpublished")
	require.Equal(t, "2019-01-01T00:00:00.000Z", doc.Time["created"])
}

func TestNPMClientFetchLegacyManifestShapes(t *testing.T) {
	client := serveDocument(t, `{
		"name": "legacy",
		"dist-tags": {"latest": "1.0.0", "weird": 3},
		"versions": {
			"0.1.0": {"homepage": ["http://a"], "repository": [{"type": "git", "url": "git://example.com/legacy.git"}]},
			"0.2.0": {"homepage": {"url": "http://b"}, "repository": 42},
			"0.3.0": "not an object",
			"1.0.0": {"version": "1.0.0", "homepage": "https://legacy.dev#readme"}
		},
		"time": {"1.0.0": "2022-01-01T00:00:00.000Z", "0.1.0": null}
	}`)

	doc, err := client.Fetch(context.Background(), "legacy")
	require.NoError(t, err)
	require.Equal(t, "1.0.0", doc.Latest())
	require.NotContains(t, doc.DistTags, "weird")
	require.Len(t, doc.VersionList(), 4)

	require.Empty(t, doc.Versions["0.1.0"].Homepage)
	require.NotNil(t, doc.Versions["0.1.0"].Repository)
	require.Equal(t, "git://example.com/legacy.git", doc.Versions["0.1.0"].Repository.URL)
	require.Empty(t, doc.Versions["0.2.0"].Homepage)
	require.Nil(t, doc.Versions["0.2.0"].Repository)
	require.Equal(t, core.VersionManifest{}, doc.Versions["0.3.0"])

	latest := doc.Versions["1.0.0"]
	require.Equal(t, "https://legacy.dev", SourceURL(&latest))
	require.Nil(t, doc.PublishedAt("0.1.0"))
}

func TestNPMClientFetchRejectsNonObjectBody(t *testing.T) {
	client := serveDocument(t, `["not", "a", "packument"]`)

	_, err := client.Fetch(context.Background(), "broken")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode registry document for broken")
}

func TestNPMClientFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not found"}`))
	}))
	defer server.Close()

	client := &NPMClient{Client: server.Client(), BaseURL: server.URL}

	_, err := client.Fetch(context.Background(), "missing")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	require.Equal(t, "missing", statusErr.Package)
	require.Contains(t, err.Error(), "404")
}

func TestNPMClientFetchRateLimited(t *testing.T) {
	t.Run("LimiterRefuses", func(t *testing.T) {
		limiter := &stubLimiter{allow: false, wait: 30 * time.Second}
		client := &NPMClient{BaseURL: "http://127.0.0.1:1", Limiter: limiter}

		_, err := client.Fetch(context.Background(), "example")
		require.ErrorIs(t, err, ErrRateLimited)
		require.Contains(t, err.Error(), "30s")
		require.Empty(t, limiter.recorded)
	})

	t.Run("RegistryReturns429", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "12")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		limiter := &stubLimiter{allow: true}
		client := &NPMClient{Client: server.Client(), BaseURL: server.URL, Limiter: limiter}

		_, err := client.Fetch(context.Background(), "example")
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
		require.Equal(t, 12*time.Second, limiter.backoff)

		parsed, _ := url.Parse(server.URL)
		require.Equal(t, []string{parsed.Hostname()}, limiter.recorded)
	})
}

func TestNPMClientFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := &NPMClient{Client: &http.Client{Timeout: time.Second}, BaseURL: baseURL}

	_, err := client.Fetch(context.Background(), "example")
	require.Error(t, err)
	var statusErr *StatusError
	require.False(t, errors.As(err, &statusErr))
}

func TestNPMClientFetchCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &NPMClient{Client: server.Client(), BaseURL: server.URL}
	_, err := client.Fetch(ctx, "example")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSourceURL(t *testing.T) {
	cases := []struct {
		name     string
		manifest *core.VersionManifest
		want     string
	}{
		{
			name:     "RepositoryWithFragment",
			manifest: &core.VersionManifest{Repository: &core.Repository{URL: "git+https://github.com/x/y.git#readme"}},
			want:     "https://github.com/x/y",
		},
		{
			name:     "PlainRepository",
			manifest: &core.VersionManifest{Repository: &core.Repository{URL: "https://github.com/x/y.git"}},
			want:     "https://github.com/x/y",
		},
		{
			name: "HomepagePreferred",
			manifest: &core.VersionManifest{
				Homepage:   "https://example.dev/#readme",
				Repository: &core.Repository{URL: "git+https://github.com/x/y.git"},
			},
			want: "https://example.dev/",
		},
		{
			name:     "Neither",
			manifest: &core.VersionManifest{},
			want:     core.NotFound,
		},
		{
			name:     "FragmentOnly",
			manifest: &core.VersionManifest{Repository: &core.Repository{URL: "#readme"}},
			want:     core.NotFound,
		},
		{
			name: "Nil",
			want: core.NotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SourceURL(tc.manifest))
		})
	}
}

func TestPackagePage(t *testing.T) {
	require.Equal(t, "https://www.npmjs.com/package/n8n", PackagePage("n8n"))
	require.Equal(t, "https://www.npmjs.com/package/@acme/widgets", PackagePage("@acme/widgets"))
}
