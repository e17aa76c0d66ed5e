package finder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frostming/unearth/internal/fetch"
	"github.com/frostming/unearth/internal/requirement"
	"github.com/frostming/unearth/internal/wheel"
)

// serverHost extracts the host:port of an httptest server, for tests that
// need to mark it trusted the way --trusted-host would for a real private
// index mirror.
func serverHost(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Host
}

func TestFindBestMatch_DirectURLBypassesCollection(t *testing.T) {
	req, err := requirement.Parse("pip @ https://example.com/pip-23.0-py3-none-any.whl#sha256=aaaa")
	require.NoError(t, err)

	f := New(fetch.New(fetch.Options{}), Options{}, nil)
	bm, err := f.FindBestMatch(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, bm.Best)
}

func TestFindBestMatch_CollectsFromIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<a href="flask-2.1.2-py3-none-any.whl">flask-2.1.2-py3-none-any.whl</a>`))
	}))
	defer server.Close()

	req, err := requirement.Parse("flask")
	require.NoError(t, err)

	f := New(fetch.New(fetch.Options{TrustedHosts: []string{serverHost(t, server.URL)}}), Options{
		IndexURLs: []string{server.URL + "/simple/"},
		Target:    wheel.Target{MajorMinor: [2]int{3, 10}, ABI: "cp310", Platforms: []string{"any"}},
	}, nil)

	bm, err := f.FindBestMatch(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, bm.Best)
	require.Equal(t, "2.1.2", bm.Best.Version.String())
}

// TestFindAllPackages_DirectURLBypassesCollection exercises the actually-
// wired cmd/unearth -> FindAllPackages path (not FindBestMatch) for a
// direct-URL requirement: no index should be queried at all, and the
// returned candidate must carry the exact URL from the requirement.
func TestFindAllPackages_DirectURLBypassesCollection(t *testing.T) {
	var queried atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queried.Store(true)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	req, err := requirement.Parse("pip @ https://example.com/pip-23.0.zip#sha256=aaaa")
	require.NoError(t, err)

	f := New(fetch.New(fetch.Options{}), Options{IndexURLs: []string{server.URL + "/simple/"}}, nil)
	candidates, rejections, err := f.FindAllPackages(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, rejections)
	require.Len(t, candidates, 1)
	require.Equal(t, "https://example.com/pip-23.0.zip#sha256=aaaa", candidates[0].Link.URL)
	require.False(t, candidates[0].Link.IsVCS())
	require.False(t, queried.Load(), "FindAllPackages must not query the index for a direct URL requirement")
}

// TestFindAllPackages_VCSRequirementCarriesSchemeAndRef exercises the same
// wired path for a "git+" requirement, confirming the scheme prefix and
// pinned ref requirement.Parse strips off are reattached before the Link
// is built, so IsVCS and the pinned revision both survive.
func TestFindAllPackages_VCSRequirementCarriesSchemeAndRef(t *testing.T) {
	var queried atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queried.Store(true)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	req, err := requirement.Parse("pip @ git+https://github.com/pypa/pip@3.2.1")
	require.NoError(t, err)

	f := New(fetch.New(fetch.Options{}), Options{IndexURLs: []string{server.URL + "/simple/"}}, nil)
	candidates, rejections, err := f.FindAllPackages(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, rejections)
	require.Len(t, candidates, 1)

	c := candidates[0]
	require.True(t, c.Link.IsVCS())
	require.Equal(t, "git", c.Link.VCS)
	require.Equal(t, "git+https://github.com/pypa/pip@3.2.1", c.Link.URL)
	require.False(t, queried.Load(), "FindAllPackages must not query the index for a VCS requirement")
}
