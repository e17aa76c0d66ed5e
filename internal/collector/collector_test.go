package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostming/unearth/internal/fetch"
)

type testSession struct {
	client *http.Client
}

func (s *testSession) Get(ctx context.Context, rawURL string, headers map[string]string) (*fetch.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	return fetch.NewResponse(resp.StatusCode, resp.Header, resp.Request.URL.String(), resp.Body), nil
}

func TestParseHTMLExtractsAttributes(t *testing.T) {
	body := `<!DOCTYPE html><html><body>
<a href="Flask-2.1.2-py3-none-any.whl#sha256=fad5">Flask-2.1.2</a>
<a href="Flask-1.1.4-py2.py3-none-any.whl" data-yanked="broken release">Flask-1.1.4</a>
</body></html>`
	links, err := ParseHTML(body, "https://pypi.org/simple/flask/")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "fad5", links[0].Hashes["sha256"])
	assert.True(t, links[1].IsYanked())
	assert.Equal(t, "broken release", *links[1].YankReason)
}

func TestParseHTMLHonorsBaseHref(t *testing.T) {
	body := `<html><head><base href="https://files.pythonhosted.org/"></head><body>
<a href="flask-2.1.2.tar.gz">flask</a>
</body></html>`
	links, err := ParseHTML(body, "https://pypi.org/simple/flask/")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://files.pythonhosted.org/flask-2.1.2.tar.gz", links[0].URL)
}

func TestParseJSONBasic(t *testing.T) {
	body := `{
		"name": "flask",
		"files": [
			{"url": "https://example.com/Flask-2.1.2-py3-none-any.whl", "hashes": {"sha256": "fad5"}, "requires-python": ">=3.7", "yanked": false},
			{"url": "https://example.com/Flask-1.1.4.tar.gz", "hashes": {}, "yanked": "security issue"}
		]
	}`
	links, err := ParseJSON([]byte(body), "https://example.com/simple/flask/")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, ">=3.7", links[0].RequiresPython)
	assert.True(t, links[1].IsYanked())
	assert.Equal(t, "security issue", *links[1].YankReason)
}

func TestCollectHTMLIndexOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<a href="pkg-1.0.tar.gz">pkg-1.0</a>`))
	}))
	defer server.Close()

	c := New(&testSession{client: server.Client()}, nil)
	links, errs := c.Collect(context.Background(), "pkg", []Source{{Kind: KindIndex, Location: server.URL}})
	assert.Empty(t, errs)
	require.Len(t, links, 1)
}

func TestCollectDeduplicatesByNormalizedURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<a href="http://example.com:80/pkg-1.0.tar.gz">a</a><a href="http://example.com/pkg-1.0.tar.gz">b</a>`))
	}))
	defer server.Close()

	c := New(&testSession{client: server.Client()}, nil)
	links, _ := c.Collect(context.Background(), "pkg", []Source{{Kind: KindIndex, Location: server.URL}})
	assert.Len(t, links, 1)
}

func TestCollectAllSourcesFailReturnsError(t *testing.T) {
	c := New(&testSession{client: http.DefaultClient}, nil)
	_, errs := c.Collect(context.Background(), "pkg", []Source{{Kind: KindIndex, Location: "http://127.0.0.1:1/nope"}})
	assert.NotEmpty(t, errs)
}
