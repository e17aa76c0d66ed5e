// Package fetch implements the injected HTTP session contract from §6: GET
// with redirect following, file:// scheme support, URL-userinfo and
// index-scoped credential resolution, retry with backoff, and a TLS
// verification toggle per trusted host.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/frostming/unearth/internal/finderr"
	"github.com/frostming/unearth/internal/httputil"
	"github.com/frostming/unearth/internal/log"
)

// Response is the minimal response surface the collector and downloader
// need: status, headers, and streaming/buffered body access.
type Response struct {
	StatusCode int
	Header     http.Header
	URL        string // final URL after redirects

	body io.ReadCloser
}

// Text reads the entire body as a string. It closes the body.
func (r *Response) Text() (string, error) {
	defer r.body.Close()
	b, err := io.ReadAll(r.body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Body returns the raw, still-open body reader for streaming consumption.
// The caller is responsible for closing it.
func (r *Response) Body() io.ReadCloser { return r.body }

// NewResponse constructs a Response directly, for Session implementations
// defined outside this package (test doubles, alternative transports).
func NewResponse(statusCode int, header http.Header, url string, body io.ReadCloser) *Response {
	return &Response{StatusCode: statusCode, Header: header, URL: url, body: body}
}

// Session is the capability this module requires from its HTTP transport:
// get and close. It is expressed as an interface so callers can inject
// caching, proxying, or test doubles without this module depending on a
// concrete client type.
type Session interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error)
	Close() error
}

// Options configures a default Session implementation.
type Options struct {
	TrustedHosts []string
	Timeout      time.Duration
	RetryMax     int
	Auth         *Auth
	Logger       log.Logger
}

type session struct {
	client *retryablehttp.Client
	auth   *Auth
	logger log.Logger
}

// New builds the default Session: a secure client (internal/httputil)
// wrapped in retryablehttp for exponential-backoff retry on connection
// errors and 5xx responses, with file:// and credential handling layered
// on top.
func New(opts Options) Session {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	secure := httputil.NewSecureClient(httputil.ClientOptions{
		Timeout:      opts.Timeout,
		TrustedHosts: opts.TrustedHosts,
	})

	rc := retryablehttp.NewClient()
	rc.HTTPClient = secure
	rc.RetryMax = opts.RetryMax
	rc.Logger = nil // silence retryablehttp's own logging; we log via opts.Logger
	rc.CheckRetry = retryablehttp.DefaultRetryPolicy

	return &session{client: rc, auth: opts.Auth, logger: opts.Logger}
}

func (s *session) Close() error {
	s.client.HTTPClient.CloseIdleConnections()
	return nil
}

func (s *session) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, finderr.New(finderr.KindUnsupportedScheme, rawURL, "malformed URL", err)
	}

	if u.Scheme == "file" {
		return s.getFile(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, finderr.New(finderr.KindUnsupportedScheme, rawURL, fmt.Sprintf("unsupported scheme %q", u.Scheme), nil)
	}

	if s.auth != nil {
		u = s.auth.apply(ctx, u)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, finderr.WrapNetwork(err, rawURL)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, finderr.WrapNetwork(err, rawURL)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        resp.Request.URL.String(),
		body:       resp.Body,
	}, nil
}

func (s *session) getFile(u *url.URL) (*Response, error) {
	path := u.Path
	f, err := os.Open(path)
	if err != nil {
		return nil, finderr.New(finderr.KindNetworkError, u.String(), "failed to read local file", err)
	}
	return &Response{
		StatusCode: 200,
		Header:     http.Header{},
		URL:        u.String(),
		body:       f,
	}, nil
}

// IsRetryableStatus reports whether a response status code marks a
// transient failure worth retrying: 429 or any 5xx. Other 4xx codes are
// not retryable.
func IsRetryableStatus(code int) bool {
	return code == 429 || code >= 500
}

// JoinIndexPath builds the PEP 503 simple-index page URL for a project name
// against a base index URL, preserving the trailing slash the original
// implementation calls out as load-bearing.
func JoinIndexPath(base, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.Path += name + "/"
	return u.String(), nil
}
