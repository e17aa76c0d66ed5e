package httputil

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ClientOptions configures the secure HTTP client.
type ClientOptions struct {
	// Timeout is the overall request timeout. Default: 30s.
	Timeout time.Duration

	// DialTimeout is the TCP dial timeout. Default: 30s.
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the TLS handshake timeout. Default: 10s.
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout is the time to wait for response headers. Default: 10s.
	ResponseHeaderTimeout time.Duration

	// MaxRedirects is the maximum redirect depth. Default: 10.
	MaxRedirects int

	// EnableCompression enables Accept-Encoding header. Default: false (disabled for security).
	// Keeping compression disabled prevents decompression bomb attacks.
	EnableCompression bool

	// MaxIdleConns is the maximum number of idle connections. Default: 10.
	MaxIdleConns int

	// IdleConnTimeout is how long idle connections stay open. Default: 90s.
	IdleConnTimeout time.Duration

	// TrustedHosts are hosts (host, or host:port) for which the HTTPS-only
	// redirect restriction is relaxed and TLS verification is skipped.
	// Index operators sometimes run plain-HTTP mirrors behind a private
	// network; callers opt a host into that explicitly via --trusted-host.
	TrustedHosts []string
}

func (o ClientOptions) isTrustedHost(host string) bool {
	h := host
	if idx := lastColon(h); idx != -1 {
		h = h[:idx]
	}
	for _, t := range o.TrustedHosts {
		if t == host || t == h {
			return true
		}
	}
	return false
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

// DefaultOptions returns the default client options with security-focused defaults.
func DefaultOptions() ClientOptions {
	return ClientOptions{
		Timeout:               30 * time.Second,
		DialTimeout:           30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		MaxRedirects:          10,
		EnableCompression:     false, // Disabled for security (decompression bomb protection)
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}

// NewSecureClient creates an HTTP client with SSRF protection and security hardening.
//
// Security features:
//   - DisableCompression: true by default - prevents decompression bomb attacks
//   - SSRF protection via redirect validation (blocks private, loopback, link-local IPs)
//   - DNS rebinding protection (resolves hostnames and validates all IPs)
//   - HTTPS-only redirects
//   - Configurable redirect chain limit
func NewSecureClient(opts ClientOptions) *http.Client {
	// Apply defaults for zero values
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 30 * time.Second
	}
	if opts.TLSHandshakeTimeout == 0 {
		opts.TLSHandshakeTimeout = 10 * time.Second
	}
	if opts.ResponseHeaderTimeout == 0 {
		opts.ResponseHeaderTimeout = 10 * time.Second
	}
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 10
	}
	if opts.IdleConnTimeout == 0 {
		opts.IdleConnTimeout = 90 * time.Second
	}

	// DisableCompression is the inverse of EnableCompression.
	// By default (EnableCompression=false), we disable compression for security.
	disableCompression := !opts.EnableCompression

	dialer := &net.Dialer{
		Timeout:   opts.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			DisableCompression:    disableCompression,
			DialContext:           safeDialContext(dialer, opts.TrustedHosts),
			TLSHandshakeTimeout:   opts.TLSHandshakeTimeout,
			ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          opts.MaxIdleConns,
			IdleConnTimeout:       opts.IdleConnTimeout,
			TLSClientConfig:       tlsConfigForTrustedHosts(opts.TrustedHosts),
		},
		CheckRedirect: makeRedirectChecker(opts.MaxRedirects, opts.TrustedHosts),
	}
}

// safeDialContext wraps a dialer so every connection — not just redirect
// hops — is SSRF-checked. CheckRedirect alone only validates the target of
// a redirect; it never runs for the initial request, so a --find-link,
// --index-url, or direct-URL requirement pointing straight at a private or
// link-local address would otherwise connect unchecked. The resolved IP is
// validated and then dialed directly (rather than re-resolving inside
// net.Dialer) so a second DNS answer can't swap in an unchecked address
// between validation and connect (DNS rebinding). A host on trustedHosts
// skips the check entirely, the same carve-out --trusted-host already gets
// from TLS verification: private mirrors and local indexes are a normal,
// intentional use case, not an attack.
func safeDialContext(dialer *net.Dialer, trustedHosts []string) func(ctx context.Context, network, addr string) (net.Conn, error) {
	opts := ClientOptions{TrustedHosts: trustedHosts}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		if opts.isTrustedHost(addr) || opts.isTrustedHost(host) {
			return dialer.DialContext(ctx, network, addr)
		}

		if ip := net.ParseIP(host); ip != nil {
			if err := ValidateIP(ip, host); err != nil {
				return nil, err
			}
			return dialer.DialContext(ctx, network, addr)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", host, err)
		}

		var lastErr error
		for _, ipAddr := range ips {
			if err := ValidateIP(ipAddr.IP, host); err != nil {
				lastErr = err
				continue
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no addresses found for %s", host)
		}
		return nil, lastErr
	}
}

func tlsConfigForTrustedHosts(trusted []string) *tls.Config {
	if len(trusted) == 0 {
		return nil
	}
	set := make(map[string]bool, len(trusted))
	for _, h := range trusted {
		set[h] = true
	}
	// InsecureSkipVerify disables Go's automatic verification so that
	// VerifyConnection becomes the sole authority; it re-implements that
	// same verification for every host except ones in the trusted set,
	// for which it is skipped entirely (the trusted-host feature's point).
	return &tls.Config{
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			if set[cs.ServerName] {
				return nil
			}
			return defaultVerify(cs)
		},
	}
}

func defaultVerify(cs tls.ConnectionState) error {
	opts := x509.VerifyOptions{
		DNSName:       cs.ServerName,
		Intermediates: x509.NewCertPool(),
	}
	for _, cert := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(cert)
	}
	_, err := cs.PeerCertificates[0].Verify(opts)
	return err
}

// makeRedirectChecker creates a redirect validation function. Redirects to
// a host listed in trustedHosts are exempt from the HTTPS-only rule,
// mirroring the --trusted-host CLI flag's effect on TLS verification.
func makeRedirectChecker(maxRedirects int, trustedHosts []string) func(req *http.Request, via []*http.Request) error {
	opts := ClientOptions{TrustedHosts: trustedHosts}
	return func(req *http.Request, via []*http.Request) error {
		// SECURITY: Prevent redirect downgrade attacks (HTTPS -> HTTP),
		// except onto a host the caller has explicitly marked trusted.
		if req.URL.Scheme != "https" && !opts.isTrustedHost(req.URL.Host) {
			return fmt.Errorf("redirect to non-HTTPS URL is not allowed: %s", req.URL)
		}

		// Limit redirect depth
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects")
		}

		// SSRF Protection: Check redirect target
		host := req.URL.Hostname()

		// If hostname is already an IP, check it directly
		if ip := net.ParseIP(host); ip != nil {
			if err := ValidateIP(ip, host); err != nil {
				return err
			}
		} else {
			// Hostname is a domain - resolve DNS and check ALL resulting IPs
			// This prevents DNS rebinding attacks
			ips, err := net.LookupIP(host)
			if err != nil {
				return fmt.Errorf("failed to resolve redirect host %s: %w", host, err)
			}

			for _, ip := range ips {
				if err := ValidateIP(ip, host); err != nil {
					return fmt.Errorf("refusing redirect: %s resolves to blocked IP %s", host, ip)
				}
			}
		}

		return nil
	}
}
