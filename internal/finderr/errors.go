// Package finderr defines the error taxonomy shared across the finder's
// subsystems: a fixed set of kinds (not Go types) so callers can branch on
// "what went wrong" with errors.As rather than matching on concrete types
// from every package.
package finderr

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind is one of the error categories from the error handling design.
type Kind int

const (
	KindInvalidRequirement Kind = iota
	KindNoMatchesFound
	KindNetworkError
	KindHashMismatch
	KindUnpackError
	KindVCSBackendMissing
	KindVCSCommandFailed
	KindUnsupportedScheme
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequirement:
		return "InvalidRequirement"
	case KindNoMatchesFound:
		return "NoMatchesFound"
	case KindNetworkError:
		return "NetworkError"
	case KindHashMismatch:
		return "HashMismatch"
	case KindUnpackError:
		return "UnpackError"
	case KindVCSBackendMissing:
		return "VCSBackendMissing"
	case KindVCSCommandFailed:
		return "VCSCommandFailed"
	case KindUnsupportedScheme:
		return "UnsupportedScheme"
	default:
		return "Unknown"
	}
}

// Error is the structured error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Source  string // the link URL, requirement string, or VCS path involved
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Source)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error.
func New(kind Kind, source, message string, err error) *Error {
	return &Error{Kind: kind, Source: source, Message: message, Err: err}
}

// Is reports whether err is a *Error of the given kind, looking through
// wrapped errors.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// WrapNetwork classifies a transport-layer error into a NetworkError,
// unwrapping through the common causes (context deadlines, DNS failures,
// TLS verification failures, net.OpError, url.Error) to produce an
// actionable message.
func WrapNetwork(err error, source string) *Error {
	if err == nil {
		return nil
	}
	msg := classify(err)
	return New(KindNetworkError, source, msg, err)
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("DNS lookup failed for %s", dnsErr.Name)
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return "TLS certificate verification failed"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("connection error: %s", opErr.Op)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return classify(urlErr.Err)
	}

	return err.Error()
}
