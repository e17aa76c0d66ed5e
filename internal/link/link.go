// Package link models a candidate artifact link: an absolute URL plus the
// metadata a collector can glean from where it found the link (hash
// fragments, data attributes, VCS scheme detection).
package link

import (
	"net/url"
	"strconv"
	"strings"
)

// vcsSchemes maps a VCS "+scheme" prefix to its driver name.
var vcsSchemes = map[string]string{
	"git": "git",
	"hg":  "hg",
	"svn": "svn",
	"bzr": "bzr",
}

// SupportedHashes lists the hash algorithms recognized in a link's hash
// fragment or hashes map, in preference order.
var SupportedHashes = []string{"sha512", "sha384", "sha256", "sha224", "sha1", "md5"}

// Link is an immutable descriptor of a candidate artifact location.
type Link struct {
	URL             string
	ComesFrom       string
	YankReason      *string // nil: not yanked. non-nil (possibly empty): yanked.
	RequiresPython  string
	Hashes          map[string]string // algorithm -> hex digest
	Metadata        *Link             // PEP 658 / core-metadata side channel
	VCS             string            // "", "git", "hg", "svn", "bzr"

	normalized string
}

// New constructs a Link, deriving VCS scheme and normalized-URL identity.
func New(rawURL, comesFrom string) Link {
	l := Link{URL: rawURL, ComesFrom: comesFrom, Hashes: map[string]string{}}
	l.detectVCS()
	l.extractHashFragment()
	l.normalized = normalizeURL(l.strippedURL())
	return l
}

func (l *Link) detectVCS() {
	for scheme, driver := range vcsSchemes {
		prefix := scheme + "+"
		if strings.HasPrefix(l.URL, prefix) {
			l.VCS = driver
			return
		}
	}
}

// strippedURL returns the URL with any VCS "+scheme" prefix removed, for
// normalization purposes (the VCS flag itself carries that information).
func (l Link) strippedURL() string {
	if l.VCS == "" {
		return l.URL
	}
	idx := strings.Index(l.URL, "+")
	return l.URL[idx+1:]
}

func (l *Link) extractHashFragment() {
	u, err := url.Parse(l.strippedURL())
	if err != nil || u.Fragment == "" {
		return
	}
	for _, kv := range strings.Split(u.Fragment, "&") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		algo, hex := strings.ToLower(parts[0]), parts[1]
		if isSupportedHash(algo) {
			l.Hashes[algo] = hex
		}
	}
}

func isSupportedHash(algo string) bool {
	for _, h := range SupportedHashes {
		if h == algo {
			return true
		}
	}
	return false
}

// HashName returns the preferred hash algorithm present on the link, or ""
// if none.
func (l Link) HashName() string {
	for _, h := range SupportedHashes {
		if _, ok := l.Hashes[h]; ok {
			return h
		}
	}
	return ""
}

// Hash returns the hex digest for the preferred available algorithm.
func (l Link) Hash() string {
	name := l.HashName()
	if name == "" {
		return ""
	}
	return l.Hashes[name]
}

// IsYanked reports whether the link was marked yanked by its index.
func (l Link) IsYanked() bool { return l.YankReason != nil }

// IsWheel reports whether the link's basename ends in ".whl".
func (l Link) IsWheel() bool {
	return strings.HasSuffix(strings.ToLower(l.Filename()), ".whl")
}

// IsVCS reports whether the link carries a VCS scheme.
func (l Link) IsVCS() bool { return l.VCS != "" }

// IsFile reports whether the link uses the file:// scheme.
func (l Link) IsFile() bool {
	u, err := url.Parse(l.strippedURL())
	if err != nil {
		return false
	}
	return u.Scheme == "file"
}

// HasMetadata reports whether a PEP 658 metadata side-channel is available.
func (l Link) HasMetadata() bool { return l.Metadata != nil }

// Filename returns the basename of the link's path component.
func (l Link) Filename() string {
	u, err := url.Parse(l.strippedURL())
	if err != nil {
		return l.URL
	}
	parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	return parts[len(parts)-1]
}

// Normalized returns the identity used for deduplication and equality:
// lowercased scheme and host, default ports stripped, fragment preserved
// only for its hash component.
func (l Link) Normalized() string { return l.normalized }

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	host = stripDefaultPort(u.Scheme, host)
	u.Host = host
	u.User = nil // auth never participates in link identity
	// Keep only the fragment's hash component, dropping anything else, so
	// links that differ only by a tracking fragment still dedupe.
	if u.Fragment != "" {
		kept := []string{}
		for _, kv := range strings.Split(u.Fragment, "&") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 && isSupportedHash(strings.ToLower(parts[0])) {
				kept = append(kept, strings.ToLower(parts[0])+"="+parts[1])
			}
		}
		u.Fragment = strings.Join(kept, "&")
	}
	return u.String()
}

func stripDefaultPort(scheme, host string) string {
	idx := strings.LastIndex(host, ":")
	if idx == -1 {
		return host
	}
	portStr := host[idx+1:]
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return host[:idx]
	}
	return host
}

// Equal implements the spec's "links compare equal by normalized URL" rule.
func (l Link) Equal(other Link) bool { return l.Normalized() == other.Normalized() }

// Redacted returns the URL with any embedded credentials masked, safe for
// logging and error messages.
func (l Link) Redacted() string {
	u, err := url.Parse(l.strippedURL())
	if err != nil || u.User == nil {
		return l.URL
	}
	u.User = url.UserPassword("***", "***")
	redacted := u.String()
	if l.VCS != "" {
		idx := strings.Index(l.URL, "+")
		return l.URL[:idx+1] + redacted
	}
	return redacted
}
