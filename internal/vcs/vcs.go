// Package vcs drives git, hg, svn, and bzr by shelling out, implementing
// the clone/checkout/resolve-revision capability set from §4.6.
package vcs

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/frostming/unearth/internal/finderr"
)

// Driver is the capability set every backend implements.
type Driver interface {
	// Name is the backend's scheme identifier ("git", "hg", "svn", "bzr").
	Name() string
	// Clone fetches repoURL (VCS-scheme-stripped, e.g. without "git+") into
	// destDir, checking out rev if non-empty.
	Clone(ctx context.Context, repoURL, rev, destDir string) error
	// ResolveRevision returns the concrete commit/revision identifier
	// destDir is currently checked out to.
	ResolveRevision(ctx context.Context, destDir string) (string, error)
	// binary is the executable name Get probes for on PATH.
	binary() string
}

// drivers maps a VCS scheme to its backend, mirroring link.vcsSchemes.
var drivers = map[string]Driver{
	"git": gitDriver{},
	"hg":  hgDriver{},
	"svn": svnDriver{},
	"bzr": bzrDriver{},
}

// Get returns the driver for name, or an error if name is not a supported
// scheme or the binary it shells out to isn't on PATH.
func Get(name string) (Driver, error) {
	d, ok := drivers[name]
	if !ok {
		return nil, finderr.New(finderr.KindUnsupportedScheme, name, "unsupported VCS scheme", nil)
	}
	if _, err := exec.LookPath(d.binary()); err != nil {
		return nil, finderr.New(finderr.KindVCSBackendMissing, name, fmt.Sprintf("%q not found on PATH", d.binary()), err)
	}
	return d, nil
}

// ParseVCSURL splits a "vcs+transport://host/path@rev#fragment" requirement
// URL into the underlying transport URL and revision, per §4.6's URL
// grammar. The "@rev" component is only recognized after the host's
// authority section, so "git+ssh://git@host/repo.git@v1.0" resolves rev as
// "v1.0", not "git".
func ParseVCSURL(vcsScheme, rawURL string) (repoURL, rev string, err error) {
	prefix := vcsScheme + "+"
	trimmed := rawURL
	if strings.HasPrefix(rawURL, prefix) {
		trimmed = rawURL[len(prefix):]
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("malformed VCS URL: %w", err)
	}
	u.Fragment = ""

	path := u.Path
	if idx := strings.LastIndex(path, "@"); idx != -1 {
		rev = path[idx+1:]
		u.Path = path[:idx]
	}
	return u.String(), rev, nil
}

// redactCredentials masks a userinfo component embedded in a VCS transport
// URL, for safe inclusion in logs and error messages.
func redactCredentials(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	u.User = url.UserPassword("***", "***")
	return u.String()
}

// runCommand wraps exec.CommandContext with the redaction and structured
// error wiring common to every driver.
func runCommand(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, finderr.New(finderr.KindVCSCommandFailed, redactArgs(name, args),
			strings.TrimSpace(string(out)), err)
	}
	return out, nil
}

func redactArgs(name string, args []string) string {
	redacted := make([]string, len(args))
	for i, a := range args {
		if strings.Contains(a, "://") {
			redacted[i] = redactCredentials(a)
		} else {
			redacted[i] = a
		}
	}
	return name + " " + strings.Join(redacted, " ")
}
