package fetch

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Credential is a resolved username/password pair.
type Credential struct {
	Username string
	Password string
}

// KeyringProvider is the minimal capability this module needs from an OS
// keyring. Implementations that cannot reach a real keyring (most CI and
// container environments) should return ErrNoKeyring so the chain falls
// through to the next source rather than failing the whole request.
type KeyringProvider interface {
	Get(service, username string) (string, error)
}

// ErrNoKeyring indicates no keyring backend is available on this system.
var ErrNoKeyring = fmt.Errorf("no keyring backend available")

type noopKeyring struct{}

func (noopKeyring) Get(service, username string) (string, error) { return "", ErrNoKeyring }

// Auth implements the credential resolution chain from auth.py: URL
// userinfo first, then index-URL-matched credentials (longest netloc+path
// match), then .netrc, then keyring, then an interactive terminal prompt
// when stdin is a TTY. Resolved credentials are cached per netloc so a
// collector issuing many requests against the same index only resolves
// once.
type Auth struct {
	IndexCredentials map[string]Credential // netloc+path prefix -> credential
	NetrcPath        string
	Keyring          KeyringProvider
	Interactive      bool

	mu    sync.Mutex
	cache map[string]Credential
}

// NewAuth constructs an Auth chain. netrcPath may be empty to use
// ~/.netrc; keyring may be nil to disable that step.
func NewAuth(indexCreds map[string]Credential, netrcPath string, keyring KeyringProvider, interactive bool) *Auth {
	if keyring == nil {
		keyring = noopKeyring{}
	}
	return &Auth{
		IndexCredentials: indexCreds,
		NetrcPath:        netrcPath,
		Keyring:          keyring,
		Interactive:      interactive,
		cache:            map[string]Credential{},
	}
}

// apply resolves credentials for u and returns a URL with them embedded as
// userinfo, or u unchanged if none were found.
func (a *Auth) apply(ctx context.Context, u *url.URL) *url.URL {
	if u.User != nil && u.User.Username() != "" {
		return u // URL-embedded creds take precedence over everything else
	}

	cred, ok := a.resolve(u)
	if !ok {
		return u
	}

	out := *u
	out.User = url.UserPassword(cred.Username, cred.Password)
	return &out
}

func (a *Auth) resolve(u *url.URL) (Credential, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.cache[u.Host]; ok {
		return c, true
	}

	if c, ok := a.fromIndexURLs(u); ok {
		a.cache[u.Host] = c
		return c, true
	}

	if c, ok := a.fromNetrc(u.Hostname()); ok {
		a.cache[u.Host] = c
		return c, true
	}

	if pw, err := a.Keyring.Get(u.Host, ""); err == nil && pw != "" {
		c := Credential{Password: pw}
		a.cache[u.Host] = c
		return c, true
	}

	if a.Interactive && term.IsTerminal(int(os.Stdin.Fd())) {
		if c, ok := a.promptForCredentials(u); ok {
			a.cache[u.Host] = c
			return c, true
		}
	}

	return Credential{}, false
}

// fromIndexURLs matches u against the configured index URLs by netloc and
// longest common path prefix, mirroring MultiDomainBasicAuth's index-URL
// matching.
func (a *Auth) fromIndexURLs(u *url.URL) (Credential, bool) {
	var best string
	var bestCred Credential
	for indexURL, cred := range a.IndexCredentials {
		iu, err := url.Parse(indexURL)
		if err != nil || iu.Host != u.Host {
			continue
		}
		if strings.HasPrefix(u.Path, iu.Path) && len(iu.Path) >= len(best) {
			best = iu.Path
			bestCred = cred
		}
	}
	if best == "" && len(bestCred.Username) == 0 && len(bestCred.Password) == 0 {
		return Credential{}, false
	}
	return bestCred, true
}

// fromNetrc reads ~/.netrc (or a.NetrcPath) for a matching machine entry.
func (a *Auth) fromNetrc(host string) (Credential, bool) {
	path := a.NetrcPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Credential{}, false
		}
		path = filepath.Join(home, ".netrc")
	}

	f, err := os.Open(path)
	if err != nil {
		return Credential{}, false
	}
	defer f.Close()

	var cred Credential
	var inMachine bool
	scanner := bufio.NewScanner(f)
	fields := []string{}
	for scanner.Scan() {
		fields = append(fields, strings.Fields(scanner.Text())...)
	}
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "machine":
			if i+1 < len(fields) {
				inMachine = fields[i+1] == host
				i++
			}
		case "login":
			if inMachine && i+1 < len(fields) {
				cred.Username = fields[i+1]
				i++
			}
		case "password":
			if inMachine && i+1 < len(fields) {
				cred.Password = fields[i+1]
				i++
			}
		}
	}
	if cred.Username == "" && cred.Password == "" {
		return Credential{}, false
	}
	return cred, true
}

// promptForCredentials asks the user for a username and password on the
// controlling terminal, reading the password without echo via
// golang.org/x/term, mirroring the original implementation's use of
// getpass for interactive credential entry.
func (a *Auth) promptForCredentials(u *url.URL) (Credential, bool) {
	fmt.Fprintf(os.Stderr, "Username for %s: ", u.Host)
	reader := bufio.NewReader(os.Stdin)
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)

	fmt.Fprintf(os.Stderr, "Password for %s: ", u.Host)
	fd := int(os.Stdin.Fd())
	pwBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return Credential{}, false
	}

	return Credential{Username: username, Password: string(pwBytes)}, true
}
