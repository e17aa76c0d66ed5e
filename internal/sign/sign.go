// Package sign verifies detached PGP signatures on downloaded artifacts.
// This is a supplemental capability, not a required part of the finder's
// core contract: it is off by default and only engaged when a caller
// supplies a fingerprint to verify against.
package sign

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

// MaxKeySize bounds a fetched public key to guard against resource
// exhaustion from a malicious or misconfigured key server.
const MaxKeySize = 100 * 1024

// MaxSignatureSize bounds a fetched detached-signature file.
const MaxSignatureSize = 10 * 1024

var fingerprintPattern = regexp.MustCompile(`^[0-9A-Fa-f]{40}$`)

// ParseFingerprint normalizes a fingerprint (removing spaces, upper-casing)
// and validates it is 40 hex characters.
func ParseFingerprint(fp string) (string, error) {
	fp = strings.ToUpper(strings.ReplaceAll(fp, " ", ""))
	if !fingerprintPattern.MatchString(fp) {
		return "", fmt.Errorf("fingerprint must be 40 hex characters, got %q", fp)
	}
	if _, err := hex.DecodeString(fp); err != nil {
		return "", fmt.Errorf("fingerprint contains invalid hex characters: %w", err)
	}
	return fp, nil
}

// FormatFingerprint renders a fingerprint in the conventional groups-of-4
// layout for display in verification logs.
func FormatFingerprint(fp string) string {
	fp = strings.ToUpper(strings.ReplaceAll(fp, " ", ""))
	if len(fp) != 40 {
		return fp
	}
	parts := make([]string, 0, 10)
	for i := 0; i < 40; i += 4 {
		parts = append(parts, fp[i:i+4])
	}
	return strings.Join(parts, " ")
}

// Getter fetches a URL and returns its body, bounded by maxBytes. KeyCache
// depends only on this function type; SessionGetter builds one from a
// fetch.Session.
type Getter func(ctx context.Context, url string, maxBytes int64) ([]byte, error)

// KeyCache loads and persists armored PGP public keys by fingerprint,
// avoiding a refetch of the same signing key across invocations.
type KeyCache struct {
	dir string
	get Getter
}

// NewKeyCache constructs a KeyCache rooted at dir, using get to fetch keys
// not already cached.
func NewKeyCache(dir string, get Getter) *KeyCache {
	return &KeyCache{dir: dir, get: get}
}

// Get returns the public key for fingerprint, from cache if present,
// otherwise fetched from keyURL and validated against fingerprint before
// being cached and returned.
func (c *KeyCache) Get(ctx context.Context, fingerprint, keyURL string) (*crypto.Key, error) {
	fingerprint = strings.ToUpper(fingerprint)

	if key, err := c.loadCached(fingerprint); err == nil {
		return key, nil
	}

	data, err := c.get(ctx, keyURL, MaxKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signing key: %w", err)
	}
	if int64(len(data)) >= MaxKeySize {
		return nil, fmt.Errorf("key exceeds maximum size of %d bytes", MaxKeySize)
	}

	key, err := crypto.NewKeyFromArmored(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PGP key: %w", err)
	}

	got := strings.ToUpper(key.GetFingerprint())
	if got != fingerprint {
		return nil, fmt.Errorf("key fingerprint mismatch: expected %s, got %s", fingerprint, got)
	}

	if err := c.save(fingerprint, data); err != nil {
		// The key is still usable; caching is an optimization, not a
		// correctness requirement.
		return key, nil
	}
	return key, nil
}

func (c *KeyCache) cachePath(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+".asc")
}

func (c *KeyCache) loadCached(fingerprint string) (*crypto.Key, error) {
	data, err := os.ReadFile(c.cachePath(fingerprint))
	if err != nil {
		return nil, err
	}
	key, err := crypto.NewKeyFromArmored(string(data))
	if err != nil {
		os.Remove(c.cachePath(fingerprint))
		return nil, fmt.Errorf("cached key is invalid: %w", err)
	}
	if strings.ToUpper(key.GetFingerprint()) != fingerprint {
		os.Remove(c.cachePath(fingerprint))
		return nil, fmt.Errorf("cached key fingerprint mismatch")
	}
	return key, nil
}

func (c *KeyCache) save(fingerprint string, armoredKey []byte) error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.cachePath(fingerprint), armoredKey, 0o600)
}

// VerifyDetached verifies a detached signature over the contents of
// artifactPath using key, accepting either armored or binary signature
// data.
func VerifyDetached(artifactPath string, signatureData []byte, key *crypto.Key) error {
	fileData, err := os.ReadFile(artifactPath)
	if err != nil {
		return fmt.Errorf("failed to read artifact for signature verification: %w", err)
	}

	signature, err := crypto.NewPGPSignatureFromArmored(string(signatureData))
	if err != nil {
		signature = crypto.NewPGPSignature(signatureData)
	}

	keyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		return fmt.Errorf("failed to build keyring: %w", err)
	}

	message := crypto.NewPlainMessage(fileData)
	// verifyTime 0 accepts a signature made at any time, since package
	// signatures routinely predate the verifying machine's clock skew
	// tolerance by years.
	if err := keyRing.VerifyDetached(message, signature, 0); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// LimitedRead drains r up to maxBytes+1, returning an error if the stream
// did not terminate within that bound. Exposed so a fetch.Session-backed
// Getter implementation can share the same size-limiting behavior this
// package relies on for keys and signatures.
func LimitedRead(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("response exceeds maximum size of %d bytes", maxBytes)
	}
	return data, nil
}
