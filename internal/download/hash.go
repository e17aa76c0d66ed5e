package download

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"

	"github.com/frostming/unearth/internal/finderr"
)

// newHasher returns a hash.Hash for one of the supported algorithm names.
func newHasher(algo string) (hash.Hash, bool) {
	switch algo {
	case "sha512":
		return sha512.New(), true
	case "sha384":
		return sha512.New384(), true
	case "sha256":
		return sha256.New(), true
	case "sha224":
		return sha256.New224(), true
	case "sha1":
		return sha1.New(), true
	case "md5":
		return md5.New(), true
	default:
		return nil, false
	}
}

// Validator incrementally hashes a stream with every algorithm in a
// supplied allow-list and validates the result once writing is complete.
type Validator struct {
	allowed map[string][]string // algorithm -> acceptable hex digests
	hashers map[string]hash.Hash
	writer  io.Writer
}

// NewValidator builds a Validator for the given allow-list. When allowed
// is empty, every supported algorithm is still computed (and readable via
// Digests) but nothing is enforced: Validate then always succeeds.
func NewValidator(allowed map[string][]string) *Validator {
	v := &Validator{allowed: allowed, hashers: map[string]hash.Hash{}}
	algos := []string{"sha512", "sha384", "sha256", "sha224", "sha1", "md5"}
	var writers []io.Writer
	for _, a := range algos {
		h, _ := newHasher(a)
		v.hashers[a] = h
		writers = append(writers, h)
	}
	v.writer = io.MultiWriter(writers...)
	return v
}

// Write feeds bytes to every tracked hasher. Validator implements io.Writer
// so it composes with io.TeeReader / io.Copy.
func (v *Validator) Write(p []byte) (int, error) { return v.writer.Write(p) }

// Digests returns the hex digest computed so far for every algorithm.
func (v *Validator) Digests() map[string]string {
	out := make(map[string]string, len(v.hashers))
	for algo, h := range v.hashers {
		out[algo] = fmt.Sprintf("%x", h.Sum(nil))
	}
	return out
}

// Validate checks the computed digests against the allow-list. Per §4.5, a
// listed hash that matches on ANY algorithm counts as success; map
// iteration order is unspecified, so every algorithm present on the
// allow-list must be checked before Validate may fail, not just the first
// one iteration happens to visit.
func (v *Validator) Validate(source string) error {
	if len(v.allowed) == 0 {
		return nil
	}
	digests := v.Digests()
	var mismatches []string
	checked := false
	for algo, acceptable := range v.allowed {
		got, ok := digests[algo]
		if !ok {
			continue
		}
		checked = true
		for _, want := range acceptable {
			if got == want {
				return nil
			}
		}
		mismatches = append(mismatches, fmt.Sprintf("%s digest %s does not match any of %v", algo, got, acceptable))
	}
	if !checked {
		return finderr.New(finderr.KindHashMismatch, source, "no allow-listed hash algorithm was computed", nil)
	}
	sort.Strings(mismatches)
	return finderr.New(finderr.KindHashMismatch, source, strings.Join(mismatches, "; "), nil)
}
