// Package requirement parses requirement strings into a typed query: named
// (PEP 508), direct URL, or version-control variants.
package requirement

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/frostming/unearth/internal/pep440"
)

// Kind distinguishes the three requirement shapes.
type Kind int

const (
	KindNamed Kind = iota
	KindURL
	KindVCS
)

// Requirement is the parsed query produced from a requirement string.
type Requirement struct {
	Kind Kind

	// Name is the PEP-503-normalized project name (always populated).
	Name string

	// Named-kind fields.
	Specifier pep440.SpecifierSet
	Extras    []string
	Marker    string

	// URL / VCS-kind fields.
	URL  string
	Hash string // optional embedded #sha256=... fragment on a URL query

	// VCS-kind fields.
	VCSType string // git|hg|svn|bzr
	Ref     string // branch, tag, or revision id
}

var vcsSchemes = []string{"git", "hg", "svn", "bzr"}

var nameRegexp = regexp.MustCompile(`(?i)^([a-z0-9](?:[a-z0-9._-]*[a-z0-9])?)`)
var extrasRegexp = regexp.MustCompile(`\[([^\]]*)\]`)
var markerSplitRegexp = regexp.MustCompile(`;`)

// ErrInvalidRequirement marks an unparsable requirement string.
type ErrInvalidRequirement struct {
	Value  string
	Reason string
}

func (e *ErrInvalidRequirement) Error() string {
	return fmt.Sprintf("invalid requirement %q: %s", e.Value, e.Reason)
}

// Parse parses a requirement string per §4.1.
func Parse(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Requirement{}, &ErrInvalidRequirement{Value: s, Reason: "empty requirement"}
	}

	if idx := findNameURLSplit(s); idx != -1 {
		name := strings.TrimSpace(s[:idx])
		urlPart := strings.TrimSpace(s[idx+len(" @ "):])
		return parseNameAndURL(name, urlPart)
	}

	return parseNamed(s)
}

// findNameURLSplit locates the " @ " separator PEP 508 uses for direct
// references, distinct from any "@" that might appear inside a VCS ref
// (those always come after the URL, never before it).
func findNameURLSplit(s string) int {
	return strings.Index(s, " @ ")
}

func parseNameAndURL(name, urlPart string) (Requirement, error) {
	normName := pep440.NormalizeName(stripExtras(name))
	if normName == "" {
		return Requirement{}, &ErrInvalidRequirement{Value: name, Reason: "missing project name"}
	}

	for _, scheme := range vcsSchemes {
		prefix := scheme + "+"
		if strings.HasPrefix(urlPart, prefix) {
			rest := strings.TrimPrefix(urlPart, prefix)
			url, ref := splitTrailingRef(rest)
			return Requirement{
				Kind:    KindVCS,
				Name:    normName,
				VCSType: scheme,
				URL:     url,
				Ref:     ref,
			}, nil
		}
	}

	url, hash := splitHashFragment(urlPart)
	return Requirement{
		Kind: KindURL,
		Name: normName,
		URL:  url,
		Hash: hash,
	}, nil
}

// splitTrailingRef peels a trailing "@ref" from a VCS URL, where ref is
// everything after the LAST "@" that is not part of the authority (i.e.
// not part of a "user@host" credential). We scan from the end: find the
// last "@" that occurs after the first "/" following "://", which is
// guaranteed to be past the authority component.
func splitTrailingRef(url string) (string, string) {
	schemeEnd := strings.Index(url, "://")
	authorityStart := 0
	if schemeEnd != -1 {
		authorityStart = schemeEnd + len("://")
	}
	pathStart := strings.Index(url[authorityStart:], "/")
	searchFrom := authorityStart
	if pathStart != -1 {
		searchFrom = authorityStart + pathStart
	}
	rest := url[searchFrom:]
	if idx := strings.LastIndex(rest, "@"); idx != -1 {
		return url[:searchFrom+idx], url[searchFrom+idx+1:]
	}
	return url, ""
}

func splitHashFragment(url string) (string, string) {
	idx := strings.LastIndex(url, "#")
	if idx == -1 {
		return url, ""
	}
	frag := url[idx+1:]
	if strings.Contains(frag, "=") {
		return url[:idx], frag
	}
	return url, ""
}

func stripExtras(name string) string {
	return extrasRegexp.ReplaceAllString(name, "")
}

func parseExtras(name string) []string {
	m := extrasRegexp.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	var extras []string
	for _, e := range strings.Split(m[1], ",") {
		e = strings.TrimSpace(e)
		if e != "" {
			extras = append(extras, e)
		}
	}
	return extras
}

// parseNamed parses a plain PEP 508 requirement: name[extras]specifier;marker
func parseNamed(s string) (Requirement, error) {
	var marker string
	if parts := markerSplitRegexp.Split(s, 2); len(parts) == 2 {
		s = strings.TrimSpace(parts[0])
		marker = strings.TrimSpace(parts[1])
	}

	m := nameRegexp.FindStringIndex(s)
	if m == nil {
		return Requirement{}, &ErrInvalidRequirement{Value: s, Reason: "missing or invalid project name"}
	}
	rawName := s[m[0]:m[1]]
	rest := strings.TrimSpace(s[m[1]:])

	extras := parseExtras(rest)
	rest = extrasRegexp.ReplaceAllString(rest, "")
	rest = strings.TrimSpace(rest)

	var spec pep440.SpecifierSet
	if rest != "" {
		var err error
		spec, err = pep440.ParseSpecifierSet(rest)
		if err != nil {
			return Requirement{}, &ErrInvalidRequirement{Value: s, Reason: err.Error()}
		}
	}

	return Requirement{
		Kind:      KindNamed,
		Name:      pep440.NormalizeName(rawName),
		Specifier: spec,
		Extras:    extras,
		Marker:    marker,
	}, nil
}
