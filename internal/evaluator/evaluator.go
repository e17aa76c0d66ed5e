// Package evaluator filters a link stream into an ordered candidate list
// per §4.3: filename parse, version/specifier match, wheel compatibility,
// python-requires, yank status, and hash allow-list, followed by a total
// ordering that prefers binaries and later versions.
package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/frostming/unearth/internal/link"
	"github.com/frostming/unearth/internal/pep440"
	"github.com/frostming/unearth/internal/requirement"
	"github.com/frostming/unearth/internal/wheel"
)

// FormatControl gates whether wheels or sdists participate, per name, with
// a ":all:" sentinel applying to every name.
type FormatControl struct {
	NoBinary   map[string]bool
	OnlyBinary map[string]bool
}

const allSentinel = ":all:"

// AllowsWheel reports whether a wheel candidate for name is permitted.
// only-binary is treated as the stricter rule when both only-binary and
// no-binary mention the same name (design note (b)).
func (f FormatControl) AllowsWheel(name string) bool {
	if f.NoBinary[allSentinel] || f.NoBinary[name] {
		if f.OnlyBinary[allSentinel] || f.OnlyBinary[name] {
			return true // only-binary wins the conflict
		}
		return false
	}
	return true
}

// AllowsSdist reports whether a source-distribution candidate for name is
// permitted.
func (f FormatControl) AllowsSdist(name string) bool {
	if f.OnlyBinary[allSentinel] || f.OnlyBinary[name] {
		return false
	}
	return true
}

// Rejection records why a link did not become a candidate, for §7's
// structured "no match" diagnostics.
type Rejection struct {
	Link   link.Link
	Reason string
}

// Candidate is a (name, version?, link) triple, per §3.
type Candidate struct {
	Name    string
	Version *pep440.Version // nil for URL/VCS candidates
	Link    link.Link

	isBinary bool
	tagPri   int // index into target's priority list; -1 for sdist
	build    int
}

// IsBinary reports whether the candidate is a wheel.
func (c Candidate) IsBinary() bool { return c.isBinary }

// Options configures a single evaluation pass.
type Options struct {
	Target                wheel.Target
	IgnoreCompatibility   bool
	Format                FormatControl
	PreferBinary          bool
	AllowYanked           bool
	RespectSourceOrder    bool
	AllowPrereleases      *bool // nil: use fall-through rule
}

// Evaluate filters and orders links against a requirement, implementing
// the full chain from §4.3 including the prerelease fall-through rule:
// if no non-prerelease candidate satisfies the query and the caller has
// not explicitly decided, retry admitting prereleases.
func Evaluate(req requirement.Requirement, links []link.Link, opts Options) ([]Candidate, []Rejection) {
	allowPre := false
	if opts.AllowPrereleases != nil {
		allowPre = *opts.AllowPrereleases
	}

	candidates, rejections := evaluateOnce(req, links, opts, allowPre)

	if len(candidates) == 0 && opts.AllowPrereleases == nil && req.Kind == requirement.KindNamed {
		// fall-through rule: maybe every candidate is a prerelease
		retryCandidates, retryRejections := evaluateOnce(req, links, opts, true)
		if len(retryCandidates) > 0 {
			return sortCandidates(retryCandidates, opts), retryRejections
		}
	}

	return sortCandidates(candidates, opts), rejections
}

func evaluateOnce(req requirement.Requirement, links []link.Link, opts Options, allowPre bool) ([]Candidate, []Rejection) {
	var candidates []Candidate
	var rejections []Rejection

	supported := opts.Target.SupportedTags()

	for _, l := range links {
		c, reason := evaluateLink(req, l, opts, allowPre, supported)
		if reason != "" {
			rejections = append(rejections, Rejection{Link: l, Reason: reason})
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, rejections
}

func evaluateLink(req requirement.Requirement, l link.Link, opts Options, allowPre bool, supported []wheel.Tag) (Candidate, string) {
	if req.Kind != requirement.KindNamed {
		// URL/VCS queries carry no version/tag filtering; the link is
		// authoritative by construction.
		return Candidate{Name: req.Name, Link: l}, ""
	}

	name := l.Filename()
	var version string
	var isWheel bool

	if wf, err := wheel.ParseFilename(name); err == nil {
		isWheel = true
		if pep440.NormalizeName(wf.Distribution) != req.Name {
			return Candidate{}, "distribution name mismatch"
		}
		version = wf.Version
	} else {
		distName, v, ok := parseSdistFilename(name)
		if !ok {
			return Candidate{}, "unparsable filename"
		}
		if pep440.NormalizeName(distName) != req.Name {
			return Candidate{}, "distribution name mismatch"
		}
		version = v
	}

	parsedVersion, err := pep440.Parse(version)
	if err != nil {
		return Candidate{}, "unparsable version"
	}

	if !req.Specifier.Contains(parsedVersion, allowPre) {
		return Candidate{}, "does not satisfy specifier"
	}

	if isWheel {
		if !opts.Format.AllowsWheel(req.Name) {
			return Candidate{}, "wheel excluded by no-binary"
		}
	} else {
		if !opts.Format.AllowsSdist(req.Name) {
			return Candidate{}, "sdist excluded by only-binary"
		}
	}

	tagPri := -1
	build := 0
	if isWheel && !opts.IgnoreCompatibility {
		wf, _ := wheel.ParseFilename(name)
		idx := wf.Intersects(supported)
		if idx == -1 {
			return Candidate{}, "no wheel matches target tags"
		}
		tagPri = idx
		build = wf.BuildNumber()
	}

	if l.RequiresPython != "" {
		spec, err := pep440.ParseSpecifierSet(l.RequiresPython)
		if err == nil {
			targetVersion := pep440.Version{Release: []int{opts.Target.MajorMinor[0], opts.Target.MajorMinor[1]}}
			if !spec.Contains(targetVersion, true) {
				return Candidate{}, "incompatible requires-python"
			}
		}
	}

	if l.IsYanked() && !opts.AllowYanked && !isExplicitPin(req.Specifier) {
		return Candidate{}, "yanked"
	}

	return Candidate{
		Name:     req.Name,
		Version:  &parsedVersion,
		Link:     l,
		isBinary: isWheel,
		tagPri:   tagPri,
		build:    build,
	}, ""
}

// isExplicitPin reports whether the specifier set is a single "=="
// clause, per the invariant "yanked links sort last unless they are the
// only choice and the requirement explicitly pins that version".
func isExplicitPin(s pep440.SpecifierSet) bool {
	return len(s.Clauses) == 1 && s.Clauses[0].Op == pep440.OpEqual
}

// parseSdistFilename splits a source-archive filename into distribution
// name and version via egg-info-style hyphen-rpartition, tolerating
// slightly malformed names the way the original implementation's
// UNEARTH_LOOSE_FILENAME toggle does (we apply the tolerant rule always,
// since there is no equivalent strict/loose config surface in this spec).
func parseSdistFilename(name string) (string, string, bool) {
	base := stripArchiveExt(name)
	if base == "" {
		return "", "", false
	}
	idx := strings.LastIndex(base, "-")
	if idx == -1 {
		return "", "", false
	}
	return base[:idx], base[idx+1:], true
}

var archiveExts = []string{".tar.gz", ".tgz", ".tar.bz2", ".tbz", ".tar.xz", ".txz", ".tar.lz", ".tar.lzma", ".zip"}

func stripArchiveExt(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range archiveExts {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return ""
}

// sortCandidates implements the sort key from §4.3:
// (not-yanked, version, binary-preferred, wheel-tag-priority, build-tag),
// with URL string as the final tiebreak for stability. prefer-binary moves
// binary-preferred ahead of version. respect-source-order
// instead makes source order the primary key, per the Finder configuration
// table.
func sortCandidates(candidates []Candidate, opts Options) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	if opts.RespectSourceOrder {
		return out // caller-supplied order (per source, concatenated) is authoritative
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[j], out[i], opts) // descending: higher-ranked first
	})
	return out
}

// less reports whether a sorts before b under the ascending sort key.
func less(a, b Candidate, opts Options) bool {
	if a.Link.IsYanked() != b.Link.IsYanked() {
		return a.Link.IsYanked() // yanked sorts lower (before) non-yanked
	}

	// prefer-binary ranks wheels above sdists even across versions.
	if opts.PreferBinary && a.isBinary != b.isBinary {
		return !a.isBinary
	}

	if a.Version != nil && b.Version != nil {
		if c := a.Version.Compare(*b.Version); c != 0 {
			return c < 0
		}
	}

	if a.Version == nil || b.Version == nil || a.Version.Equal(*b.Version) {
		if a.isBinary != b.isBinary {
			return !a.isBinary
		}
	}

	if a.isBinary && b.isBinary {
		if a.tagPri != b.tagPri {
			// lower index = higher priority = sorts later (wins)
			return a.tagPri > b.tagPri
		}
		if a.build != b.build {
			return a.build < b.build
		}
	}

	return a.Link.URL > b.Link.URL
}

// BestMatch is the result of a find-best-match invocation: the winning
// candidate (nil if none), the full applicable list, and a reason for
// emptiness.
type BestMatch struct {
	Best        *Candidate
	Applicable  []Candidate
	Rejections  []Rejection
	EmptyReason string
}

// SelectBest runs Evaluate and packages the result as a BestMatch.
func SelectBest(req requirement.Requirement, links []link.Link, opts Options) BestMatch {
	candidates, rejections := Evaluate(req, links, opts)
	bm := BestMatch{Applicable: candidates, Rejections: rejections}
	if len(candidates) == 0 {
		bm.EmptyReason = summarizeRejections(rejections)
		return bm
	}
	best := candidates[0]
	bm.Best = &best
	return bm
}

func summarizeRejections(rejections []Rejection) string {
	if len(rejections) == 0 {
		return "no candidates found on any configured source"
	}
	counts := map[string]int{}
	for _, r := range rejections {
		counts[r.Reason]++
	}
	var parts []string
	for reason, n := range counts {
		parts = append(parts, fmt.Sprintf("%s (%d)", reason, n))
	}
	sort.Strings(parts)
	return "no match: " + strings.Join(parts, "; ")
}
