// Package pep440 implements version parsing, ordering, and specifier
// containment as defined by PEP 440.
//
// No library available to this module implements PEP 440 itself —
// github.com/Masterminds/semver/v3 enforces a three-component
// major.minor.patch grammar with a single pre-release/build-metadata
// suffix, which rejects ordinary PEP 440 versions like "1.0.post1" or
// "2021.3" outright. Re-deriving the comparison relation by hand is
// therefore the only option; see DESIGN.md for the full justification.
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a parsed, totally-ordered PEP 440 version.
type Version struct {
	Epoch   int
	Release []int

	preKind string // "a", "b", "rc", or "" if absent
	preNum  int
	hasPre  bool

	hasPost bool
	postNum int

	hasDev bool
	devNum int

	local []localSegment

	original string
}

type localSegment struct {
	str    string
	num    int
	isNum  bool
}

// versionRegexp mirrors the canonical PEP 440 regular expression, relaxed
// to accept the handful of legacy spellings (v-prefix, rc/c/pre/preview
// pre-release spellings) that real index metadata still contains.
var versionRegexp = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<pre_l>a|b|c|rc|alpha|beta|pre|preview)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?dev[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
	`\s*$`)

// ErrInvalidVersion is wrapped into returned errors for unparsable strings.
type ErrInvalidVersion struct {
	Value string
}

func (e *ErrInvalidVersion) Error() string {
	return fmt.Sprintf("invalid version: %q", e.Value)
}

// Parse parses a PEP 440 version string.
func Parse(s string) (Version, error) {
	m := versionRegexp.FindStringSubmatch(s)
	if m == nil {
		return Version{}, &ErrInvalidVersion{Value: s}
	}
	names := versionRegexp.SubexpNames()
	group := func(name string) string {
		for i, n := range names {
			if n == name && i < len(m) {
				return m[i]
			}
		}
		return ""
	}

	v := Version{original: s}

	if e := group("epoch"); e != "" {
		n, _ := strconv.Atoi(e)
		v.Epoch = n
	}

	for _, part := range strings.Split(group("release"), ".") {
		n, _ := strconv.Atoi(part)
		v.Release = append(v.Release, n)
	}

	if preL := strings.ToLower(group("pre_l")); preL != "" {
		v.hasPre = true
		v.preKind = normalizePreLetter(preL)
		if n := group("pre_n"); n != "" {
			v.preNum, _ = strconv.Atoi(n)
		}
	}

	if group("post") != "" {
		v.hasPost = true
		if n := group("post_n1"); n != "" {
			v.postNum, _ = strconv.Atoi(n)
		} else if n := group("post_n2"); n != "" {
			v.postNum, _ = strconv.Atoi(n)
		}
	}

	if group("dev") != "" {
		v.hasDev = true
		if n := group("dev_n"); n != "" {
			v.devNum, _ = strconv.Atoi(n)
		}
	}

	if local := group("local"); local != "" {
		for _, seg := range strings.FieldsFunc(local, func(r rune) bool {
			return r == '-' || r == '_' || r == '.'
		}) {
			seg = strings.ToLower(seg)
			if n, err := strconv.Atoi(seg); err == nil {
				v.local = append(v.local, localSegment{num: n, isNum: true})
			} else {
				v.local = append(v.local, localSegment{str: seg})
			}
		}
	}

	return v, nil
}

// MustParse parses s and panics on error. Intended for use with literal
// version strings in tests and tables.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func normalizePreLetter(l string) string {
	switch l {
	case "alpha":
		return "a"
	case "beta":
		return "b"
	case "c", "pre", "preview":
		return "rc"
	default:
		return l
	}
}

// IsPrerelease reports whether v has a pre-release or dev segment.
func (v Version) IsPrerelease() bool {
	return v.hasPre || v.hasDev
}

// IsPostrelease reports whether v has a post-release segment.
func (v Version) IsPostrelease() bool {
	return v.hasPost
}

// IsDevrelease reports whether v has a dev segment.
func (v Version) IsDevrelease() bool {
	return v.hasDev
}

// Base returns the release-only form of v (epoch and release segments,
// dropping pre/post/dev/local), formatted canonically.
func (v Version) Base() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	for i, r := range v.Release {
		if i > 0 {
			b.WriteByte('.')
		}
		fmt.Fprintf(&b, "%d", r)
	}
	return b.String()
}

// String renders v in canonical PEP 440 form.
func (v Version) String() string {
	var b strings.Builder
	b.WriteString(v.Base())
	if v.hasPre {
		fmt.Fprintf(&b, "%s%d", v.preKind, v.preNum)
	}
	if v.hasPost {
		fmt.Fprintf(&b, ".post%d", v.postNum)
	}
	if v.hasDev {
		fmt.Fprintf(&b, ".dev%d", v.devNum)
	}
	if len(v.local) > 0 {
		b.WriteByte('+')
		for i, seg := range v.local {
			if i > 0 {
				b.WriteByte('.')
			}
			if seg.isNum {
				fmt.Fprintf(&b, "%d", seg.num)
			} else {
				b.WriteString(seg.str)
			}
		}
	}
	return b.String()
}

// releaseAt returns r[i], or 0 past the end of r, so releases of different
// lengths compare as if the shorter were zero-padded ("1.0" == "1.0.0").
func releaseAt(r []int, i int) int {
	if i < len(r) {
		return r[i]
	}
	return 0
}

// preOrder maps a pre-release kind to its ordering rank among "a" < "b" < "rc".
func preOrder(kind string) int {
	switch kind {
	case "a":
		return 0
	case "b":
		return 1
	case "rc":
		return 2
	default:
		return -1
	}
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other, following PEP 440's ordering: release < pre < release-proper <
// post, with a dev segment suppressing whichever phase it qualifies, and
// local segments breaking ties only between otherwise-equal versions.
func (v Version) Compare(other Version) int {
	if v.Epoch != other.Epoch {
		return cmpInt(v.Epoch, other.Epoch)
	}

	n := len(v.Release)
	if len(other.Release) > n {
		n = len(other.Release)
	}
	for i := 0; i < n; i++ {
		a, b := releaseAt(v.Release, i), releaseAt(other.Release, i)
		if a != b {
			return cmpInt(a, b)
		}
	}

	if c := cmpPrePhase(v, other); c != 0 {
		return c
	}

	if c := cmpPostPhase(v, other); c != 0 {
		return c
	}

	if c := cmpDevPhase(v, other); c != 0 {
		return c
	}

	return cmpLocal(v.local, other.local)
}

// cmpPrePhase orders a version's "release phase" for comparison purposes:
// pure dev-of-initial-release sorts lowest, then pre-release, then the
// plain release, then post-release. This models PEP 440's statement that
// "dev releases sort before all per-phase releases, pre-releases sort
// before the release proper, and post-releases sort after".
func cmpPrePhase(v, other Version) int {
	vHasPre, oHasPre := v.hasPre, other.hasPre
	if vHasPre == oHasPre {
		if !vHasPre {
			return 0
		}
		if c := cmpInt(preOrder(v.preKind), preOrder(other.preKind)); c != 0 {
			return c
		}
		return cmpInt(v.preNum, other.preNum)
	}
	// A version lacking a pre-release is "greater" than one with a
	// pre-release at the same release segment, UNLESS the one lacking it
	// also lacks a post segment and has a dev segment (pure dev release,
	// which sorts before pre-releases). That finer distinction is handled
	// by cmpDevPhase only when release/pre/post all tie; here we treat
	// presence of a pre-release as strictly less than absence, then let
	// cmpDevPhase correct the pure-dev-vs-pre-release case.
	if vHasPre && !oHasPre {
		if other.hasDev && !other.hasPost {
			return 1
		}
		return -1
	}
	if v.hasDev && !v.hasPost {
		return -1
	}
	return 1
}

func cmpPostPhase(v, other Version) int {
	if v.hasPost == other.hasPost {
		if !v.hasPost {
			return 0
		}
		return cmpInt(v.postNum, other.postNum)
	}
	if v.hasPost {
		return 1
	}
	return -1
}

func cmpDevPhase(v, other Version) int {
	if v.hasDev == other.hasDev {
		if !v.hasDev {
			return 0
		}
		return cmpInt(v.devNum, other.devNum)
	}
	if v.hasDev {
		return -1
	}
	return 1
}

func cmpLocal(a, b []localSegment) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if i >= len(a) {
			return -1 // shorter local segment sorts lower
		}
		if i >= len(b) {
			return 1
		}
		sa, sb := a[i], b[i]
		switch {
		case sa.isNum && sb.isNum:
			if c := cmpInt(sa.num, sb.num); c != 0 {
				return c
			}
		case sa.isNum && !sb.isNum:
			return 1 // numeric segments sort after alphanumeric ones
		case !sa.isNum && sb.isNum:
			return -1
		default:
			if sa.str != sb.str {
				if sa.str < sb.str {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether v sorts strictly before other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

// Equal reports whether v and other have identical ordering position.
// Unlike string equality, Equal ignores how the original string spelled
// its pre-release marker (e.g. "1.0rc1" == "1.0c1").
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }
