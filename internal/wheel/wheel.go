// Package wheel parses wheel filenames and models the (python, abi,
// platform) tag compatibility used to decide whether a wheel can run on a
// given target interpreter.
package wheel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Filename is a parsed wheel filename:
// {distribution}-{version}(-{build})?-{python}-{abi}-{platform}.whl
type Filename struct {
	Distribution string
	Version      string
	Build        string // optional, e.g. "2" in "pkg-1.0-2-py3-none-any.whl"
	PythonTags   []string
	ABITags      []string
	PlatformTags []string
}

var wheelFileRegexp = regexp.MustCompile(
	`^(?P<name>[^-]+(?:-[^-]+)*?)-(?P<ver>[^-]+?)` +
		`(?:-(?P<build>\d[^-]*))?` +
		`-(?P<pytag>[^-]+)-(?P<abitag>[^-]+)-(?P<plattag>[^-]+)\.whl$`)

// ErrNotAWheel is returned by ParseFilename when the string does not match
// the wheel filename grammar.
type ErrNotAWheel struct {
	Filename string
}

func (e *ErrNotAWheel) Error() string {
	return fmt.Sprintf("not a valid wheel filename: %q", e.Filename)
}

// ParseFilename parses a wheel filename into its component tags. Per the
// wheel spec, each of the python/abi/platform segments may itself be a
// "."-joined compressed tag set (e.g. "py2.py3-none-any"); ParseFilename
// expands those into slices.
func ParseFilename(name string) (Filename, error) {
	m := wheelFileRegexp.FindStringSubmatch(name)
	if m == nil {
		return Filename{}, &ErrNotAWheel{Filename: name}
	}
	names := wheelFileRegexp.SubexpNames()
	group := func(n string) string {
		for i, nm := range names {
			if nm == n && i < len(m) {
				return m[i]
			}
		}
		return ""
	}
	f := Filename{
		Distribution: unescape(group("name")),
		Version:      group("ver"),
		Build:        group("build"),
		PythonTags:   strings.Split(group("pytag"), "."),
		ABITags:      strings.Split(group("abitag"), "."),
		PlatformTags: strings.Split(group("plattag"), "."),
	}
	return f, nil
}

// unescape reverses wheel-filename escaping: runs of characters other than
// [A-Za-z0-9.] in a distribution name are replaced with "_" when building
// the filename, so "_" in the parsed name may stand for any such run.
// We leave that run as-is for comparison purposes since the caller always
// normalizes both sides through pep440.NormalizeName, which treats "_",
// "-", and "." interchangeably.
func unescape(s string) string { return s }

// BuildNumber returns the numeric prefix of the optional build tag, or 0
// when absent, per the evaluator's sort-key formula.
func (f Filename) BuildNumber() int {
	if f.Build == "" {
		return 0
	}
	i := 0
	for i < len(f.Build) && f.Build[i] >= '0' && f.Build[i] <= '9' {
		i++
	}
	n, _ := strconv.Atoi(f.Build[:i])
	return n
}

// Tag is a single (python, abi, platform) compatibility tag.
type Tag struct {
	Python   string
	ABI      string
	Platform string
}

func (t Tag) String() string {
	return t.Python + "-" + t.ABI + "-" + t.Platform
}

// Tags expands a Filename's compressed tag sets into every concrete
// (python, abi, platform) triple it declares compatibility with.
func (f Filename) Tags() []Tag {
	var tags []Tag
	for _, py := range f.PythonTags {
		for _, abi := range f.ABITags {
			for _, plat := range f.PlatformTags {
				tags = append(tags, Tag{Python: py, ABI: abi, Platform: plat})
			}
		}
	}
	return tags
}

// Intersects reports whether any of f's tags appear in the supported set,
// returning the index of the highest-priority (lowest-index) match, or -1
// if none matched.
func (f Filename) Intersects(supported []Tag) int {
	best := -1
	for _, t := range f.Tags() {
		for i, s := range supported {
			if t == s {
				if best == -1 || i < best {
					best = i
				}
			}
		}
	}
	return best
}
