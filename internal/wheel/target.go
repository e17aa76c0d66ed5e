package wheel

import "fmt"

// Implementation is the interpreter family that produced the wheel, as
// encoded in the "python" tag segment's two-letter prefix.
type Implementation string

const (
	ImplCPython  Implementation = "cp"
	ImplPyPy     Implementation = "pp"
	ImplJython   Implementation = "jy"
	ImplIronPy   Implementation = "ip"
	ImplUnknown  Implementation = ""
)

// Target describes the interpreter, ABI, and platform set a candidate
// wheel must be compatible with.
type Target struct {
	// MajorMinor is e.g. [3, 10] for CPython 3.10.
	MajorMinor [2]int
	ABI        string
	// Platforms is ordered most-specific first (e.g.
	// ["manylinux_2_28_x86_64", "manylinux2014_x86_64", "linux_x86_64"]).
	Platforms      []string
	Implementation Implementation
}

// pyXY formats "3","10" into the compact "310" tag component.
func (t Target) pyXY() string {
	return fmt.Sprintf("%d%d", t.MajorMinor[0], t.MajorMinor[1])
}

// SupportedTags enumerates the target's compatible tag set in descending
// priority order, per §4.4: cp{XY}-{abi}-{plat} first (most specific), then
// cp{XY}-abi3-{plat} for X>=3, then cp{XY}-none-{plat}, then generic
// py{X}{Y} down through py{X}0 with none-any, then bare py{X} with
// none-any. Each platform in t.Platforms is tried, most-specific first,
// before moving to the next python-tag flavor.
func (t Target) SupportedTags() []Tag {
	var tags []Tag
	impl := string(t.Implementation)
	if impl == "" {
		impl = string(ImplCPython)
	}
	xy := t.pyXY()

	if impl == string(ImplCPython) {
		for _, plat := range t.Platforms {
			tags = append(tags, Tag{Python: "cp" + xy, ABI: t.ABI, Platform: plat})
		}
		if t.MajorMinor[0] >= 3 {
			for _, plat := range t.Platforms {
				tags = append(tags, Tag{Python: "cp" + xy, ABI: "abi3", Platform: plat})
			}
			// abi3 wheels built against any earlier minor version of the
			// same major version remain forward-compatible.
			for minor := t.MajorMinor[1] - 1; minor >= 0; minor-- {
				xyEarlier := fmt.Sprintf("%d%d", t.MajorMinor[0], minor)
				for _, plat := range t.Platforms {
					tags = append(tags, Tag{Python: "cp" + xyEarlier, ABI: "abi3", Platform: plat})
				}
			}
		}
		for _, plat := range t.Platforms {
			tags = append(tags, Tag{Python: "cp" + xy, ABI: "none", Platform: plat})
		}
	} else {
		for _, plat := range t.Platforms {
			tags = append(tags, Tag{Python: impl + xy, ABI: t.ABI, Platform: plat})
			tags = append(tags, Tag{Python: impl + xy, ABI: "none", Platform: plat})
		}
	}

	for minor := t.MajorMinor[1]; minor >= 0; minor-- {
		pyXYGeneric := fmt.Sprintf("py%d%d", t.MajorMinor[0], minor)
		tags = append(tags, Tag{Python: pyXYGeneric, ABI: "none", Platform: "any"})
	}
	tags = append(tags, Tag{Python: fmt.Sprintf("py%d", t.MajorMinor[0]), ABI: "none", Platform: "any"})

	return tags
}
