package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostming/unearth/internal/link"
	"github.com/frostming/unearth/internal/requirement"
	"github.com/frostming/unearth/internal/wheel"
)

func cpython310() wheel.Target {
	return wheel.Target{MajorMinor: [2]int{3, 10}, ABI: "cp310", Platforms: []string{"any", "manylinux1_x86_64"}}
}

func TestScenario1_WheelOverSdistAndNewerVersion(t *testing.T) {
	req, err := requirement.Parse("flask>=2")
	require.NoError(t, err)

	links := []link.Link{
		link.New("https://example.com/Flask-2.1.2-py3-none-any.whl#sha256=fad54fe", ""),
		link.New("https://example.com/Flask-1.1.4-py2.py3-none-any.whl", ""),
	}

	bm := SelectBest(req, links, Options{Target: cpython310()})
	require.NotNil(t, bm.Best)
	assert.Equal(t, "flask", bm.Best.Name)
	assert.Equal(t, "2.1.2", bm.Best.Version.String())
}

func TestScenario4_NoWheelMatchesTags(t *testing.T) {
	req, err := requirement.Parse("foo")
	require.NoError(t, err)

	links := []link.Link{
		link.New("https://example.com/Foo-1.0-cp39-cp39-manylinux1_x86_64.whl", ""),
	}
	target := wheel.Target{MajorMinor: [2]int{3, 10}, ABI: "cp310", Platforms: []string{"macosx_11_0_x86_64"}}
	bm := SelectBest(req, links, Options{Target: target})
	assert.Nil(t, bm.Best)
	require.Len(t, bm.Rejections, 1)
	assert.Equal(t, "no wheel matches target tags", bm.Rejections[0].Reason)
}

func TestScenario6_YankedVersusNonYanked(t *testing.T) {
	req, err := requirement.Parse("baz")
	require.NoError(t, err)

	yanked := "security"
	links := []link.Link{
		{URL: "https://example.com/baz-1.2.tar.gz", Hashes: map[string]string{}, YankReason: &yanked},
		link.New("https://example.com/baz-1.1.tar.gz", ""),
	}
	bm := SelectBest(req, links, Options{Target: cpython310()})
	require.NotNil(t, bm.Best)
	assert.Equal(t, "1.1", bm.Best.Version.String())
}

func TestScenario6_ExplicitPinSelectsYanked(t *testing.T) {
	req, err := requirement.Parse("baz==1.2")
	require.NoError(t, err)

	yanked := "security"
	links := []link.Link{
		{URL: "https://example.com/baz-1.2.tar.gz", Hashes: map[string]string{}, YankReason: &yanked},
	}
	bm := SelectBest(req, links, Options{Target: cpython310()})
	require.NotNil(t, bm.Best)
	assert.Equal(t, "1.2", bm.Best.Version.String())
	assert.NotNil(t, bm.Best.Link.YankReason)
}

func TestPrereleaseFallThrough(t *testing.T) {
	req, err := requirement.Parse("pkg")
	require.NoError(t, err)

	links := []link.Link{
		link.New("https://example.com/pkg-2.0a1.tar.gz", ""),
	}
	bm := SelectBest(req, links, Options{Target: cpython310()})
	require.NotNil(t, bm.Best, "fall-through should admit the only (prerelease) candidate")
}

func TestFormatControlOnlyBinaryStricterThanNoBinary(t *testing.T) {
	fc := FormatControl{
		NoBinary:   map[string]bool{"pkg": true},
		OnlyBinary: map[string]bool{"pkg": true},
	}
	assert.True(t, fc.AllowsWheel("pkg"), "only-binary should win the conflict per design note (b)")
	assert.False(t, fc.AllowsSdist("pkg"))
}

func TestURLRequirementBypassesFiltering(t *testing.T) {
	req, err := requirement.Parse("pip @ https://example.com/pip-23.0.zip#sha256=aaaa")
	require.NoError(t, err)

	links := []link.Link{link.New(req.URL, "")}
	bm := SelectBest(req, links, Options{Target: cpython310()})
	require.NotNil(t, bm.Best)
	assert.Nil(t, bm.Best.Version)
}
