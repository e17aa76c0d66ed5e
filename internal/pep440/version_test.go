package pep440

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"1.0", "1.0.0", "2021.3", "1!1.0", "1.0a1", "1.0b2", "1.0rc1",
		"1.0.post1", "1.0.dev1", "1.0a1.dev1", "1.0+local.1", "1.0.post1.dev1",
	}
	for _, c := range cases {
		v, err := Parse(c)
		require.NoError(t, err, c)
		assert.Equal(t, c, v.String(), "round trip for %s", c)
	}
}

func TestParseLegacySpellings(t *testing.T) {
	v, err := Parse("1.0c1")
	require.NoError(t, err)
	assert.True(t, v.Equal(MustParse("1.0rc1")))

	v2, err := Parse("1.0-1")
	require.NoError(t, err)
	assert.True(t, v2.Equal(MustParse("1.0.post1")))
}

func TestOrdering(t *testing.T) {
	ordered := []string{
		"1.0.dev0", "1.0a1", "1.0a2.dev0", "1.0a2", "1.0b1.dev0", "1.0b2",
		"1.0rc1", "1.0", "1.0.post1.dev0", "1.0.post1",
	}
	for i := 1; i < len(ordered); i++ {
		a, b := MustParse(ordered[i-1]), MustParse(ordered[i])
		assert.True(t, a.Less(b), "%s should sort before %s", ordered[i-1], ordered[i])
	}
}

func TestLocalVersionTieBreak(t *testing.T) {
	base := MustParse("1.0")
	local1 := MustParse("1.0+abc")
	local2 := MustParse("1.0+abc.1")
	assert.True(t, base.Less(local1))
	assert.True(t, local1.Less(local2))
}

func TestEpochDominates(t *testing.T) {
	assert.True(t, MustParse("1!1.0").Compare(MustParse("9999.0")) > 0)
}

func TestIsPrerelease(t *testing.T) {
	assert.True(t, MustParse("1.0a1").IsPrerelease())
	assert.True(t, MustParse("1.0.dev1").IsPrerelease())
	assert.False(t, MustParse("1.0").IsPrerelease())
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "flask-sqlalchemy", NormalizeName("Flask_SQLAlchemy"))
	assert.Equal(t, "a-b-c", NormalizeName("a...b__c"))
	got := NormalizeName(NormalizeName("A.B_C"))
	assert.Equal(t, NormalizeName("A.B_C"), got)
}

func TestSpecifierContains(t *testing.T) {
	s, err := ParseSpecifierSet(">=1.0,!=1.3.*,<2.0")
	require.NoError(t, err)

	assert.True(t, s.Contains(MustParse("1.0"), false))
	assert.True(t, s.Contains(MustParse("1.2.9"), false))
	assert.False(t, s.Contains(MustParse("1.3.0"), false))
	assert.False(t, s.Contains(MustParse("2.0"), false))
	assert.False(t, s.Contains(MustParse("0.9"), false))
}

func TestSpecifierExcludesPrereleaseByDefault(t *testing.T) {
	s, err := ParseSpecifierSet(">=1.0")
	require.NoError(t, err)
	assert.False(t, s.Contains(MustParse("1.1a1"), false))
	assert.True(t, s.Contains(MustParse("1.1a1"), true))
}

func TestSpecifierMentioningPrereleaseAdmitsIt(t *testing.T) {
	s, err := ParseSpecifierSet(">=1.0a1")
	require.NoError(t, err)
	assert.True(t, s.Contains(MustParse("1.0b1"), false))
}

func TestCompatibleOperator(t *testing.T) {
	s, err := ParseSpecifierSet("~=2.2")
	require.NoError(t, err)
	assert.True(t, s.Contains(MustParse("2.3"), false))
	assert.False(t, s.Contains(MustParse("3.0"), false))
	assert.False(t, s.Contains(MustParse("2.1"), false))
}

func TestArbitraryEqual(t *testing.T) {
	s, err := ParseSpecifierSet("===1.0special")
	require.NoError(t, err)
	assert.Equal(t, Operator("==="), s.Clauses[0].Op)
	assert.Equal(t, "1.0special", s.Clauses[0].Raw)
}
