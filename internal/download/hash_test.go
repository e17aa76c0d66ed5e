package download

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frostming/unearth/internal/finderr"
)

func TestValidator_NoAllowListSucceeds(t *testing.T) {
	v := NewValidator(nil)
	_, err := v.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, v.Validate("test-source"))
}

// TestValidator_SucceedsIfAnyAllowedAlgorithmMatches guards against the
// map-iteration-order bug: an allow-list with one mismatching algorithm and
// one matching algorithm must always succeed, regardless of which order
// Go's map iteration happens to visit them in.
func TestValidator_SucceedsIfAnyAllowedAlgorithmMatches(t *testing.T) {
	v := NewValidator(map[string][]string{
		"sha256": {"0000000000000000000000000000000000000000000000000000000000dead"},
		"md5":    {"5eb63bbbe01eeed093cb22bb8f5acdc3"}, // md5("hello world")
	})
	_, err := v.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, v.Validate("test-source"))
}

func TestValidator_FailsWhenNoAlgorithmMatches(t *testing.T) {
	v := NewValidator(map[string][]string{
		"sha256": {"0000000000000000000000000000000000000000000000000000000000dead"},
		"md5":    {"00000000000000000000000000000000"},
	})
	_, err := v.Write([]byte("hello world"))
	require.NoError(t, err)

	err = v.Validate("test-source")
	require.Error(t, err)
	var fe *finderr.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, finderr.KindHashMismatch, fe.Kind)
}

func TestValidator_FailsWhenNoAllowedAlgorithmWasComputed(t *testing.T) {
	v := NewValidator(map[string][]string{
		"sha3-256": {"irrelevant"}, // not a supported algorithm, never computed
	})
	_, err := v.Write([]byte("hello world"))
	require.NoError(t, err)

	err = v.Validate("test-source")
	require.Error(t, err)
}

func TestValidator_Digests(t *testing.T) {
	v := NewValidator(nil)
	_, err := v.Write([]byte("hello world"))
	require.NoError(t, err)

	digests := v.Digests()
	require.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", digests["md5"])
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde", digests["sha256"])
}

func TestNewHasher_UnknownAlgorithm(t *testing.T) {
	_, ok := newHasher("sha3-256")
	require.False(t, ok)
}
