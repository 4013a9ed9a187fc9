package osfp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustMatch(t *testing.T, val, expr string) bool {
	t.Helper()
	ok, err := MatchExpr(val, expr)
	require.NoError(t, err)
	return ok
}

func TestExprRange(t *testing.T) {
	require.True(t, mustMatch(t, "45", "3B-47"))
	require.False(t, mustMatch(t, "48", "3B-47"))
}

func TestExprAlternation(t *testing.T) {
	require.True(t, mustMatch(t, "A", "8|A|C"))
	require.False(t, mustMatch(t, "B", "8|A|C"))
}

func TestExprComparison(t *testing.T) {
	require.True(t, mustMatch(t, "10", ">F"))
	require.False(t, mustMatch(t, "0F", ">F"))
	require.False(t, mustMatch(t, "foo", ">10"))
}

func TestExprLiteralLaw(t *testing.T) {
	for _, s := range []string{"foo", "windows", "ZZ99"} {
		require.True(t, mustMatch(t, s, s))
	}
	require.False(t, mustMatch(t, "foo", "bar"))
}

func TestExprDegenerateRangeRejectedAtCompile(t *testing.T) {
	_, err := CompileExpr("47-47")
	require.Error(t, err)
	_, err = CompileExpr("47-3B")
	require.Error(t, err)
}

func TestExprAlternationDistributes(t *testing.T) {
	for _, v := range []string{"x", "y", "z", "q"} {
		got := mustMatch(t, v, "x|y|z")
		want := mustMatch(t, v, "x") || mustMatch(t, v, "y") || mustMatch(t, v, "z")
		require.Equal(t, want, got, "value %q", v)
	}
}

func TestExprEmptyAlternativeNeverMatches(t *testing.T) {
	require.False(t, mustMatch(t, "", "|"))
	require.False(t, mustMatch(t, "x", "|"))
}

func TestExprMalformedNumericSkipped(t *testing.T) {
	// "ZZ" is not valid hex, so the "<" comparison alternative is skipped
	// rather than erroring.
	ok, err := MatchExpr("5", "<ZZ")
	require.NoError(t, err)
	require.False(t, ok)
}
