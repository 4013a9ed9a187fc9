package osfp

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zmap/osfp/pkg/osfp/intern"
)

// buildFP is a small test helper that assembles a single-test Fingerprint
// from attr=value pairs, compiling each value as an expression for
// reference/points fingerprints and leaving it a literal for observed ones.
func buildFP(t *testing.T, in *intern.Interner, name TestName, compile bool, kv ...string) *Fingerprint {
	t.Helper()
	require.Equal(t, 0, len(kv)%2)
	var attrs []AttrValue
	for i := 0; i < len(kv); i += 2 {
		av := AttrValue{Attr: in.Intern(kv[i]), Value: in.Intern(kv[i+1])}
		if compile {
			ce, err := CompileExpr(kv[i+1])
			require.NoError(t, err)
			av.Compiled = ce
		}
		attrs = append(attrs, av)
	}
	tst := Test{Name: name, Attrs: attrs}
	tst.SortAttrs()
	fp := &Fingerprint{Tests: []Test{tst}}
	fp.SortTests()
	return fp
}

// pointsFP builds a MatchPoints-style fingerprint where each attribute's
// Weight carries the point budget instead of a compiled expression.
func pointsFP(t *testing.T, in *intern.Interner, name TestName, kv ...string) *Fingerprint {
	t.Helper()
	require.Equal(t, 0, len(kv)%2)
	var attrs []AttrValue
	for i := 0; i < len(kv); i += 2 {
		w, err := strconv.Atoi(kv[i+1])
		require.NoError(t, err)
		attrs = append(attrs, AttrValue{Attr: in.Intern(kv[i]), Weight: w})
	}
	tst := Test{Name: name, Attrs: attrs}
	tst.SortAttrs()
	fp := &Fingerprint{Tests: []Test{tst}}
	fp.SortTests()
	return fp
}

func TestScoreWorkedExample(t *testing.T) {
	in := intern.New()
	// observed T1(R=Y%DF=Y), reference T1(R=Y%DF=N), points T1(R=10%DF=5)
	// -> total 15, passed 10 (R matches, DF does not).
	reference := buildFP(t, in, TestT1, true, "DF", "N", "R", "Y")
	observed := buildFP(t, in, TestT1, false, "DF", "Y", "R", "Y")
	points := pointsFP(t, in, TestT1, "DF", "5", "R", "10")

	res, err := Score(reference, observed, points, false, nil)
	require.NoError(t, err)
	require.Equal(t, 15, res.Total)
	require.Equal(t, 10, res.Passed)
	require.InDelta(t, 10.0/15.0, res.Accuracy(), 1e-9)
	require.False(t, res.Perfect())
}

func TestScorePerfectMatch(t *testing.T) {
	in := intern.New()
	reference := buildFP(t, in, TestT1, true, "R", "Y")
	observed := buildFP(t, in, TestT1, false, "R", "Y")
	points := pointsFP(t, in, TestT1, "R", "10")

	res, err := Score(reference, observed, points, false, nil)
	require.NoError(t, err)
	require.True(t, res.Perfect())
	require.Equal(t, 1.0, res.Accuracy())
}

func TestScoreShortCircuitStopsAtFirstMiss(t *testing.T) {
	in := intern.New()
	reference := buildFP(t, in, TestT1, true, "DF", "N", "R", "Y")
	observed := buildFP(t, in, TestT1, false, "DF", "Y", "R", "Y")
	points := pointsFP(t, in, TestT1, "DF", "5", "R", "10")

	res, err := Score(reference, observed, points, true, nil)
	require.NoError(t, err)
	// DF sorts before R, so short-circuiting stops after the DF mismatch.
	require.Equal(t, 5, res.Total)
	require.Equal(t, 0, res.Passed)
}

func TestScoreDisjointTestsContributeNothing(t *testing.T) {
	in := intern.New()
	reference := buildFP(t, in, TestT1, true, "R", "Y")
	observed := buildFP(t, in, TestT2, false, "R", "Y")
	points := pointsFP(t, in, TestT1, "R", "10")

	res, err := Score(reference, observed, points, false, nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.Total)
	require.Equal(t, 0.0, res.Accuracy())
	require.False(t, res.Perfect())
}

func TestScoreMissingWeightErrors(t *testing.T) {
	in := intern.New()
	reference := buildFP(t, in, TestT1, true, "R", "Y")
	observed := buildFP(t, in, TestT1, false, "R", "Y")
	points := pointsFP(t, in, TestT1, "DF", "5")

	_, err := Score(reference, observed, points, false, nil)
	require.ErrorIs(t, err, ErrMissingWeight)
}

func TestScoreDiagnosticsRecorded(t *testing.T) {
	in := intern.New()
	reference := buildFP(t, in, TestT1, true, "DF", "N", "R", "Y")
	observed := buildFP(t, in, TestT1, false, "DF", "Y", "R", "Y")
	points := pointsFP(t, in, TestT1, "DF", "5", "R", "10")

	var diag []AttrDiagnostic
	_, err := Score(reference, observed, points, false, &diag)
	require.NoError(t, err)
	require.Len(t, diag, 2)
	require.Equal(t, "DF", diag[0].Attr)
	require.False(t, diag[0].Matched)
	require.Equal(t, "R", diag[1].Attr)
	require.True(t, diag[1].Matched)
}
