package osfp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zmap/osfp/pkg/osfp/intern"
)

func TestSortTestsIdempotent(t *testing.T) {
	in := intern.New()
	fp := &Fingerprint{
		Tests: []Test{
			{Name: TestWIN, Attrs: []AttrValue{
				{Attr: in.Intern("W2"), Value: in.Intern("1")},
				{Attr: in.Intern("W1"), Value: in.Intern("2")},
			}},
			{Name: TestSEQ, Attrs: []AttrValue{
				{Attr: in.Intern("GCD"), Value: in.Intern("1")},
			}},
		},
	}
	fp.SortTests()
	first := ToASCII(fp)
	fp.SortTests()
	second := ToASCII(fp)
	require.Equal(t, first, second)
	require.Equal(t, TestSEQ, fp.Tests[0].Name)
	require.Equal(t, TestWIN, fp.Tests[1].Name)
	require.Equal(t, "W1", fp.Tests[1].Attrs[0].Attr.String())
}

func TestKnownTestName(t *testing.T) {
	require.True(t, KnownTestName(TestSEQ))
	require.True(t, KnownTestName(TestT7))
	require.False(t, KnownTestName(TestName("BOGUS")))
}
