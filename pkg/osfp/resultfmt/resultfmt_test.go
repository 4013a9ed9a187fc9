package resultfmt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zmap/osfp/pkg/osfp"
)

func TestFromRankedBuildsEntries(t *testing.T) {
	rm := &osfp.RankedMatches{
		OverallStatus: osfp.StatusSuccess,
		Matches: []osfp.RankedMatch{
			{Entry: &osfp.Fingerprint{DisplayName: "Linux 5.0", Classes: []osfp.OSClassification{{CPE: []string{"cpe:/o:linux:linux_kernel:5"}}}}, Accuracy: 1.0},
		},
	}
	diag := []osfp.AttrDiagnostic{{Test: osfp.TestT1, Attr: "R", Weight: 10, Matched: true}}

	rec := FromRanked("probe-1", rm, diag)
	require.Equal(t, "probe-1", rec.DisplayName)
	require.Equal(t, "success", rec.Status)
	require.Len(t, rec.Matches, 1)
	require.Equal(t, "Linux 5.0", rec.Matches[0].Name)
	require.Equal(t, []string{"cpe:/o:linux:linux_kernel:5"}, rec.Matches[0].CPE)
	require.Len(t, rec.Diagnostics, 1)
}

func TestMarshalStripsDiagnosticsWhenNotDebug(t *testing.T) {
	rec := MatchRecord{
		DisplayName: "probe-1",
		Status:      "success",
		Diagnostics: []AttrEntry{{Test: "T1", Attr: "R", Weight: 10, Matched: true}},
	}

	out, err := Marshal(rec, false)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	_, present := m["diagnostics"]
	require.False(t, present)
}

func TestMarshalKeepsDiagnosticsWhenDebug(t *testing.T) {
	rec := MatchRecord{
		DisplayName: "probe-1",
		Status:      "success",
		Diagnostics: []AttrEntry{{Test: "T1", Attr: "R", Weight: 10, Matched: true}},
	}

	out, err := Marshal(rec, true)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	_, present := m["diagnostics"]
	require.True(t, present)
}

func TestDebugFieldsNamesDiagnostics(t *testing.T) {
	require.Equal(t, []string{"Diagnostics"}, DebugFields())
}
