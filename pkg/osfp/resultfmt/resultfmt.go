// Package resultfmt shapes a RankedMatches into the JSON a caller of
// cmd/osfpmatch sees, the same role zgrab2's lib/output plays for scan
// results: fields tagged `zgrab:"debug"` are only emitted when verbose
// output was requested.
package resultfmt

import (
	"encoding/json"
	"reflect"

	"github.com/zmap/osfp/pkg/osfp"
)

// MatchRecord is the top-level record written per observed fingerprint.
type MatchRecord struct {
	DisplayName string       `json:"display_name,omitempty"`
	Status      string       `json:"status"`
	Matches     []MatchEntry `json:"matches"`
	Diagnostics []AttrEntry  `json:"diagnostics,omitempty" zgrab:"debug"`
}

// MatchEntry is one ranked candidate.
type MatchEntry struct {
	Name     string   `json:"name"`
	Accuracy float64  `json:"accuracy"`
	CPE      []string `json:"cpe,omitempty"`
}

// AttrEntry mirrors osfp.AttrDiagnostic for JSON output.
type AttrEntry struct {
	Test    string `json:"test"`
	Attr    string `json:"attr"`
	Weight  int    `json:"weight"`
	Matched bool   `json:"matched"`
}

// FromRanked builds a MatchRecord from a RankedMatches. diag is nil unless
// the caller ran Score in verbose mode.
func FromRanked(displayName string, rm *osfp.RankedMatches, diag []osfp.AttrDiagnostic) MatchRecord {
	rec := MatchRecord{
		DisplayName: displayName,
		Status:      rm.OverallStatus.String(),
	}
	for _, m := range rm.Matches {
		entry := MatchEntry{Name: m.Entry.DisplayName, Accuracy: m.Accuracy}
		for _, cls := range m.Entry.Classes {
			entry.CPE = append(entry.CPE, cls.CPE...)
		}
		rec.Matches = append(rec.Matches, entry)
	}
	for _, d := range diag {
		rec.Diagnostics = append(rec.Diagnostics, AttrEntry{
			Test: string(d.Test), Attr: d.Attr, Weight: d.Weight, Matched: d.Matched,
		})
	}
	return rec
}

// Marshal renders rec as JSON. When debug is false, fields tagged
// `zgrab:"debug"` are zeroed before encoding -- the same behavior
// lib/output.Process gives zgrab2's scan results, driven off the same tag
// but by a direct field walk over MatchRecord rather than the teacher's
// general-purpose recursive processor, since MatchRecord is the only type
// this package ever formats.
func Marshal(rec MatchRecord, debug bool) ([]byte, error) {
	if debug {
		return json.Marshal(rec)
	}
	return json.Marshal(stripDebugFields(rec))
}

// debugFields reports the field names tagged `zgrab:"debug"` on T. Both
// Marshal (via stripDebugFields) and DebugFields (for callers checking the
// stripping set) go through this single walk, so a new tagged field can
// never be stripped by one and reported by the other.
func debugFields(t reflect.Type) []string {
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tag, ok := f.Tag.Lookup("zgrab"); ok && tag == "debug" {
			names = append(names, f.Name)
		}
	}
	return names
}

// stripDebugFields returns a copy of rec with every zgrab:"debug" field set
// to its zero value.
func stripDebugFields(rec MatchRecord) MatchRecord {
	v := reflect.ValueOf(&rec).Elem()
	for _, name := range debugFields(v.Type()) {
		f := v.FieldByName(name)
		f.Set(reflect.Zero(f.Type()))
	}
	return rec
}

// DebugFields exposes debugFields for MatchRecord.
func DebugFields() []string {
	return debugFields(reflect.TypeOf(MatchRecord{}))
}
