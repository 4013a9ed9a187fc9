// Package osfp implements the OS fingerprint matching engine: parsing a
// reference signature database, scoring an observed fingerprint against it,
// and ranking the best candidates. See the zgrab2 lib/nmap package for the
// sibling probe/match model this is grown from.
package osfp

import (
	"sort"

	"github.com/zmap/osfp/pkg/osfp/intern"
)

// TestName enumerates the closed set of probe identifiers a Test may carry.
type TestName string

// The fixed set of recognized test names, in their canonical display order.
const (
	TestSEQ TestName = "SEQ"
	TestOPS TestName = "OPS"
	TestWIN TestName = "WIN"
	TestECN TestName = "ECN"
	TestT1  TestName = "T1"
	TestT2  TestName = "T2"
	TestT3  TestName = "T3"
	TestT4  TestName = "T4"
	TestT5  TestName = "T5"
	TestT6  TestName = "T6"
	TestT7  TestName = "T7"
	TestU1  TestName = "U1"
	TestIE  TestName = "IE"
)

// displayOrder is the fixed test ordering MergeFingerprints uses for a
// submission; ToASCII keeps a Fingerprint's own (SortTests) order instead.
// Its index doubles as a validity check: an unknown test name has no entry
// here.
var displayOrder = map[TestName]int{
	TestSEQ: 0,
	TestOPS: 1,
	TestWIN: 2,
	TestECN: 3,
	TestT1:  4,
	TestT2:  5,
	TestT3:  6,
	TestT4:  7,
	TestT5:  8,
	TestT6:  9,
	TestT7:  10,
	TestU1:  11,
	TestIE:  12,
}

// KnownTestName reports whether name is one of the fixed probe identifiers.
func KnownTestName(name TestName) bool {
	_, ok := displayOrder[name]
	return ok
}

// AttrValue is one (attribute, value) pair inside a Test. For observed
// fingerprints, Value is a literal token; for reference fingerprints it is a
// raw expression string, additionally compiled into Compiled by the parser.
type AttrValue struct {
	Attr     intern.Handle
	Value    intern.Handle
	Compiled CompiledExpr // zero value for observed/point-budget attributes
	Weight   int          // valid only for attributes of a point-budget Fingerprint; -1 otherwise
}

// Test holds one probe's attribute/value pairs, kept sorted by attribute for
// the merge-join scoring algorithm in score.go.
type Test struct {
	Name  TestName
	Attrs []AttrValue
}

// SortAttrs stably sorts Attrs by attribute name. Idempotent: sorting an
// already-sorted Test is a no-op other than the pass itself.
func (t *Test) SortAttrs() {
	sort.SliceStable(t.Attrs, func(i, j int) bool {
		return t.Attrs[i].Attr.String() < t.Attrs[j].Attr.String()
	})
}

func (t *Test) attr(name intern.Handle) (AttrValue, bool) {
	// Tests are small (a handful of attributes); a linear scan after the
	// binary-search-friendly sort still beats the overhead of a map for
	// these sizes, and keeps the merge join in score.go straightforward.
	for _, av := range t.Attrs {
		if av.Attr == name {
			return av, true
		}
	}
	return AttrValue{}, false
}

// OSClassification is one vendor/family/generation/device-type label for a
// Fingerprint, plus its CPE enumeration strings.
type OSClassification struct {
	Vendor     string
	Family     string
	Generation string // "no value" when a Class record's generation field is empty
	DeviceType string
	CPE        []string
}

// NoGeneration is the sentinel recorded when a Class record's generation
// field is empty.
const NoGeneration = "no value"

// Fingerprint is an ordered collection of Tests plus classification
// metadata. DisplayName is empty for observed and point-budget
// fingerprints.
type Fingerprint struct {
	DisplayName string
	SourceLine  int
	Tests       []Test
	Classes     []OSClassification
}

// SortTests stably sorts Tests by name (bytewise), and sorts each Test's
// attributes. Sorting an already-sorted Fingerprint is a no-op.
func (fp *Fingerprint) SortTests() {
	sort.SliceStable(fp.Tests, func(i, j int) bool {
		return fp.Tests[i].Name < fp.Tests[j].Name
	})
	for i := range fp.Tests {
		fp.Tests[i].SortAttrs()
	}
}

// TestByName returns the Test with the given name, if present. Fingerprint
// must already be sorted (SortTests) for callers that rely on canonical
// order, though lookup here is a linear scan regardless since fingerprints
// carry at most the 13 known test names.
func (fp *Fingerprint) TestByName(name TestName) (*Test, bool) {
	for i := range fp.Tests {
		if fp.Tests[i].Name == name {
			return &fp.Tests[i], true
		}
	}
	return nil, false
}

// Database is the full set of reference fingerprints plus the one
// point-budget fingerprint used to weight every attribute during scoring.
type Database struct {
	Entries      []*Fingerprint
	MatchPoints  *Fingerprint
	interner     *intern.Interner
}

// Interner returns the string interner backing this Database's fingerprints.
func (db *Database) Interner() *intern.Interner {
	return db.interner
}
