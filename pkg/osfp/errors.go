package osfp

import "errors"

// Fatal DB semantic errors: parsing and scoring abort with a descriptive
// wrap of one of these, the same way zgrab2's errors.go exposes a fixed set
// of sentinel errors for callers to match on with errors.Is.
var (
	// ErrDuplicateMatchPoints is returned when a DB file contains a second
	// MatchPoints record.
	ErrDuplicateMatchPoints = errors.New("osfp: duplicate MatchPoints record")
	// ErrCPEWithoutClass is returned when a CPE line appears before any
	// Class record in the current entry.
	ErrCPEWithoutClass = errors.New("osfp: CPE line without a preceding Class")
	// ErrMissingWeight is returned when scoring needs a (test, attribute)
	// weight the point-budget fingerprint does not define.
	ErrMissingWeight = errors.New("osfp: point budget missing weight")
	// ErrNegativeWeight is returned when a point-budget weight is negative
	// or not an integer.
	ErrNegativeWeight = errors.New("osfp: point budget weight must be a non-negative integer")
	// ErrDegenerateRange is returned when a DB expression range's high
	// bound does not strictly exceed its low bound.
	ErrDegenerateRange = errors.New("osfp: range requires high > low")
	// ErrUnknownTestName is the message MergeFingerprints panics with when
	// it encounters a test name outside the fixed display order.
	ErrUnknownTestName = errors.New("osfp: unknown test name")
	// ErrLostTest is the message MergeFingerprints' safety check panics with
	// when an input test has no counterpart in the deduplicated output.
	ErrLostTest = errors.New("osfp: test lost during merge")
	// ErrDBUnreadable is returned when the DB file cannot be opened.
	ErrDBUnreadable = errors.New("osfp: database file not found or unreadable")
	// ErrIncompletePointBudget is returned when the point-budget
	// fingerprint is missing an attribute a reference entry defines.
	ErrIncompletePointBudget = errors.New("osfp: point budget does not cover every reference attribute")
)

// InputRangeError reports an out-of-range caller input that the emitter
// reports via sentinel string rather than by returning a Go error, matching
// the "(None)"/"(Too many)" contract MergeFingerprints uses for an empty or
// oversized input slice.
type InputRangeError struct {
	Reason string
}

func (e *InputRangeError) Error() string {
	return "osfp: " + e.Reason
}
