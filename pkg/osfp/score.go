package osfp

import "fmt"

// ScoreResult is the (subtests_total, subtests_passed) pair computed by
// Score.
type ScoreResult struct {
	Total  int
	Passed int
}

// Accuracy returns Passed/Total, or 0 if Total is zero.
func (r ScoreResult) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Passed) / float64(r.Total)
}

// Perfect reports whether every weighted attribute matched and the
// intersection carried positive total weight: a zero-weight intersection
// is never perfect.
func (r ScoreResult) Perfect() bool {
	return r.Total > 0 && r.Total == r.Passed
}

// AttrDiagnostic is one per-attribute record emitted by Score in verbose
// mode.
type AttrDiagnostic struct {
	Test    TestName
	Attr    string
	Weight  int
	Matched bool
}

// Score compares reference (expressions) against observed (literals),
// weighting each shared attribute by points (the point-budget
// fingerprint). It implements a two-level ordered merge join: test streams
// and, within matched tests, attribute streams are walked in their
// canonical sorted order, so the whole comparison is O(n+m) in the number
// of attributes on either side.
//
// If shortCircuit is true, Score returns as soon as it sees the first
// failing attribute, having tallied only the weight seen so far -- this is
// the mode the Match Ranker uses when only the perfect/not-perfect bit
// would matter, though the ranker in rank.go always runs in non-short-
// circuit mode because it needs the exact accuracy. If diag is non-nil, a
// diagnostic is appended for every attribute visited (verbose mode).
func Score(reference, observed, points *Fingerprint, shortCircuit bool, diag *[]AttrDiagnostic) (ScoreResult, error) {
	var res ScoreResult

	ri, oi := 0, 0
	for ri < len(reference.Tests) && oi < len(observed.Tests) {
		rt := &reference.Tests[ri]
		ot := &observed.Tests[oi]
		switch {
		case rt.Name < ot.Name:
			ri++
			continue
		case rt.Name > ot.Name:
			oi++
			continue
		}
		pt, ok := points.TestByName(rt.Name)
		if !ok {
			return ScoreResult{}, fmt.Errorf("%w: test %s", ErrMissingWeight, rt.Name)
		}
		done, err := scoreTest(rt, ot, pt, shortCircuit, diag, &res)
		if err != nil {
			return ScoreResult{}, err
		}
		ri++
		oi++
		if done {
			return res, nil
		}
	}
	return res, nil
}

func scoreTest(rt, ot, pt *Test, shortCircuit bool, diag *[]AttrDiagnostic, res *ScoreResult) (stop bool, err error) {
	ai, bi := 0, 0
	for ai < len(rt.Attrs) && bi < len(ot.Attrs) {
		ra := rt.Attrs[ai]
		oa := ot.Attrs[bi]
		switch {
		case ra.Attr.String() < oa.Attr.String():
			ai++
			continue
		case ra.Attr.String() > oa.Attr.String():
			bi++
			continue
		}
		pa, ok := pt.attr(ra.Attr)
		if !ok {
			return false, fmt.Errorf("%w: %s.%s", ErrMissingWeight, rt.Name, ra.Attr.String())
		}
		if pa.Weight < 0 {
			return false, fmt.Errorf("%w: %s.%s", ErrNegativeWeight, rt.Name, ra.Attr.String())
		}
		matched := ra.Compiled.Match(oa.Value.String())
		res.Total += pa.Weight
		if matched {
			res.Passed += pa.Weight
		}
		if diag != nil {
			*diag = append(*diag, AttrDiagnostic{Test: rt.Name, Attr: ra.Attr.String(), Weight: pa.Weight, Matched: matched})
		}
		ai++
		bi++
		if shortCircuit && !matched {
			return true, nil
		}
	}
	return false, nil
}
