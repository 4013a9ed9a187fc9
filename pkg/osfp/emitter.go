package osfp

import (
	"fmt"
	"strconv"
	"strings"
)

// maxTestLineLen bounds a single rendered test line. The original engine
// wrote into a fixed-size buffer; here owned strings are returned instead,
// but the same overflow detection is kept so DB pathology (an entry with
// an implausible number of attributes) still surfaces as an error instead
// of silently growing the submission without bound.
const maxTestLineLen = 4096

// ScanMeta carries the fields of the synthetic SCAN(...) pseudo-test that
// precedes a merged submission.
type ScanMeta struct {
	Version           string
	Engine            string
	Month, Day        int
	OpenTCPPort       *int
	ClosedTCPPort     *int
	ClosedUDPPort     *int
	PrivateAddress    bool
	Distance          *int
	DistanceMethod    byte // one of 'L', 'D', 'I', 'T'; 0 means unset
	GoodFingerprint   bool
	MACOUI            string
	TimestampHexEpoch string
	Platform          string
}

func yn(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

func optPort(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func (m ScanMeta) render() string {
	var b strings.Builder
	b.WriteString("SCAN(V=")
	b.WriteString(m.Version)
	b.WriteString("%E=")
	b.WriteString(m.Engine)
	fmt.Fprintf(&b, "%%D=%02d/%02d", m.Month, m.Day)
	fmt.Fprintf(&b, "%%OT=%s%%CT=%s%%CU=%s", optPort(m.OpenTCPPort), optPort(m.ClosedTCPPort), optPort(m.ClosedUDPPort))
	fmt.Fprintf(&b, "%%PV=%s", yn(m.PrivateAddress))
	if m.Distance != nil {
		fmt.Fprintf(&b, "%%DS=%d", *m.Distance)
	}
	if m.DistanceMethod != 0 {
		fmt.Fprintf(&b, "%%DC=%c", m.DistanceMethod)
	}
	fmt.Fprintf(&b, "%%G=%s", yn(m.GoodFingerprint))
	if m.MACOUI != "" {
		fmt.Fprintf(&b, "%%M=%s", m.MACOUI)
	}
	fmt.Fprintf(&b, "%%TM=%s%%P=%s)", m.TimestampHexEpoch, m.Platform)
	return b.String()
}

// test2str writes NAME(attr=val%attr=val...). It returns the rendered line
// and, on success, its byte length; it returns an error if the line would
// exceed maxTestLineLen.
func test2str(t Test) (string, int, error) {
	var b strings.Builder
	b.WriteString(string(t.Name))
	b.WriteByte('(')
	for i, av := range t.Attrs {
		if i > 0 {
			b.WriteByte('%')
		}
		b.WriteString(av.Attr.String())
		b.WriteByte('=')
		b.WriteString(av.Value.String())
	}
	b.WriteByte(')')
	s := b.String()
	if len(s) > maxTestLineLen {
		return "", 0, fmt.Errorf("osfp: test line for %s exceeds %d bytes", t.Name, maxTestLineLen)
	}
	return s, len(s), nil
}

// ToASCII serializes fp back into the reference-entry text format, with
// tests emitted in their current (canonical, once SortTests has run) order.
func ToASCII(fp *Fingerprint) string {
	var b strings.Builder
	if fp.DisplayName != "" {
		fmt.Fprintf(&b, "Fingerprint %s\n", fp.DisplayName)
	}
	for _, cls := range fp.Classes {
		gen := cls.Generation
		if gen == NoGeneration {
			gen = ""
		}
		fmt.Fprintf(&b, "Class %s|%s|%s|%s\n", cls.Vendor, cls.Family, gen, cls.DeviceType)
		for _, cpe := range cls.CPE {
			fmt.Fprintf(&b, "CPE %s\n", cpe)
		}
	}
	for _, t := range fp.Tests {
		line, _, err := test2str(t)
		if err != nil {
			// DB pathology: the test's name is still emitted, but its
			// attributes are dropped and no error is reported.
			line = fmt.Sprintf("%s()", t.Name)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// sameAttrNameSequence reports whether two Tests list the same attribute
// names in the same order, ignoring values. Values are deliberately not
// compared: this is the literal-dedup rule Merge-and-Serialize uses to
// collapse duplicate tests across multiple observed fingerprints.
func sameAttrNameSequence(a, b Test) bool {
	if len(a.Attrs) != len(b.Attrs) {
		return false
	}
	for i := range a.Attrs {
		if a.Attrs[i].Attr != b.Attrs[i].Attr {
			return false
		}
	}
	return true
}

// MergeFingerprints merges 1-32 observed fingerprints of the same target
// into one canonical submission string. wrap, if > 0,
// requests `OS:`-prefixed line wrapping at that column width instead of one
// test per line.
func MergeFingerprints(fps []*Fingerprint, meta ScanMeta, wrap int) string {
	if len(fps) == 0 {
		return "(None)"
	}
	if len(fps) > 32 {
		return "(Too many)"
	}

	type flatTest struct {
		test   Test
		fpIdx  int
		order  int
	}
	var flat []flatTest
	for fi, fp := range fps {
		for _, t := range fp.Tests {
			order, ok := displayOrder[t.Name]
			if !ok {
				panic(fmt.Sprintf("%v: %s", ErrUnknownTestName, t.Name))
			}
			flat = append(flat, flatTest{test: t, fpIdx: fi, order: order})
		}
	}
	// Stable sort by the fixed display order; ties (same test name from
	// different inputs) keep their relative flattening order so the
	// "consecutive" rule below sees same-named tests adjacent.
	for i := 1; i < len(flat); i++ {
		for j := i; j > 0 && flat[j-1].order > flat[j].order; j-- {
			flat[j-1], flat[j] = flat[j], flat[j-1]
		}
	}

	var out []Test
	seenFromInput := make([]bool, len(flat))
	for i, ft := range flat {
		if i > 0 && flat[i-1].test.Name == ft.test.Name && sameAttrNameSequence(flat[i-1].test, ft.test) {
			// Elide: consecutive same-named test with an identical
			// attribute-name sequence is a duplicate (values not compared).
			seenFromInput[i] = true
			continue
		}
		out = append(out, ft.test)
	}
	// Lost-test safety check: every flattened input test
	// must have a surviving counterpart in out, by name + attribute-name
	// set.
	for i, ft := range flat {
		if seenFromInput[i] {
			continue
		}
		found := false
		for _, o := range out {
			if o.Name == ft.test.Name && sameAttrNameSequence(o, ft.test) {
				found = true
				break
			}
		}
		if !found {
			panic(fmt.Sprintf("%v: %s", ErrLostTest, ft.test.Name))
		}
	}

	lines := make([]string, 0, len(out)+1)
	lines = append(lines, meta.render())
	for _, t := range out {
		line, _, err := test2str(t)
		if err != nil {
			panic(err) // DB pathology past the recoverable point: a merged line is too large to emit
		}
		lines = append(lines, line)
	}

	if wrap <= 0 {
		return strings.Join(lines, "\n")
	}
	return wrapOS(lines, wrap)
}

// wrapOS concatenates lines with no separator -- wrap mode drops the
// newline test2str's caller would otherwise emit between tests, so the SCAN
// header runs directly into the first test and one test runs directly into
// the next -- and chops the result at a literal byte offset w, each output
// line prefixed "OS:". The chop is boundary-blind: it does not look for a
// '%' or test name to break on, so a single test's attribute list may end
// up split across two OS: lines.
func wrapOS(lines []string, w int) string {
	body := strings.Join(lines, "")
	var b strings.Builder
	for len(body) > 0 {
		n := w
		if n > len(body) {
			n = len(body)
		}
		b.WriteString("OS:")
		b.WriteString(body[:n])
		b.WriteByte('\n')
		body = body[n:]
	}
	return strings.TrimSuffix(b.String(), "\n")
}
