package osfp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zmap/osfp/pkg/osfp/intern"
)

// fatalErr wraps a DBSemanticError: one that aborts parsing of
// the whole database rather than just the current record.
type fatalErr struct{ err error }

func (e *fatalErr) Error() string { return e.err.Error() }
func (e *fatalErr) Unwrap() error { return e.err }

func fatal(err error) error { return &fatalErr{err} }

func isFatal(err error) bool {
	var f *fatalErr
	return errors.As(err, &f)
}

// ParseDatabase reads the reference signature database at path.
func ParseDatabase(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrDBUnreadable, "open %s: %v", path, err)
	}
	defer f.Close()
	return ParseDatabaseReader(f)
}

// ParseDatabaseReader parses a reference signature database from an
// already-open reader.
func ParseDatabaseReader(r io.Reader) (*Database, error) {
	p := &dbParser{
		db:       &Database{interner: intern.New()},
		lastCIdx: -1,
	}
	if err := p.run(r); err != nil {
		return nil, err
	}
	if p.db.MatchPoints == nil {
		return nil, fatal(fmt.Errorf("%w: no MatchPoints record present", ErrIncompletePointBudget))
	}
	if err := validatePointBudget(p.db); err != nil {
		return nil, err
	}
	return p.db, nil
}

// ParseFingerprint parses the text of a single reference-style fingerprint
// record (as produced by ToASCII, or hand-written by a caller assembling an
// observed fingerprint). It does not require MatchPoints and does not
// validate point-budget coverage. Text whose first line is not a
// Fingerprint or MatchPoints header is read as one anonymous fingerprint
// with an empty DisplayName, the form ToASCII writes for such fingerprints.
func ParseFingerprint(text string) (*Fingerprint, error) {
	p := &dbParser{db: &Database{interner: intern.New()}, lastCIdx: -1}
	text = strings.TrimLeft(text, " \t\r\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line != "" && !strings.HasPrefix(line, "Fingerprint") && line != "MatchPoints" {
			p.current = &Fingerprint{}
		}
		break
	}
	if err := p.run(strings.NewReader(text)); err != nil {
		return nil, err
	}
	p.endRecord()
	switch {
	case p.db.MatchPoints != nil:
		return p.db.MatchPoints, nil
	case len(p.db.Entries) == 1:
		return p.db.Entries[0], nil
	case len(p.db.Entries) == 0:
		return nil, fmt.Errorf("osfp: no fingerprint record found in input")
	default:
		return nil, fmt.Errorf("osfp: expected exactly one fingerprint record, found %d", len(p.db.Entries))
	}
}

type dbParser struct {
	db        *Database
	current   *Fingerprint
	isPoints  bool
	lastCIdx  int  // index of the last Class appended to current.Classes, or -1
	skipping  bool // true while discarding lines of an aborted record
	sawPoints bool
}

func (p *dbParser) run(r io.Reader) error {
	s := bufio.NewScanner(r)
	lineNum := 0
	for s.Scan() {
		lineNum++
		if err := p.parseLine(s.Text()); err != nil {
			if isFatal(err) {
				return fmt.Errorf("line %d: %w", lineNum, errors.Unwrap(err))
			}
			log.Errorf("osfp: db parse error at line %d: %v", lineNum, err)
			p.current = nil
			p.lastCIdx = -1
			p.skipping = true
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	p.endRecord()
	return nil
}

func (p *dbParser) parseLine(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		p.endRecord()
		p.skipping = false
		return nil
	}
	if p.skipping {
		return nil
	}
	switch {
	case strings.HasPrefix(trimmed, "#"):
		return nil
	case strings.HasPrefix(trimmed, "Fingerprint"):
		return p.beginFingerprint(trimmed)
	case trimmed == "MatchPoints":
		return p.beginMatchPoints()
	case strings.HasPrefix(trimmed, "Class "):
		return p.addClass(trimmed)
	case strings.HasPrefix(trimmed, "CPE "):
		return p.addCPE(trimmed)
	default:
		return p.addTest(trimmed)
	}
}

func (p *dbParser) in() *intern.Interner { return p.db.interner }

func (p *dbParser) endRecord() {
	if p.current == nil {
		return
	}
	p.current.SortTests()
	if p.isPoints {
		p.db.MatchPoints = p.current
	} else {
		p.db.Entries = append(p.db.Entries, p.current)
	}
	p.current = nil
	p.lastCIdx = -1
}

func (p *dbParser) beginFingerprint(line string) error {
	p.endRecord()
	name := strings.TrimSpace(strings.TrimPrefix(line, "Fingerprint"))
	p.current = &Fingerprint{DisplayName: name}
	p.isPoints = false
	return nil
}

func (p *dbParser) beginMatchPoints() error {
	if p.sawPoints {
		return fatal(ErrDuplicateMatchPoints)
	}
	p.endRecord()
	p.sawPoints = true
	p.current = &Fingerprint{}
	p.isPoints = true
	return nil
}

func (p *dbParser) addClass(line string) error {
	if p.current == nil {
		return fmt.Errorf("class line outside a Fingerprint record")
	}
	body := strings.TrimSpace(strings.TrimPrefix(line, "Class"))
	fields := strings.Split(body, "|")
	if len(fields) != 4 {
		return fmt.Errorf("expected 4 |-separated fields in Class line, got %d", len(fields))
	}
	gen := strings.TrimSpace(fields[2])
	if gen == "" {
		gen = NoGeneration
	}
	p.current.Classes = append(p.current.Classes, OSClassification{
		Vendor:     strings.TrimSpace(fields[0]),
		Family:     strings.TrimSpace(fields[1]),
		Generation: gen,
		DeviceType: strings.TrimSpace(fields[3]),
	})
	p.lastCIdx = len(p.current.Classes) - 1
	return nil
}

func (p *dbParser) addCPE(line string) error {
	if p.current == nil {
		return fmt.Errorf("cpe line outside a Fingerprint record")
	}
	if p.lastCIdx < 0 {
		return fatal(ErrCPEWithoutClass)
	}
	body := strings.TrimSpace(strings.TrimPrefix(line, "CPE"))
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return fmt.Errorf("cpe line missing a cpe URI")
	}
	cls := &p.current.Classes[p.lastCIdx]
	cls.CPE = append(cls.CPE, fields[0]) // trailing flags (fields[1:]) are discarded
	return nil
}

func (p *dbParser) addTest(line string) error {
	if p.current == nil {
		return fmt.Errorf("unrecognized line outside a record: %q", line)
	}
	open := strings.IndexByte(line, '(')
	if open <= 0 || !strings.HasSuffix(line, ")") {
		return fmt.Errorf("malformed test line: %q", line)
	}
	name := TestName(line[:open])
	if !KnownTestName(name) {
		return fmt.Errorf("unknown test name %q", name)
	}
	body := line[open+1 : len(line)-1]

	var attrs []AttrValue
	if body != "" {
		for _, kv := range strings.Split(body, "%") {
			eq := strings.IndexByte(kv, '=')
			if eq < 0 {
				return fmt.Errorf("malformed attribute %q in test %s", kv, name)
			}
			key := kv[:eq]
			val := kv[eq+1:]
			av := AttrValue{
				Attr:   p.in().Intern(key),
				Value:  p.in().Intern(val),
				Weight: -1,
			}
			if p.isPoints {
				w, err := strconv.Atoi(val)
				if err != nil || w < 0 {
					return fatal(fmt.Errorf("%w: %s.%s=%q", ErrNegativeWeight, name, key, val))
				}
				av.Weight = w
			} else {
				ce, err := CompileExpr(val)
				if err != nil {
					return fatal(err)
				}
				av.Compiled = ce
			}
			attrs = append(attrs, av)
		}
	}
	p.current.Tests = append(p.current.Tests, Test{Name: name, Attrs: attrs})
	return nil
}

// validatePointBudget enforces that MatchPoints enumerates every
// (test, attribute) pair referenced by any reference entry.
func validatePointBudget(db *Database) error {
	for _, fp := range db.Entries {
		for _, t := range fp.Tests {
			pt, ok := db.MatchPoints.TestByName(t.Name)
			if !ok {
				return fatal(fmt.Errorf("%w: test %s has no MatchPoints entry (fingerprint %q)", ErrIncompletePointBudget, t.Name, fp.DisplayName))
			}
			for _, av := range t.Attrs {
				if _, ok := pt.attr(av.Attr); !ok {
					return fatal(fmt.Errorf("%w: %s.%s has no weight (fingerprint %q)", ErrIncompletePointBudget, t.Name, av.Attr.String(), fp.DisplayName))
				}
			}
		}
	}
	return nil
}
