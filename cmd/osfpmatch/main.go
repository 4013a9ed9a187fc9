// Command osfpmatch loads an OS fingerprint signature database, scores one
// or more observed fingerprints against it, and prints the ranked matches
// as JSON. It plays the same role for pkg/osfp that cmd/zgrab2 plays for
// the zgrab2 scan framework: a thin CLI over an importable library.
package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	flags "github.com/zmap/zflags"

	"github.com/zmap/osfp/pkg/osfp"
	"github.com/zmap/osfp/pkg/osfp/resultfmt"
)

func openInput(name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(name)
}

func openOutput(name string) (io.WriteCloser, error) {
	if name == "" || name == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(name)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// splitRecords breaks r into blank-line-delimited fingerprint records, the
// same record framing ParseDatabase uses for DB entries.
func splitRecords(r io.Reader) ([]string, error) {
	var records []string
	var cur strings.Builder
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if strings.TrimSpace(line) == "" {
			if cur.Len() > 0 {
				records = append(records, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	if cur.Len() > 0 {
		records = append(records, cur.String())
	}
	return records, s.Err()
}

func main() {
	start := time.Now()
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.LongDescription = "osfpmatch loads a signature database and ranks observed OS fingerprints against it.\n" +
		"Input is read from --input-file (default stdin) as one or more blank-line-delimited\n" +
		"fingerprint records in the same text format as database entries."

	if _, err := parser.AddGroup("Database Options", "Options for the signature database", &opts.DatabaseOptions); err != nil {
		log.Fatalf("could not add database options group: %v", err)
	}
	if _, err := parser.AddGroup("Match Options", "Options for the ranking pass", &opts.MatchOptions); err != nil {
		log.Fatalf("could not add match options group: %v", err)
	}
	if _, err := parser.AddGroup("Input/Output Options", "Options for input and output files", &opts.InputOutputOptions); err != nil {
		log.Fatalf("could not add I/O options group: %v", err)
	}

	if _, _, _, err := parser.ParseCommandLine(os.Args[1:]); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		log.Fatalf("could not parse flags: %v", err)
	}

	explicit := map[string]bool{}
	for _, name := range []string{"db", "threshold", "capacity", "verbose", "input-file", "output-file"} {
		if opt := parser.FindOptionByLongName(name); opt != nil {
			explicit[name] = opt.IsSet()
		}
	}
	applyConfigFile(&opts, explicit)

	if opts.DBFile == "" {
		log.Fatalf("no signature database given (-d/--db)")
	}
	db, err := osfp.ParseDatabase(opts.DBFile)
	if err != nil {
		log.Fatalf("could not load signature database %s: %v", opts.DBFile, err)
	}
	log.Infof("loaded %d fingerprints from %s", len(db.Entries), opts.DBFile)

	in, err := openInput(opts.InputFileName)
	if err != nil {
		log.Fatalf("could not open input %s: %v", opts.InputFileName, err)
	}
	defer in.Close()

	out, err := openOutput(opts.OutputFileName)
	if err != nil {
		log.Fatalf("could not open output %s: %v", opts.OutputFileName, err)
	}
	defer out.Close()

	records, err := splitRecords(in)
	if err != nil {
		log.Fatalf("could not read input: %v", err)
	}

	enc := json.NewEncoder(out)
	for i, text := range records {
		observed, err := osfp.ParseFingerprint(text)
		if err != nil {
			log.Errorf("record %d: could not parse observed fingerprint: %v", i, err)
			continue
		}
		rm, err := osfp.MatchWithCapacity(observed, db, opts.Threshold, opts.Capacity)
		if err != nil {
			log.Errorf("record %d: match failed: %v", i, err)
			continue
		}
		var diag []osfp.AttrDiagnostic
		if opts.Verbose && len(rm.Matches) > 0 {
			best := rm.Matches[0].Entry
			if _, err := osfp.Score(best, observed, db.MatchPoints, false, &diag); err != nil {
				log.Errorf("record %d: could not compute diagnostics: %v", i, err)
			}
		}
		rec := resultfmt.FromRanked(observed.DisplayName, rm, diag)
		data, err := resultfmt.Marshal(rec, opts.Verbose)
		if err != nil {
			log.Errorf("record %d: could not marshal result: %v", i, err)
			continue
		}
		if err := enc.Encode(json.RawMessage(data)); err != nil {
			log.Fatalf("could not write result: %v", err)
		}
	}
	log.Infof("finished matching %d records in %s", len(records), time.Since(start))
}
