package osfp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// candidatesScored and matchDuration expose the same ambient observability
// zgrab2 wires through GeneralOptions.Prometheus (see config.go): off the
// network-I/O critical path, cheap to collect, and useful for anyone
// running Match across a large database in a long-lived process.
var (
	candidatesScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "osfp_candidates_scored_total",
		Help: "Number of reference fingerprints scored by Match.",
	})
	matchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "osfp_match_duration_seconds",
		Help: "Wall-clock time spent in Match per call.",
	})
)

// OverallStatus classifies the outcome of a Match call.
type OverallStatus int

const (
	StatusSuccess OverallStatus = iota
	StatusNoMatches
	StatusTooManyPerfect
)

func (s OverallStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoMatches:
		return "no-matches"
	case StatusTooManyPerfect:
		return "too-many-perfect"
	default:
		return "unknown"
	}
}

// RankedMatch is one entry in RankedMatches: a stable index into the
// Database's entry list, a pointer to that same entry, and its accuracy.
type RankedMatch struct {
	EntryIndex int
	Entry      *Fingerprint
	Accuracy   float64
}

// RankedMatches is the bounded, accuracy-sorted, same-OS-deduplicated
// top-K result of Match.
type RankedMatches struct {
	Matches           []RankedMatch
	NumMatches        int
	NumPerfectMatches int
	OverallStatus     OverallStatus
}

// DefaultCapacity is K, the fixed size of the ranked-result array, when a
// caller uses Match instead of MatchWithCapacity.
const DefaultCapacity = 10

// acceptEpsilon is the small margin added to the
// tightening acceptance floor so that once the result set is full, a new
// candidate must strictly exceed the current minimum rather than merely
// equal it.
const acceptEpsilon = 1e-5

// Match scores observed against every entry in db and returns the top
// DefaultCapacity candidates at or above threshold.
func Match(observed *Fingerprint, db *Database, threshold float64) (*RankedMatches, error) {
	return MatchWithCapacity(observed, db, threshold, DefaultCapacity)
}

// MatchWithCapacity is Match with an explicit result-array capacity K.
func MatchWithCapacity(observed *Fingerprint, db *Database, threshold float64, k int) (*RankedMatches, error) {
	start := time.Now()
	defer func() { matchDuration.Observe(time.Since(start).Seconds()) }()

	rm := &RankedMatches{Matches: make([]RankedMatch, 0, k)}
	if len(observed.Tests) == 0 {
		rm.OverallStatus = StatusNoMatches
		return rm, nil
	}

	floor := threshold
	for idx, entry := range db.Entries {
		candidatesScored.Inc()
		sr, err := Score(entry, observed, db.MatchPoints, false, nil)
		if err != nil {
			return nil, err
		}
		acc := sr.Accuracy()
		perfect := sr.Perfect()

		if acc < floor && !perfect {
			continue
		}

		// Same-name dedup.
		skip := false
		for i := 0; i < len(rm.Matches); i++ {
			if rm.Matches[i].Entry.DisplayName != entry.DisplayName {
				continue
			}
			if rm.Matches[i].Accuracy >= acc {
				skip = true
			} else {
				rm.Matches = append(rm.Matches[:i], rm.Matches[i+1:]...)
				rm.NumMatches--
			}
			break
		}
		if skip {
			continue
		}

		if perfect {
			if rm.NumPerfectMatches == k {
				rm.OverallStatus = StatusTooManyPerfect
				return rm, nil
			}
			rm.NumPerfectMatches++
		}

		insertRanked(rm, RankedMatch{EntryIndex: idx, Entry: entry, Accuracy: acc})
		if rm.NumMatches > k {
			rm.Matches = rm.Matches[:k]
			rm.NumMatches = k
		}
		if rm.NumMatches == k {
			floor = rm.Matches[k-1].Accuracy + acceptEpsilon
		}
	}

	if rm.NumMatches == 0 {
		rm.OverallStatus = StatusNoMatches
	} else {
		rm.OverallStatus = StatusSuccess
	}
	return rm, nil
}

// insertRanked places cand into rm.Matches by descending accuracy,
// stable: a new candidate is placed after existing entries of equal
// accuracy.
func insertRanked(rm *RankedMatches, cand RankedMatch) {
	i := 0
	for i < len(rm.Matches) && rm.Matches[i].Accuracy >= cand.Accuracy {
		i++
	}
	rm.Matches = append(rm.Matches, RankedMatch{})
	copy(rm.Matches[i+1:], rm.Matches[i:])
	rm.Matches[i] = cand
	rm.NumMatches++
}
