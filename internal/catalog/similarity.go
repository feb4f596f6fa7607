package catalog

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxNameDistance is the edit-distance ceiling for a similarity hit.
// Distance 1 catches single-character swaps (svch0st.exe), distance 2
// catches transpositions (scvhost.exe).
const maxNameDistance = 2

// wellKnownNames are system binaries that malware commonly masquerades
// as. Names are lowercase; comparison is case-insensitive.
var wellKnownNames = []string{
	"svchost.exe",
	"explorer.exe",
	"iexplore.exe",
	"lsass.exe",
	"csrss.exe",
	"smss.exe",
	"services.exe",
	"winlogon.exe",
	"wininit.exe",
	"spoolsv.exe",
	"taskhostw.exe",
	"rundll32.exe",
	"conhost.exe",
	"chrome.exe",
	"firefox.exe",
}

var wellKnownSet = func() map[string]bool {
	set := make(map[string]bool, len(wellKnownNames))
	for _, name := range wellKnownNames {
		set[name] = true
	}
	return set
}()

// SimilarityMatch represents one filename sitting close to a
// well-known system binary name
type SimilarityMatch struct {
	Name      string // the filename as seen on disk
	WellKnown string // the system binary it resembles
	Distance  int    // Levenshtein distance between the two
}

// MatchSimilarName flags a filename within a small edit distance of a
// well-known system binary name. An exact match is the legitimate file
// itself and never flagged; the exact check also keeps well-known
// names from flagging each other (csrss.exe sits two edits from
// smss.exe).
func (m *Matcher) MatchSimilarName(name string) []SimilarityMatch {
	lower := strings.ToLower(name)
	if wellKnownSet[lower] {
		return nil
	}

	var results []SimilarityMatch
	for _, known := range wellKnownNames {
		if d := levenshtein.ComputeDistance(lower, known); d <= maxNameDistance {
			results = append(results, SimilarityMatch{Name: name, WellKnown: known, Distance: d})
		}
	}
	return results
}
