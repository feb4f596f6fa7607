package catalog

import "testing"

func TestMatchSimilarName(t *testing.T) {
	matcher := newCatalog().NewMatcher()

	tests := []struct {
		name      string
		input     string
		wellKnown string // empty means no match expected
		distance  int
	}{
		{"Transposed characters", "scvhost.exe", "svchost.exe", 2},
		{"Digit substitution", "svch0st.exe", "svchost.exe", 1},
		{"Dropped character", "lsas.exe", "lsass.exe", 1},
		{"Mixed case input", "SCVHOST.EXE", "svchost.exe", 2},
		{"Exact well-known name", "svchost.exe", "", 0},
		{"Exact well-known name uppercase", "CSRSS.EXE", "", 0},
		{"Unrelated name", "notepad.exe", "", 0},
		{"Unrelated document", "report.docx", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := matcher.MatchSimilarName(tt.input)

			if tt.wellKnown == "" {
				if len(matches) != 0 {
					t.Fatalf("MatchSimilarName(%q) = %v, want no matches", tt.input, matches)
				}
				return
			}

			if len(matches) != 1 {
				t.Fatalf("MatchSimilarName(%q) returned %d matches, want 1", tt.input, len(matches))
			}
			if matches[0].WellKnown != tt.wellKnown {
				t.Errorf("WellKnown = %q, want %q", matches[0].WellKnown, tt.wellKnown)
			}
			if matches[0].Distance != tt.distance {
				t.Errorf("Distance = %d, want %d", matches[0].Distance, tt.distance)
			}
			if matches[0].Name != tt.input {
				t.Errorf("Name = %q, want %q", matches[0].Name, tt.input)
			}
		})
	}
}
