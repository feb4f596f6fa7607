package catalog

import (
	"regexp"
	"sort"

	"github.com/dfir-tools/cerberus/pkg/models"
)

// FilenamePattern is one compiled filename/path pattern together with
// the source expression it was loaded from.
type FilenamePattern struct {
	Expr string
	Re   *regexp.Regexp
}

// Catalog holds all compiled detection data for one scan: signature
// rules, per-algorithm known-bad digest sets and filename patterns.
// It is built once by the Loader before any worker starts and is
// read-only afterwards, so workers share it freely by reference.
type Catalog struct {
	rules    []*models.Rule
	byID     map[string]*models.Rule
	hashSets map[string]map[string]struct{}
	patterns []*FilenamePattern
}

func newCatalog() *Catalog {
	return &Catalog{
		byID:     make(map[string]*models.Rule),
		hashSets: make(map[string]map[string]struct{}),
	}
}

func (c *Catalog) addRule(r *models.Rule) {
	c.rules = append(c.rules, r)
	c.byID[r.ID] = r
}

func (c *Catalog) addDigest(algorithm, digest string) {
	set, ok := c.hashSets[algorithm]
	if !ok {
		set = make(map[string]struct{})
		c.hashSets[algorithm] = set
	}
	set[digest] = struct{}{}
}

// RuleCount returns the number of loaded signature rules
func (c *Catalog) RuleCount() int {
	return len(c.rules)
}

// RuleByID returns the rule with the given identifier, or nil
func (c *Catalog) RuleByID(id string) *models.Rule {
	return c.byID[id]
}

// DigestCount returns the number of known-bad digests across all algorithms
func (c *Catalog) DigestCount() int {
	n := 0
	for _, set := range c.hashSets {
		n += len(set)
	}
	return n
}

// PatternCount returns the number of compiled filename patterns
func (c *Catalog) PatternCount() int {
	return len(c.patterns)
}

// Algorithms returns the sorted list of algorithms that have at least
// one digest loaded. Workers use this to avoid computing digests no
// list could ever match.
func (c *Catalog) Algorithms() []string {
	algos := make([]string, 0, len(c.hashSets))
	for algo := range c.hashSets {
		algos = append(algos, algo)
	}
	sort.Strings(algos)
	return algos
}

// HasDigest reports whether the digest is in the known-bad set for the
// given algorithm. Digests are stored and looked up as lowercase hex.
func (c *Catalog) HasDigest(algorithm, digest string) bool {
	_, ok := c.hashSets[algorithm][digest]
	return ok
}
