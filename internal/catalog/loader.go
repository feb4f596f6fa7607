package catalog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dfir-tools/cerberus/pkg/models"
	"gopkg.in/yaml.v3"
)

// Loader loads all catalog sources. Every load error is fatal: a scan
// running with a partially-loaded catalog would report misleadingly
// "clean" results, so the scan must not start at all.
type Loader struct {
	rulesPath     string
	hashLists     []string
	filenameLists []string
}

// NewLoader creates a new catalog loader
func NewLoader(rulesPath string, hashLists, filenameLists []string) *Loader {
	return &Loader{
		rulesPath:     rulesPath,
		hashLists:     hashLists,
		filenameLists: filenameLists,
	}
}

// RuleFile represents a YAML ruleset file
type RuleFile struct {
	Rules []*models.Rule `yaml:"rules"`
}

// Load loads and compiles all sources into an immutable Catalog
func (l *Loader) Load() (*Catalog, error) {
	cat := newCatalog()

	if l.rulesPath != "" {
		if err := l.loadRules(cat); err != nil {
			return nil, fmt.Errorf("loading rules from %s: %w", l.rulesPath, err)
		}
	}

	for _, path := range l.hashLists {
		if err := l.loadHashList(cat, path); err != nil {
			return nil, fmt.Errorf("loading hash list %s: %w", path, err)
		}
	}

	for _, path := range l.filenameLists {
		if err := l.loadFilenameList(cat, path); err != nil {
			return nil, fmt.Errorf("loading filename patterns %s: %w", path, err)
		}
	}

	return cat, nil
}

// loadRules loads rules from a single YAML file or from every
// .yaml/.yml file under a directory
func (l *Loader) loadRules(cat *Catalog) error {
	info, err := os.Stat(l.rulesPath)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return l.loadRuleFile(cat, l.rulesPath)
	}

	return filepath.Walk(l.rulesPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || (filepath.Ext(path) != ".yaml" && filepath.Ext(path) != ".yml") {
			return nil
		}
		if err := l.loadRuleFile(cat, path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	})
}

// loadRuleFile loads rules from a single YAML file
func (l *Loader) loadRuleFile(cat *Catalog, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var ruleFile RuleFile
	if err := yaml.Unmarshal(data, &ruleFile); err != nil {
		return err
	}

	for _, rule := range ruleFile.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule without id in %s", path)
		}
		if rule.Pattern == "" {
			return fmt.Errorf("rule %s has no pattern", rule.ID)
		}
		if cat.RuleByID(rule.ID) != nil {
			return fmt.Errorf("duplicate rule id %s", rule.ID)
		}

		// Set defaults
		if len(rule.Kinds) == 0 {
			rule.Kinds = []string{"*"}
		}

		if rule.IsRegex {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
			}
			rule.CompiledRe = re
		}

		cat.addRule(rule)
	}

	return nil
}

// Digest lengths used to infer the algorithm for unprefixed entries.
var digestLengths = map[int]string{
	32: "md5",
	40: "sha1",
	64: "sha256",
}

// loadHashList loads one digest-per-line hash list. Lines may carry an
// explicit "algorithm:digest" prefix; bare digests have the algorithm
// inferred from their length. blake3 digests are 32 bytes like sha256,
// so they always need the explicit prefix.
func (l *Loader) loadHashList(cat *Catalog, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		algorithm := ""
		digest := line
		if idx := strings.IndexByte(line, ':'); idx > 0 {
			algorithm = strings.ToLower(line[:idx])
			digest = line[idx+1:]
		}
		digest = strings.ToLower(strings.TrimSpace(digest))

		if algorithm == "" {
			var ok bool
			algorithm, ok = digestLengths[len(digest)]
			if !ok {
				return fmt.Errorf("line %d: cannot infer algorithm from digest length %d", lineNo, len(digest))
			}
		}
		switch algorithm {
		case "md5", "sha1", "sha256", "blake3":
		default:
			return fmt.Errorf("line %d: unknown algorithm %q", lineNo, algorithm)
		}

		if !isHex(digest) {
			return fmt.Errorf("line %d: digest is not hex: %q", lineNo, digest)
		}

		cat.addDigest(algorithm, digest)
	}

	return scanner.Err()
}

// loadFilenameList loads one regex-per-line filename pattern file
func (l *Loader) loadFilenameList(cat *Catalog, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		re, err := regexp.Compile(line)
		if err != nil {
			return fmt.Errorf("line %d: invalid pattern: %w", lineNo, err)
		}
		cat.patterns = append(cat.patterns, &FilenamePattern{Expr: line, Re: re})
	}

	return scanner.Err()
}

func isHex(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
