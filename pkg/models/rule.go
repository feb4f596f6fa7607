package models

import (
	"regexp"

	"gopkg.in/yaml.v3"
)

// Rule represents a signature rule loaded from a YAML ruleset
type Rule struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Severity    Severity       `yaml:"severity" json:"severity"`
	Pattern     string         `yaml:"pattern" json:"pattern"`
	IsRegex     bool           `yaml:"is_regex" json:"is_regex"`
	Kinds       []string       `yaml:"kinds" json:"kinds"` // target kinds the rule applies to, "*" for all
	Enabled     bool           `yaml:"enabled" json:"enabled"`
	CompiledRe  *regexp.Regexp `yaml:"-" json:"-"`
}

// UnmarshalYAML decodes a rule with enabled defaulting to true, so an
// absent key enables the rule while an explicit `enabled: false`
// switches it off.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	type plain Rule
	p := plain{Enabled: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// AppliesTo reports whether the rule should run against the given target kind
func (r *Rule) AppliesTo(kind TargetKind) bool {
	if len(r.Kinds) == 0 {
		return true
	}
	for _, k := range r.Kinds {
		if k == "*" || k == string(kind) {
			return true
		}
	}
	return false
}
