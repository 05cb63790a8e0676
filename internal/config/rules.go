package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"clipflow/internal/domain"
)

// rulesFile models rules.yml: an ordered list of priority rules.
type rulesFile struct {
	Rules []domain.PriorityRule `yaml:"rules"`
}

// RulesPath returns the priority rules file path for a workspace.
func RulesPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return workspace + "/rules.yml"
}

// LoadRules reads priority rules from a YAML file. A missing file means no
// rules; the prioritized planner then behaves like the basic one.
func LoadRules(path string) ([]domain.PriorityRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return RulesFromYAML(data)
}

// RulesFromYAML parses and validates priority rules from raw YAML bytes.
func RulesFromYAML(data []byte) ([]domain.PriorityRule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid rules yaml: %w", err)
	}
	for i, r := range f.Rules {
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rule %d: keywords is required", i)
		}
		if r.Saturation < 0 || r.Saturation > 1 {
			return nil, fmt.Errorf("rule %d: saturation %v outside [0,1]", i, r.Saturation)
		}
		if _, _, err := RuleWindow(r); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return f.Rules, nil
}

// RuleWindow parses a rule's optional date bounds. A nil bound is unbounded.
func RuleWindow(r domain.PriorityRule) (from, to *time.Time, err error) {
	if r.From != "" {
		t, perr := time.Parse("2006-01-02", r.From)
		if perr != nil {
			return nil, nil, fmt.Errorf("from date %q: %w", r.From, perr)
		}
		from = &t
	}
	if r.To != "" {
		t, perr := time.Parse("2006-01-02", r.To)
		if perr != nil {
			return nil, nil, fmt.Errorf("to date %q: %w", r.To, perr)
		}
		to = &t
	}
	return from, to, nil
}
