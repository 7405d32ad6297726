package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/99minutos/session-security/internal/core/domain"
)

type rulesFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Patterns []string `yaml:"patterns"`
	Kind     string   `yaml:"kind"`
	Roles    []string `yaml:"roles"`
}

// LoadAccessRules returns the ordered rule list from path, or the default
// rules when path is empty.
func LoadAccessRules(path string) ([]domain.AccessRule, error) {
	if path == "" {
		return domain.DefaultAccessRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read access rules: %w", err)
	}
	return ParseAccessRules(raw)
}

// ParseAccessRules decodes a YAML rules document, preserving order.
func ParseAccessRules(raw []byte) ([]domain.AccessRule, error) {
	var doc rulesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse access rules: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("parse access rules: no rules defined")
	}

	rules := make([]domain.AccessRule, 0, len(doc.Rules))
	for i, e := range doc.Rules {
		rule := domain.AccessRule{Patterns: e.Patterns, Kind: domain.RuleKind(e.Kind)}
		switch rule.Kind {
		case domain.RulePublic, domain.RuleAuthenticated, domain.RuleRoles:
		default:
			return nil, fmt.Errorf("rule %d: unknown kind %q", i, e.Kind)
		}
		for _, r := range e.Roles {
			role, err := domain.ParseRole(r)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w: %q", i, err, r)
			}
			rule.Roles = append(rule.Roles, role)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
