package service

import (
	"fmt"
	"path"
	"strings"

	"github.com/99minutos/session-security/internal/core/domain"
)

// AccessPolicy evaluates an ordered rule list. The first rule with a matching
// pattern decides; declaration order, not specificity, is what counts.
type AccessPolicy struct {
	rules []domain.AccessRule
}

// NewAccessPolicy validates rules and copies them so later mutation by the
// caller cannot reorder evaluation.
func NewAccessPolicy(rules []domain.AccessRule) (*AccessPolicy, error) {
	copied := make([]domain.AccessRule, 0, len(rules))
	for i, rule := range rules {
		if err := validateRule(rule); err != nil {
			return nil, fmt.Errorf("access rule %d: %w", i, err)
		}
		rule.Patterns = append([]string(nil), rule.Patterns...)
		rule.Roles = append([]domain.Role(nil), rule.Roles...)
		copied = append(copied, rule)
	}
	return &AccessPolicy{rules: copied}, nil
}

// Rules returns a copy of the rule list in evaluation order.
func (p *AccessPolicy) Rules() []domain.AccessRule {
	return append([]domain.AccessRule(nil), p.rules...)
}

// Match returns the first rule whose pattern matches urlPath.
func (p *AccessPolicy) Match(urlPath string) (domain.AccessRule, bool) {
	for _, rule := range p.rules {
		for _, pattern := range rule.Patterns {
			if matchPattern(pattern, urlPath) {
				return rule, true
			}
		}
	}
	return domain.AccessRule{}, false
}

// Authorize decides whether principal (nil when anonymous) may reach urlPath.
// Unmatched paths require any authenticated principal.
func (p *AccessPolicy) Authorize(urlPath string, principal *domain.Principal) domain.Decision {
	rule, ok := p.Match(urlPath)
	if !ok {
		rule = domain.Authenticated()
	}

	switch rule.Kind {
	case domain.RulePublic:
		return domain.Allow
	case domain.RuleRoles:
		if principal == nil {
			return domain.RequireLogin
		}
		if principal.HasRole(rule.Roles...) {
			return domain.Allow
		}
		return domain.Forbidden
	default:
		if principal == nil {
			return domain.RequireLogin
		}
		return domain.Allow
	}
}

func validateRule(rule domain.AccessRule) error {
	if len(rule.Patterns) == 0 {
		return fmt.Errorf("no patterns")
	}
	for _, pattern := range rule.Patterns {
		if !strings.HasPrefix(pattern, "/") {
			return fmt.Errorf("pattern %q must start with /", pattern)
		}
		if _, err := path.Match(strings.TrimSuffix(pattern, "/**"), ""); err != nil {
			return fmt.Errorf("pattern %q: %w", pattern, err)
		}
	}
	switch rule.Kind {
	case domain.RulePublic, domain.RuleAuthenticated:
	case domain.RuleRoles:
		if len(rule.Roles) == 0 {
			return fmt.Errorf("roles rule without roles")
		}
		for _, r := range rule.Roles {
			if !r.Valid() {
				return fmt.Errorf("%w: %q", domain.ErrInvalidRole, r)
			}
		}
	default:
		return fmt.Errorf("unknown rule kind %q", rule.Kind)
	}
	return nil
}

// matchPattern supports exact paths, "*" within a single segment and a
// trailing "/**" for any depth.
func matchPattern(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		if prefix == "" || urlPath == prefix {
			return true
		}
		if !strings.HasPrefix(urlPath, "/") {
			return false
		}
		segs := strings.Count(prefix, "/")
		parts := strings.SplitN(urlPath, "/", segs+2)
		if len(parts) < segs+1 {
			return false
		}
		head := strings.Join(parts[:segs+1], "/")
		ok, _ := path.Match(prefix, head)
		return ok
	}
	ok, _ := path.Match(pattern, urlPath)
	return ok
}
