package domain

// RuleKind is the requirement an access rule places on the caller.
type RuleKind string

const (
	RulePublic        RuleKind = "public"
	RuleAuthenticated RuleKind = "authenticated"
	RuleRoles         RuleKind = "roles"
)

// AccessRule maps path patterns to a requirement. Rules are evaluated in
// declared order and the first match wins, so specific patterns go first.
type AccessRule struct {
	Patterns []string `json:"patterns" yaml:"patterns"`
	Kind     RuleKind `json:"kind" yaml:"kind"`
	Roles    []Role   `json:"roles,omitempty" yaml:"roles,omitempty"`
}

func Public(patterns ...string) AccessRule {
	return AccessRule{Patterns: patterns, Kind: RulePublic}
}

func Authenticated(patterns ...string) AccessRule {
	return AccessRule{Patterns: patterns, Kind: RuleAuthenticated}
}

func HasAnyRole(roles []Role, patterns ...string) AccessRule {
	return AccessRule{Patterns: patterns, Kind: RuleRoles, Roles: roles}
}

// Decision is the outcome of authorizing a request.
type Decision int

const (
	Allow Decision = iota
	RequireLogin
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RequireLogin:
		return "require_login"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// DefaultAccessRules is the rule set used when no rules file is configured.
func DefaultAccessRules() []AccessRule {
	return []AccessRule{
		Public("/auth/login", "/user/signup", "/auth/fail", "/"),
		HasAnyRole([]Role{RoleAdmin}, "/admin/*"),
		HasAnyRole([]Role{RoleUser}, "/user/*"),
	}
}
