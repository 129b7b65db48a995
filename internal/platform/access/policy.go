// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package access implements the route-level authorization policy.

A [Policy] is an ordered table of rules, each binding a path pattern and an
optional HTTP method to a [Requirement]. The table is compiled once at startup
and is read-only afterwards.

Decision procedure:

  - Collect every rule whose pattern and method match the request.
  - Pick the most specific one: more literal segments, then more parameter
    segments, then a method-bound rule over an any-method rule, then table order.
  - Paths that no rule matches require authentication.
*/
package access

import (
	"cmp"
	"fmt"
	"net/http"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/constants"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// # Requirements

type requirementKind int

const (
	kindAuthenticated requirementKind = iota
	kindPublic
	kindRole
)

// Requirement is what a caller must present to pass a rule.
type Requirement struct {
	kind requirementKind
	role sec.UserRole
}

var (
	// Public allows anonymous callers.
	Public = Requirement{kind: kindPublic}

	// Authenticated allows any identified caller.
	Authenticated = Requirement{kind: kindAuthenticated}
)

// Role requires an identified caller whose role is at least r.
func Role(r sec.UserRole) Requirement {
	return Requirement{kind: kindRole, role: r}
}

// String implements [fmt.Stringer].
func (r Requirement) String() string {
	switch r.kind {
	case kindPublic:
		return "public"
	case kindRole:
		return "role:" + r.role.String()
	default:
		return "authenticated"
	}
}

// # Errors

var (
	// ErrUnauthenticated is returned when a protected route is called anonymously.
	ErrUnauthenticated = apperr.Unauthorized("Full authentication is required to access this resource")

	// ErrForbidden is returned when the caller's role is below the requirement.
	ErrForbidden = apperr.Forbidden("Access is denied")
)

// # Rules

// AnyMethod matches every HTTP method.
const AnyMethod = ""

// Rule binds a path pattern and method to a requirement.
type Rule struct {
	Pattern     string
	Method      string
	Requirement Requirement
}

type compiledRule struct {
	pattern     Pattern
	method      string
	requirement Requirement
	order       int
}

// Policy is an immutable, compiled rule table. It is safe for concurrent use.
type Policy struct {
	rules []compiledRule
}

// NewPolicy compiles rules into a [Policy]. Rule order is the final tie-breaker.
func NewPolicy(rules ...Rule) (*Policy, error) {
	policy := &Policy{rules: make([]compiledRule, 0, len(rules))}

	for index, rule := range rules {
		pattern, err := CompilePattern(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("access: rule %d: %w", index, err)
		}
		policy.rules = append(policy.rules, compiledRule{
			pattern:     pattern,
			method:      rule.Method,
			requirement: rule.Requirement,
			order:       index,
		})
	}

	return policy, nil
}

// DefaultRules returns the rule table of the Gatekeeper API.
func DefaultRules() []Rule {
	api := constants.APIPrefix

	return []Rule{
		{api + "/auth/register", http.MethodPost, Public},
		{api + "/auth/login", http.MethodPost, Public},
		{api + "/auth/refresh", http.MethodPost, Public},
		{api + "/auth/**", AnyMethod, Authenticated},
		{api + "/users/{id}/role", http.MethodPut, Role(sec.RoleAdmin)},
		{api + "/users/{id}/password", http.MethodPut, Role(sec.RoleAdmin)},
		{api + "/users/{id}", http.MethodDelete, Role(sec.RoleAdmin)},
		{api + "/users/password", http.MethodPut, Authenticated},
		{api + "/**", AnyMethod, Authenticated},
		{"/health", http.MethodGet, Public},
		{"/ready", http.MethodGet, Public},
		{"/metrics", http.MethodGet, Public},
	}
}

// # Decisions

// Requirement resolves the requirement that applies to method and path.
func (p *Policy) Requirement(method, path string) Requirement {
	var best *compiledRule

	for index := range p.rules {
		candidate := &p.rules[index]
		if candidate.method != AnyMethod && candidate.method != method {
			continue
		}
		if !candidate.pattern.Match(path) {
			continue
		}
		if best == nil || moreSpecific(candidate, best) {
			best = candidate
		}
	}

	if best == nil {
		return Authenticated
	}
	return best.requirement
}

// Decide returns nil when identity may call method on path, otherwise
// [ErrUnauthenticated] or [ErrForbidden].
func (p *Policy) Decide(method, path string, identity *sec.Identity) error {
	requirement := p.Requirement(method, path)

	switch {
	case requirement.kind == kindPublic:
		return nil
	case identity == nil:
		return ErrUnauthenticated
	case requirement.kind == kindRole && !identity.HasRole(requirement.role):
		return ErrForbidden
	default:
		return nil
	}
}

// moreSpecific reports whether a outranks b.
func moreSpecific(a, b *compiledRule) bool {
	if c := cmp.Compare(a.pattern.literals, b.pattern.literals); c != 0 {
		return c > 0
	}
	if c := cmp.Compare(a.pattern.params, b.pattern.params); c != 0 {
		return c > 0
	}
	aBound, bBound := a.method != AnyMethod, b.method != AnyMethod
	if aBound != bBound {
		return aBound
	}
	return a.order < b.order
}

// Rules returns the table in declaration order, for diagnostics.
func (p *Policy) Rules() []Rule {
	rules := make([]Rule, 0, len(p.rules))
	for _, rule := range p.rules {
		rules = append(rules, Rule{Pattern: rule.pattern.String(), Method: rule.method, Requirement: rule.requirement})
	}
	return rules
}
