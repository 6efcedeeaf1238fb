package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Role is a named set of permission strings of the form "resource:action".
type Role struct {
	RoleID      uuid.UUID
	Name        string
	Permissions []string
}

// Group is a named set of role references plus principal memberships.
// Principals inherit every role attached to a group they belong to.
type Group struct {
	GroupID uuid.UUID
	Name    string
}

// GrantEffect distinguishes allow grants from explicit denies.
type GrantEffect string

const (
	EffectAllow GrantEffect = "ALLOW"
	EffectDeny  GrantEffect = "DENY"
)

// PermissionOverride is a per-principal grant that bypasses role membership.
// Deny overrides outrank every allow, including role-derived ones.
type PermissionOverride struct {
	PrincipalID uuid.UUID
	Permission  string
	Effect      GrantEffect
}

// PermissionSet is a principal's resolved effective permission set: the union
// of directly-assigned roles, group-inherited roles, and overrides. Both
// slices are kept sorted so evaluation is deterministic.
type PermissionSet struct {
	Allows []string
	Denies []string
}

// Normalize sorts and de-duplicates both grant lists in place.
func (p *PermissionSet) Normalize() {
	p.Allows = dedupeSorted(p.Allows)
	p.Denies = dedupeSorted(p.Denies)
}

// Decision is the outcome of a permission check. Reason is safe for audit:
// it never names resources the principal cannot see.
type Decision struct {
	Allowed bool
	Reason  string
}

// PermissionMatches reports whether a stored grant covers resource:action.
// Supported forms: exact "resource:action", wildcard suffix "resource:*",
// and the global grant "*".
func PermissionMatches(grant, resource, action string) bool {
	if grant == "*" {
		return true
	}
	sep := strings.LastIndex(grant, ":")
	if sep < 0 {
		return false
	}
	grantResource, grantAction := grant[:sep], grant[sep+1:]
	if grantResource != resource {
		return false
	}
	return grantAction == "*" || grantAction == action
}

// EvaluatePermission resolves resource:action against an effective set.
// Explicit denies outrank any allow; absence of a matching grant is a deny.
// Given an identical set, the decision is always the same.
func EvaluatePermission(set PermissionSet, resource, action string) Decision {
	for _, grant := range set.Denies {
		if PermissionMatches(grant, resource, action) {
			return Decision{Allowed: false, Reason: fmt.Sprintf("explicit deny matches %s:%s", resource, action)}
		}
	}
	for _, grant := range set.Allows {
		if PermissionMatches(grant, resource, action) {
			return Decision{Allowed: true, Reason: "granted by " + grant}
		}
	}
	return Decision{Allowed: false, Reason: fmt.Sprintf("no grant matches %s:%s", resource, action)}
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return in
	}
	sort.Strings(in)
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
