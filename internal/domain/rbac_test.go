package domain

import (
	"testing"
)

func TestPermissionMatches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		grant    string
		resource string
		action   string
		want     bool
	}{
		{"exact match", "docs:read", "docs", "read", true},
		{"action mismatch", "docs:read", "docs", "write", false},
		{"resource mismatch", "docs:read", "billing", "read", false},
		{"action wildcard", "docs:*", "docs", "delete", true},
		{"action wildcard wrong resource", "docs:*", "billing", "read", false},
		{"global wildcard", "*", "anything", "at-all", true},
		{"malformed grant", "docs", "docs", "read", false},
		{"empty grant", "", "docs", "read", false},
		{"nested action name", "docs:read:deep", "docs:read", "deep", true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := PermissionMatches(tc.grant, tc.resource, tc.action); got != tc.want {
				t.Fatalf("PermissionMatches(%q, %q, %q) = %v, want %v", tc.grant, tc.resource, tc.action, got, tc.want)
			}
		})
	}
}

func TestEvaluatePermissionDenyWins(t *testing.T) {
	t.Parallel()

	set := PermissionSet{
		Allows: []string{"docs:*", "billing:read"},
		Denies: []string{"docs:delete"},
	}

	if d := EvaluatePermission(set, "docs", "read"); !d.Allowed {
		t.Fatalf("expected allow for docs:read, got %+v", d)
	}
	if d := EvaluatePermission(set, "docs", "delete"); d.Allowed {
		t.Fatalf("deny must outrank wildcard allow, got %+v", d)
	}
	if d := EvaluatePermission(set, "billing", "write"); d.Allowed {
		t.Fatalf("absence of a grant is a deny, got %+v", d)
	}
}

func TestEvaluatePermissionWildcardDeny(t *testing.T) {
	t.Parallel()

	set := PermissionSet{
		Allows: []string{"docs:read"},
		Denies: []string{"docs:*"},
	}
	if d := EvaluatePermission(set, "docs", "read"); d.Allowed {
		t.Fatalf("wildcard deny must cover the exact allow, got %+v", d)
	}
}

func TestEvaluatePermissionEmptySet(t *testing.T) {
	t.Parallel()

	if d := EvaluatePermission(PermissionSet{}, "docs", "read"); d.Allowed {
		t.Fatalf("empty set must deny, got %+v", d)
	}
}

func TestNormalizeDeduplicatesAndSorts(t *testing.T) {
	t.Parallel()

	set := PermissionSet{
		Allows: []string{"b:x", "a:y", "b:x", "a:y"},
		Denies: []string{"z:*", "z:*"},
	}
	set.Normalize()

	wantAllows := []string{"a:y", "b:x"}
	if len(set.Allows) != len(wantAllows) {
		t.Fatalf("allows not deduplicated: %v", set.Allows)
	}
	for i, v := range wantAllows {
		if set.Allows[i] != v {
			t.Fatalf("allows not sorted: %v", set.Allows)
		}
	}
	if len(set.Denies) != 1 || set.Denies[0] != "z:*" {
		t.Fatalf("denies not deduplicated: %v", set.Denies)
	}
}
