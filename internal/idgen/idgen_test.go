package idgen

import (
	"regexp"
	"strings"
	"testing"
)

func TestNewSnapshotID_Shape(t *testing.T) {
	pattern := regexp.MustCompile(`^snap-[a-z0-9]{12}$`)
	for i := 0; i < 100; i++ {
		id, err := NewSnapshotID()
		if err != nil {
			t.Fatalf("NewSnapshotID() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("NewSnapshotID() = %q, does not match %s", id, pattern)
		}
		if !IsSnapshotID(id) {
			t.Fatalf("IsSnapshotID(%q) = false for a generated ID", id)
		}
	}
}

func TestNewSnapshotID_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := NewSnapshotID()
		if err != nil {
			t.Fatalf("NewSnapshotID() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestIsSnapshotID(t *testing.T) {
	for _, tc := range []struct {
		id   string
		want bool
	}{
		{"snap-abcdefghij01", true},
		{"snap-abcdefghij0", false},
		{"snap-abcdefghij012", false},
		{"snap-ABCDEFGHIJ01", false},
		{"bd-abcdefghij01", false},
		{"snap-abc-efghij01", false},
		{"", false},
		{SnapshotPrefix + strings.Repeat("z", Length), true},
	} {
		if got := IsSnapshotID(tc.id); got != tc.want {
			t.Errorf("IsSnapshotID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
