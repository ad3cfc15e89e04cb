package grantid

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		prefix Prefix
	}{
		{name: "manual", prefix: PrefixManual},
		{name: "web", prefix: PrefixWeb},
		{name: "generated", prefix: PrefixGenerated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := New(tt.prefix)
			if !strings.HasPrefix(id, string(tt.prefix)) {
				t.Fatalf("New(%q) = %q, missing prefix", tt.prefix, id)
			}
			if id != strings.ToLower(id) {
				t.Errorf("New(%q) = %q, want lowercase", tt.prefix, id)
			}
			prefix, _, err := Parse(id)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", id, err)
			}
			if prefix != tt.prefix {
				t.Errorf("Parse(%q) prefix = %q, want %q", id, prefix, tt.prefix)
			}
		})
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := New(PrefixManual)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d iterations", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: New(PrefixWeb), want: true},
		{value: "jan_01hzzzzzzzzzzzzzzzzzzzzz", want: false},
		{value: "manual_not-a-ulid", want: false},
		{value: "", want: false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.value); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestIsPathSafe(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "manual_01j0abc", want: true},
		{value: "legacy-id-42", want: true},
		{value: "../etc/passwd", want: false},
		{value: "a/b", want: false},
		{value: `a\b`, want: false},
		{value: "..", want: false},
		{value: "", want: false},
	}

	for _, tt := range tests {
		if got := IsPathSafe(tt.value); got != tt.want {
			t.Errorf("IsPathSafe(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
