package triage

import (
	"strings"
	"testing"
)

func TestContainsSelfHarm(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"I want to kill myself", true},
		{"thinking about suicide", true},
		{"I am SUICIDAL", true},
		{"I want to end my life", true},
		{"self harm thoughts", true},
		{"I have a headache", false},
		{"my wrist hurts from typing", false},
	}
	for _, tc := range tests {
		if got := ContainsSelfHarm(tc.text); got != tc.want {
			t.Fatalf("ContainsSelfHarm(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestSanitizeInput_StripsMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "I have a headache", "I have a headache"},
		{"trims", "  headache  ", "headache"},
		{"script tag", "<script>alert(1)</script>headache", "alert(1)/scriptheadache"},
		{"javascript url", "javascript:alert(1) headache", "alert(1) headache"},
		{"angle brackets", "a <b> c", "a b c"},
		{"only markup", "<script></script>", "/script"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeInput(tc.in); got != tc.want {
				t.Fatalf("SanitizeInput(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeInput_CapsLength(t *testing.T) {
	long := strings.Repeat("a", 3000)
	if got := SanitizeInput(long); len(got) != 2000 {
		t.Fatalf("len = %d, want 2000", len(got))
	}
}

func TestSanitizeInput_EmptyAfterScrub(t *testing.T) {
	if got := SanitizeInput("   "); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestValidSessionID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"11111111-2222-3333-4444-555555555555", true},
		{"abcDEF1234", true},
		{"short", false},
		{"", false},
		{"has spaces in it!", false},
		{strings.Repeat("a", 41), false},
	}
	for _, tc := range tests {
		if got := ValidSessionID(tc.id); got != tc.want {
			t.Fatalf("ValidSessionID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
