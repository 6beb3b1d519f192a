package analyzer

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{
			name:     "collapses whitespace runs",
			input:    "The  party\tshall   pay\n\nall fees.",
			expected: "The party shall pay all fees.",
			ok:       true,
		},
		{
			name:     "strips unsafe characters",
			input:    "Penalty of $500 applies; see §4(b).",
			expected: "Penalty of 500 applies; see 4(b).",
			ok:       true,
		},
		{
			name:     "keeps legal punctuation",
			input:    "Terms: fees, costs; notice! Why? [a] {b} (c) - end.",
			expected: "Terms: fees, costs; notice! Why? [a] {b} (c) - end.",
			ok:       true,
		},
		{
			name:     "replaces newlines with spaces",
			input:    "Section one.\r\nSection two.",
			expected: "Section one. Section two.",
			ok:       true,
		},
		{
			name:     "trims leading and trailing whitespace",
			input:    "   the agreement terminates.   ",
			expected: "the agreement terminates.",
			ok:       true,
		},
		{
			name:  "empty input is insufficient",
			input: "",
			ok:    false,
		},
		{
			name:  "whitespace only is insufficient",
			input: "   \n\t  ",
			ok:    false,
		},
		{
			name:  "below minimum length is insufficient",
			input: "short",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if tt.ok && got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestNormalizeIsPure(t *testing.T) {
	input := "The party\nshall  indemnify the other party."

	first, ok1 := Normalize(input)
	second, ok2 := Normalize(input)

	if !ok1 || !ok2 {
		t.Fatal("Expected both calls to succeed")
	}
	if first != second {
		t.Errorf("Expected identical output, got %q and %q", first, second)
	}
	if strings.Contains(first, "\n") {
		t.Error("Expected no newlines in normalized text")
	}
}
