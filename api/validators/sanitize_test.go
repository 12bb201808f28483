package validators

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeStringCapsRunes(t *testing.T) {
	hebrew := "a" + strings.Repeat("ש", 499)
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "trims", input: "  הערה  ", max: 10, want: "הערה"},
		{name: "fits exactly", input: hebrew, max: 500, want: hebrew},
		{name: "cuts on rune", input: hebrew + "ש", max: 500, want: hebrew},
		{name: "short cut", input: "שלום עולם", max: 4, want: "שלום"},
		{name: "no limit", input: "שלום", max: 0, want: "שלום"},
	}
	for _, tt := range tests {
		got := SanitizeString(tt.input, tt.max)
		if got != tt.want {
			t.Fatalf("%s: expected %q got %q", tt.name, tt.want, got)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("%s: result is not valid utf-8", tt.name)
		}
	}
}
