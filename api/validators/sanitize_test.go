package validators

import "testing"

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "trims", input: "  Libro  ", maxLen: 10, want: "Libro"},
		{name: "no limit", input: " abc ", maxLen: 0, want: "abc"},
		{name: "cuts on runes", input: "ñandú añejo", maxLen: 5, want: "ñandú"},
		{name: "keeps multibyte intact", input: "日本語テキスト", maxLen: 3, want: "日本語"},
		{name: "trailing space after cut", input: "ab cd", maxLen: 3, want: "ab"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.input, tc.maxLen); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.want)
			}
		})
	}
}
