package tui

import (
	"strings"
	"testing"
)

func TestEditRuneAddCharacters(t *testing.T) {
	tests := []struct {
		name  string
		start string
		key   string
		want  string
	}{
		{"append to empty", "", "I", "I"},
		{"append letter", "Incepti", "o", "Inceptio"},
		{"append digit", "Blade Runner ", "2", "Blade Runner 2"},
		{"append space", "The", " ", "The "},
		{"append special", "Amélie", "!", "Amélie!"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := editRune(tc.start, tc.key)
			if got != tc.want {
				t.Errorf("editRune(%q, %q) = %q, want %q", tc.start, tc.key, got, tc.want)
			}
		})
	}
}

func TestEditRuneBackspace(t *testing.T) {
	tests := []struct {
		name  string
		start string
		want  string
	}{
		{"backspace on single char", "a", ""},
		{"backspace on longer string", "Heat", "Hea"},
		{"backspace on empty does nothing", "", ""},
		{"backspace removes whole rune", "Amélie é", "Amélie "},
		{"backspace removes emoji", "popcorn\U0001f37f", "popcorn"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := editRune(tc.start, "backspace")
			if got != tc.want {
				t.Errorf("editRune(%q, 'backspace') = %q, want %q", tc.start, got, tc.want)
			}
		})
	}
}

func TestEditRuneIgnoresNonPrintableKeys(t *testing.T) {
	nonPrintable := []string{
		"enter",
		"esc",
		"up",
		"down",
		"ctrl+c",
		"ctrl+t",
		"tab",
		"shift+tab",
		"f1",
		"pgdown",
	}

	original := "Arrival"
	for _, key := range nonPrintable {
		t.Run(key, func(t *testing.T) {
			got := editRune(original, key)
			if got != original {
				t.Errorf("editRune(%q, %q) = %q, want unchanged %q", original, key, got, original)
			}
		})
	}
}

func TestEditRuneMaxInputLen(t *testing.T) {
	atLimit := strings.Repeat("a", maxInputLen)
	belowLimit := strings.Repeat("a", maxInputLen-1)

	if got := editRune(atLimit, "b"); got != atLimit {
		t.Errorf("at limit: got %d runes, want %d", len([]rune(got)), maxInputLen)
	}
	if got := editRune(belowLimit, "b"); got != belowLimit+"b" {
		t.Errorf("below limit: got %d runes, want %d", len([]rune(got)), maxInputLen)
	}
	if got := editRune(atLimit, "backspace"); got != atLimit[:len(atLimit)-1] {
		t.Errorf("at limit backspace: got %d runes, want %d", len([]rune(got)), maxInputLen-1)
	}
}

func TestTruncStr(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"under limit", "Heat", 10, "Heat"},
		{"at limit", "Heat", 4, "Heat"},
		{"over limit", "The Matrix Reloaded", 10, "The Matri…"},
		{"empty string", "", 5, ""},
		{"single char over", "ab", 1, "…"},
		{"zero width", "Heat", 0, ""},
		{"CJK chars", "千と千尋", 3, "千と…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncStr(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncStr(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateToHeightLimitsLines(t *testing.T) {
	input := "line1\nline2\nline3\nline4\nline5\n"
	result := truncateToHeight(input, 3)

	if lines := strings.Count(result, "\n"); lines > 3 {
		t.Errorf("truncateToHeight(5 lines, 3) produced %d newlines, want <= 3", lines)
	}
	if !strings.Contains(result, "line1") {
		t.Errorf("truncateToHeight result missing first line: %q", result)
	}
	if strings.Contains(result, "line4") {
		t.Errorf("truncateToHeight result should not contain line4: %q", result)
	}
}

func TestTruncateToHeightNonPositiveMaxReturnsAll(t *testing.T) {
	input := "line1\nline2\nline3\n"
	for _, n := range []int{0, -1} {
		if got := truncateToHeight(input, n); got != input {
			t.Errorf("truncateToHeight(%d) = %q, want input unchanged", n, got)
		}
	}
	if got := truncateToHeight(input, 10); got != input {
		t.Errorf("truncateToHeight within limit = %q, want %q", got, input)
	}
}

func TestRenderInput(t *testing.T) {
	if got := renderInput("add › ", "", "movie title", false); !strings.Contains(got, "movie title") {
		t.Errorf("empty unfocused input should show placeholder: %q", got)
	}
	if got := renderInput("add › ", "Heat", "movie title", true); !strings.Contains(got, "Heat") || !strings.Contains(got, "█") {
		t.Errorf("focused input should show value and cursor: %q", got)
	}
	if got := renderInput("add › ", "Heat", "movie title", false); strings.Contains(got, "█") {
		t.Errorf("unfocused input should not show a cursor: %q", got)
	}
}

func TestPlural(t *testing.T) {
	tests := map[int]string{0: "0 movies", 1: "1 movie", 2: "2 movies"}
	for n, want := range tests {
		if got := plural(n, "movie"); got != want {
			t.Errorf("plural(%d) = %q, want %q", n, got, want)
		}
	}
}
