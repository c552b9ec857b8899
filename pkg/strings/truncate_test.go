package strings

import (
	"testing"
	"unicode/utf8"
)

func TestTruncateDescription(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short description unchanged", "access_denied", 20, "access_denied"},
		{"exact length unchanged", "denied", 6, "denied"},
		{"long description truncated", "The user declined to consent to the requested scopes", 20, "The user declined..."},
		{"line breaks collapsed", "AADSTS65004:\r\nUser declined\n\nconsent", 60, "AADSTS65004: User declined consent"},
		{"tabs and runs of spaces collapsed", "invalid\t\tscope    requested", 60, "invalid scope requested"},
		{"surrounding whitespace trimmed", "  consent_required  ", 60, "consent_required"},
		{"empty", "", 10, ""},
		{"whitespace only", " \n\t ", 10, ""},
		{"maxLen clamped", "login_required", 1, "l..."},
		{"negative maxLen clamped", "login_required", -5, "l..."},
		{"short string with small maxLen", "ok", 3, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateDescription(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("TruncateDescription(%q, %d) = %q, want %q",
					tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestTruncateDescription_CountsRunes(t *testing.T) {
	input := "Anmeldung für Zugriff abgelehnt ✗"

	result := TruncateDescription(input, 12)

	if !utf8.ValidString(result) {
		t.Fatalf("Expected valid UTF-8, got %q", result)
	}
	if n := utf8.RuneCountInString(result); n != 12 {
		t.Errorf("Expected 12 runes, got %d (%q)", n, result)
	}
	if result != "Anmeldung..." {
		t.Errorf("Expected %q, got %q", "Anmeldung...", result)
	}
}
