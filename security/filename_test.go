package security

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"site.jpg", "site.jpg"},
		{"../../../etc/passwd", "passwd"},
		{`C:\Users\me\photo.png`, "photo.png"},
		{"", "evidence"},
		{"..", "evidence"},
		{"  ", "evidence"},
		{"\x00site.jpg", "site.jpg"},
		{`say "hi";.png`, "say _hi__.png"},
		{strings.Repeat("a", 300) + ".png", strings.Repeat("a", 255)},
		{strings.Repeat("é", 200), strings.Repeat("é", 127)},
	}

	for _, tt := range tests {
		result := SanitizeFilename(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
		}
		if strings.ContainsAny(result, `/\"`) {
			t.Errorf("SanitizeFilename(%q) still contains unsafe characters: %s", tt.input, result)
		}
	}
}

func TestValidateExtension(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.png", true},
		{"a.JPG", true},
		{"a.jpeg", true},
		{"a", true},
		{"a.gif", false},
		{"a.png.exe", false},
	}

	for _, tt := range tests {
		if got := ValidateExtension(tt.name, EvidenceExtensions); got != tt.want {
			t.Errorf("ValidateExtension(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
