// Package security cleans user-supplied evidence file names before they are
// sent to a pinning provider or echoed back in messages.
package security

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// EvidenceExtensions are the file extensions accepted for evidence images.
var EvidenceExtensions = []string{".png", ".jpg", ".jpeg"}

const maxFilenameBytes = 255

// SanitizeFilename strips directories and control characters, replaces
// characters that break multipart headers and caps the length at 255 bytes.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(strings.TrimSpace(filename))

	filename = strings.Map(func(r rune) rune {
		switch {
		case r < 32 || r == 127:
			return -1
		case r == '"' || r == ';':
			return '_'
		}
		return r
	}, filename)

	for len(filename) > maxFilenameBytes {
		_, size := utf8.DecodeLastRuneInString(filename)
		filename = filename[:len(filename)-size]
	}

	if filename == "" || filename == "." || filename == ".." || filename == "/" {
		return "evidence"
	}
	return filename
}

// ValidateExtension reports whether filename ends in one of allowed.
// Names without an extension are accepted; content sniffing decides.
func ValidateExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return true
	}
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}
