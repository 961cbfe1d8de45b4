package parser

import (
	"path/filepath"
	"strings"
)

// Language represents a supported programming language for parsing.
type Language int

const (
	// LanguageRust represents Rust (.rs files)
	LanguageRust Language = iota
	// LanguageUnknown represents an unsupported language
	LanguageUnknown
)

// String returns the string representation of the language.
func (l Language) String() string {
	switch l {
	case LanguageRust:
		return "rust"
	default:
		return "unknown"
	}
}

// DetectLanguage detects the programming language from a file path.
// Returns LanguageUnknown if the file extension is not recognized.
func DetectLanguage(filePath string) Language {
	if strings.ToLower(filepath.Ext(filePath)) == ".rs" {
		return LanguageRust
	}
	return LanguageUnknown
}

// IsRustFile reports whether filePath names a Rust source file.
func IsRustFile(filePath string) bool {
	return DetectLanguage(filePath) == LanguageRust
}

// ParseLanguageString converts a language string to a Language type.
func ParseLanguageString(lang string) Language {
	switch strings.ToLower(lang) {
	case "rust", "rs":
		return LanguageRust
	default:
		return LanguageUnknown
	}
}
