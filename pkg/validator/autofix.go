package validator

import (
	"regexp"
	"strings"
)

var unresolvedRE = regexp.MustCompile("(?:cannot find|undeclared|unresolved)(?: derive macro| attribute macro| import| type| struct| enum| trait| macro| function| value| name)? `([^`]+)`")

// IsApplicableFix reports whether a quick fix should be applied during
// validation: fixes that import, insert or otherwise fix something.
func IsApplicableFix(description string) bool {
	d := strings.ToLower(description)
	return strings.Contains(d, "import") || strings.Contains(d, "insert") || strings.Contains(d, "fix")
}

// IsUnusedImport reports whether d flags an unused import.
func IsUnusedImport(d Diagnostic) bool {
	m := strings.ToLower(d.Message)
	return strings.Contains(m, "unused import")
}

// IsRemovalFix reports whether a fix removes code.
func IsRemovalFix(description string) bool {
	d := strings.ToLower(description)
	return strings.Contains(d, "remove")
}

// UnresolvedName returns the name an unresolved-name diagnostic refers to,
// stripped to its last path segment.
func UnresolvedName(d Diagnostic) (string, bool) {
	m := unresolvedRE.FindStringSubmatch(d.Message)
	if m == nil {
		return "", false
	}
	name := m[1]
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	name = strings.TrimSuffix(name, "!")
	if name == "" {
		return "", false
	}
	return name, true
}
