package structure

import (
	"regexp"
	"strings"
)

var closerOf = map[byte]byte{'{': '}', '(': ')', '[': ']'}

// MatchDelim returns the offset of the delimiter closing the one at open,
// counting nesting depth. masked must come from Mask so that delimiters in
// literals and comments are not counted. Only offsets below limit are
// considered.
func MatchDelim(masked string, open, limit int) (int, bool) {
	if open < 0 || open >= len(masked) {
		return 0, false
	}
	opener := masked[open]
	closer, ok := closerOf[opener]
	if !ok {
		return 0, false
	}
	if limit > len(masked) {
		limit = len(masked)
	}
	depth := 0
	for i := open; i < limit; i++ {
		switch masked[i] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// MatchAngle returns the offset of the '>' closing the generic list opened
// at open. Arrows (-> and =>) are not brackets. A brace or semicolon before
// the close means the text was not a generic list.
func MatchAngle(masked string, open, limit int) (int, bool) {
	if open < 0 || open >= len(masked) || masked[open] != '<' {
		return 0, false
	}
	if limit > len(masked) {
		limit = len(masked)
	}
	depth := 0
	for i := open; i < limit; i++ {
		switch masked[i] {
		case '<':
			depth++
		case '>':
			if i > 0 && (masked[i-1] == '-' || masked[i-1] == '=') {
				continue
			}
			depth--
			if depth == 0 {
				return i, true
			}
		case '(', '[':
			j, ok := MatchDelim(masked, i, limit)
			if !ok {
				return 0, false
			}
			i = j
		case '{', ';':
			return 0, false
		}
	}
	return 0, false
}

// SplitTopLevel splits text on sep where sep is not nested inside (), [],
// {} or <>. Pieces are trimmed and empty pieces dropped, so a trailing
// separator is harmless.
func SplitTopLevel(text string, sep byte) []string {
	masked := Mask(text)
	var pieces []string
	depth := 0
	start := 0
	for i := 0; i < len(masked); i++ {
		switch c := masked[i]; c {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}':
			depth--
		case '>':
			if i > 0 && (masked[i-1] == '-' || masked[i-1] == '=') {
				continue
			}
			depth--
		default:
			if c == sep && depth == 0 {
				pieces = appendPiece(pieces, text[start:i])
				start = i + 1
			}
		}
	}
	return appendPiece(pieces, text[start:])
}

func appendPiece(pieces []string, piece string) []string {
	if p := strings.TrimSpace(piece); p != "" {
		pieces = append(pieces, p)
	}
	return pieces
}

// skipSpace returns the first offset at or after i that is not whitespace.
func skipSpace(s string, i, limit int) int {
	for i < limit && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

// identAt returns the identifier starting at i (raw identifiers included).
func identAt(s string, i, limit int) (string, int) {
	start := i
	if i+2 < limit && s[i] == 'r' && s[i+1] == '#' && isIdentStart(s[i+2]) {
		i += 2
	}
	if i >= limit || !isIdentStart(s[i]) {
		return "", start
	}
	for i < limit && isIdentChar(s[i]) {
		i++
	}
	return s[start:i], i
}

// scanTo returns the offset of the first byte in stops found at nesting
// depth zero, skipping over (), [] and generic lists.
func scanTo(masked string, i, limit int, stops string) (int, bool) {
	for i < limit {
		c := masked[i]
		if strings.IndexByte(stops, c) >= 0 {
			return i, true
		}
		switch c {
		case '(', '[':
			j, ok := MatchDelim(masked, i, limit)
			if !ok {
				return 0, false
			}
			i = j + 1
			continue
		case '{':
			// A '{' that is not a stop is a block we skip wholesale.
			j, ok := MatchDelim(masked, i, limit)
			if !ok {
				return 0, false
			}
			i = j + 1
			continue
		}
		i++
	}
	return 0, false
}

var (
	identRE       = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\b`)
	capitalizedRE = regexp.MustCompile(`\b[A-Z][A-Za-z0-9_]*\b`)
	whitespaceRE  = regexp.MustCompile(`\s+`)
)

// CapitalizedIdents returns the distinct capitalized identifiers in text,
// in order of first appearance.
func CapitalizedIdents(text string) []string {
	return distinct(capitalizedRE.FindAllString(text, -1))
}

// Identifiers returns the distinct identifiers in text.
func Identifiers(text string) []string {
	return distinct(identRE.FindAllString(text, -1))
}

// CollapseSpace replaces whitespace runs with a single space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// BaseName strips references, lifetimes, path qualifiers and generic
// arguments from a type or trait: "&'a mut fmt::Formatter<'_>" -> "Formatter".
func BaseName(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimLeft(text, "&*?")
	for {
		text = strings.TrimSpace(text)
		if strings.HasPrefix(text, "'") {
			i := strings.IndexAny(text, " \t\n")
			if i < 0 {
				return ""
			}
			text = text[i+1:]
			continue
		}
		stripped := false
		for _, kw := range []string{"mut ", "dyn ", "const ", "impl "} {
			if strings.HasPrefix(text, kw) {
				text = text[len(kw):]
				stripped = true
			}
		}
		if !stripped {
			break
		}
	}
	if i := strings.IndexByte(text, '<'); i >= 0 {
		text = text[:i]
	}
	if i := strings.IndexByte(text, '('); i >= 0 {
		text = text[:i]
	}
	if i := strings.LastIndex(text, "::"); i >= 0 {
		text = text[i+2:]
	}
	return strings.TrimSpace(text)
}

func distinct(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
