package structure

import "unicode/utf8"

// Mask returns src with the contents of comments, string literals and char
// literals replaced by spaces. Byte offsets and newlines are preserved and
// quote delimiters are kept, so `"{"` masks to `" "`.
//
// Recognized forms: line and nested block comments, "..." with escapes,
// b"..." and c"...", raw strings r"..." / r#"..."# / br##"..."##, 'c',
// '\n', '\u{1F600}', b'x'. Lifetimes ('a, 'static) are left alone.
func Mask(src string) string {
	b := []byte(src)
	n := len(b)

	blank := func(from, to int) {
		for k := from; k < to && k < n; k++ {
			if b[k] != '\n' {
				b[k] = ' '
			}
		}
	}

	i := 0
	for i < n {
		c := src[i]
		switch {
		case c == '/' && i+1 < n && src[i+1] == '/':
			j := i
			for j < n && src[j] != '\n' {
				j++
			}
			blank(i, j)
			i = j

		case c == '/' && i+1 < n && src[i+1] == '*':
			j := skipBlockComment(src, i)
			blank(i, j)
			i = j

		case (c == 'r' || c == 'b' || c == 'c') && (i == 0 || !isIdentChar(src[i-1])):
			if open, closeEnd, ok := rawStringAt(src, i); ok {
				blank(open, closeEnd)
				i = closeEnd
				continue
			}
			if (c == 'b' || c == 'c') && i+1 < n && src[i+1] == '"' {
				j := skipString(src, i+2)
				blank(i+2, j-1)
				i = j
				continue
			}
			if c == 'b' && i+1 < n && src[i+1] == '\'' {
				if j, ok := charLiteralEnd(src, i+1); ok {
					blank(i+2, j-1)
					i = j
					continue
				}
			}
			i++

		case c == '"':
			j := skipString(src, i+1)
			blank(i+1, j-1)
			i = j

		case c == '\'':
			if j, ok := charLiteralEnd(src, i); ok {
				blank(i+1, j-1)
				i = j
				continue
			}
			i++

		default:
			i++
		}
	}
	return string(b)
}

// skipBlockComment returns the offset just past the comment opening at i.
// Block comments nest.
func skipBlockComment(src string, i int) int {
	depth := 0
	n := len(src)
	for i < n {
		switch {
		case i+1 < n && src[i] == '/' && src[i+1] == '*':
			depth++
			i += 2
		case i+1 < n && src[i] == '*' && src[i+1] == '/':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return n
}

// skipString returns the offset just past the closing quote of a string
// whose contents start at i.
func skipString(src string, i int) int {
	n := len(src)
	for i < n {
		switch src[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return n
}

// rawStringAt recognizes r"..", r#".."#, br".." and cr".." at i. It
// returns the content bounds (excluding quotes and hashes).
func rawStringAt(src string, i int) (contentStart, contentEnd int, ok bool) {
	n := len(src)
	j := i
	if src[j] == 'b' || src[j] == 'c' {
		j++
	}
	if j >= n || src[j] != 'r' {
		return 0, 0, false
	}
	j++
	hashes := 0
	for j < n && src[j] == '#' {
		hashes++
		j++
	}
	if j >= n || src[j] != '"' {
		return 0, 0, false
	}
	start := j + 1
	for k := start; k < n; k++ {
		if src[k] != '"' {
			continue
		}
		h := 0
		for k+1+h < n && h < hashes && src[k+1+h] == '#' {
			h++
		}
		if h == hashes {
			return start, k, true
		}
	}
	return start, n, true
}

// charLiteralEnd reports whether a char literal opens at i (src[i] == '\'')
// and returns the offset past its closing quote. A lifetime is not a literal.
func charLiteralEnd(src string, i int) (int, bool) {
	n := len(src)
	if i+1 >= n {
		return 0, false
	}
	if src[i+1] == '\\' {
		for j := i + 2; j < n && j < i+14; j++ {
			if src[j] == '\'' && j > i+2 {
				return j + 1, true
			}
			if src[j] == '\n' {
				return 0, false
			}
		}
		return 0, false
	}
	_, size := utf8.DecodeRuneInString(src[i+1:])
	if src[i+1] == '\'' || src[i+1] == '\n' {
		return 0, false
	}
	if i+1+size < n && src[i+1+size] == '\'' {
		return i + 2 + size, true
	}
	return 0, false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
