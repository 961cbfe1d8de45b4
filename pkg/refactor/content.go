package refactor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gnana997/cratesplit/pkg/analysis"
	"github.com/gnana997/cratesplit/pkg/structure"
)

var implStartRE = regexp.MustCompile(`^\s*(?:#\[[^\]]*\]\s*)*(?:unsafe\s+)?impl\b`)

// ModuleTitle turns a module name into header prose: "user_profile"
// becomes "User profile".
func ModuleTitle(name string) string {
	title := strings.ReplaceAll(name, "_", " ")
	r, size := utf8.DecodeRuneInString(title)
	if r == utf8.RuneError {
		return title
	}
	return string(unicode.ToUpper(r)) + title[size:]
}

// Header is the inner doc comment a generated module starts with.
func Header(name string) string {
	return "//! " + ModuleTitle(name) + " module\n" +
		"//!\n" +
		"//! This module was automatically extracted by cratesplit.\n"
}

// GenerateContent assembles a new module: the optional header, the
// import block, then the extracted text. Text taken from inside an impl
// block is wrapped in a copy of that block's header.
func GenerateContent(name string, res *analysis.Result, imports []string, includeHeader bool) string {
	var b strings.Builder
	if includeHeader {
		b.WriteString(Header(name))
		b.WriteString("\n")
	}
	if len(imports) > 0 {
		for _, line := range imports {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	body := strings.TrimRight(res.Text, " \t\r\n")
	if res.InsideImpl && res.Enclosing != nil && !implStartRE.MatchString(body) {
		body = res.Enclosing.Wrap(body)
	}
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n")
	return b.String()
}

// insertImport adds `use path;` below the module's imports, or below its
// header when it has none. It reports false when path is already imported.
func insertImport(text, path string) (string, bool) {
	imports := structure.ParseImports(text)
	for _, imp := range imports {
		if imp.Path == path {
			return text, false
		}
	}
	line := "use " + path + ";\n"

	if len(imports) > 0 {
		at := lineEnd(text, imports[len(imports)-1].End)
		if at == len(text) && !strings.HasSuffix(text, "\n") {
			return text + "\n" + line, true
		}
		return text[:at] + line + text[at:], true
	}

	at := docHeaderEnd(text)
	if at == len(text) {
		return text + line, true
	}
	return text[:at] + line + "\n" + text[at:], true
}

// docHeaderEnd skips leading `//!` lines and the blank lines after them.
func docHeaderEnd(text string) int {
	at, i := 0, 0
	inHeader := true
	for i < len(text) {
		end := lineEnd(text, i)
		line := strings.TrimSpace(text[i:end])
		switch {
		case inHeader && strings.HasPrefix(line, "//!"):
			at = end
		case line == "" && at > 0:
			inHeader = false
			at = end
		default:
			return at
		}
		i = end
	}
	return at
}

func lineEnd(text string, i int) int {
	if j := strings.IndexByte(text[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(text)
}
