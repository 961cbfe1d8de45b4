// Package structure recognizes Rust declarations and use declarations in a
// span of source text without a full grammar.
//
// Headers are matched with patterns; bodies are delimited by counting brace
// depth over masked text (see Mask) so braces in literals and comments do
// not count. Field and variant lists are split on top-level commas.
package structure

import (
	"regexp"
	"strconv"
	"strings"
)

// headerRE matches an item header at the start of the input:
// visibility, modifiers, keyword.
var headerRE = regexp.MustCompile(`^(pub\b\s*(?:\([^)]*\))?\s*)?((?:(?:default|const|async|unsafe|safe|extern(?:\s*"[^"]*")?)\s+)*)(fn|struct|enum|union|trait|impl|mod|const|static|type|use|extern\s+crate|macro_rules)\b`)

var (
	fieldVisRE  = regexp.MustCompile(`^pub\b\s*(\([^)]*\))?`)
	leadIdentRE = regexp.MustCompile(`^(?:r#)?[A-Za-z_][A-Za-z0-9_]*`)
)

// LexicalParser is the pattern-based Parser. It is stateless.
type LexicalParser struct{}

// NewLexicalParser returns a LexicalParser.
func NewLexicalParser() *LexicalParser {
	return &LexicalParser{}
}

var _ Parser = (*LexicalParser)(nil)

// rawItem is a recognized item before it is turned into a Declaration.
type rawItem struct {
	kind      ItemKind
	vis       string
	name      string
	start     int
	generics  [2]int // '<' and '>' offsets, or -1
	header    [2]int // text between generics (or name) and body
	bodyOpen  int    // -1 when the item has no braced body
	bodyClose int
	end       int
	// attrStart is the offset of the outer attributes preceding the item,
	// or -1.
	attrStart int
}

// ParseDeclarations implements Parser.
func (p *LexicalParser) ParseDeclarations(span string) *Declarations {
	masked := Mask(span)
	decls := &Declarations{}

	for _, it := range scanItems(masked, 0, len(masked)) {
		vis := ParseVisibility(it.vis)
		decls.Items = append(decls.Items, Item{
			Kind:       it.kind,
			Name:       it.name,
			Visibility: vis,
			Start:      it.start,
			End:        it.end,
		})

		switch it.kind {
		case ItemFunction:
			decls.Functions = append(decls.Functions, buildFunction(span, masked, it))
		case ItemStruct, ItemUnion:
			decls.DataTypes = append(decls.DataTypes, buildDataType(masked, it))
		case ItemEnum:
			decls.SumTypes = append(decls.SumTypes, buildSumType(masked, it))
		case ItemTrait:
			decls.Interfaces = append(decls.Interfaces, buildInterface(masked, it))
		case ItemImpl:
			decls.Implementations = append(decls.Implementations, buildImplementation(span, masked, it))
		}
	}
	return decls
}

// scanItems finds items at nesting depth zero between from and limit.
// Attributes are skipped; unrecognized braced blocks are skipped whole.
func scanItems(masked string, from, limit int) []rawItem {
	var items []rawItem
	attrStart := -1
	i := from
	for i < limit {
		c := masked[i]

		if c == '#' && i+1 < limit {
			open := i + 1
			inner := masked[open] == '!'
			if inner {
				open++
			}
			if open < limit && masked[open] == '[' {
				if j, ok := MatchDelim(masked, open, limit); ok {
					if !inner && attrStart < 0 {
						attrStart = i
					}
					i = j + 1
					continue
				}
			}
		}

		if isIdentStart(c) && (i == from || !isIdentChar(masked[i-1])) {
			if it, ok := parseItem(masked, i, limit); ok {
				it.attrStart = attrStart
				attrStart = -1
				items = append(items, it)
				i = it.end
				continue
			}
			attrStart = -1
			for i < limit && isIdentChar(masked[i]) {
				i++
			}
			continue
		}

		if c == '{' {
			if j, ok := MatchDelim(masked, i, limit); ok {
				i = j + 1
				continue
			}
		}
		i++
	}
	return items
}

// parseItem recognizes one item whose header starts at i.
func parseItem(masked string, i, limit int) (rawItem, bool) {
	m := headerRE.FindStringSubmatchIndex(masked[i:limit])
	if m == nil {
		return rawItem{}, false
	}
	it := rawItem{
		kind:      ItemKind(CollapseSpace(masked[i+m[6] : i+m[7]])),
		start:     i,
		generics:  [2]int{-1, -1},
		bodyOpen:  -1,
		attrStart: -1,
	}
	if m[2] >= 0 {
		it.vis = strings.TrimSpace(masked[i+m[2] : i+m[3]])
	}
	pos := i + m[1]

	switch it.kind {
	case ItemFunction:
		return parseFunction(masked, it, pos, limit)
	case ItemStruct, ItemUnion, ItemEnum, ItemTrait:
		return parseTypeItem(masked, it, pos, limit)
	case ItemImpl:
		return parseImpl(masked, it, pos, limit)
	case ItemModule:
		return parseModule(masked, it, pos, limit)
	case ItemMacroRules:
		return parseMacroRules(masked, it, pos, limit)
	default:
		// const, static, type, use, extern crate: name (if any) then ';'.
		if it.kind != ItemUse {
			name, next := identAt(masked, skipSpace(masked, pos, limit), limit)
			if it.kind == ItemStatic && name == "mut" {
				name, _ = identAt(masked, skipSpace(masked, next, limit), limit)
			}
			if name != "_" {
				it.name = strings.TrimPrefix(name, "r#")
			}
		}
		if it.kind == ItemExtern {
			if k := strings.Index(masked[pos:limit], " as "); k >= 0 && !strings.Contains(masked[pos:pos+k], ";") {
				alias, _ := identAt(masked, skipSpace(masked, pos+k+4, limit), limit)
				it.name = alias
			}
		}
		semi, ok := scanTo(masked, pos, limit, ";")
		if !ok {
			return rawItem{}, false
		}
		it.end = semi + 1
		return it, true
	}
}

// readNameAndGenerics reads `Name<...>` after a keyword and returns the
// offset following it.
func readNameAndGenerics(masked string, it *rawItem, pos, limit int) (int, bool) {
	name, next := identAt(masked, skipSpace(masked, pos, limit), limit)
	if name == "" {
		return 0, false
	}
	it.name = strings.TrimPrefix(name, "r#")
	pos = skipSpace(masked, next, limit)
	if pos < limit && masked[pos] == '<' {
		closeAt, ok := MatchAngle(masked, pos, limit)
		if !ok {
			return 0, false
		}
		it.generics = [2]int{pos, closeAt}
		pos = closeAt + 1
	}
	return pos, true
}

func parseFunction(masked string, it rawItem, pos, limit int) (rawItem, bool) {
	pos, ok := readNameAndGenerics(masked, &it, pos, limit)
	if !ok {
		return rawItem{}, false
	}
	pos = skipSpace(masked, pos, limit)
	if pos >= limit || masked[pos] != '(' {
		return rawItem{}, false
	}
	stop, ok := scanTo(masked, pos, limit, "{;")
	if !ok {
		return rawItem{}, false
	}
	it.header = [2]int{pos, stop}
	return closeBody(masked, it, stop, limit)
}

func parseTypeItem(masked string, it rawItem, pos, limit int) (rawItem, bool) {
	pos, ok := readNameAndGenerics(masked, &it, pos, limit)
	if !ok {
		return rawItem{}, false
	}
	// Tuple structs: `struct A(T) where ...;`
	stop, ok := scanTo(masked, pos, limit, "{;")
	if !ok {
		return rawItem{}, false
	}
	it.header = [2]int{pos, stop}
	return closeBody(masked, it, stop, limit)
}

func parseImpl(masked string, it rawItem, pos, limit int) (rawItem, bool) {
	pos = skipSpace(masked, pos, limit)
	if pos < limit && masked[pos] == '<' {
		closeAt, ok := MatchAngle(masked, pos, limit)
		if !ok {
			return rawItem{}, false
		}
		it.generics = [2]int{pos, closeAt}
		pos = closeAt + 1
	}
	stop, ok := scanTo(masked, pos, limit, "{;")
	if !ok || masked[stop] != '{' {
		return rawItem{}, false
	}
	it.header = [2]int{pos, stop}
	target, _ := SplitImplHeader(masked[pos:stop])
	it.name = BaseName(target)
	return closeBody(masked, it, stop, limit)
}

func parseModule(masked string, it rawItem, pos, limit int) (rawItem, bool) {
	name, next := identAt(masked, skipSpace(masked, pos, limit), limit)
	if name == "" {
		return rawItem{}, false
	}
	it.name = strings.TrimPrefix(name, "r#")
	stop := skipSpace(masked, next, limit)
	if stop >= limit || (masked[stop] != '{' && masked[stop] != ';') {
		return rawItem{}, false
	}
	return closeBody(masked, it, stop, limit)
}

func parseMacroRules(masked string, it rawItem, pos, limit int) (rawItem, bool) {
	pos = skipSpace(masked, pos, limit)
	if pos >= limit || masked[pos] != '!' {
		return rawItem{}, false
	}
	name, next := identAt(masked, skipSpace(masked, pos+1, limit), limit)
	if name == "" {
		return rawItem{}, false
	}
	it.name = name
	open := skipSpace(masked, next, limit)
	closeAt, ok := MatchDelim(masked, open, limit)
	if !ok {
		return rawItem{}, false
	}
	it.end = closeAt + 1
	if masked[open] != '{' {
		if semi := skipSpace(masked, it.end, limit); semi < limit && masked[semi] == ';' {
			it.end = semi + 1
		}
	}
	return it, true
}

// closeBody finishes an item whose header ends at stop, which holds '{' or ';'.
// An unterminated body extends to limit.
func closeBody(masked string, it rawItem, stop, limit int) (rawItem, bool) {
	if masked[stop] == ';' {
		it.end = stop + 1
		return it, true
	}
	it.bodyOpen = stop
	closeAt, ok := MatchDelim(masked, stop, limit)
	if !ok {
		it.bodyClose = limit
		it.end = limit
		return it, true
	}
	it.bodyClose = closeAt
	it.end = closeAt + 1
	return it, true
}

// SplitImplHeader splits "Trait<X> for Type<Y> where ..." into target and
// trait. Negative impls keep their '!' stripped.
func SplitImplHeader(header string) (target, trait string) {
	h := header
	if k := wordIndex(h, "where"); k >= 0 {
		h = h[:k]
	}
	if k := wordIndex(h, "for"); k >= 0 {
		return strings.TrimSpace(h[k+3:]), strings.TrimPrefix(strings.TrimSpace(h[:k]), "!")
	}
	return strings.TrimSpace(h), ""
}

// wordIndex finds word at depth zero of <> nesting, on word boundaries.
func wordIndex(s, word string) int {
	depth := 0
	for i := 0; i+len(word) <= len(s); i++ {
		switch s[i] {
		case '<':
			depth++
			continue
		case '>':
			if i > 0 && (s[i-1] == '-' || s[i-1] == '=') {
				continue
			}
			depth--
			continue
		}
		if depth != 0 || !strings.HasPrefix(s[i:], word) {
			continue
		}
		if i > 0 && isIdentChar(s[i-1]) {
			continue
		}
		if end := i + len(word); end < len(s) && isIdentChar(s[end]) {
			continue
		}
		return i
	}
	return -1
}

// genericParams returns the type and const parameter names of a generic
// list. Lifetimes are parameters but bind no type name.
func genericParams(masked string, it rawItem) []string {
	if it.generics[0] < 0 {
		return nil
	}
	var names []string
	for _, piece := range SplitTopLevel(masked[it.generics[0]+1:it.generics[1]], ',') {
		piece = strings.TrimPrefix(piece, "const ")
		if strings.HasPrefix(piece, "'") {
			continue
		}
		if name := leadIdentRE.FindString(strings.TrimSpace(piece)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func buildFunction(src, masked string, it rawItem) Function {
	vis := ParseVisibility(it.vis)
	fn := Function{
		Name:        it.name,
		Signature:   CollapseSpace(src[it.start:it.header[1]]),
		Visibility:  vis,
		IsPublic:    vis == VisibilityPublic,
		HasGenerics: it.generics[0] >= 0,
		Generics:    genericParams(masked, it),
	}

	exclude := map[string]bool{"Self": true}
	for _, g := range fn.Generics {
		exclude[g] = true
	}
	from := it.header[0]
	if it.generics[0] >= 0 {
		from = it.generics[0]
	}
	for _, name := range CapitalizedIdents(masked[from:it.header[1]]) {
		if !exclude[name] {
			fn.ExternalTypes = append(fn.ExternalTypes, name)
		}
	}
	return fn
}

func buildDataType(masked string, it rawItem) DataType {
	dt := DataType{
		Name:        it.name,
		Visibility:  ParseVisibility(it.vis),
		HasGenerics: it.generics[0] >= 0,
		Generics:    genericParams(masked, it),
		Fields:      []Field{},
	}

	if it.bodyOpen >= 0 {
		for _, piece := range SplitTopLevel(masked[it.bodyOpen+1:it.bodyClose], ',') {
			if f, ok := parseField(piece, false); ok {
				dt.Fields = append(dt.Fields, f)
			}
		}
		return dt
	}

	// Tuple struct: the header holds `(T, U) where ...`.
	header := strings.TrimSpace(masked[it.header[0]:it.header[1]])
	if strings.HasPrefix(header, "(") {
		if closeAt, ok := MatchDelim(header, 0, len(header)); ok {
			dt.Tuple = true
			for i, piece := range SplitTopLevel(header[1:closeAt], ',') {
				if f, ok := parseField(piece, true); ok {
					f.Name = strconv.Itoa(i)
					dt.Fields = append(dt.Fields, f)
				}
			}
		}
	}
	return dt
}

// parseField reads `#[attr] pub name: Type` or, for tuple fields, `pub Type`.
func parseField(piece string, positional bool) (Field, bool) {
	piece = stripAttributes(piece)
	var f Field
	if m := fieldVisRE.FindString(piece); m != "" {
		f.Visibility = ParseVisibility(m)
		piece = strings.TrimSpace(piece[len(m):])
	}
	if positional {
		f.Type = CollapseSpace(piece)
		return f, f.Type != ""
	}
	name := leadIdentRE.FindString(piece)
	rest := strings.TrimSpace(piece[len(name):])
	if name == "" || !strings.HasPrefix(rest, ":") {
		return Field{}, false
	}
	f.Name = strings.TrimPrefix(name, "r#")
	f.Type = CollapseSpace(rest[1:])
	return f, true
}

func buildSumType(masked string, it rawItem) SumType {
	st := SumType{
		Name:        it.name,
		Visibility:  ParseVisibility(it.vis),
		HasGenerics: it.generics[0] >= 0,
		Generics:    genericParams(masked, it),
		Variants:    []string{},
	}
	if it.bodyOpen < 0 {
		return st
	}
	for _, piece := range SplitTopLevel(masked[it.bodyOpen+1:it.bodyClose], ',') {
		if name := leadIdentRE.FindString(stripAttributes(piece)); name != "" {
			st.Variants = append(st.Variants, name)
		}
	}
	return st
}

func buildInterface(masked string, it rawItem) Interface {
	iface := Interface{
		Name:        it.name,
		Visibility:  ParseVisibility(it.vis),
		HasGenerics: it.generics[0] >= 0,
		Generics:    genericParams(masked, it),
	}
	header := strings.TrimSpace(masked[it.header[0]:it.header[1]])
	if k := wordIndex(header, "where"); k >= 0 {
		header = header[:k]
	}
	if strings.HasPrefix(header, ":") {
		iface.Supertraits = BoundNames(header[1:])
	}
	return iface
}

func buildImplementation(src, masked string, it rawItem) Implementation {
	target, trait := SplitImplHeader(masked[it.header[0]:it.header[1]])
	impl := Implementation{
		Target:      BaseName(target),
		Interface:   BaseName(trait),
		HasGenerics: it.generics[0] >= 0,
		Generics:    genericParams(masked, it),
		Methods:     []Function{},
	}
	if it.bodyOpen < 0 {
		return impl
	}
	outer := make(map[string]bool, len(impl.Generics))
	for _, g := range impl.Generics {
		outer[g] = true
	}
	for _, member := range scanItems(masked, it.bodyOpen+1, it.bodyClose) {
		if member.kind != ItemFunction {
			continue
		}
		fn := buildFunction(src, masked, member)
		var external []string
		for _, name := range fn.ExternalTypes {
			if !outer[name] {
				external = append(external, name)
			}
		}
		fn.ExternalTypes = external
		impl.Methods = append(impl.Methods, fn)
	}
	return impl
}

// stripAttributes removes leading #[...] attributes from piece.
func stripAttributes(piece string) string {
	piece = strings.TrimSpace(piece)
	for strings.HasPrefix(piece, "#[") {
		closeAt, ok := MatchDelim(piece, 1, len(piece))
		if !ok {
			return piece
		}
		piece = strings.TrimSpace(piece[closeAt+1:])
	}
	return piece
}

// BoundNames returns the trait names in a bound list such as
// "Clone + Into<String> + 'a + ?Sized + for<'b> Fn(&'b str)".
func BoundNames(bounds string) []string {
	var names []string
	for _, b := range SplitTopLevel(bounds, '+') {
		b = strings.TrimSpace(b)
		b = strings.TrimPrefix(b, "?")
		if strings.HasPrefix(b, "for<") {
			if closeAt, ok := MatchAngle(b, 3, len(b)); ok {
				b = b[closeAt+1:]
			}
		}
		b = strings.Trim(strings.TrimSpace(b), "()")
		if b == "" || strings.HasPrefix(b, "'") {
			continue
		}
		if name := BaseName(b); name != "" && name[0] >= 'A' && name[0] <= 'Z' {
			names = append(names, name)
		}
	}
	return distinct(names)
}
