package extractor

import (
	"sort"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/parser/queries"
)

// extractDeclarations turns symbol query matches into a flat declaration
// list in source order.
func (e *Extractor) extractDeclarations(matches []queries.QueryMatch, source []byte, filePath string) []*Declaration {
	decls := make([]*Declaration, 0, len(matches))
	for _, match := range matches {
		if d := e.buildDeclaration(match, source, filePath); d != nil {
			decls = append(decls, d)
		}
	}
	return decls
}

// buildDeclaration reads the name and definition captures of one match.
// The range comes from the definition node so it covers the item body.
func (e *Extractor) buildDeclaration(match queries.QueryMatch, source []byte, filePath string) *Declaration {
	nameCapture := match.Capture("name")
	defCapture := match.Capture("definition")
	if nameCapture == nil || defCapture == nil {
		return nil
	}

	kind, ok := inferItemKind(nameCapture.Category)
	if !ok {
		e.logger.Debug("unknown capture category", "category", nameCapture.Category)
		return nil
	}

	node := defCapture.Node
	decl := &Declaration{
		Name:     nameCapture.Text,
		Kind:     kind,
		Range:    nodeRange(node),
		Location: extractLocation(node, filePath),
	}

	if kind == KindImpl {
		decl.Name = baseTypeName(nameCapture.Text)
		if traitNode := node.ChildByFieldName("trait"); traitNode != nil {
			decl.Trait = baseTypeName(traitNode.Utf8Text(source))
			decl.Detail = decl.Trait + " for " + decl.Name
		} else {
			decl.Detail = decl.Name
		}
	}

	extractMetadata(decl, node, source)
	return decl
}

// inferItemKind maps a capture category to an ItemKind.
func inferItemKind(category string) (ItemKind, bool) {
	switch category {
	case "function":
		return KindFunction, true
	case "struct":
		return KindStruct, true
	case "enum":
		return KindEnum, true
	case "union":
		return KindUnion, true
	case "type":
		return KindType, true
	case "trait":
		return KindTrait, true
	case "impl":
		return KindImpl, true
	case "module":
		return KindModule, true
	case "const":
		return KindConst, true
	case "static":
		return KindStatic, true
	case "macro":
		return KindMacro, true
	default:
		return "", false
	}
}

// nest arranges flat declarations into a tree by range containment.
func nest(flat []*Declaration) []*Declaration {
	sort.SliceStable(flat, func(i, j int) bool {
		a, b := flat[i].Location, flat[j].Location
		if a.StartByte != b.StartByte {
			return a.StartByte < b.StartByte
		}
		return a.EndByte > b.EndByte
	})

	var roots []*Declaration
	var stack []*Declaration
	for _, d := range flat {
		for len(stack) > 0 && stack[len(stack)-1].Location.EndByte <= d.Location.StartByte {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, d)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, d)
		}
		stack = append(stack, d)
	}
	return roots
}

// baseTypeName strips path qualifiers, generic arguments and reference
// sigils: "&'a mut fmt::Formatter<'_>" -> "Formatter".
func baseTypeName(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimLeft(text, "&*")
	for _, prefix := range []string{"mut ", "const ", "dyn "} {
		text = strings.TrimPrefix(text, prefix)
	}
	if strings.HasPrefix(text, "'") {
		if i := strings.IndexByte(text, ' '); i >= 0 {
			text = strings.TrimPrefix(text[i+1:], "mut ")
		}
	}
	if i := strings.IndexByte(text, '<'); i >= 0 {
		text = text[:i]
	}
	if i := strings.LastIndex(text, "::"); i >= 0 {
		text = text[i+2:]
	}
	return strings.TrimSpace(text)
}

func nodeRange(node *ts.Node) document.Range {
	start := node.StartPosition()
	end := node.EndPosition()
	return document.Range{
		Start: document.Position{Line: int(start.Row), Column: int(start.Column)},
		End:   document.Position{Line: int(end.Row), Column: int(end.Column)},
	}
}

// extractLocation converts tree-sitter's 0-based points to a 1-based Location.
func extractLocation(node *ts.Node, filePath string) Location {
	startPos := node.StartPosition()
	endPos := node.EndPosition()

	return Location{
		FilePath:    filePath,
		StartLine:   uint32(startPos.Row + 1),
		StartColumn: uint32(startPos.Column + 1),
		EndLine:     uint32(endPos.Row + 1),
		EndColumn:   uint32(endPos.Column + 1),
		StartByte:   uint32(node.StartByte()),
		EndByte:     uint32(node.EndByte()),
	}
}
