package extractor

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// extractMetadata fills visibility, modifiers and, for functions, the
// signature detail. These live on the item node's children rather than in
// query captures.
func extractMetadata(decl *Declaration, node *ts.Node, source []byte) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "visibility_modifier":
			decl.Visibility = child.Utf8Text(source)
		case "function_modifiers":
			for j := uint(0); j < child.ChildCount(); j++ {
				if m := child.Child(j); m != nil {
					if fields := strings.Fields(m.Utf8Text(source)); len(fields) > 0 {
						decl.Modifiers = append(decl.Modifiers, fields[0])
					}
				}
			}
		}
	}

	if decl.Kind == KindFunction {
		decl.Detail = signature(node, source)
	}
}

// signature returns the text of a function item up to its body, with
// whitespace collapsed.
func signature(node *ts.Node, source []byte) string {
	end := node.EndByte()
	if body := node.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	}
	text := string(source[node.StartByte():end])
	text = strings.TrimSuffix(strings.TrimSpace(text), ";")
	return strings.Join(strings.Fields(text), " ")
}
