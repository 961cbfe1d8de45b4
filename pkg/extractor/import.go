package extractor

import (
	"github.com/gnana997/cratesplit/pkg/parser/queries"
)

// extractImports collects top-level and nested use declarations and extern
// crate items in source order.
func (e *Extractor) extractImports(matches []queries.QueryMatch, source []byte) []ImportInfo {
	imports := make([]ImportInfo, 0, len(matches))

	for _, match := range matches {
		def := match.Capture("definition")
		if def == nil {
			continue
		}

		info := ImportInfo{
			Text:  def.Text,
			Range: nodeRange(def.Node),
		}
		for i := uint(0); i < def.Node.ChildCount(); i++ {
			if child := def.Node.Child(i); child != nil && child.Kind() == "visibility_modifier" {
				info.Visibility = child.Utf8Text(source)
			}
		}

		switch def.Category {
		case "use":
			path := match.Capture("path")
			if path == nil {
				continue
			}
			info.Path = path.Text
		case "extern":
			name := match.Capture("name")
			if name == nil {
				continue
			}
			info.Path = name.Text
			info.IsExtern = true
		default:
			continue
		}

		imports = append(imports, info)
	}

	return imports
}
