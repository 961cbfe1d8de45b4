package imports

// RustQueries matches use declarations and extern crate items.
//
// Captures:
//   - @use.path - the use tree after the keyword
//   - @use.definition - the whole declaration, including visibility
//   - @extern.name / @extern.definition - extern crate items
const RustQueries = `
(use_declaration
  argument: (_) @use.path
) @use.definition

(extern_crate_declaration
  name: (identifier) @extern.name
) @extern.definition
`
