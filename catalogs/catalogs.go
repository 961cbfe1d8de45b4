// Package catalogs provides embedded pre-built item catalogs.
package catalogs

import _ "embed"

// StdJSON is the bundled catalog of std items and common crate items,
// embedded at build time.
//
//go:embed std/items.json
var StdJSON []byte
