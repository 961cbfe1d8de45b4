package catalog

// Item is an importable Rust item.
type Item struct {
	Name string `json:"name"`
	// Path is the full import path, e.g. "std::collections::HashMap".
	Path        string `json:"path"`
	Kind        string `json:"kind"` // "struct", "enum", "trait", "fn", "macro", "type", "mod", "const"
	Crate       string `json:"crate"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// Category groups items by the module they live in.
type Category struct {
	Name  string   `json:"name"`
	Items []string `json:"items"` // item paths
}

// Match is an item scored against a searched name.
type Match struct {
	Item       *Item     `json:"item"`
	Confidence float64   `json:"confidence"`
	MatchType  MatchType `json:"match_type"`
	// Distance is set for edit-distance matches.
	Distance int `json:"distance,omitempty"`
}

// MatchType says why an item matched.
type MatchType string

const (
	MatchExact        MatchType = "exact"
	MatchPrefix       MatchType = "prefix"
	MatchSuffix       MatchType = "suffix"
	MatchEditDistance MatchType = "edit_distance"
	MatchPath         MatchType = "path"
)
