// Package catalog is the importable-item catalog used for heuristic import
// suggestions when the compiler offers none.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Catalog is a set of importable items.
type Catalog struct {
	Name       string     `json:"name"`
	Version    string     `json:"version"`
	Source     string     `json:"source"`
	Items      []Item     `json:"items"`
	Categories []Category `json:"categories"`
}

// CatalogIndex provides O(1) lookups into the catalog.
// Built during LoadFromFile after validation passes.
type CatalogIndex struct {
	// ItemsByName maps a bare name to every item with that name.
	ItemsByName map[string][]*Item

	// ItemByPath maps full path -> *Item.
	ItemByPath map[string]*Item

	// CategoryByName maps category name -> *Category.
	CategoryByName map[string]*Category

	// ItemsByCategory maps category name -> []*Item.
	ItemsByCategory map[string][]*Item
}

var validKinds = map[string]bool{
	"struct": true,
	"enum":   true,
	"trait":  true,
	"fn":     true,
	"macro":  true,
	"type":   true,
	"mod":    true,
	"const":  true,
	"static": true,
	"union":  true,
}

// Validate checks the catalog for internal consistency.
// Returns a slice of validation errors (empty slice if valid).
func (c *Catalog) Validate() []error {
	var errs []error

	if c.Name == "" {
		errs = append(errs, fmt.Errorf("catalog name is required"))
	}
	if c.Version == "" {
		errs = append(errs, fmt.Errorf("catalog version is required"))
	}

	categoryNames := make(map[string]bool, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.Name == "" {
			errs = append(errs, fmt.Errorf("categories[%d]: name is required", i))
			continue
		}
		if categoryNames[cat.Name] {
			errs = append(errs, fmt.Errorf("categories[%d]: duplicate category name %q", i, cat.Name))
			continue
		}
		categoryNames[cat.Name] = true
	}

	paths := make(map[string]bool, len(c.Items))
	for i, it := range c.Items {
		if it.Name == "" {
			errs = append(errs, fmt.Errorf("items[%d]: name is required", i))
			continue
		}
		if it.Path == "" {
			errs = append(errs, fmt.Errorf("item %q: path is required", it.Name))
			continue
		}
		if last := it.Path[strings.LastIndex(it.Path, ":")+1:]; last != it.Name {
			errs = append(errs, fmt.Errorf("item %q: path %q does not end in the item name", it.Name, it.Path))
		}
		if !validKinds[it.Kind] {
			errs = append(errs, fmt.Errorf("item %q: invalid kind %q", it.Path, it.Kind))
		}
		if paths[it.Path] {
			errs = append(errs, fmt.Errorf("item %q: duplicate path", it.Path))
			continue
		}
		paths[it.Path] = true

		if it.Category != "" && !categoryNames[it.Category] {
			errs = append(errs, fmt.Errorf("item %q: references unknown category %q", it.Path, it.Category))
		}
	}

	for _, cat := range c.Categories {
		for _, p := range cat.Items {
			if !paths[p] {
				errs = append(errs, fmt.Errorf("category %q: references non-existent item %q", cat.Name, p))
			}
		}
	}

	return errs
}

// BuildIndex creates lookup maps for fast access.
// Should be called after Validate() passes.
func (c *Catalog) BuildIndex() *CatalogIndex {
	idx := &CatalogIndex{
		ItemsByName:     make(map[string][]*Item, len(c.Items)),
		ItemByPath:      make(map[string]*Item, len(c.Items)),
		CategoryByName:  make(map[string]*Category, len(c.Categories)),
		ItemsByCategory: make(map[string][]*Item),
	}

	for i := range c.Categories {
		idx.CategoryByName[c.Categories[i].Name] = &c.Categories[i]
	}

	for i := range c.Items {
		it := &c.Items[i]
		idx.ItemsByName[it.Name] = append(idx.ItemsByName[it.Name], it)
		idx.ItemByPath[it.Path] = it
		if it.Category != "" {
			idx.ItemsByCategory[it.Category] = append(idx.ItemsByCategory[it.Category], it)
		}
	}

	return idx
}

// LoadFromFile loads a catalog from a JSON file, validates it, and builds the index.
func LoadFromFile(path string) (*Catalog, *CatalogIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses a catalog from raw JSON bytes, validates it, and builds the index.
func LoadFromBytes(data []byte) (*Catalog, *CatalogIndex, error) {
	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}

	if errs := catalog.Validate(); len(errs) > 0 {
		return nil, nil, fmt.Errorf("catalog validation failed: %w", errors.Join(errs...))
	}

	index := catalog.BuildIndex()
	return &catalog, index, nil
}
