package structure

import (
	"fmt"
	"strings"
)

// Visibility is the declared visibility of an item, ordered so that the
// larger value is the more public one.
type Visibility int

const (
	VisibilityPrivate Visibility = iota
	// VisibilityRestricted covers pub(crate), pub(super) and pub(in path).
	VisibilityRestricted
	VisibilityPublic
)

// ParseVisibility classifies a visibility modifier such as "pub(crate)".
func ParseVisibility(modifier string) Visibility {
	m := strings.Join(strings.Fields(modifier), "")
	switch {
	case m == "":
		return VisibilityPrivate
	case m == "pub":
		return VisibilityPublic
	case m == "pub(self)":
		return VisibilityPrivate
	case strings.HasPrefix(m, "pub("):
		return VisibilityRestricted
	default:
		return VisibilityPrivate
	}
}

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityRestricted:
		return "restricted"
	default:
		return "private"
	}
}

// MarshalText encodes the visibility by name.
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText decodes a name written by MarshalText.
func (v *Visibility) UnmarshalText(b []byte) error {
	switch string(b) {
	case "public":
		*v = VisibilityPublic
	case "restricted":
		*v = VisibilityRestricted
	case "private", "":
		*v = VisibilityPrivate
	default:
		return fmt.Errorf("unknown visibility %q", b)
	}
	return nil
}

// Declaration is one of Function, DataType, SumType, Interface or
// Implementation. Consumers switch on the concrete type.
type Declaration interface {
	DeclName() string
	declaration()
}

// Function is a fn item or a method inside an impl block.
type Function struct {
	Name        string     `json:"name"`
	Signature   string     `json:"signature"`
	Visibility  Visibility `json:"visibility"`
	IsPublic    bool       `json:"is_public"`
	HasGenerics bool       `json:"has_generics"`
	Generics    []string   `json:"generics,omitempty"`
	// ExternalTypes lists capitalized type names in the signature other
	// than Self and the function's own generic parameters.
	ExternalTypes []string `json:"external_types,omitempty"`
}

// Field is a named or positional struct field. Positional fields are named "0", "1", ...
type Field struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Visibility Visibility `json:"visibility"`
}

// DataType is a struct or union.
type DataType struct {
	Name        string     `json:"name"`
	Visibility  Visibility `json:"visibility"`
	HasGenerics bool       `json:"has_generics"`
	Generics    []string   `json:"generics,omitempty"`
	Fields      []Field    `json:"fields"`
	Tuple       bool       `json:"tuple,omitempty"`
}

// SumType is an enum.
type SumType struct {
	Name        string     `json:"name"`
	Visibility  Visibility `json:"visibility"`
	HasGenerics bool       `json:"has_generics"`
	Generics    []string   `json:"generics,omitempty"`
	Variants    []string   `json:"variants"`
}

// Interface is a trait.
type Interface struct {
	Name        string     `json:"name"`
	Visibility  Visibility `json:"visibility"`
	HasGenerics bool       `json:"has_generics"`
	Generics    []string   `json:"generics,omitempty"`
	Supertraits []string   `json:"supertraits,omitempty"`
}

// Implementation is an impl block. Interface is empty for inherent impls.
type Implementation struct {
	Target      string     `json:"target"`
	Interface   string     `json:"interface,omitempty"`
	HasGenerics bool       `json:"has_generics"`
	Generics    []string   `json:"generics,omitempty"`
	Methods     []Function `json:"methods"`
}

func (f Function) DeclName() string       { return f.Name }
func (d DataType) DeclName() string       { return d.Name }
func (s SumType) DeclName() string        { return s.Name }
func (i Interface) DeclName() string      { return i.Name }
func (i Implementation) DeclName() string { return i.Target }

func (Function) declaration()       {}
func (DataType) declaration()       {}
func (SumType) declaration()        {}
func (Interface) declaration()      {}
func (Implementation) declaration() {}

// ItemKind names the keyword that introduced a top-level item.
type ItemKind string

const (
	ItemFunction   ItemKind = "fn"
	ItemStruct     ItemKind = "struct"
	ItemUnion      ItemKind = "union"
	ItemEnum       ItemKind = "enum"
	ItemTrait      ItemKind = "trait"
	ItemImpl       ItemKind = "impl"
	ItemModule     ItemKind = "mod"
	ItemConst      ItemKind = "const"
	ItemStatic     ItemKind = "static"
	ItemTypeAlias  ItemKind = "type"
	ItemUse        ItemKind = "use"
	ItemExtern     ItemKind = "extern crate"
	ItemMacroRules ItemKind = "macro_rules"
)

// Item is any top-level item recognized in a span, including kinds that
// have no Declaration variant. Offsets are relative to the parsed text.
type Item struct {
	Kind       ItemKind   `json:"kind"`
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
}

// Declarations holds everything the parser found in a span.
type Declarations struct {
	Functions       []Function       `json:"functions"`
	DataTypes       []DataType       `json:"data_types"`
	SumTypes        []SumType        `json:"sum_types"`
	Interfaces      []Interface      `json:"interfaces"`
	Implementations []Implementation `json:"implementations"`
	Items           []Item           `json:"items"`
}

// All returns every declaration, grouped by variant.
func (d *Declarations) All() []Declaration {
	out := make([]Declaration, 0, len(d.Functions)+len(d.DataTypes)+len(d.SumTypes)+len(d.Interfaces)+len(d.Implementations))
	for _, f := range d.Functions {
		out = append(out, f)
	}
	for _, t := range d.DataTypes {
		out = append(out, t)
	}
	for _, s := range d.SumTypes {
		out = append(out, s)
	}
	for _, i := range d.Interfaces {
		out = append(out, i)
	}
	for _, i := range d.Implementations {
		out = append(out, i)
	}
	return out
}

// DeclaredNames returns the names bound by top-level items in the span.
// Impl blocks and use declarations bind nothing.
func (d *Declarations) DeclaredNames() []string {
	var names []string
	for _, it := range d.Items {
		switch it.Kind {
		case ItemImpl, ItemUse, ItemExtern:
			continue
		}
		if it.Name != "" {
			names = append(names, it.Name)
		}
	}
	return distinct(names)
}

// PublicNames returns the names of top-level `pub` items that a parent
// module can re-export.
func (d *Declarations) PublicNames() []string {
	var names []string
	for _, it := range d.Items {
		switch it.Kind {
		case ItemImpl, ItemUse, ItemExtern, ItemMacroRules:
			continue
		}
		if it.Visibility == VisibilityPublic && it.Name != "" {
			names = append(names, it.Name)
		}
	}
	return distinct(names)
}

// Visibility returns the most public visibility among top-level items.
func (d *Declarations) Visibility() Visibility {
	v := VisibilityPrivate
	for _, it := range d.Items {
		if it.Visibility > v {
			v = it.Visibility
		}
	}
	return v
}

// HasGenerics reports whether any declaration declares generic parameters.
func (d *Declarations) HasGenerics() bool {
	for _, decl := range d.All() {
		switch x := decl.(type) {
		case Function:
			if x.HasGenerics {
				return true
			}
		case DataType:
			if x.HasGenerics {
				return true
			}
		case SumType:
			if x.HasGenerics {
				return true
			}
		case Interface:
			if x.HasGenerics {
				return true
			}
		case Implementation:
			if x.HasGenerics {
				return true
			}
			for _, m := range x.Methods {
				if m.HasGenerics {
					return true
				}
			}
		}
	}
	return false
}

// GenericParams returns every generic parameter name declared in the span.
func (d *Declarations) GenericParams() []string {
	var names []string
	for _, decl := range d.All() {
		switch x := decl.(type) {
		case Function:
			names = append(names, x.Generics...)
		case DataType:
			names = append(names, x.Generics...)
		case SumType:
			names = append(names, x.Generics...)
		case Interface:
			names = append(names, x.Generics...)
		case Implementation:
			names = append(names, x.Generics...)
			for _, m := range x.Methods {
				names = append(names, m.Generics...)
			}
		}
	}
	return distinct(names)
}

// Parser recognizes declarations and imports in Rust source text.
type Parser interface {
	// ParseDeclarations returns the top-level declarations in span.
	ParseDeclarations(span string) *Declarations
	// ParseImports returns the top-level use declarations in text.
	ParseImports(text string) []Import
}
