package symbols

// RustQueries matches Rust item declarations.
//
// Each pattern captures:
//   - @<kind>.name - the item name (for impl blocks, the target type)
//   - @<kind>.definition - the whole item node (for its range)
//
// Nested items (methods inside impl and trait bodies, items inside inline
// modules and fn bodies) match too; the extractor nests them by range.
const RustQueries = `
; ============================================================================
; Functions
; ============================================================================

; fn name() { ... }
(function_item
  name: (identifier) @function.name
) @function.definition

; fn name(); inside trait bodies and extern blocks
(function_signature_item
  name: (identifier) @function.name
) @function.definition

; ============================================================================
; Types
; ============================================================================

(struct_item
  name: (type_identifier) @struct.name
) @struct.definition

(enum_item
  name: (type_identifier) @enum.name
) @enum.definition

(union_item
  name: (type_identifier) @union.name
) @union.definition

(type_item
  name: (type_identifier) @type.name
) @type.definition

; ============================================================================
; Traits and implementations
; ============================================================================

(trait_item
  name: (type_identifier) @trait.name
) @trait.definition

; impl Trait for Type { ... } and impl Type { ... }
; The trait, if any, is read from the definition node's "trait" field.
(impl_item
  type: (_) @impl.name
) @impl.definition

; ============================================================================
; Modules, constants, macros
; ============================================================================

(mod_item
  name: (identifier) @module.name
) @module.definition

(const_item
  name: (identifier) @const.name
) @const.definition

(static_item
  name: (identifier) @static.name
) @static.definition

(macro_definition
  name: (identifier) @macro.name
) @macro.definition
`
