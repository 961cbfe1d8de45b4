package refactor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gnana997/cratesplit/pkg/analysis"
	"github.com/gnana997/cratesplit/pkg/enclosing"
)

func TestModuleTitle(t *testing.T) {
	tests := map[string]string{
		"user_profile": "User profile",
		"plan":         "Plan",
		"a_b_c":        "A b c",
		"":             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ModuleTitle(in), in)
	}
}

func TestGenerateContent(t *testing.T) {
	res := &analysis.Result{Text: "pub struct Plan {\n    id: Uuid,\n}\n\n"}

	t.Run("header and imports", func(t *testing.T) {
		got := GenerateContent("billing_plan", res, []string{"use uuid::Uuid;"}, true)
		assert.Equal(t, "//! Billing plan module\n//!\n//! This module was automatically extracted by cratesplit.\n\n"+
			"use uuid::Uuid;\n\npub struct Plan {\n    id: Uuid,\n}\n", got)
	})

	t.Run("bare", func(t *testing.T) {
		got := GenerateContent("plan", res, nil, false)
		assert.Equal(t, "pub struct Plan {\n    id: Uuid,\n}\n", got)
	})

	t.Run("wrapped in enclosing impl", func(t *testing.T) {
		inner := &analysis.Result{
			Text:       "    fn id(&self) -> u32 {\n        self.id\n    }\n",
			InsideImpl: true,
			Enclosing:  &enclosing.Context{Header: "impl<T> Plan<T>", Target: "Plan"},
		}
		got := GenerateContent("plan_id", inner, nil, false)
		assert.Equal(t, "impl<T> Plan<T> {\n    fn id(&self) -> u32 {\n        self.id\n    }\n}\n", got)
	})

	t.Run("impl block is not wrapped twice", func(t *testing.T) {
		inner := &analysis.Result{
			Text:       "impl Plan {\n    fn new() -> Self { Plan }\n}\n",
			InsideImpl: true,
			Enclosing:  &enclosing.Context{Header: "impl Outer", Target: "Outer"},
		}
		got := GenerateContent("plan_new", inner, nil, false)
		assert.Equal(t, "impl Plan {\n    fn new() -> Self { Plan }\n}\n", got)
	})
}

func TestInsertImport(t *testing.T) {
	header := Header("plan") + "\n"

	t.Run("after existing imports", func(t *testing.T) {
		text := header + "use std::fmt;\n\npub struct Plan;\n"
		got, ok := insertImport(text, "std::collections::HashMap")
		assert.True(t, ok)
		assert.Equal(t, header+"use std::fmt;\nuse std::collections::HashMap;\n\npub struct Plan;\n", got)
	})

	t.Run("below header", func(t *testing.T) {
		text := header + "pub struct Plan;\n"
		got, ok := insertImport(text, "std::fmt")
		assert.True(t, ok)
		assert.Equal(t, header+"use std::fmt;\n\npub struct Plan;\n", got)
	})

	t.Run("no header", func(t *testing.T) {
		got, ok := insertImport("pub struct Plan;\n", "std::fmt")
		assert.True(t, ok)
		assert.Equal(t, "use std::fmt;\n\npub struct Plan;\n", got)
	})

	t.Run("already imported", func(t *testing.T) {
		text := "use std::fmt;\n"
		got, ok := insertImport(text, "std::fmt")
		assert.False(t, ok)
		assert.Equal(t, text, got)
	})
}
