package resolver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cratesplit/pkg/enclosing"
	"github.com/gnana997/cratesplit/pkg/structure"
)

const subscriptionImports = `use std::collections::HashMap;
use std::fmt::{self, Display};
use serde::{Deserialize, Serialize};
use rayon::prelude::*;
use super::Handler;
use super::super::config::Settings;
use self::billing::Invoice;
pub(crate) use crate::models::{User, Status as UserStatus};
use billing::Plan;
use std::io::Write as _;
extern crate log;
`

func resolve(t *testing.T, span string, opts Options) *Result {
	t.Helper()
	imports := structure.ParseImports(subscriptionImports)
	require.Len(t, imports, 11)
	if opts.NamespacePath == nil {
		opts.NamespacePath = []string{"models", "subscription"}
	}
	if opts.ExternalCrates == nil {
		opts.ExternalCrates = []string{"serde", "rayon"}
	}
	return New(nil).Resolve(imports, span, opts)
}

func texts(res *Result) []string {
	var out []string
	for _, imp := range res.Imports {
		out = append(out, imp.Text)
	}
	return out
}

func TestResolve_ParentImport(t *testing.T) {
	res := resolve(t, "fn run(h: Handler) { h.go() }", Options{})

	assert.Equal(t, []string{
		"use crate::models::Handler;",
		"use std::io::Write as _;",
	}, texts(res))
	assert.True(t, res.Imports[0].Rewritten)
	assert.Equal(t, ClassParent, res.Imports[0].Class)
}

func TestResolve_FiltersAndRewrites(t *testing.T) {
	span := `#[derive(Serialize)]
pub struct Summary {
    by_user: HashMap<UserStatus, Settings>,
    invoice: Invoice,
    plan: Plan,
}

impl fmt::Debug for Summary {
    fn fmt(&self, f: &mut fmt::Formatter) -> fmt::Result { Ok(()) }
}
`
	res := resolve(t, span, Options{LocalModules: []string{"billing"}})

	assert.Equal(t, []string{
		"use std::collections::HashMap;",
		"use std::fmt;",
		"use serde::Serialize;",
		"use crate::config::Settings;",
		"use crate::models::subscription::billing::Invoice;",
		"pub(crate) use crate::models::Status as UserStatus;",
		"use crate::models::subscription::billing::Plan;",
		"use std::io::Write as _;",
	}, texts(res))

	var dropped []string
	for _, imp := range res.Dropped {
		dropped = append(dropped, imp.Path)
	}
	assert.Equal(t, []string{"rayon::prelude::*", "super::Handler"}, dropped)
}

func TestResolve_ExternalGlobByRoot(t *testing.T) {
	res := resolve(t, "fn sum(v: &[u32]) -> u32 { rayon::join(|| 1, || 2).0 + v.par_iter().sum::<u32>() }", Options{})
	assert.Contains(t, texts(res), "use rayon::prelude::*;")
}

func TestResolve_LocalGlobByRoot(t *testing.T) {
	imports := structure.ParseImports("use billing::invoices::*;\n")
	opts := Options{NamespacePath: []string{"models", "subscription"}, LocalModules: []string{"billing"}}

	res := New(nil).Resolve(imports, "fn total() -> u32 { billing::charge() }", opts)
	assert.Equal(t, []string{"use crate::models::subscription::billing::invoices::*;"}, texts(res))

	res = New(nil).Resolve(imports, "fn total() -> u32 { 0 }", opts)
	assert.Empty(t, res.Imports)
}

func TestPathRootUsed(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"rayon::join(a, b)", true},
		{"x = rayon :: join()", true},
		{"rayon\n    ::join()", true},
		{"my_rayon::join()", false},
		{"rayons::join()", false},
		{"let rayon = 1;", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, pathRootUsed(tc.text, "rayon"), tc.text)
	}
}

func TestResolve_WildcardWithoutPrefixIsKept(t *testing.T) {
	imports := structure.ParseImports("use super::*;\nuse crate::unused::Thing;\n")
	res := New(nil).Resolve(imports, "fn a() {}", Options{NamespacePath: []string{"models"}})

	assert.Equal(t, []string{"use crate::*;"}, texts(res))
	require.Len(t, res.Dropped, 1)
}

func TestResolve_AboveCrateRootPassesThrough(t *testing.T) {
	imports := structure.ParseImports("use super::super::Deep;\n")
	res := New(nil).Resolve(imports, "fn a(d: Deep) {}", Options{NamespacePath: []string{"models"}})

	require.Len(t, res.Imports, 1)
	assert.Equal(t, "use super::super::Deep;", res.Imports[0].Text)
	assert.False(t, res.Imports[0].Rewritten)
}

func TestResolve_UnparsedImportPassesThrough(t *testing.T) {
	imports := []structure.Import{{Text: "use weird!{};", Path: "weird!{}", Root: "weird"}}
	res := New(nil).Resolve(imports, "fn a() {}", Options{})

	require.Len(t, res.Imports, 1)
	assert.Equal(t, ClassUnknown, res.Imports[0].Class)
	assert.Equal(t, "use weird!{};", res.Imports[0].Text)
}

func TestResolve_DeadImportElimination(t *testing.T) {
	span := "fn total(users: &[User]) -> usize { users.len() }"
	res := resolve(t, span, Options{})

	for _, line := range res.Lines() {
		assert.NotContains(t, line, "HashMap")
		assert.NotContains(t, line, "Serialize")
		assert.NotContains(t, line, "UserStatus")
	}
	assert.Contains(t, res.Lines(), "pub(crate) use crate::models::User;")
}

// Every kept import has a bound name (or glob prefix) in the span, and
// every import with a bound name in the span is kept.
func TestResolve_UsageSoundness(t *testing.T) {
	spans := []string{
		"fn a(x: HashMap<u8, u8>) {}",
		"struct S { h: Handler, u: User }",
		"impl Display for S { fn fmt(&self, f: &mut fmt::Formatter) -> fmt::Result { Ok(()) } }",
		"fn b() { let _ = Deserialize; let _ = Plan; }",
	}
	imports := structure.ParseImports(subscriptionImports)

	for _, span := range spans {
		t.Run(span, func(t *testing.T) {
			words := wordSet(span)
			res := New(nil).Resolve(imports, span, Options{
				NamespacePath:  []string{"models", "subscription"},
				ExternalCrates: []string{"serde", "rayon"},
			})

			kept := make(map[string]bool)
			for _, r := range res.Imports {
				kept[r.Original.Path] = true
				if len(r.Names) == 0 {
					continue
				}
				used := false
				for _, n := range r.Names {
					used = used || words[n]
				}
				assert.True(t, used, "kept %s without a use", r.Original.Path)
			}
			for _, imp := range imports {
				if imp.IsExtern {
					continue
				}
				for _, b := range imp.Bindings() {
					if b.Name != "" && words[b.Name] {
						assert.True(t, kept[imp.Path], "dropped %s although %s is used", imp.Path, b.Name)
					}
				}
			}
		})
	}
}

func TestAbsolutize_RoundTrip(t *testing.T) {
	ns := []string{"a", "b"}
	for n := 0; n <= len(ns); n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			got, err := Absolutize(ns, n, []string{"X"})
			require.NoError(t, err)

			manual := append([]string{"crate"}, ns[:len(ns)-n]...)
			manual = append(manual, "X")
			assert.Equal(t, manual, got)
		})
	}

	_, err := Absolutize(ns, 3, []string{"X"})
	assert.ErrorIs(t, err, ErrAboveCrateRoot)
}

func TestResolve_SynthesizesEnclosingImports(t *testing.T) {
	src := "impl Display for Subscription {\n    fn fmt(&self) {}\n}\n"
	ctx := enclosing.Detect(src, 40)
	require.NotNil(t, ctx)

	res := resolve(t, "    fn fmt(&self) {}\n", Options{
		Enclosing:      ctx,
		SourceDeclared: []string{"Subscription"},
	})

	// Display is retained from the source imports because the synthetic
	// header names it.
	assert.Contains(t, res.Lines(), "use std::fmt::{self, Display};")
	assert.Equal(t, []string{"use crate::models::subscription::Subscription;"}, res.Synthesized)
}

func TestResolve_SynthesisSkips(t *testing.T) {
	tests := []struct {
		name   string
		header string
		opts   Options
		want   []string
	}{
		{"parent fallback", "impl Widget {", Options{}, []string{"use super::Widget;"}},
		{"prelude trait", "impl Clone for Widget {", Options{}, []string{"use super::Widget;"}},
		{"qualified", "impl crate::ui::Widget {", Options{}, nil},
		{"generic", "impl<T> From<T> for T {", Options{}, nil},
		{"declared in span", "impl Widget {", Options{SpanDeclared: []string{"Widget"}}, nil},
		{"bound by import", "impl Handler {", Options{}, nil},
		{"primitive", "impl Scale for u32 {", Options{}, []string{"use super::Scale;"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.header + "\n    fn go() {}\n}\n"
			ctx := enclosing.Detect(src, len(tt.header)+2)
			require.NotNil(t, ctx)

			tt.opts.Enclosing = ctx
			res := resolve(t, "    fn go() {}\n", tt.opts)
			assert.Equal(t, tt.want, res.Synthesized)
		})
	}
}
