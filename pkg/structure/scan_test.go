package structure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMask(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"string", `let s = "{}";`, `let s = "  ";`},
		{"escaped quote", `"a\"{"`, `"    "`},
		{"char", `let c = '{';`, `let c = ' ';`},
		{"escaped char", `'\''`, `'  '`},
		{"lifetime", `fn f<'a>(x: &'a str)`, `fn f<'a>(x: &'a str)`},
		{"line comment", "a // {\nb", "a     \nb"},
		{"nested block comment", "a /* { /* } */ } */ b", "a                   b"},
		{"raw string", `r#"{"}"#`, `r#"   "#`},
		{"byte string", `b"{"`, `b" "`},
		{"byte char", `b'{'`, `b' '`},
		{"identifier ending in r", `letter"x"`, `letter" "`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mask(tt.src)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, len(tt.src))
		})
	}
}

func TestMask_PreservesNewlines(t *testing.T) {
	src := "let s = \"a\nb\";\n/* x\ny */"
	assert.Equal(t, strings.Count(src, "\n"), strings.Count(Mask(src), "\n"))
}

func TestMatchDelim(t *testing.T) {
	masked := Mask(`fn a() { if x { "}" } }`)
	open := strings.IndexByte(masked, '{')

	closeAt, ok := MatchDelim(masked, open, len(masked))
	require.True(t, ok)
	assert.Equal(t, len(masked)-1, closeAt)

	_, ok = MatchDelim(masked, open, closeAt)
	assert.False(t, ok)

	_, ok = MatchDelim(masked, 0, len(masked))
	assert.False(t, ok)
}

func TestMatchAngle(t *testing.T) {
	s := "<F: Fn(u8) -> u8, T: Into<Vec<u8>>> rest"
	closeAt, ok := MatchAngle(s, 0, len(s))
	require.True(t, ok)
	assert.Equal(t, " rest", s[closeAt+1:])

	_, ok = MatchAngle("< b { c >", 0, 9)
	assert.False(t, ok)
}

func TestSplitTopLevel(t *testing.T) {
	got := SplitTopLevel(`a: HashMap<K, V>, b: (u8, u16), c: fn(i32) -> i32, d: &'static str, e: [u8; 4], f: "x,y",`, ',')
	assert.Equal(t, []string{
		"a: HashMap<K, V>",
		"b: (u8, u16)",
		"c: fn(i32) -> i32",
		"d: &'static str",
		"e: [u8; 4]",
		`f: "x,y"`,
	}, got)

	assert.Empty(t, SplitTopLevel("  ", ','))
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"User":                       "User",
		"&'a mut fmt::Formatter<'_>": "Formatter",
		"Box<dyn Error>":             "Box",
		"impl Iterator<Item = u8>":   "Iterator",
		"crate::models::User<T>":     "User",
		"Fn(u8) -> u8":               "Fn",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseName(in), in)
	}
}

func TestCapitalizedIdents(t *testing.T) {
	assert.Equal(t, []string{"Vec", "User", "Option"}, CapitalizedIdents("Vec<User>, Option<User>, u8"))
	assert.Equal(t, []string{"a", "B", "c_d"}, Identifiers("a B::c_d a"))
}
