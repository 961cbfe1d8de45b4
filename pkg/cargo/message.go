package cargo

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path/filepath"
)

// Message is one line of `cargo --message-format=json` output.
type Message struct {
	Reason    string      `json:"reason"`
	PackageID string      `json:"package_id,omitempty"`
	Target    *MsgTarget  `json:"target,omitempty"`
	Message   *Diagnostic `json:"message,omitempty"`
	Success   *bool       `json:"success,omitempty"`
}

// MsgTarget identifies the compiled target.
type MsgTarget struct {
	Name    string   `json:"name"`
	Kind    []string `json:"kind"`
	SrcPath string   `json:"src_path"`
}

// Diagnostic is a rustc diagnostic.
type Diagnostic struct {
	Message  string       `json:"message"`
	Code     *Code        `json:"code,omitempty"`
	Level    string       `json:"level"`
	Spans    []Span       `json:"spans"`
	Children []Diagnostic `json:"children"`
	Rendered string       `json:"rendered,omitempty"`
}

// Code is a diagnostic code such as E0412.
type Code struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation,omitempty"`
}

// Span is a source region a diagnostic points at. Lines and columns are
// 1-based; ColumnEnd is exclusive.
type Span struct {
	FileName                string  `json:"file_name"`
	ByteStart               int     `json:"byte_start"`
	ByteEnd                 int     `json:"byte_end"`
	LineStart               int     `json:"line_start"`
	LineEnd                 int     `json:"line_end"`
	ColumnStart             int     `json:"column_start"`
	ColumnEnd               int     `json:"column_end"`
	IsPrimary               bool    `json:"is_primary"`
	Label                   *string `json:"label,omitempty"`
	SuggestedReplacement    *string `json:"suggested_replacement,omitempty"`
	SuggestionApplicability *string `json:"suggestion_applicability,omitempty"`
}

// Diagnostic levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
	LevelNote    = "note"
	LevelHelp    = "help"
)

// IsError reports whether d is an error (including ICEs).
func (d *Diagnostic) IsError() bool {
	return d.Level == LevelError || d.Level == "error: internal compiler error"
}

// PrimarySpan returns the first primary span, or nil.
func (d *Diagnostic) PrimarySpan() *Span {
	for i := range d.Spans {
		if d.Spans[i].IsPrimary {
			return &d.Spans[i]
		}
	}
	return nil
}

// Suggestions returns every machine-applicable or maybe-incorrect
// replacement in d's children.
func (d *Diagnostic) Suggestions() []Suggestion {
	var out []Suggestion
	for _, child := range d.Children {
		for _, sp := range child.Spans {
			if sp.SuggestedReplacement == nil {
				continue
			}
			out = append(out, Suggestion{Message: child.Message, Span: sp, Replacement: *sp.SuggestedReplacement})
		}
	}
	return out
}

// Suggestion is a replacement rustc proposes.
type Suggestion struct {
	Message     string `json:"message"`
	Span        Span   `json:"span"`
	Replacement string `json:"replacement"`
}

// ParseMessages decodes JSON lines, keeping compiler messages. Lines that
// are not JSON objects are skipped.
func ParseMessages(out []byte) []Message {
	var msgs []Message
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var m Message
		if err := json.Unmarshal(line, &m); err != nil {
			continue
		}
		if m.Reason == "compiler-message" && m.Message != nil {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// ForFile returns the diagnostics whose primary span is in file. Span file
// names are relative to root.
func ForFile(msgs []Message, root, file string) []Diagnostic {
	want := filepath.Clean(file)
	var out []Diagnostic
	for _, m := range msgs {
		sp := m.Message.PrimarySpan()
		if sp == nil {
			continue
		}
		name := sp.FileName
		if !filepath.IsAbs(name) {
			name = filepath.Join(root, name)
		}
		if filepath.Clean(name) == want {
			out = append(out, *m.Message)
		}
	}
	return out
}
