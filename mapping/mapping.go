// Package mapping translates user-facing category labels into the tokens a
// model was trained on.
//
// A Table is immutable once built and safe for concurrent use. Unknown
// labels and unknown fields are not errors: the normalised label is passed
// through unchanged.
package mapping

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_mapping.yaml
var defaultYAML []byte

// Entry is one label/token pair.
type Entry struct {
	Label string
	Token string
}

type field struct {
	entries []Entry
	tokens  map[string]string
}

// Table maps (field, label) pairs to training tokens.
type Table struct {
	order  []string
	fields map[string]*field
}

// Normalize trims surrounding whitespace and lowercases a label.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Map returns the training token for label in field, or the normalised
// label when no entry exists.
func (t *Table) Map(fieldName, label string) string {
	norm := Normalize(label)
	if t == nil {
		return norm
	}
	f, ok := t.fields[fieldName]
	if !ok {
		return norm
	}
	if tok, ok := f.tokens[norm]; ok {
		return tok
	}
	return norm
}

// Fields returns the field names in declaration order.
func (t *Table) Fields() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Labels returns the normalised labels of a field in declaration order.
func (t *Table) Labels(fieldName string) []string {
	if t == nil {
		return nil
	}
	f, ok := t.fields[fieldName]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Label)
	}
	return out
}

// Entries returns the label/token pairs of a field in declaration order.
func (t *Table) Entries(fieldName string) []Entry {
	if t == nil {
		return nil
	}
	f, ok := t.fields[fieldName]
	if !ok {
		return nil
	}
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Builder accumulates fields in order. It is used by Parse and by callers
// assembling a table in code.
type Builder struct {
	t   *Table
	err error
}

// NewBuilder starts an empty table.
func NewBuilder() *Builder {
	return &Builder{t: &Table{fields: make(map[string]*field)}}
}

// Add appends a label/token pair to a field, creating the field on first use.
func (b *Builder) Add(fieldName, label, token string) *Builder {
	if b.err != nil {
		return b
	}
	name := strings.TrimSpace(fieldName)
	if name == "" {
		b.err = fmt.Errorf("mapping: empty field name")
		return b
	}
	f, ok := b.t.fields[name]
	if !ok {
		f = &field{tokens: make(map[string]string)}
		b.t.fields[name] = f
		b.t.order = append(b.t.order, name)
	}
	norm := Normalize(label)
	if _, dup := f.tokens[norm]; dup {
		b.err = fmt.Errorf("mapping: duplicate label %q in field %q", norm, name)
		return b
	}
	f.tokens[norm] = token
	f.entries = append(f.entries, Entry{Label: norm, Token: token})
	return b
}

// Build returns the finished table or the first error recorded by Add.
func (b *Builder) Build() (*Table, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.t, nil
}

// Parse reads a YAML document of the form
//
//	field:
//	  label: token
//
// keeping the order of fields and labels.
func Parse(data []byte) (*Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mapping: parse yaml: %w", err)
	}
	b := NewBuilder()
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return b.Build()
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("mapping: line %d: top level must be a mapping of fields", root.Line)
	}
	seen := make(map[string]bool, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("mapping: line %d: field name must be a string", key.Line)
		}
		name := strings.TrimSpace(key.Value)
		if seen[name] {
			return nil, fmt.Errorf("mapping: line %d: duplicate field %q", key.Line, name)
		}
		seen[name] = true
		if val.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("mapping: line %d: field %q must map labels to tokens", val.Line, key.Value)
		}
		for j := 0; j+1 < len(val.Content); j += 2 {
			lbl, tok := val.Content[j], val.Content[j+1]
			if lbl.Kind != yaml.ScalarNode || tok.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("mapping: line %d: labels and tokens must be scalars", lbl.Line)
			}
			b.Add(key.Value, lbl.Value, tok.Value)
		}
	}
	return b.Build()
}

// Load parses the mapping file at path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %q: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in table.
func Default() (*Table, error) {
	return Parse(defaultYAML)
}
