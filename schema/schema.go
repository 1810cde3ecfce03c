package schema

import (
	"fmt"
	"sort"
)

// FieldKind is the semantic type of a user-type field. Policy resolution
// checks kinds where a directive semantically requires one (email targets).
type FieldKind string

const (
	// KindText is a plain text field.
	KindText FieldKind = "text"
	// KindEmail is an email address field, the only valid target for
	// email-delivery directives.
	KindEmail FieldKind = "email"
	// KindPassword is a credential-hash field.
	KindPassword FieldKind = "password"
	// KindReference is a reference to another content record.
	KindReference FieldKind = "reference"
)

func (k FieldKind) valid() bool {
	switch k {
	case KindText, KindEmail, KindPassword, KindReference:
		return true
	}
	return false
}

// Field describes one field of a user type.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Settings carries per-field constraint metadata consumed by the host
	// platform's field validator (length limits, patterns). Opaque here.
	Settings map[string]string
}

// Directive is a named, argument-bearing policy annotation attached to a
// user type. The engine never interprets args itself; resolution into a
// typed policy happens in policy.go.
type Directive struct {
	Name string
	Args map[string]string
}

// UserType is the validated descriptor of one user type: its ordered field
// list and its directive set.
type UserType struct {
	name       string
	fields     []Field
	fieldIndex map[string]int
	directives []Directive
}

// Name returns the type name.
func (t *UserType) Name() string {
	return t.name
}

// Fields returns the type's fields in declaration order.
func (t *UserType) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// Field looks up a field by name.
func (t *UserType) Field(name string) (Field, bool) {
	i, ok := t.fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// Directives returns the type's directives in declaration order.
func (t *UserType) Directives() []Directive {
	out := make([]Directive, len(t.directives))
	copy(out, t.directives)
	return out
}

// Directive returns the single directive instance with the given name.
func (t *UserType) Directive(name string) (Directive, bool) {
	for _, d := range t.directives {
		if d.Name == name {
			return d, true
		}
	}
	return Directive{}, false
}

// Index is the immutable in-memory schema snapshot. Safe for concurrent use.
type Index struct {
	types map[string]*UserType
}

// TypeDef is the raw input for one user type, as produced by the YAML loader
// or assembled in code by the host.
type TypeDef struct {
	Name       string
	Fields     []Field
	Directives []Directive
}

// Build validates the raw type definitions and assembles an Index.
//
// Rejected at build time: empty or duplicate type names, empty or duplicate
// field names within a type, unknown field kinds, and more than one
// directive instance of the same name on one type.
func Build(defs []TypeDef) (*Index, error) {
	types := make(map[string]*UserType, len(defs))

	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("schema: user type with empty name")
		}
		if _, dup := types[def.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate user type %q", def.Name)
		}

		t := &UserType{
			name:       def.Name,
			fields:     make([]Field, 0, len(def.Fields)),
			fieldIndex: make(map[string]int, len(def.Fields)),
		}

		for _, f := range def.Fields {
			if f.Name == "" {
				return nil, fmt.Errorf("schema: type %q has a field with empty name", def.Name)
			}
			if _, dup := t.fieldIndex[f.Name]; dup {
				return nil, fmt.Errorf("schema: type %q declares field %q twice", def.Name, f.Name)
			}
			if !f.Kind.valid() {
				return nil, fmt.Errorf("schema: type %q field %q has unknown kind %q", def.Name, f.Name, f.Kind)
			}
			t.fieldIndex[f.Name] = len(t.fields)
			t.fields = append(t.fields, f)
		}

		seen := make(map[string]struct{}, len(def.Directives))
		for _, d := range def.Directives {
			if d.Name == "" {
				return nil, fmt.Errorf("schema: type %q has a directive with empty name", def.Name)
			}
			if _, dup := seen[d.Name]; dup {
				return nil, fmt.Errorf("schema: type %q declares directive %q more than once", def.Name, d.Name)
			}
			seen[d.Name] = struct{}{}

			args := make(map[string]string, len(d.Args))
			for k, v := range d.Args {
				args[k] = v
			}
			t.directives = append(t.directives, Directive{Name: d.Name, Args: args})
		}

		types[def.Name] = t
	}

	return &Index{types: types}, nil
}

// UserType looks up a type descriptor by name.
func (ix *Index) UserType(name string) (*UserType, bool) {
	t, ok := ix.types[name]
	return t, ok
}

// TypeNames returns all type names in lexical order.
func (ix *Index) TypeNames() []string {
	names := make([]string, 0, len(ix.types))
	for name := range ix.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
