package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the YAML shape of a schema description.
//
//	types:
//	  Member:
//	    fields:
//	      - name: email
//	        kind: email
//	        required: true
//	      - name: passwordHash
//	        kind: password
//	    directives:
//	      - name: emailChange
//	        args:
//	          emailField: email
//	          changeUrl: "https://example.com/email-confirm/{token}"
type document struct {
	Types map[string]typeDoc `yaml:"types"`
}

type typeDoc struct {
	Fields     []fieldDoc     `yaml:"fields"`
	Directives []directiveDoc `yaml:"directives,omitempty"`
}

type fieldDoc struct {
	Name     string            `yaml:"name"`
	Kind     string            `yaml:"kind"`
	Required bool              `yaml:"required,omitempty"`
	Settings map[string]string `yaml:"settings,omitempty"`
}

type directiveDoc struct {
	Name string            `yaml:"name"`
	Args map[string]string `yaml:"args,omitempty"`
}

// Parse decodes a YAML schema description and builds a validated [Index].
func Parse(data []byte) (*Index, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: decode description: %w", err)
	}
	if len(doc.Types) == 0 {
		return nil, fmt.Errorf("schema: description declares no types")
	}

	defs := make([]TypeDef, 0, len(doc.Types))
	for name, td := range doc.Types {
		def := TypeDef{Name: name}
		for _, f := range td.Fields {
			def.Fields = append(def.Fields, Field{
				Name:     f.Name,
				Kind:     FieldKind(f.Kind),
				Required: f.Required,
				Settings: f.Settings,
			})
		}
		for _, d := range td.Directives {
			def.Directives = append(def.Directives, Directive{
				Name: d.Name,
				Args: d.Args,
			})
		}
		defs = append(defs, def)
	}

	return Build(defs)
}

// LoadFile reads and parses a YAML schema description from disk.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read description: %w", err)
	}
	return Parse(data)
}
