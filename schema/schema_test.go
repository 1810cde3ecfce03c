package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberDef() TypeDef {
	return TypeDef{
		Name: "Member",
		Fields: []Field{
			{Name: "email", Kind: KindEmail, Required: true},
			{Name: "passwordHash", Kind: KindPassword},
			{Name: "displayName", Kind: KindText},
		},
		Directives: []Directive{
			{Name: DirectiveEmailChange, Args: map[string]string{
				"emailField": "email",
				"changeUrl":  "https://example.com/email-confirm/{token}",
			}},
			{Name: DirectivePasswordAuth, Args: map[string]string{
				"passwordField": "passwordHash",
			}},
		},
	}
}

func TestBuildIndexesFieldsAndDirectives(t *testing.T) {
	ix, err := Build([]TypeDef{memberDef()})
	require.NoError(t, err)

	typ, ok := ix.UserType("Member")
	require.True(t, ok)
	assert.Equal(t, "Member", typ.Name())

	f, ok := typ.Field("email")
	require.True(t, ok)
	assert.Equal(t, KindEmail, f.Kind)
	assert.True(t, f.Required)

	_, ok = typ.Field("missing")
	assert.False(t, ok)

	d, ok := typ.Directive(DirectiveEmailChange)
	require.True(t, ok)
	assert.Equal(t, "email", d.Args["emailField"])

	assert.Equal(t, []string{"Member"}, ix.TypeNames())
}

func TestBuildRejectsDuplicateDirective(t *testing.T) {
	def := memberDef()
	def.Directives = append(def.Directives, Directive{
		Name: DirectiveEmailChange,
		Args: map[string]string{"emailField": "email", "changeUrl": "https://elsewhere/{token}"},
	})

	_, err := Build([]TypeDef{def})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than once")
}

func TestBuildRejectsDuplicateField(t *testing.T) {
	def := memberDef()
	def.Fields = append(def.Fields, Field{Name: "email", Kind: KindText})

	_, err := Build([]TypeDef{def})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field \"email\" twice")
}

func TestBuildRejectsUnknownFieldKind(t *testing.T) {
	def := memberDef()
	def.Fields[0].Kind = "blob"

	_, err := Build([]TypeDef{def})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestBuildRejectsDuplicateType(t *testing.T) {
	_, err := Build([]TypeDef{memberDef(), memberDef()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate user type")
}

func TestDirectiveArgsAreCopied(t *testing.T) {
	def := memberDef()
	ix, err := Build([]TypeDef{def})
	require.NoError(t, err)

	// Mutating the input after Build must not leak into the index.
	def.Directives[0].Args["emailField"] = "tampered"

	typ, _ := ix.UserType("Member")
	d, _ := typ.Directive(DirectiveEmailChange)
	assert.Equal(t, "email", d.Args["emailField"])
}

func TestParseYAMLDescription(t *testing.T) {
	const doc = `
types:
  Member:
    fields:
      - name: email
        kind: email
        required: true
      - name: passwordHash
        kind: password
    directives:
      - name: emailChange
        args:
          emailField: email
          changeUrl: "https://example.com/email-confirm/{token}"
  Visitor:
    fields:
      - name: handle
        kind: text
`
	ix, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"Member", "Visitor"}, ix.TypeNames())

	typ, ok := ix.UserType("Member")
	require.True(t, ok)
	_, ok = typ.Directive(DirectiveEmailChange)
	assert.True(t, ok)

	visitor, ok := ix.UserType("Visitor")
	require.True(t, ok)
	assert.Empty(t, visitor.Directives())
}

func TestParseRejectsEmptyDescription(t *testing.T) {
	_, err := Parse([]byte("types: {}\n"))
	require.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("types:\n  - not-a-map\n"))
	require.Error(t, err)
}
