package authz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectSpecShapes(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		union     []string
		hierarchy bool
	}{
		{
			name:  "pipe string",
			input: `"user|group"`,
			union: []string{"user", "group"},
		},
		{
			name:  "plain array",
			input: `["user","apikey"]`,
			union: []string{"user", "apikey"},
		},
		{
			name:      "union with params",
			input:     `{"union":["user","group"],"subjectParams":{"hierarchy":true}}`,
			union:     []string{"user", "group"},
			hierarchy: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var spec SubjectSpec
			require.NoError(t, json.Unmarshal([]byte(tt.input), &spec))
			assert.Equal(t, tt.union, spec.Union)
			assert.Equal(t, tt.hierarchy, spec.Hierarchy)
		})
	}
}

func TestSubjectSpecRejectsEmpty(t *testing.T) {
	for _, input := range []string{`""`, `"|"`, `[]`, `{"union":[]}`} {
		var spec SubjectSpec
		assert.Error(t, json.Unmarshal([]byte(input), &spec), "input %s", input)
	}
}

func TestSubjectSpecRoundTrip(t *testing.T) {
	spec := SubjectSpec{Union: []string{"user", "group"}, Hierarchy: true}
	raw, err := json.Marshal(spec)
	require.NoError(t, err)

	var back SubjectSpec
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, spec, back)

	// Without hierarchy the canonical form collapses to a plain array
	raw, err = json.Marshal(SubjectSpec{Union: []string{"user"}})
	require.NoError(t, err)
	assert.JSONEq(t, `["user"]`, string(raw))
}

func TestDefinitionParseFullModel(t *testing.T) {
	raw := []byte(`{
		"relations": {
			"viewer": "user|group",
			"editor": ["user"],
			"owner": {"union": ["user"], "subjectParams": {"hierarchy": true}}
		},
		"permissions": {
			"can_view": {"relation": "viewer"},
			"can_edit": {"relation": "editor", "policyEngine": "lua", "policy": "return context.active"}
		}
	}`)

	def, err := ParseDefinition(raw)
	require.NoError(t, err)
	require.NoError(t, def.Validate())

	assert.Equal(t, []string{"editor", "owner", "viewer"}, def.RelationNames())
	assert.True(t, def.Relations["owner"].Hierarchy)
	assert.False(t, def.Permissions["can_view"].Scripted())
	assert.True(t, def.Permissions["can_edit"].Scripted())
}

func TestDefinitionValidate(t *testing.T) {
	def := &Definition{}
	assert.ErrorContains(t, def.Validate(), "no relations")

	def = simpleDefinition("viewer")
	def.Relations["broken"] = SubjectSpec{Union: []string{"robot"}}
	assert.ErrorContains(t, def.Validate(), `unknown subject type "robot"`)

	def = simpleDefinition("viewer")
	def.Permissions = map[string]Permission{"can_edit": {Relation: "editor"}}
	assert.ErrorContains(t, def.Validate(), `references undefined relation "editor"`)

	def = simpleDefinition("viewer")
	def.Permissions = map[string]Permission{"can_view": {Relation: "viewer"}}
	assert.NoError(t, def.Validate())
}

func TestDefinitionRemovedRelations(t *testing.T) {
	old := simpleDefinition("viewer", "editor", "approver")
	next := simpleDefinition("viewer")
	assert.Equal(t, []string{"approver", "editor"}, old.RemovedRelations(next))
	assert.Empty(t, next.RemovedRelations(old))
}
