package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/quanghuy1242/auther-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEditor(t *testing.T, validator ConditionValidator) (*ModelEditor, *recordingSnapshots, *TestEnv) {
	t.Helper()
	db := newTestDB(t)
	tuples := NewTupleStore(db)
	modelStore := NewModelStore(db)
	resolver := NewAccessLevelResolver(tuples)
	snapshots := &recordingSnapshots{}
	deps := NewDependencyChecker(db, tuples, modelStore)
	editor := NewModelEditor(db, tuples, modelStore, resolver, validator, snapshots, deps)
	return editor, snapshots, &TestEnv{DB: db, Tuples: tuples}
}

func TestEditorCreateModel(t *testing.T) {
	editor, _, env := newEditor(t, stubValidator{})
	grantOwner(t, env.DB, "client-1", "root")
	ctx := context.Background()

	def := simpleDefinition("viewer", "editor")
	result := editor.Update(ctx, "root", "client-1", "invoice", def)
	require.True(t, result.Success, result.Error)

	store := NewModelStore(env.DB)
	model, err := store.Get(ctx, "client-1", "invoice")
	require.NoError(t, err)
	assert.Equal(t, ScopedEntityType("client-1", "invoice"), model.EntityType)

	stored, err := ParseDefinition(model.Definition)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"viewer", "editor"}, stored.RelationNames())
}

func TestEditorUpdateRejectsInvalidDefinition(t *testing.T) {
	editor, _, env := newEditor(t, stubValidator{})
	grantOwner(t, env.DB, "client-1", "root")

	result := editor.Update(context.Background(), "root", "client-1", "invoice", &Definition{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no relations")
}

func TestEditorUpdateValidatesPolicyScripts(t *testing.T) {
	editor, _, env := newEditor(t, stubValidator{err: errors.New("unexpected symbol")})
	grantOwner(t, env.DB, "client-1", "root")
	ctx := context.Background()

	def := simpleDefinition("viewer")
	def.Permissions = map[string]Permission{
		"can_view": {Relation: "viewer", Policy: "retrun true"},
	}

	result := editor.Update(ctx, "root", "client-1", "invoice", def)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, `permission "can_view" has an invalid policy script`)

	// The whole update aborts; no model row is written
	_, err := NewModelStore(env.DB).Get(ctx, "client-1", "invoice")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestEditorUpdateRejectsUnknownPolicyEngine(t *testing.T) {
	editor, _, env := newEditor(t, stubValidator{})
	grantOwner(t, env.DB, "client-1", "root")

	def := simpleDefinition("viewer")
	def.Permissions = map[string]Permission{
		"can_view": {Relation: "viewer", PolicyEngine: "cel", Policy: "true"},
	}

	result := editor.Update(context.Background(), "root", "client-1", "invoice", def)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unsupported policy engine")
}

func TestEditorRemovingRelationInUseFails(t *testing.T) {
	editor, _, env := newEditor(t, stubValidator{})
	grantOwner(t, env.DB, "client-1", "root")
	ctx := context.Background()

	require.True(t, editor.Update(ctx, "root", "client-1", "invoice", simpleDefinition("viewer", "editor")).Success)

	model, err := NewModelStore(env.DB).Get(ctx, "client-1", "invoice")
	require.NoError(t, err)
	tuple := &models.Tuple{
		EntityType:   model.EntityType,
		EntityTypeID: &model.ID,
		EntityID:     "inv-1",
		Relation:     "editor",
		SubjectType:  models.SubjectTypeUser,
		SubjectID:    "alice",
	}
	require.NoError(t, env.DB.Create(tuple).Error)

	// Dropping "editor" while alice still holds it must fail
	result := editor.Update(ctx, "root", "client-1", "invoice", simpleDefinition("viewer"))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, `cannot remove relation "editor"`)
	assert.Contains(t, result.Error, "count=1")

	// Removing the tuple unblocks the same edit
	require.NoError(t, env.DB.Delete(&models.Tuple{}, "id = ?", tuple.ID).Error)
	result = editor.Update(ctx, "root", "client-1", "invoice", simpleDefinition("viewer"))
	assert.True(t, result.Success, result.Error)
}

func TestEditorUpdateSnapshotsScriptedPermissions(t *testing.T) {
	editor, snapshots, env := newEditor(t, stubValidator{})
	grantOwner(t, env.DB, "client-1", "root")

	def := simpleDefinition("viewer")
	def.Permissions = map[string]Permission{
		"can_view":     {Relation: "viewer", Policy: `return context.department == "sales"`},
		"can_download": {Relation: "viewer"},
	}

	result := editor.Update(context.Background(), "root", "client-1", "invoice", def)
	require.True(t, result.Success, result.Error)

	require.Len(t, snapshots.versions, 1)
	assert.Equal(t, "can_view", snapshots.versions[0].PermissionName)
	assert.Equal(t, ScopedEntityType("client-1", "invoice"), snapshots.versions[0].EntityType)
}

func TestEditorDeleteBlockedByTuples(t *testing.T) {
	editor, _, env := newEditor(t, stubValidator{})
	grantOwner(t, env.DB, "client-1", "root")
	ctx := context.Background()

	model := createModelRow(t, env.DB, "client-1", "invoice", simpleDefinition("viewer"))
	tuple := &models.Tuple{
		EntityType:   model.EntityType,
		EntityTypeID: &model.ID,
		EntityID:     "inv-1",
		Relation:     "viewer",
		SubjectType:  models.SubjectTypeUser,
		SubjectID:    "alice",
	}
	require.NoError(t, env.DB.Create(tuple).Error)

	result := editor.Delete(ctx, "root", "client-1", "invoice")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "tuples still reference it")

	require.NoError(t, env.DB.Delete(&models.Tuple{}, "id = ?", tuple.ID).Error)
	result = editor.Delete(ctx, "root", "client-1", "invoice")
	assert.True(t, result.Success, result.Error)
}

func TestEditorRenameKeepsTuplesBound(t *testing.T) {
	editor, _, env := newEditor(t, stubValidator{})
	grantOwner(t, env.DB, "client-1", "root")
	ctx := context.Background()

	model := createModelRow(t, env.DB, "client-1", "document", simpleDefinition("viewer"))
	tuple := &models.Tuple{
		EntityType:   model.EntityType,
		EntityTypeID: &model.ID,
		EntityID:     "doc-1",
		Relation:     "viewer",
		SubjectType:  models.SubjectTypeUser,
		SubjectID:    "alice",
	}
	require.NoError(t, env.DB.Create(tuple).Error)

	result := editor.Rename(ctx, "root", "client-1", "document", "file")
	require.True(t, result.Success, result.Error)

	// The model row carries the new name
	renamed, err := NewModelStore(env.DB).Get(ctx, "client-1", "file")
	require.NoError(t, err)
	assert.Equal(t, model.ID, renamed.ID)
	assert.Equal(t, ScopedEntityType("client-1", "file"), renamed.EntityType)

	// The tuple's denormalized string was rewritten too
	reloaded, err := env.Tuples.FindByID(ctx, tuple.ID)
	require.NoError(t, err)
	assert.Equal(t, ScopedEntityType("client-1", "file"), reloaded.EntityType)
	require.NotNil(t, reloaded.EntityTypeID)
	assert.Equal(t, model.ID, *reloaded.EntityTypeID)
}

func TestEditorRenameGuards(t *testing.T) {
	editor, _, env := newEditor(t, stubValidator{})
	grantOwner(t, env.DB, "client-1", "root")
	ctx := context.Background()

	createModelRow(t, env.DB, "client-1", "document", simpleDefinition("viewer"))
	createModelRow(t, env.DB, "client-1", "file", simpleDefinition("viewer"))

	result := editor.Rename(ctx, "root", "client-1", "document", "document")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "same as the current name")

	result = editor.Rename(ctx, "root", "client-1", "document", "file")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "already exists")

	result = editor.Rename(ctx, "root", "client-1", "ghost", "phantom")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "does not exist")
}
