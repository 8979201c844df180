package authz

import (
	"context"
	"testing"

	"github.com/quanghuy1242/auther-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedScopedTuple(t *testing.T, env *TestEnv, model *models.AuthorizationModel, entityID, relation string, subjectType models.SubjectType, subjectID, cond string) *models.Tuple {
	t.Helper()
	tuple := &models.Tuple{
		EntityType:   model.EntityType,
		EntityTypeID: &model.ID,
		EntityID:     entityID,
		Relation:     relation,
		SubjectType:  subjectType,
		SubjectID:    subjectID,
		Condition:    cond,
	}
	require.NoError(t, env.DB.Create(tuple).Error)
	return tuple
}

func TestCheckDirectGrant(t *testing.T) {
	db := newTestDB(t)
	env := &TestEnv{DB: db, Tuples: NewTupleStore(db)}
	model := createModelRow(t, db, "client-1", "document", simpleDefinition("viewer"))
	seedScopedTuple(t, env, model, "doc-1", "viewer", models.SubjectTypeUser, "alice", "")

	checker := NewChecker(db, stubEvaluator{allow: true})
	ctx := context.Background()

	allowed, err := checker.Check(ctx, "client-1", "document", "doc-1", "viewer", models.SubjectTypeUser, "alice", nil)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = checker.Check(ctx, "client-1", "document", "doc-2", "viewer", models.SubjectTypeUser, "alice", nil)
	require.NoError(t, err)
	assert.False(t, allowed, "grant is per entity id")

	allowed, err = checker.Check(ctx, "client-1", "document", "doc-1", "viewer", models.SubjectTypeUser, "bob", nil)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCheckWildcardEntityID(t *testing.T) {
	db := newTestDB(t)
	env := &TestEnv{DB: db, Tuples: NewTupleStore(db)}
	model := createModelRow(t, db, "client-1", "document", simpleDefinition("viewer"))
	seedScopedTuple(t, env, model, models.WildcardEntityID, "viewer", models.SubjectTypeUser, "alice", "")

	checker := NewChecker(db, stubEvaluator{allow: true})

	allowed, err := checker.Check(context.Background(), "client-1", "document", "any-doc", "viewer", models.SubjectTypeUser, "alice", nil)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckGroupExpansion(t *testing.T) {
	db := newTestDB(t)
	env := &TestEnv{DB: db, Tuples: NewTupleStore(db)}
	model := createModelRow(t, db, "client-1", "document", simpleDefinition("viewer"))

	group := &models.Group{Name: "readers"}
	require.NoError(t, db.Create(group).Error)
	require.NoError(t, db.Create(&models.GroupMember{
		GroupID:     group.ID,
		SubjectType: models.SubjectTypeUser,
		SubjectID:   "alice",
	}).Error)

	seedScopedTuple(t, env, model, "doc-1", "viewer", models.SubjectTypeGroup, group.ID, "")

	checker := NewChecker(db, stubEvaluator{allow: true})
	ctx := context.Background()

	allowed, err := checker.Check(ctx, "client-1", "document", "doc-1", "viewer", models.SubjectTypeUser, "alice", nil)
	require.NoError(t, err)
	assert.True(t, allowed, "membership grants the group's relations")

	allowed, err = checker.Check(ctx, "client-1", "document", "doc-1", "viewer", models.SubjectTypeUser, "mallory", nil)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCheckConditionalTupleFailsClosed(t *testing.T) {
	db := newTestDB(t)
	env := &TestEnv{DB: db, Tuples: NewTupleStore(db)}
	model := createModelRow(t, db, "client-1", "document", simpleDefinition("viewer"))
	seedScopedTuple(t, env, model, "doc-1", "viewer", models.SubjectTypeUser, "alice", `return context.region == "eu"`)

	ctx := context.Background()

	denying := NewChecker(db, stubEvaluator{allow: false})
	allowed, err := denying.Check(ctx, "client-1", "document", "doc-1", "viewer", models.SubjectTypeUser, "alice", nil)
	require.NoError(t, err)
	assert.False(t, allowed, "a conditional tuple only counts when its script passes")

	granting := NewChecker(db, stubEvaluator{allow: true})
	allowed, err = granting.Check(ctx, "client-1", "document", "doc-1", "viewer", models.SubjectTypeUser, "alice", map[string]interface{}{"region": "eu"})
	require.NoError(t, err)
	assert.True(t, allowed)

	// No evaluator configured means conditional tuples never match
	bare := NewChecker(db, nil)
	allowed, err = bare.Check(ctx, "client-1", "document", "doc-1", "viewer", models.SubjectTypeUser, "alice", nil)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestGetScopedPermissionsResolvesRenames(t *testing.T) {
	db := newTestDB(t)
	env := &TestEnv{DB: db, Tuples: NewTupleStore(db)}
	model := createModelRow(t, db, "client-1", "document", simpleDefinition("viewer"))
	seedScopedTuple(t, env, model, "doc-1", "viewer", models.SubjectTypeUser, "alice", "")

	// Simulate a rename where only the model row was updated and the tuple's
	// denormalized string is stale
	require.NoError(t, db.Model(&models.AuthorizationModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"name":        "file",
			"entity_type": ScopedEntityType("client-1", "file"),
		}).Error)

	checker := NewChecker(db, stubEvaluator{allow: true})
	entries, err := checker.GetScopedPermissions(context.Background(), "client-1", "", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ScopedEntityType("client-1", "file"), entries[0].EntityType,
		"listing reads the live name through the model, not the stale string")
}

func TestGetScopedPermissionsSubjectFilter(t *testing.T) {
	db := newTestDB(t)
	env := &TestEnv{DB: db, Tuples: NewTupleStore(db)}
	model := createModelRow(t, db, "client-1", "document", simpleDefinition("viewer"))
	seedScopedTuple(t, env, model, "doc-1", "viewer", models.SubjectTypeUser, "alice", "")
	seedScopedTuple(t, env, model, "doc-2", "viewer", models.SubjectTypeAPIKey, "key-1", `return true`)

	checker := NewChecker(db, stubEvaluator{allow: true})
	ctx := context.Background()

	entries, err := checker.GetScopedPermissions(ctx, "client-1", "", "")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = checker.GetScopedPermissions(ctx, "client-1", models.SubjectTypeAPIKey, "key-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc-2", entries[0].EntityID)
	assert.True(t, entries[0].HasCondition)
}
