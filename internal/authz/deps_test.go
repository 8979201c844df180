package authz

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/quanghuy1242/auther-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newDepsChecker(t *testing.T) (*DependencyChecker, *TestEnv) {
	t.Helper()
	db := newTestDB(t)
	tuples := NewTupleStore(db)
	return NewDependencyChecker(db, tuples, NewModelStore(db)), &TestEnv{DB: db, Tuples: tuples}
}

func mustJSON(t *testing.T, v interface{}) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return datatypes.JSON(raw)
}

func createClient(t *testing.T, db *gorm.DB, clientID string, defaults []string, allowed map[string][]string) *models.Client {
	t.Helper()
	client := &models.Client{
		ClientID:     clientID,
		Name:         clientID,
		AccessPolicy: models.AccessPolicyAllUsers,
	}
	if defaults != nil {
		client.DefaultAPIKeyPermissions = mustJSON(t, defaults)
	}
	if allowed != nil {
		client.AllowedResources = mustJSON(t, allowed)
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

func TestCheckRelationUsageThroughModelFK(t *testing.T) {
	checker, env := newDepsChecker(t)
	ctx := context.Background()

	model := createModelRow(t, env.DB, "client-1", "document", simpleDefinition("viewer", "editor"))
	tuple := &models.Tuple{
		EntityType:   model.EntityType,
		EntityTypeID: &model.ID,
		EntityID:     "doc-1",
		Relation:     "viewer",
		SubjectType:  models.SubjectTypeUser,
		SubjectID:    "alice",
	}
	require.NoError(t, env.DB.Create(tuple).Error)

	usage, err := checker.CheckRelationUsage(ctx, "client-1", "document", "viewer")
	require.NoError(t, err)
	assert.True(t, usage.InUse)
	assert.EqualValues(t, 1, usage.Count)

	usage, err = checker.CheckRelationUsage(ctx, "client-1", "document", "editor")
	require.NoError(t, err)
	assert.False(t, usage.InUse)

	// Unknown entity type falls back to the string form and finds nothing
	usage, err = checker.CheckRelationUsage(ctx, "client-1", "ghost", "viewer")
	require.NoError(t, err)
	assert.False(t, usage.InUse)
}

func TestCheckScopedPermissionsForUser(t *testing.T) {
	checker, env := newDepsChecker(t)
	ctx := context.Background()

	model := createModelRow(t, env.DB, "client-1", "document", simpleDefinition("viewer"))
	for _, entityID := range []string{"doc-1", "doc-2"} {
		tuple := &models.Tuple{
			EntityType:   model.EntityType,
			EntityTypeID: &model.ID,
			EntityID:     entityID,
			Relation:     "viewer",
			SubjectType:  models.SubjectTypeUser,
			SubjectID:    "alice",
		}
		require.NoError(t, env.DB.Create(tuple).Error)
	}
	// A platform tuple must not count as scoped
	grantOwner(t, env.DB, "client-1", "alice")

	count, err := checker.CheckScopedPermissionsForUser(ctx, "client-1", models.SubjectTypeUser, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	count, err = checker.CheckScopedPermissionsForUser(ctx, "client-1", models.SubjectTypeUser, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestCheckResourceDependencies(t *testing.T) {
	checker, env := newDepsChecker(t)
	ctx := context.Background()

	createClient(t, env.DB, "client-1",
		[]string{"files:read", "files:write", "reports:read"},
		map[string][]string{"files": {"read", "write"}, "reports": {"read"}})

	key := &models.APIKey{
		Name:        "ci-bot",
		KeyHash:     "hash-1",
		ClientID:    "client-1",
		Permissions: mustJSON(t, []string{"files:read", "reports:read"}),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, env.DB.Create(key).Error)

	// Narrowing to files:read only orphans two defaults and breaks the key's
	// reports:read
	proposed := map[string][]string{"files": {"read"}}
	report, err := checker.CheckResourceDependencies(ctx, "client-1", proposed)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, []string{"files:write", "reports:read"}, report.OrphanedDefaults)
	require.Len(t, report.AffectedKeys, 1)
	assert.Equal(t, key.ID, report.AffectedKeys[0].KeyID)
	assert.Equal(t, []string{"reports:read"}, report.AffectedKeys[0].InvalidPermissions)

	// The full allow-list breaks nothing
	report, err = checker.CheckResourceDependencies(ctx, "client-1",
		map[string][]string{"files": {"read", "write"}, "reports": {"read"}})
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestCheckAPIKeyDependencies(t *testing.T) {
	checker, env := newDepsChecker(t)
	ctx := context.Background()

	count, err := checker.CheckAPIKeyDependencies(ctx, models.SubjectTypeAPIKey, "key-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = checker.CheckAPIKeyDependencies(ctx, models.SubjectTypeUser, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	group := &models.Group{Name: "bots"}
	require.NoError(t, env.DB.Create(group).Error)
	for _, keyID := range []string{"key-1", "key-2"} {
		require.NoError(t, env.DB.Create(&models.GroupMember{
			GroupID:     group.ID,
			SubjectType: models.SubjectTypeAPIKey,
			SubjectID:   keyID,
		}).Error)
	}
	require.NoError(t, env.DB.Create(&models.GroupMember{
		GroupID:     group.ID,
		SubjectType: models.SubjectTypeUser,
		SubjectID:   "alice",
	}).Error)

	count, err = checker.CheckAPIKeyDependencies(ctx, models.SubjectTypeGroup, group.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count, "only API key members count")
}
