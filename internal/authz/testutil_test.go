package authz

import (
	"context"
	"testing"

	"github.com/quanghuy1242/auther-sub001/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Group{},
		&models.GroupMember{},
		&models.APIKey{},
		&models.AuthorizationModel{},
		&models.Tuple{},
		&models.PolicyVersion{},
	))
	return db
}

// grantOwner seeds a platform owner tuple directly, bypassing the manager, so
// tests have an initial caller with manage rights.
func grantOwner(t *testing.T, db *gorm.DB, clientID, userID string) {
	t.Helper()
	tuple := &models.Tuple{
		EntityType:  PlatformEntityType(clientID),
		EntityID:    clientID,
		Relation:    string(models.RelationOwner),
		SubjectType: models.SubjectTypeUser,
		SubjectID:   userID,
	}
	require.NoError(t, db.Create(tuple).Error)
}

func createModelRow(t *testing.T, db *gorm.DB, clientID, name string, def *Definition) *models.AuthorizationModel {
	t.Helper()
	raw, err := def.Encode()
	require.NoError(t, err)
	model := &models.AuthorizationModel{
		EntityType: ScopedEntityType(clientID, name),
		ClientID:   clientID,
		Name:       name,
		Definition: raw,
	}
	require.NoError(t, db.Create(model).Error)
	return model
}

func simpleDefinition(relations ...string) *Definition {
	def := &Definition{Relations: map[string]SubjectSpec{}}
	for _, r := range relations {
		def.Relations[r] = SubjectSpec{Union: []string{"user", "group", "apikey"}}
	}
	return def
}

// TestEnv bundles the shared fixtures handed to each test
type TestEnv struct {
	DB     *gorm.DB
	Tuples TupleStore
}

type stubValidator struct {
	err error
}

func (s stubValidator) ValidateSyntax(string) error { return s.err }

type recordingSnapshots struct {
	versions []models.PolicyVersion
}

func (r *recordingSnapshots) EnqueuePolicyVersion(_ context.Context, v models.PolicyVersion) error {
	r.versions = append(r.versions, v)
	return nil
}

type stubEvaluator struct {
	allow bool
}

func (s stubEvaluator) Evaluate(context.Context, string, map[string]interface{}) bool {
	return s.allow
}
