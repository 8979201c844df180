package tasks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/quanghuy1242/auther-sub001/internal/authz"
	"github.com/quanghuy1242/auther-sub001/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTaskTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.APIKey{},
		&models.Tuple{},
		&models.PolicyVersion{},
	))
	return db
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestHandleAPIKeyCleanup(t *testing.T) {
	db := newTaskTestDB(t)
	h := NewTaskHandler(db)
	ctx := context.Background()

	expired := &models.APIKey{Name: "old-bot", KeyHash: "hash-old", ClientID: "client-1", ExpiresAt: time.Now().Add(-time.Hour)}
	live := &models.APIKey{Name: "live-bot", KeyHash: "hash-live", ClientID: "client-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, db.Create(expired).Error)
	require.NoError(t, db.Create(live).Error)

	for keyID, entityID := range map[string]string{expired.ID: "doc-1", live.ID: "doc-2"} {
		require.NoError(t, db.Create(&models.Tuple{
			EntityType:  "client_client-1:document",
			EntityID:    entityID,
			Relation:    "viewer",
			SubjectType: models.SubjectTypeAPIKey,
			SubjectID:   keyID,
		}).Error)
	}

	require.NoError(t, h.HandleAPIKeyCleanup(ctx, asynq.NewTask(TaskTypeAPIKeyCleanup, nil)))

	var key models.APIKey
	require.NoError(t, db.First(&key, "id = ?", expired.ID).Error)
	assert.True(t, key.IsDeleted)
	var liveKey models.APIKey
	require.NoError(t, db.First(&liveKey, "id = ?", live.ID).Error)
	assert.False(t, liveKey.IsDeleted)

	count, err := authz.NewTupleStore(db).Count(ctx, authz.TupleFilter{SubjectType: models.SubjectTypeAPIKey})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "only the live key's tuple survives")

	// Already swept keys stay out of later runs
	require.NoError(t, h.HandleAPIKeyCleanup(ctx, asynq.NewTask(TaskTypeAPIKeyCleanup, nil)))
	count, err = authz.NewTupleStore(db).Count(ctx, authz.TupleFilter{SubjectType: models.SubjectTypeAPIKey})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestHandlePolicyVersionSnapshotIncrementsVersion(t *testing.T) {
	db := newTaskTestDB(t)
	h := NewTaskHandler(db)
	ctx := context.Background()

	version := models.PolicyVersion{
		EntityType:     "client_client-1:document",
		PermissionName: "viewer",
		TupleID:        "tuple-1",
		Engine:         models.PolicyEngineLua,
		Script:         `return context.region == "eu"`,
	}
	payload := mustMarshal(t, version)

	require.NoError(t, h.HandlePolicyVersionSnapshot(ctx, asynq.NewTask(TaskTypePolicyVersionSnapshot, payload)))
	require.NoError(t, h.HandlePolicyVersionSnapshot(ctx, asynq.NewTask(TaskTypePolicyVersionSnapshot, payload)))

	var stored []models.PolicyVersion
	require.NoError(t, db.Order("version").Find(&stored).Error)
	require.Len(t, stored, 2)
	assert.Equal(t, 1, stored[0].Version)
	assert.Equal(t, 2, stored[1].Version)
}
