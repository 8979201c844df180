package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quanghuy1242/auther-sub001/internal/authz"
	"github.com/quanghuy1242/auther-sub001/internal/models"
	"github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

// TaskHandler handles task processing with improved error handling and logging
type TaskHandler struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(db *gorm.DB) *TaskHandler {
	return &TaskHandler{
		db:     db,
		logger: logger.New("task_handler"),
	}
}

// HandlePolicyVersionSnapshot persists one policy-version history row. The
// version counter is per (entity type, permission); concurrent snapshots for
// the same pair may land with the same number, which is acceptable for a
// best-effort history.
func (h *TaskHandler) HandlePolicyVersionSnapshot(ctx context.Context, task *asynq.Task) error {
	var version models.PolicyVersion
	if err := json.Unmarshal(task.Payload(), &version); err != nil {
		return fmt.Errorf("failed to unmarshal policy version payload: %w", err)
	}

	var latest int
	err := h.db.WithContext(ctx).Model(&models.PolicyVersion{}).
		Where("entity_type = ? AND permission_name = ?", version.EntityType, version.PermissionName).
		Select("COALESCE(MAX(version), 0)").
		Scan(&latest).Error
	if err != nil {
		return fmt.Errorf("failed to resolve latest policy version: %w", err)
	}

	version.Version = latest + 1
	if err := h.db.WithContext(ctx).Create(&version).Error; err != nil {
		return fmt.Errorf("failed to persist policy version: %w", err)
	}

	h.logger.Info("recorded policy version %d for %s.%s", version.Version, version.EntityType, version.PermissionName)
	return nil
}

// HandleAPIKeyCleanup deletes expired API keys together with every tuple
// granted to them.
func (h *TaskHandler) HandleAPIKeyCleanup(ctx context.Context, task *asynq.Task) error {
	var expired []models.APIKey
	err := h.db.WithContext(ctx).
		Where("expires_at < ? AND is_deleted = false", time.Now()).
		Find(&expired).Error
	if err != nil {
		return fmt.Errorf("failed to list expired API keys: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	ids := make([]string, 0, len(expired))
	for _, key := range expired {
		ids = append(ids, key.ID)
	}

	removed, err := authz.NewTupleStore(h.db).Delete(ctx, authz.TupleFilter{
		SubjectType: models.SubjectTypeAPIKey,
		SubjectIDs:  ids,
	})
	if err != nil {
		return fmt.Errorf("failed to delete tuples of expired API keys: %w", err)
	}

	err = h.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"deleted_at": time.Now(),
			"is_deleted": true,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to delete expired API keys: %w", err)
	}

	h.logger.Info("cleaned up %d expired API keys and %d orphaned tuples", len(ids), removed)
	return nil
}
