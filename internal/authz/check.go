package authz

import (
	"context"
	"time"

	"github.com/quanghuy1242/auther-sub001/internal/models"
	console "github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"gorm.io/gorm"
)

// ConditionEvaluator runs a tuple's condition script against the runtime
// context. Implementations must fail closed: any error or timeout means the
// condition is not satisfied.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, script string, runtime map[string]interface{}) bool
}

// ScopedPermissionEntry is the derived view joining a tuple with its
// authorization model, so the live entity type name survives renames without
// rewriting tuple rows.
type ScopedPermissionEntry struct {
	TupleID      string             `json:"tupleId"`
	EntityType   string             `json:"entityType"`
	EntityID     string             `json:"entityId"`
	Relation     string             `json:"relation"`
	SubjectType  models.SubjectType `json:"subjectType"`
	SubjectID    string             `json:"subjectId"`
	HasCondition bool               `json:"hasCondition"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// Checker answers live authorization questions against the tuple graph,
// evaluating ABAC condition overlays as it goes.
type Checker struct {
	db        *gorm.DB
	evaluator ConditionEvaluator
	log       *console.Logger
}

func NewChecker(db *gorm.DB, evaluator ConditionEvaluator) *Checker {
	return &Checker{db: db, evaluator: evaluator, log: console.New("Checker")}
}

// GetScopedPermissions lists the scoped permissions under a client, resolving
// each entity type through the model FK so renamed types show their current
// name immediately. Subject filters are optional.
func (c *Checker) GetScopedPermissions(ctx context.Context, clientID string, subjectType models.SubjectType, subjectID string) ([]ScopedPermissionEntry, error) {
	query := c.db.WithContext(ctx).Model(&models.Tuple{}).
		Preload("Model").
		Where("entity_type LIKE ?", ScopedEntityTypePrefix(clientID)+"%")
	if subjectType != "" {
		query = query.Where("subject_type = ?", subjectType)
	}
	if subjectID != "" {
		query = query.Where("subject_id = ?", subjectID)
	}

	var tuples []models.Tuple
	if err := query.Find(&tuples).Error; err != nil {
		return nil, err
	}

	entries := make([]ScopedPermissionEntry, 0, len(tuples))
	for _, t := range tuples {
		entityType := t.EntityType
		if t.Model != nil {
			// FK is authoritative; the string copy may lag after a rename
			entityType = t.Model.EntityType
		}
		entries = append(entries, ScopedPermissionEntry{
			TupleID:      t.ID,
			EntityType:   entityType,
			EntityID:     t.EntityID,
			Relation:     t.Relation,
			SubjectType:  t.SubjectType,
			SubjectID:    t.SubjectID,
			HasCondition: t.HasCondition(),
			CreatedAt:    t.CreatedAt,
		})
	}
	return entries, nil
}

// Check reports whether the subject holds the relation on the entity, either
// directly or through a wildcard grant or group membership. Conditional
// tuples only count when their script evaluates truthy; evaluation failures
// count as "not satisfied", never as "satisfied".
func (c *Checker) Check(ctx context.Context, clientID, entityTypeName, entityID, relation string, subjectType models.SubjectType, subjectID string, runtime map[string]interface{}) (bool, error) {
	subjects := []struct {
		subjectType models.SubjectType
		subjectID   string
	}{
		{subjectType, subjectID},
	}

	// Expand group memberships one level; nested groups are not resolved
	var memberships []models.GroupMember
	err := c.db.WithContext(ctx).
		Where("subject_type = ? AND subject_id = ?", subjectType, subjectID).
		Find(&memberships).Error
	if err != nil {
		return false, err
	}
	for _, m := range memberships {
		subjects = append(subjects, struct {
			subjectType models.SubjectType
			subjectID   string
		}{models.SubjectTypeGroup, m.GroupID})
	}

	entityType := ScopedEntityType(clientID, entityTypeName)
	for _, subject := range subjects {
		var tuples []models.Tuple
		err := c.db.WithContext(ctx).
			Where("entity_type = ? AND relation = ? AND subject_type = ? AND subject_id = ? AND entity_id IN ?",
				entityType, relation, subject.subjectType, subject.subjectID,
				[]string{entityID, models.WildcardEntityID}).
			Find(&tuples).Error
		if err != nil {
			return false, err
		}
		for _, t := range tuples {
			if !t.HasCondition() {
				return true, nil
			}
			if c.evaluator != nil && c.evaluator.Evaluate(ctx, t.Condition, runtime) {
				return true, nil
			}
		}
	}
	return false, nil
}
