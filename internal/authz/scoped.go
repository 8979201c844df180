package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quanghuy1242/auther-sub001/internal/models"
	console "github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"gorm.io/gorm"
)

// ConditionValidator is the syntax gate for policy scripts. It must pass
// before any script is persisted.
type ConditionValidator interface {
	ValidateSyntax(script string) error
}

// SnapshotEnqueuer records policy-version history. Best effort: enqueue
// failures are logged and swallowed, never surfaced as the grant's failure.
type SnapshotEnqueuer interface {
	EnqueuePolicyVersion(ctx context.Context, version models.PolicyVersion) error
}

// ScopedPermissionManager grants and revokes entity-type-scoped (Layer B)
// permissions within a client.
type ScopedPermissionManager struct {
	db        *gorm.DB
	tuples    TupleStore
	models    ModelStore
	resolver  *AccessLevelResolver
	validator ConditionValidator
	snapshots SnapshotEnqueuer
	log       *console.Logger
}

func NewScopedPermissionManager(db *gorm.DB, tuples TupleStore, modelStore ModelStore, resolver *AccessLevelResolver, validator ConditionValidator, snapshots SnapshotEnqueuer) *ScopedPermissionManager {
	return &ScopedPermissionManager{
		db:        db,
		tuples:    tuples,
		models:    modelStore,
		resolver:  resolver,
		validator: validator,
		snapshots: snapshots,
		log:       console.New("ScopedAccess"),
	}
}

// Grant gives the subject a relation on an entity of a client-defined entity
// type. The relation must be declared by the entity type's authorization
// model; a condition script must pass syntax validation before any write.
func (m *ScopedPermissionManager) Grant(ctx context.Context, callerID, clientID, entityTypeName, entityID, relation string, subjectType models.SubjectType, subjectID, condition string) GrantResult {
	if !models.IsValidSubjectType(subjectType) {
		return GrantResult{Result: fail("invalid subject type %q", subjectType)}
	}
	if err := m.resolver.RequireManage(ctx, callerID, clientID); err != nil {
		return GrantResult{Result: deniedResult(err, clientID)}
	}

	model, err := m.models.Get(ctx, clientID, entityTypeName)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			return GrantResult{Result: fail("authorization model for entity type %q does not exist on client %s", entityTypeName, clientID)}
		}
		return GrantResult{Result: fail("failed to load authorization model: %v", err)}
	}

	def, err := ParseDefinition(model.Definition)
	if err != nil {
		return GrantResult{Result: fail("stored definition for %q is invalid: %v", entityTypeName, err)}
	}
	if !def.HasRelation(relation) {
		return GrantResult{Result: fail("relation %q is not defined on entity type %q; valid relations: %s", relation, entityTypeName, strings.Join(def.RelationNames(), ", "))}
	}

	if condition != "" {
		if err := m.validator.ValidateSyntax(condition); err != nil {
			return GrantResult{Result: fail("invalid condition script: %v", err)}
		}
	}

	tuple := &models.Tuple{
		EntityType:   ScopedEntityType(clientID, entityTypeName),
		EntityTypeID: &model.ID,
		EntityID:     entityID,
		Relation:     relation,
		SubjectType:  subjectType,
		SubjectID:    subjectID,
		Condition:    condition,
	}

	created, err := m.tuples.CreateIfNotExists(ctx, tuple)
	if err != nil {
		m.log.Error("failed to grant scoped permission", err)
		return GrantResult{Result: fail("failed to grant scoped permission: %v", err)}
	}
	if !created {
		return GrantResult{
			Result: okNotice(fmt.Sprintf("subject already holds %s on %s/%s", relation, entityTypeName, entityID)),
			Tuple:  findExistingFact(ctx, m.tuples, tuple),
		}
	}

	if condition != "" && m.snapshots != nil {
		version := models.PolicyVersion{
			EntityType:     tuple.EntityType,
			PermissionName: relation,
			TupleID:        tuple.ID,
			Engine:         models.PolicyEngineLua,
			Script:         condition,
		}
		if err := m.snapshots.EnqueuePolicyVersion(ctx, version); err != nil {
			// Best effort: the grant stands even when history is lost
			m.log.Warn("failed to enqueue policy version snapshot: %v", err)
		}
	}

	m.log.Success("Granted %s on %s/%s to %s:%s", relation, tuple.EntityType, entityID, subjectType, subjectID)
	return GrantResult{Result: ok(), Tuple: tuple}
}

// Revoke deletes a scoped permission tuple by id. The owning client is
// re-derived from the tuple itself and the caller's access is re-checked
// against it. API-key impact is reported as advisory warnings; the deletion
// proceeds regardless because revocation is the caller's explicit intent.
func (m *ScopedPermissionManager) Revoke(ctx context.Context, callerID, tupleID string) RevokeResult {
	tuple, err := m.tuples.FindByID(ctx, tupleID)
	if err != nil {
		if errors.Is(err, ErrTupleNotFound) {
			return RevokeResult{Result: fail("tuple %s not found", tupleID)}
		}
		return RevokeResult{Result: fail("failed to load tuple: %v", err)}
	}

	ref, err := ParseEntityType(tuple.EntityType)
	if err != nil {
		return RevokeResult{Result: fail("tuple %s has malformed entity type: %v", tupleID, err)}
	}
	if err := m.resolver.RequireManage(ctx, callerID, ref.ClientID); err != nil {
		return RevokeResult{Result: deniedResult(err, ref.ClientID)}
	}
	// Platform tuples carry their own scoped-count/cascade semantics; deleting
	// one here would skip them
	if !ref.Scoped() {
		return RevokeResult{Result: fail("tuple %s grants platform access on client %s; revoke it through the platform access operation", tupleID, ref.ClientID)}
	}

	warnings := m.revocationWarnings(ctx, tuple)

	if err := m.tuples.DeleteByID(ctx, tupleID); err != nil {
		return RevokeResult{Result: fail("failed to revoke scoped permission: %v", err)}
	}

	m.log.Success("Revoked %s on %s/%s from %s:%s", tuple.Relation, tuple.EntityType, tuple.EntityID, tuple.SubjectType, tuple.SubjectID)
	return RevokeResult{Result: ok(), Warnings: warnings}
}

func (m *ScopedPermissionManager) revocationWarnings(ctx context.Context, tuple *models.Tuple) []string {
	var warnings []string
	switch tuple.SubjectType {
	case models.SubjectTypeAPIKey:
		warnings = append(warnings, fmt.Sprintf("API key %s directly loses %s on %s/%s", tuple.SubjectID, tuple.Relation, tuple.EntityType, tuple.EntityID))
	case models.SubjectTypeGroup:
		var apiKeyMembers int64
		err := m.db.WithContext(ctx).Model(&models.GroupMember{}).
			Where("group_id = ? AND subject_type = ?", tuple.SubjectID, models.SubjectTypeAPIKey).
			Count(&apiKeyMembers).Error
		if err != nil {
			m.log.Warn("failed to count API key members of group %s: %v", tuple.SubjectID, err)
			return warnings
		}
		if apiKeyMembers > 0 {
			warnings = append(warnings, fmt.Sprintf("%d API keys are members of group %s and will lose %s on %s/%s", apiKeyMembers, tuple.SubjectID, tuple.Relation, tuple.EntityType, tuple.EntityID))
		}
	}
	return warnings
}

func deniedResult(err error, clientID string) Result {
	if errors.Is(err, ErrPermissionDenied) {
		return fail("Permission denied: caller needs owner or admin access on client %s", clientID)
	}
	return fail("failed to resolve caller access level: %v", err)
}
