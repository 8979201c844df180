package authz

import (
	"context"
	"fmt"

	"github.com/quanghuy1242/auther-sub001/internal/models"
	console "github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"gorm.io/gorm"
)

// PlatformAccessManager grants and revokes client-wide (Layer A) relations.
// At most one of owner/admin/use may be active per (client, subject); the
// grant path serializes this by deleting the other relations and inserting
// the new one inside a single transaction.
type PlatformAccessManager struct {
	db       *gorm.DB
	resolver *AccessLevelResolver
	log      *console.Logger
}

func NewPlatformAccessManager(db *gorm.DB, resolver *AccessLevelResolver) *PlatformAccessManager {
	return &PlatformAccessManager{
		db:       db,
		resolver: resolver,
		log:      console.New("PlatformAccess"),
	}
}

// Grant gives the subject the platform relation on the client, replacing any
// other platform relation it held. Idempotent: granting an already-held
// relation succeeds with a notice.
func (m *PlatformAccessManager) Grant(ctx context.Context, callerID, clientID string, subjectType models.SubjectType, subjectID string, relation models.PlatformRelation) GrantResult {
	if !models.IsValidPlatformRelation(relation) {
		return GrantResult{Result: fail("invalid platform relation %q, must be one of owner, admin, use", relation)}
	}
	if !models.IsValidSubjectType(subjectType) {
		return GrantResult{Result: fail("invalid subject type %q", subjectType)}
	}
	if err := m.resolver.RequireManage(ctx, callerID, clientID); err != nil {
		return GrantResult{Result: deniedResult(err, clientID)}
	}

	var others []string
	for _, r := range models.PlatformRelations {
		if r != relation {
			others = append(others, string(r))
		}
	}

	tuple := &models.Tuple{
		EntityType:  PlatformEntityType(clientID),
		EntityID:    clientID,
		Relation:    string(relation),
		SubjectType: subjectType,
		SubjectID:   subjectID,
	}

	var created bool
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := NewTupleStore(tx)

		// Exclusivity: clear the other two platform relations first
		if _, err := store.Delete(ctx, TupleFilter{
			EntityType:  PlatformEntityType(clientID),
			Relations:   others,
			SubjectType: subjectType,
			SubjectID:   subjectID,
		}); err != nil {
			return err
		}

		var err error
		created, err = store.CreateIfNotExists(ctx, tuple)
		return err
	})
	if err != nil {
		m.log.Error("failed to grant platform access", err)
		return GrantResult{Result: fail("failed to grant platform access: %v", err)}
	}

	if !created {
		return GrantResult{
			Result: okNotice(fmt.Sprintf("subject already holds %s on client %s", relation, clientID)),
			Tuple:  findExistingFact(ctx, NewTupleStore(m.db), tuple),
		}
	}

	m.log.Success("Granted %s on client %s to %s:%s", relation, clientID, subjectType, subjectID)
	return GrantResult{Result: ok(), Tuple: tuple}
}

// Revoke removes the subject's platform relation. When the subject still
// holds scoped (Layer B) permissions under the client, the call fails with
// their count unless cascade is set, in which case the platform tuple and
// every scoped tuple are removed.
func (m *PlatformAccessManager) Revoke(ctx context.Context, callerID, clientID string, subjectType models.SubjectType, subjectID string, relation models.PlatformRelation, cascade bool) RevokeResult {
	if err := m.resolver.RequireManage(ctx, callerID, clientID); err != nil {
		return RevokeResult{Result: deniedResult(err, clientID)}
	}

	store := NewTupleStore(m.db)

	scopedFilter := TupleFilter{
		EntityTypePrefix: ScopedEntityTypePrefix(clientID),
		SubjectType:      subjectType,
		SubjectID:        subjectID,
	}
	scopedCount, err := store.Count(ctx, scopedFilter)
	if err != nil {
		return RevokeResult{Result: fail("failed to count scoped permissions: %v", err)}
	}

	if scopedCount > 0 && !cascade {
		return RevokeResult{
			Result:      fail("subject still holds %d scoped permissions under client %s; retry with cascade to remove them", scopedCount, clientID),
			ScopedCount: scopedCount,
		}
	}

	removed, err := store.Delete(ctx, TupleFilter{
		EntityType:  PlatformEntityType(clientID),
		Relation:    string(relation),
		SubjectType: subjectType,
		SubjectID:   subjectID,
	})
	if err != nil {
		return RevokeResult{Result: fail("failed to revoke platform access: %v", err)}
	}
	if removed == 0 {
		return RevokeResult{Result: fail("platform access %s on client %s not found for %s:%s", relation, clientID, subjectType, subjectID)}
	}

	result := RevokeResult{Result: ok()}
	if cascade && scopedCount > 0 {
		removedScoped, err := store.Delete(ctx, scopedFilter)
		if err != nil {
			// The platform tuple is already gone; report the partial state
			return RevokeResult{
				Result: fail("platform access revoked but cascade failed: %v", err),
			}
		}
		result.RemovedScoped = removedScoped
		m.log.Info("Cascade removed %d scoped permissions for %s:%s under client %s", removedScoped, subjectType, subjectID, clientID)
	}

	m.log.Success("Revoked %s on client %s from %s:%s", relation, clientID, subjectType, subjectID)
	return result
}
