package authz

import (
	"context"
	"errors"

	"github.com/quanghuy1242/auther-sub001/internal/models"
)

// ErrPermissionDenied is returned when the caller lacks owner/admin access on
// the target client. Every mutating operation checks this before touching
// anything.
var ErrPermissionDenied = errors.New("Permission denied")

// AccessLevelResolver computes a subject's highest platform relation on a
// client. Pure read, no side effects.
type AccessLevelResolver struct {
	tuples TupleStore
}

func NewAccessLevelResolver(tuples TupleStore) *AccessLevelResolver {
	return &AccessLevelResolver{tuples: tuples}
}

// GetAccessLevel returns the highest-priority platform relation the subject
// holds on the client (owner > admin > use), or "" when it holds none.
func (r *AccessLevelResolver) GetAccessLevel(ctx context.Context, subjectID, clientID string) (models.PlatformRelation, error) {
	tuples, err := r.tuples.Find(ctx, TupleFilter{
		EntityType: PlatformEntityType(clientID),
		SubjectID:  subjectID,
	})
	if err != nil {
		return "", err
	}

	held := make(map[models.PlatformRelation]bool, len(tuples))
	for _, t := range tuples {
		held[models.PlatformRelation(t.Relation)] = true
	}
	for _, relation := range models.PlatformRelations {
		if held[relation] {
			return relation, nil
		}
	}
	return "", nil
}

// RequireManage fails closed unless the subject holds owner or admin on the
// client.
func (r *AccessLevelResolver) RequireManage(ctx context.Context, subjectID, clientID string) error {
	level, err := r.GetAccessLevel(ctx, subjectID, clientID)
	if err != nil {
		return err
	}
	if level != models.RelationOwner && level != models.RelationAdmin {
		return ErrPermissionDenied
	}
	return nil
}
