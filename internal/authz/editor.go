package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/quanghuy1242/auther-sub001/internal/models"
	console "github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"gorm.io/gorm"
)

// ModelEditor creates, updates, renames and deletes entity-type authorization
// models. Destructive edits are refused while live tuples depend on what is
// being removed.
type ModelEditor struct {
	db        *gorm.DB
	tuples    TupleStore
	models    ModelStore
	resolver  *AccessLevelResolver
	validator ConditionValidator
	snapshots SnapshotEnqueuer
	deps      *DependencyChecker
	log       *console.Logger
}

func NewModelEditor(db *gorm.DB, tuples TupleStore, modelStore ModelStore, resolver *AccessLevelResolver, validator ConditionValidator, snapshots SnapshotEnqueuer, deps *DependencyChecker) *ModelEditor {
	return &ModelEditor{
		db:        db,
		tuples:    tuples,
		models:    modelStore,
		resolver:  resolver,
		validator: validator,
		snapshots: snapshots,
		deps:      deps,
		log:       console.New("ModelEditor"),
	}
}

// Update upserts the authorization model for an entity type. Every scripted
// permission is syntax-checked server side regardless of what the client
// already validated; one invalid script aborts the whole update with no
// partial write. Relations removed from an existing definition are refused
// while live tuples still reference them.
func (e *ModelEditor) Update(ctx context.Context, callerID, clientID, entityTypeName string, def *Definition) Result {
	if err := e.resolver.RequireManage(ctx, callerID, clientID); err != nil {
		return deniedResult(err, clientID)
	}
	if err := def.Validate(); err != nil {
		return fail("invalid definition: %v", err)
	}

	for name, perm := range def.Permissions {
		if !perm.Scripted() {
			if perm.Policy != "" {
				return fail("permission %q uses unsupported policy engine %q", name, perm.PolicyEngine)
			}
			continue
		}
		if err := e.validator.ValidateSyntax(perm.Policy); err != nil {
			return fail("permission %q has an invalid policy script: %v", name, err)
		}
	}

	existing, err := e.models.Get(ctx, clientID, entityTypeName)
	if err != nil && !errors.Is(err, ErrModelNotFound) {
		return fail("failed to load authorization model: %v", err)
	}

	if existing != nil {
		oldDef, err := ParseDefinition(existing.Definition)
		if err != nil {
			return fail("stored definition for %q is invalid: %v", entityTypeName, err)
		}
		// Pre-validation against the live tuple set, not the new definition
		for _, relation := range oldDef.RemovedRelations(def) {
			usage, err := e.deps.CheckRelationUsage(ctx, clientID, entityTypeName, relation)
			if err != nil {
				return fail("failed to check relation usage: %v", err)
			}
			if usage.InUse {
				return fail("cannot remove relation %q from %q: relation in use, count=%d", relation, entityTypeName, usage.Count)
			}
		}

		if err := e.models.UpdateDefinition(ctx, existing.ID, def); err != nil {
			return fail("failed to update authorization model: %v", err)
		}
	} else {
		raw, err := def.Encode()
		if err != nil {
			return fail("%v", err)
		}
		model := &models.AuthorizationModel{
			EntityType: ScopedEntityType(clientID, entityTypeName),
			ClientID:   clientID,
			Name:       entityTypeName,
			Definition: raw,
		}
		if err := e.models.Create(ctx, model); err != nil {
			return fail("failed to create authorization model: %v", err)
		}
	}

	e.snapshotScriptedPermissions(ctx, clientID, entityTypeName, def)

	e.log.Success("Updated authorization model %s on client %s", entityTypeName, clientID)
	return ok()
}

// snapshotScriptedPermissions records a policy version per scripted
// permission. Fire and forget: failures are logged, never surfaced.
func (e *ModelEditor) snapshotScriptedPermissions(ctx context.Context, clientID, entityTypeName string, def *Definition) {
	if e.snapshots == nil {
		return
	}
	for name, perm := range def.Permissions {
		if !perm.Scripted() {
			continue
		}
		version := models.PolicyVersion{
			EntityType:     ScopedEntityType(clientID, entityTypeName),
			PermissionName: name,
			Engine:         models.PolicyEngineLua,
			Script:         perm.Policy,
		}
		if err := e.snapshots.EnqueuePolicyVersion(ctx, version); err != nil {
			e.log.Warn("failed to enqueue policy version for %s.%s: %v", entityTypeName, name, err)
		}
	}
}

// Delete removes an entity type's authorization model. The store refuses the
// delete while tuples still reference the model, so no tuple is ever
// orphaned.
func (e *ModelEditor) Delete(ctx context.Context, callerID, clientID, entityTypeName string) Result {
	if err := e.resolver.RequireManage(ctx, callerID, clientID); err != nil {
		return deniedResult(err, clientID)
	}

	model, err := e.models.Get(ctx, clientID, entityTypeName)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			return fail("authorization model for entity type %q does not exist on client %s", entityTypeName, clientID)
		}
		return fail("failed to load authorization model: %v", err)
	}

	if err := e.models.Delete(ctx, model.ID); err != nil {
		return fail("%v", err)
	}

	e.log.Success("Deleted authorization model %s on client %s", entityTypeName, clientID)
	return ok()
}

// Rename changes an entity type's name. Tuples bind to the model through the
// entity type id, so updating the model row is sufficient for correctness;
// the denormalized entity type string on tuples is rewritten in a second,
// non-atomic step for display consistency. A crash between the two steps
// leaves stale display strings while the FK binding is already correct.
func (e *ModelEditor) Rename(ctx context.Context, callerID, clientID, oldName, newName string) Result {
	if err := e.resolver.RequireManage(ctx, callerID, clientID); err != nil {
		return deniedResult(err, clientID)
	}
	if oldName == newName {
		return fail("new entity type name %q is the same as the current name", newName)
	}

	model, err := e.models.Get(ctx, clientID, oldName)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			return fail("entity type %q does not exist on client %s", oldName, clientID)
		}
		return fail("failed to load authorization model: %v", err)
	}

	if _, err := e.models.Get(ctx, clientID, newName); err == nil {
		return fail("entity type %q already exists on client %s", newName, clientID)
	} else if !errors.Is(err, ErrModelNotFound) {
		return fail("failed to check new entity type name: %v", err)
	}

	newRef := EntityTypeRef{ClientID: clientID, Name: newName}
	if err := e.models.Rename(ctx, model.ID, newRef); err != nil {
		return fail("failed to rename entity type: %v", err)
	}

	// Step two: rewrite the denormalized strings on tuples
	updated, err := e.tuples.UpdateEntityTypeString(ctx, ScopedEntityType(clientID, oldName), newRef.String())
	if err != nil {
		e.log.Warn("entity type renamed but tuple display strings were not updated: %v", err)
		return okNotice(fmt.Sprintf("entity type renamed; tuple display strings could not be rewritten: %v", err))
	}
	if updated > 0 {
		e.log.Info("Rewrote entity type string on %d tuples", updated)
	}

	e.log.Success("Renamed entity type %s to %s on client %s", oldName, newName, clientID)
	return ok()
}
