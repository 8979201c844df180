package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/quanghuy1242/auther-sub001/internal/models"

	"gorm.io/gorm"
)

// DependencyChecker answers "what breaks if I remove X". Pure reads; the
// checker reports, it never blocks — blocking is the caller's decision.
type DependencyChecker struct {
	db     *gorm.DB
	tuples TupleStore
	models ModelStore
}

func NewDependencyChecker(db *gorm.DB, tuples TupleStore, modelStore ModelStore) *DependencyChecker {
	return &DependencyChecker{db: db, tuples: tuples, models: modelStore}
}

// CheckRelationUsage counts live tuples referencing a relation of an entity
// type. This is the authority behind the editor's relation-removal guard.
func (c *DependencyChecker) CheckRelationUsage(ctx context.Context, clientID, entityTypeName, relation string) (RelationUsage, error) {
	filter := TupleFilter{Relation: relation}

	model, err := c.models.Get(ctx, clientID, entityTypeName)
	switch {
	case err == nil:
		filter.EntityTypeID = model.ID
	case errors.Is(err, ErrModelNotFound):
		// No model row to bind through; fall back to the entity type string
		filter.EntityType = ScopedEntityType(clientID, entityTypeName)
	default:
		return RelationUsage{}, err
	}

	count, err := c.tuples.Count(ctx, filter)
	if err != nil {
		return RelationUsage{}, err
	}
	return RelationUsage{InUse: count > 0, Count: count}, nil
}

// CheckScopedPermissionsForUser counts the scoped (Layer B) tuples a subject
// holds under a client, for revocation confirmation flows.
func (c *DependencyChecker) CheckScopedPermissionsForUser(ctx context.Context, clientID string, subjectType models.SubjectType, subjectID string) (int64, error) {
	return c.tuples.Count(ctx, TupleFilter{
		EntityTypePrefix: ScopedEntityTypePrefix(clientID),
		SubjectType:      subjectType,
		SubjectID:        subjectID,
	})
}

// APIKeyImpact describes one API key affected by a proposed resource
// allow-list change.
type APIKeyImpact struct {
	KeyID              string   `json:"keyId"`
	Name               string   `json:"name"`
	InvalidPermissions []string `json:"invalidPermissions"`
}

// ResourceDependencyReport lists what a proposed allowedResources edit would
// break: per API key the resource:action pairs that become invalid, plus the
// default-permission entries left pointing at nothing.
type ResourceDependencyReport struct {
	AffectedKeys     []APIKeyImpact `json:"affectedKeys"`
	OrphanedDefaults []string       `json:"orphanedDefaults"`
}

// Clean reports whether the proposed change breaks nothing
func (r *ResourceDependencyReport) Clean() bool {
	return len(r.AffectedKeys) == 0 && len(r.OrphanedDefaults) == 0
}

// CheckResourceDependencies compares the client's default API key permissions
// and every live API key's permissions against a proposed resource
// allow-list.
func (c *DependencyChecker) CheckResourceDependencies(ctx context.Context, clientID string, proposed map[string][]string) (*ResourceDependencyReport, error) {
	report := &ResourceDependencyReport{}

	allowed := make(map[string]map[string]bool, len(proposed))
	for resource, actions := range proposed {
		allowed[resource] = make(map[string]bool, len(actions))
		for _, action := range actions {
			allowed[resource][action] = true
		}
	}

	client, err := models.GetClientByClientID(clientID, c.db.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to load client %s: %w", clientID, err)
	}

	if len(client.DefaultAPIKeyPermissions) > 0 {
		var defaults []string
		if err := json.Unmarshal(client.DefaultAPIKeyPermissions, &defaults); err != nil {
			return nil, fmt.Errorf("client %s has malformed default API key permissions: %w", clientID, err)
		}
		report.OrphanedDefaults = invalidPermissions(defaults, allowed)
	}

	var keys []models.APIKey
	err = c.db.WithContext(ctx).
		Where("client_id = ? AND is_deleted = false", clientID).
		Find(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys for client %s: %w", clientID, err)
	}

	for _, key := range keys {
		if len(key.Permissions) == 0 {
			continue
		}
		var perms []string
		if err := json.Unmarshal(key.Permissions, &perms); err != nil {
			return nil, fmt.Errorf("API key %s has malformed permissions: %w", key.ID, err)
		}
		invalid := invalidPermissions(perms, allowed)
		if len(invalid) > 0 {
			report.AffectedKeys = append(report.AffectedKeys, APIKeyImpact{
				KeyID:              key.ID,
				Name:               key.Name,
				InvalidPermissions: invalid,
			})
		}
	}

	sort.Slice(report.AffectedKeys, func(i, j int) bool {
		return report.AffectedKeys[i].KeyID < report.AffectedKeys[j].KeyID
	})
	return report, nil
}

// CheckAPIKeyDependencies counts the API keys that lose access when a
// subject's grant is revoked: the key itself, or for groups every API key
// member.
func (c *DependencyChecker) CheckAPIKeyDependencies(ctx context.Context, subjectType models.SubjectType, subjectID string) (int64, error) {
	switch subjectType {
	case models.SubjectTypeAPIKey:
		return 1, nil
	case models.SubjectTypeGroup:
		var count int64
		err := c.db.WithContext(ctx).Model(&models.GroupMember{}).
			Where("group_id = ? AND subject_type = ?", subjectID, models.SubjectTypeAPIKey).
			Count(&count).Error
		if err != nil {
			return 0, fmt.Errorf("failed to count API key group members: %w", err)
		}
		return count, nil
	default:
		return 0, nil
	}
}

// invalidPermissions returns the "resource:action" entries not covered by the
// allow-list, sorted.
func invalidPermissions(perms []string, allowed map[string]map[string]bool) []string {
	var invalid []string
	for _, perm := range perms {
		resource, action, found := strings.Cut(perm, ":")
		if !found {
			invalid = append(invalid, perm)
			continue
		}
		actions, resourceAllowed := allowed[resource]
		if !resourceAllowed || !actions[action] {
			invalid = append(invalid, perm)
		}
	}
	sort.Strings(invalid)
	return invalid
}
