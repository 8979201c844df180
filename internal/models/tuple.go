package models

import (
	"github.com/quanghuy1242/auther-sub001/internal/events"

	"gorm.io/gorm"
)

// Tuple is the atomic relation fact: subject S holds relation R on entity E.
// The 5-tuple (entity_type, entity_id, relation, subject_type, subject_id) is
// unique; grants go through an atomic conditional insert against that index.
type Tuple struct {
	Base
	// EntityType is the denormalized namespaced name, either
	// "client_{clientId}" (platform level) or "client_{clientId}:{name}"
	// (scoped). Kept in sync on rename for display; EntityTypeID is the
	// authoritative binding for scoped tuples.
	EntityType   string              `gorm:"not null;index;uniqueIndex:idx_tuple_fact" json:"entityType" validate:"required"`
	EntityTypeID *string             `gorm:"type:uuid;index;default:NULL" json:"entityTypeId,omitempty"`
	Model        *AuthorizationModel `gorm:"foreignKey:EntityTypeID" json:"model,omitempty"`
	// EntityID "*" grants the relation on every instance of the entity type
	EntityID    string      `gorm:"not null;uniqueIndex:idx_tuple_fact" json:"entityId" validate:"required"`
	Relation    string      `gorm:"not null;uniqueIndex:idx_tuple_fact" json:"relation" validate:"required"`
	SubjectType SubjectType `gorm:"not null;uniqueIndex:idx_tuple_fact" json:"subjectType" validate:"required,subject_type"`
	SubjectID   string      `gorm:"not null;uniqueIndex:idx_tuple_fact" json:"subjectId" validate:"required"`
	// Condition is an optional Lua policy script; the relation only takes
	// effect when the script evaluates truthy against the runtime context
	Condition string `gorm:"type:text;default:NULL" json:"condition,omitempty"`
}

// WildcardEntityID grants a relation on all instances of an entity type
const WildcardEntityID = "*"

func (t *Tuple) AfterCreate(tx *gorm.DB) error {
	events.Emit("tuple.granted", t)
	return nil
}

// HasCondition reports whether the tuple carries an ABAC overlay script
func (t *Tuple) HasCondition() bool {
	return t.Condition != ""
}
