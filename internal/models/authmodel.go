package models

import (
	"github.com/quanghuy1242/auther-sub001/internal/events"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuthorizationModel is the schema for one entity type under one client: the
// set of valid relations and the permissions derived from them. Tuples bind to
// it through EntityTypeID, so renaming an entity type only rewrites this row.
type AuthorizationModel struct {
	Base
	// EntityType is the full namespaced name "client_{clientId}:{name}"
	EntityType string `gorm:"not null;uniqueIndex" json:"entityType" validate:"required"`
	// ClientID and Name are the composite key the engine addresses models by;
	// EntityType is generated from them and kept for external compatibility
	ClientID string `gorm:"not null;index:idx_model_client_name,unique" json:"clientId" validate:"required"`
	Name     string `gorm:"not null;index:idx_model_client_name,unique" json:"name" validate:"required"`
	// Definition holds {relations: {...}, permissions: {...}} as jsonb
	Definition datatypes.JSON `gorm:"type:jsonb;not null" json:"definition" validate:"required"`
	Tuples     []Tuple        `gorm:"foreignKey:EntityTypeID" json:"tuples,omitempty"`
}

func (m *AuthorizationModel) AfterCreate(tx *gorm.DB) error {
	events.Emit("model.created", m)
	return nil
}

func (m *AuthorizationModel) AfterUpdate(tx *gorm.DB) error {
	events.Emit("model.updated", m)
	return nil
}

// PolicyVersion is a best-effort history snapshot of a policy script attached
// to a permission or a tuple-level grant. Written asynchronously after the
// primary write commits; losing one is acceptable, blocking a grant is not.
type PolicyVersion struct {
	Base
	EntityType     string       `gorm:"not null;index" json:"entityType"`
	PermissionName string       `gorm:"not null" json:"permissionName"`
	TupleID        string       `gorm:"type:uuid;default:NULL" json:"tupleId,omitempty"`
	Engine         PolicyEngine `gorm:"not null;default:'lua'" json:"engine"`
	Script         string       `gorm:"type:text;not null" json:"script"`
	Version        int          `gorm:"not null" json:"version"`
}
