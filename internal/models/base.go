package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	DeletedAt time.Time `gorm:"index;default:NULL" json:"-" validate:"omitempty"`
	IsDeleted bool      `json:"isDeleted" default:"false"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *Base) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// SubjectType identifies what kind of principal a tuple binds
type SubjectType string

const (
	SubjectTypeUser   SubjectType = "user"
	SubjectTypeGroup  SubjectType = "group"
	SubjectTypeAPIKey SubjectType = "apikey"
)

// PlatformRelation is a client-wide (Layer A) relation
type PlatformRelation string

const (
	RelationOwner PlatformRelation = "owner"
	RelationAdmin PlatformRelation = "admin"
	RelationUse   PlatformRelation = "use"
)

// PlatformRelations lists every Layer A relation, highest priority first
var PlatformRelations = []PlatformRelation{RelationOwner, RelationAdmin, RelationUse}

type AccessPolicy string

const (
	AccessPolicyAllUsers   AccessPolicy = "all_users"
	AccessPolicyRestricted AccessPolicy = "restricted"
)

type PolicyEngine string

const (
	PolicyEngineLua PolicyEngine = "lua"
)

type UserRole string

const (
	UserRoleSuperAdmin UserRole = "SUPER_ADMIN"
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleMember     UserRole = "MEMBER"
)

// IsValidSubjectType checks if a given subject type is valid
func IsValidSubjectType(st SubjectType) bool {
	switch st {
	case SubjectTypeUser, SubjectTypeGroup, SubjectTypeAPIKey:
		return true
	default:
		return false
	}
}

// IsValidPlatformRelation checks if a given relation is one of the Layer A relations
func IsValidPlatformRelation(r PlatformRelation) bool {
	switch r {
	case RelationOwner, RelationAdmin, RelationUse:
		return true
	default:
		return false
	}
}
