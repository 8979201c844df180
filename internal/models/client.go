package models

import (
	"time"

	"gorm.io/datatypes"
)

// Client is the per-OAuth-client metadata consumed as a guard by the
// authorization core: whether API keys may exist at all and which
// resource:action pairs they may request.
type Client struct {
	Base
	ClientID string `gorm:"not null;uniqueIndex" json:"clientId" validate:"required"`
	Name     string `gorm:"not null" json:"name" validate:"required,min=2"`
	// AccessPolicy governs who may sign in to the client at all
	AccessPolicy  AccessPolicy `gorm:"not null;default:'all_users'" json:"accessPolicy" validate:"required,access_policy"`
	AllowsAPIKeys bool         `gorm:"not null;default:false" json:"allowsApiKeys"`
	// AllowedResources maps resource name -> allowed actions, the allow-list
	// API key permissions are validated against
	AllowedResources datatypes.JSON `gorm:"type:jsonb" json:"allowedResources,omitempty"`
	// DefaultAPIKeyPermissions are the "resource:action" strings a new key
	// receives when none are requested
	DefaultAPIKeyPermissions datatypes.JSON `gorm:"type:jsonb" json:"defaultApiKeyPermissions,omitempty"`
}

// APIKey is an issued credential scoped to one client. The raw key is returned
// once at creation; only the hash is stored.
type APIKey struct {
	Base
	Name     string  `gorm:"not null" json:"name" validate:"required,min=2"`
	KeyHash  string  `gorm:"not null;uniqueIndex" json:"-"`
	ClientID string  `gorm:"not null;index" json:"clientId" validate:"required"`
	Client   *Client `gorm:"foreignKey:ClientID;references:ClientID" json:"client,omitempty"`
	// Permissions is the list of "resource:action" strings granted to the key
	Permissions datatypes.JSON `gorm:"type:jsonb" json:"permissions,omitempty"`
	ExpiresAt   time.Time      `gorm:"not null" json:"expiresAt" validate:"required"`
}

// Expired reports whether the key is past its expiry
func (k *APIKey) Expired() bool {
	return time.Now().After(k.ExpiresAt)
}

// Group is a named collection of subjects; a group can itself be granted
// relations, and its members (including API keys) inherit them.
type Group struct {
	Base
	Name    string        `gorm:"not null;uniqueIndex" json:"name" validate:"required,min=2"`
	Members []GroupMember `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
}

type GroupMember struct {
	Base
	GroupID     string      `gorm:"type:uuid;not null;index" json:"groupId" validate:"required,uuid"`
	Group       *Group      `json:"group,omitempty"`
	SubjectType SubjectType `gorm:"not null" json:"subjectType" validate:"required,subject_type"`
	SubjectID   string      `gorm:"not null" json:"subjectId" validate:"required"`
}
