package authz

import (
	"fmt"
	"strings"
)

const clientPrefix = "client_"

// EntityTypeRef is the composite address of an entity type. The legacy
// "client_{id}[:{name}]" string is generated from it for storage and display;
// the composite form is what the engine keys on, so "client_1" can never
// shadow "client_10".
type EntityTypeRef struct {
	ClientID string
	Name     string
}

// Scoped reports whether the ref addresses a client-defined entity type
// rather than the client itself.
func (r EntityTypeRef) Scoped() bool {
	return r.Name != ""
}

func (r EntityTypeRef) String() string {
	if r.Scoped() {
		return clientPrefix + r.ClientID + ":" + r.Name
	}
	return clientPrefix + r.ClientID
}

// PlatformEntityType returns the entity type string for client-wide (Layer A)
// relations.
func PlatformEntityType(clientID string) string {
	return EntityTypeRef{ClientID: clientID}.String()
}

// ScopedEntityType returns the entity type string for a client-defined entity
// type (Layer B).
func ScopedEntityType(clientID, name string) string {
	return EntityTypeRef{ClientID: clientID, Name: name}.String()
}

// ScopedEntityTypePrefix returns the prefix every scoped entity type of a
// client shares. The trailing colon terminates the client id, so the prefix
// of client "1" never matches types of client "10".
func ScopedEntityTypePrefix(clientID string) string {
	return clientPrefix + clientID + ":"
}

// ParseEntityType parses an externally supplied entity type string back into
// its composite form.
func ParseEntityType(s string) (EntityTypeRef, error) {
	if !strings.HasPrefix(s, clientPrefix) {
		return EntityTypeRef{}, fmt.Errorf("invalid entity type %q: missing %q prefix", s, clientPrefix)
	}
	rest := strings.TrimPrefix(s, clientPrefix)
	clientID, name, _ := strings.Cut(rest, ":")
	if clientID == "" {
		return EntityTypeRef{}, fmt.Errorf("invalid entity type %q: empty client id", s)
	}
	return EntityTypeRef{ClientID: clientID, Name: name}, nil
}
