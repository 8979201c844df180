package authz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityTypeFormatting(t *testing.T) {
	assert.Equal(t, "client_acme", PlatformEntityType("acme"))
	assert.Equal(t, "client_acme:document", ScopedEntityType("acme", "document"))
	assert.Equal(t, "client_acme:", ScopedEntityTypePrefix("acme"))
}

func TestParseEntityType(t *testing.T) {
	ref, err := ParseEntityType("client_acme")
	require.NoError(t, err)
	assert.Equal(t, EntityTypeRef{ClientID: "acme"}, ref)
	assert.False(t, ref.Scoped())

	ref, err = ParseEntityType("client_acme:document")
	require.NoError(t, err)
	assert.Equal(t, EntityTypeRef{ClientID: "acme", Name: "document"}, ref)
	assert.True(t, ref.Scoped())

	_, err = ParseEntityType("document")
	assert.Error(t, err)
}

func TestEntityTypeRoundTrip(t *testing.T) {
	for _, s := range []string{"client_acme", "client_acme:document", "client_1:invoice"} {
		ref, err := ParseEntityType(s)
		require.NoError(t, err)
		assert.Equal(t, s, ref.String())
	}
}

// client_1's prefix must never match client_10's entity types
func TestScopedPrefixNoCrossClientCollision(t *testing.T) {
	prefix := ScopedEntityTypePrefix("1")
	assert.True(t, strings.HasPrefix(ScopedEntityType("1", "document"), prefix))
	assert.False(t, strings.HasPrefix(ScopedEntityType("10", "document"), prefix))
	assert.False(t, strings.HasPrefix(PlatformEntityType("1"), prefix),
		"platform tuples are outside the scoped namespace")
}
