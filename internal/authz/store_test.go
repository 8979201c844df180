package authz

import (
	"context"
	"testing"
	"time"

	"github.com/quanghuy1242/auther-sub001/internal/events"
	"github.com/quanghuy1242/auther-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subscribeRevoked forwards tuple.revoked events for one entity type. The bus
// is process-global, so filtering keeps other tests' deletes out.
func subscribeRevoked(entityType string) <-chan *models.Tuple {
	ch := make(chan *models.Tuple, 8)
	events.On("tuple.revoked", func(v interface{}) {
		if tuple, ok := v.(*models.Tuple); ok && tuple.EntityType == entityType {
			ch <- tuple
		}
	})
	return ch
}

func collectRevoked(t *testing.T, ch <-chan *models.Tuple, want int) []*models.Tuple {
	t.Helper()
	var got []*models.Tuple
	deadline := time.After(2 * time.Second)
	for len(got) < want {
		select {
		case tuple := <-ch:
			got = append(got, tuple)
		case <-deadline:
			t.Fatalf("received %d of %d tuple.revoked events", len(got), want)
		}
	}
	return got
}

// Filter deletes bypass the row hooks, so the store itself emits the
// revocation events.
func TestDeleteEmitsRevokedEvents(t *testing.T) {
	db := newTestDB(t)
	store := NewTupleStore(db)
	ctx := context.Background()

	entityType := ScopedEntityType("client-evt", "document")
	ch := subscribeRevoked(entityType)

	for _, subject := range []string{"alice", "bob"} {
		require.NoError(t, db.Create(&models.Tuple{
			EntityType:  entityType,
			EntityID:    "doc-1",
			Relation:    "viewer",
			SubjectType: models.SubjectTypeUser,
			SubjectID:   subject,
		}).Error)
	}

	removed, err := store.Delete(ctx, TupleFilter{EntityType: entityType})
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	got := collectRevoked(t, ch, 2)
	assert.ElementsMatch(t, []string{"alice", "bob"},
		[]string{got[0].SubjectID, got[1].SubjectID})
}

func TestDeleteByIDEmitsRevokedEvent(t *testing.T) {
	db := newTestDB(t)
	store := NewTupleStore(db)
	ctx := context.Background()

	entityType := ScopedEntityType("client-evt-byid", "document")
	ch := subscribeRevoked(entityType)

	tuple := &models.Tuple{
		EntityType:  entityType,
		EntityID:    "doc-1",
		Relation:    "viewer",
		SubjectType: models.SubjectTypeUser,
		SubjectID:   "alice",
	}
	require.NoError(t, db.Create(tuple).Error)
	require.NoError(t, store.DeleteByID(ctx, tuple.ID))

	got := collectRevoked(t, ch, 1)
	assert.Equal(t, tuple.ID, got[0].ID)
}
