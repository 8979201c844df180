package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/quanghuy1242/auther-sub001/internal/events"
	"github.com/quanghuy1242/auther-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTupleNotFound = errors.New("tuple not found")
	ErrModelNotFound = errors.New("authorization model not found")
	ErrModelExists   = errors.New("authorization model already exists")
)

// TupleFilter narrows tuple queries; zero fields are ignored
type TupleFilter struct {
	EntityType       string
	EntityTypePrefix string
	EntityTypeID     string
	EntityID         string
	Relation         string
	Relations        []string
	SubjectType      models.SubjectType
	SubjectID        string
	SubjectIDs       []string
}

// TupleStore is the durable relation-fact store. Every write is a single
// atomic statement; concurrent grants rely on the unique tuple index rather
// than in-process locking.
type TupleStore interface {
	// CreateIfNotExists inserts the tuple unless an identical 5-tuple fact
	// already exists. Reports whether a row was inserted.
	CreateIfNotExists(ctx context.Context, tuple *models.Tuple) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Tuple, error)
	Find(ctx context.Context, filter TupleFilter) ([]models.Tuple, error)
	Count(ctx context.Context, filter TupleFilter) (int64, error)
	// Delete removes every tuple matching the filter and returns how many
	Delete(ctx context.Context, filter TupleFilter) (int64, error)
	DeleteByID(ctx context.Context, id string) error
	// UpdateEntityTypeString rewrites the denormalized entity type string
	// after a rename; the FK binding is already correct at that point
	UpdateEntityTypeString(ctx context.Context, oldType, newType string) (int64, error)
}

// ModelStore persists per-entity-type authorization models
type ModelStore interface {
	Get(ctx context.Context, clientID, name string) (*models.AuthorizationModel, error)
	GetByEntityType(ctx context.Context, entityType string) (*models.AuthorizationModel, error)
	List(ctx context.Context, clientID string) ([]models.AuthorizationModel, error)
	Create(ctx context.Context, model *models.AuthorizationModel) error
	UpdateDefinition(ctx context.Context, id string, definition *Definition) error
	// Rename updates only the model row; tuples follow through the FK
	Rename(ctx context.Context, id string, ref EntityTypeRef) error
	// Delete removes the model; fails while tuples still reference it
	Delete(ctx context.Context, id string) error
}

type gormTupleStore struct {
	db *gorm.DB
}

// NewTupleStore returns the GORM-backed tuple store
func NewTupleStore(db *gorm.DB) TupleStore {
	return &gormTupleStore{db: db}
}

func (s *gormTupleStore) CreateIfNotExists(ctx context.Context, tuple *models.Tuple) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "entity_type"},
			{Name: "entity_id"},
			{Name: "relation"},
			{Name: "subject_type"},
			{Name: "subject_id"},
		},
		DoNothing: true,
	}).Create(tuple)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create tuple: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *gormTupleStore) FindByID(ctx context.Context, id string) (*models.Tuple, error) {
	tuple := &models.Tuple{}
	if err := s.db.WithContext(ctx).First(tuple, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTupleNotFound
		}
		return nil, fmt.Errorf("failed to find tuple: %w", err)
	}
	return tuple, nil
}

func (s *gormTupleStore) applyFilter(query *gorm.DB, filter TupleFilter) *gorm.DB {
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityTypePrefix != "" {
		query = query.Where("entity_type LIKE ?", filter.EntityTypePrefix+"%")
	}
	if filter.EntityTypeID != "" {
		query = query.Where("entity_type_id = ?", filter.EntityTypeID)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Relation != "" {
		query = query.Where("relation = ?", filter.Relation)
	}
	if len(filter.Relations) > 0 {
		query = query.Where("relation IN ?", filter.Relations)
	}
	if filter.SubjectType != "" {
		query = query.Where("subject_type = ?", filter.SubjectType)
	}
	if filter.SubjectID != "" {
		query = query.Where("subject_id = ?", filter.SubjectID)
	}
	if len(filter.SubjectIDs) > 0 {
		query = query.Where("subject_id IN ?", filter.SubjectIDs)
	}
	return query
}

func (s *gormTupleStore) Find(ctx context.Context, filter TupleFilter) ([]models.Tuple, error) {
	var tuples []models.Tuple
	query := s.applyFilter(s.db.WithContext(ctx).Model(&models.Tuple{}), filter)
	if err := query.Find(&tuples).Error; err != nil {
		return nil, fmt.Errorf("failed to find tuples: %w", err)
	}
	return tuples, nil
}

func (s *gormTupleStore) Count(ctx context.Context, filter TupleFilter) (int64, error) {
	var count int64
	query := s.applyFilter(s.db.WithContext(ctx).Model(&models.Tuple{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count tuples: %w", err)
	}
	return count, nil
}

// Delete removes every matching tuple and emits tuple.revoked for each.
// GORM skips delete hooks on filter deletes, so the rows are read back first
// and the events emitted here.
func (s *gormTupleStore) Delete(ctx context.Context, filter TupleFilter) (int64, error) {
	matches, err := s.Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	query := s.applyFilter(s.db.WithContext(ctx), filter)
	res := query.Delete(&models.Tuple{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete tuples: %w", res.Error)
	}
	for i := range matches {
		events.Emit("tuple.revoked", &matches[i])
	}
	return res.RowsAffected, nil
}

func (s *gormTupleStore) DeleteByID(ctx context.Context, id string) error {
	tuple, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.Tuple{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete tuple: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTupleNotFound
	}
	events.Emit("tuple.revoked", tuple)
	return nil
}

func (s *gormTupleStore) UpdateEntityTypeString(ctx context.Context, oldType, newType string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Tuple{}).
		Where("entity_type = ?", oldType).
		Update("entity_type", newType)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update tuple entity type: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// findExistingFact loads the stored row for a fact whose insert was skipped by
// the conflict clause, so a duplicate grant reports the live tuple id instead
// of the id minted for the row that never landed. Best effort: nil when the
// row cannot be read back.
func findExistingFact(ctx context.Context, store TupleStore, fact *models.Tuple) *models.Tuple {
	matches, err := store.Find(ctx, TupleFilter{
		EntityType:  fact.EntityType,
		EntityID:    fact.EntityID,
		Relation:    fact.Relation,
		SubjectType: fact.SubjectType,
		SubjectID:   fact.SubjectID,
	})
	if err != nil || len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

type gormModelStore struct {
	db *gorm.DB
}

// NewModelStore returns the GORM-backed authorization model store
func NewModelStore(db *gorm.DB) ModelStore {
	return &gormModelStore{db: db}
}

func (s *gormModelStore) Get(ctx context.Context, clientID, name string) (*models.AuthorizationModel, error) {
	model := &models.AuthorizationModel{}
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND name = ? AND is_deleted = false", clientID, name).
		First(model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to find authorization model: %w", err)
	}
	return model, nil
}

func (s *gormModelStore) GetByEntityType(ctx context.Context, entityType string) (*models.AuthorizationModel, error) {
	model := &models.AuthorizationModel{}
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND is_deleted = false", entityType).
		First(model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to find authorization model: %w", err)
	}
	return model, nil
}

func (s *gormModelStore) List(ctx context.Context, clientID string) ([]models.AuthorizationModel, error) {
	var list []models.AuthorizationModel
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND is_deleted = false", clientID).
		Order("name").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list authorization models: %w", err)
	}
	return list, nil
}

func (s *gormModelStore) Create(ctx context.Context, model *models.AuthorizationModel) error {
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create authorization model: %w", err)
	}
	return nil
}

func (s *gormModelStore) UpdateDefinition(ctx context.Context, id string, definition *Definition) error {
	raw, err := definition.Encode()
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.AuthorizationModel{}).
		Where("id = ?", id).
		Update("definition", raw)
	if res.Error != nil {
		return fmt.Errorf("failed to update authorization model: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrModelNotFound
	}
	return nil
}

func (s *gormModelStore) Rename(ctx context.Context, id string, ref EntityTypeRef) error {
	res := s.db.WithContext(ctx).Model(&models.AuthorizationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"name":        ref.Name,
			"entity_type": ref.String(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to rename authorization model: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrModelNotFound
	}
	return nil
}

func (s *gormModelStore) Delete(ctx context.Context, id string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Tuple{}).
		Where("entity_type_id = ?", id).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to count referencing tuples: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete authorization model: %d tuples still reference it", count)
	}
	res := s.db.WithContext(ctx).Delete(&models.AuthorizationModel{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete authorization model: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrModelNotFound
	}
	return nil
}
