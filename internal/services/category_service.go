package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/database"
	"github.com/epicgather/epicgather/internal/models"
	apperrors "github.com/epicgather/epicgather/pkg/errors"
)

var (
	// ErrCategoryNotFound indicates the requested category does not exist.
	ErrCategoryNotFound = apperrors.New("CATEGORY_NOT_FOUND", "Category not found", http.StatusNotFound)
	// ErrCategoryExists indicates a category with the same name already exists.
	ErrCategoryExists = apperrors.New("CATEGORY_EXISTS", "Category with this name already exists", http.StatusConflict)
	// ErrCategoryInUse blocks deleting a category that still has events attached.
	ErrCategoryInUse = apperrors.New("CATEGORY_IN_USE", "Category still has events attached", http.StatusConflict)
)

// CategoryService manages the event category lookup table.
type CategoryService struct {
	db *gorm.DB
}

// NewCategoryService constructs a CategoryService instance.
func NewCategoryService(db *gorm.DB) (*CategoryService, error) {
	if db == nil {
		return nil, errors.New("category service: db is required")
	}
	return &CategoryService{db: db}, nil
}

// List returns all categories ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	ctx = ensureContext(ctx)

	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Create adds a new category with a unique name.
func (s *CategoryService) Create(ctx context.Context, name string) (*models.Category, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("category name is required")
	}

	category := &models.Category{Name: name}
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return nil, ErrCategoryExists
		}
		return nil, err
	}
	return category, nil
}

// Delete removes an unused category.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	var inUse int64
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
		return err
	}
	if inUse > 0 {
		return ErrCategoryInUse
	}

	result := s.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
