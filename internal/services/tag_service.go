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
	// ErrTagNotFound indicates the requested tag does not exist.
	ErrTagNotFound = apperrors.New("TAG_NOT_FOUND", "Tag not found", http.StatusNotFound)
	// ErrTagExists indicates a tag with the same name already exists.
	ErrTagExists = apperrors.New("TAG_EXISTS", "Tag with this name already exists", http.StatusConflict)
)

// TagService manages the event tag lookup table.
type TagService struct {
	db *gorm.DB
}

// NewTagService constructs a TagService instance.
func NewTagService(db *gorm.DB) (*TagService, error) {
	if db == nil {
		return nil, errors.New("tag service: db is required")
	}
	return &TagService{db: db}, nil
}

// List returns all tags ordered by name.
func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	ctx = ensureContext(ctx)

	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("name").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// Create adds a new tag with a unique name.
func (s *TagService) Create(ctx context.Context, name string) (*models.Tag, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("tag name is required")
	}

	tag := &models.Tag{Name: name}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return nil, ErrTagExists
		}
		return nil, err
	}
	return tag, nil
}

// Delete removes a tag and its event associations.
func (s *TagService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	var tag models.Tag
	err := s.db.WithContext(ctx).Take(&tag, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTagNotFound
	}
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&tag).Association("Events").Clear(); err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
}
