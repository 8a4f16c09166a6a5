package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/models"
	apperrors "github.com/epicgather/epicgather/pkg/errors"
)

var (
	// ErrEventNotFound indicates the requested event does not exist.
	ErrEventNotFound = apperrors.New("EVENT_NOT_FOUND", "Event not found", http.StatusNotFound)
	// ErrEventDateInPast rejects creating or moving an event into the past.
	ErrEventDateInPast = apperrors.New("EVENT_DATE_IN_PAST", "Event date must be in the future", http.StatusBadRequest)
)

// EventInput describes the fields accepted when creating or updating an event.
type EventInput struct {
	Name        string
	Description string
	EventDate   time.Time
	ImageURL    string
	Price       float64
	Venue       string
	CategoryID  *string
	TagIDs      []string
}

// EventService manages the event catalogue.
type EventService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEventService constructs an EventService instance.
func NewEventService(db *gorm.DB) (*EventService, error) {
	if db == nil {
		return nil, errors.New("event service: db is required")
	}
	return &EventService{db: db, now: time.Now}, nil
}

// ListUpcoming returns events that have not yet taken place, soonest first.
// Pages are zero-based.
func (s *EventService) ListUpcoming(ctx context.Context, page, perPage int) ([]models.Event, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage = normalizePage(page, perPage)

	query := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("event_date > ?", s.now())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []models.Event
	err := query.
		Preload("Category").
		Preload("Tags").
		Order("event_date").
		Offset(page * perPage).
		Limit(perPage).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// Get fetches a single event with its category and tags.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	ctx = ensureContext(ctx)

	var event models.Event
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Tags").
		Take(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Create adds a new event.
func (s *EventService) Create(ctx context.Context, input EventInput) (*models.Event, error) {
	ctx = ensureContext(ctx)

	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	event := &models.Event{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		EventDate:   input.EventDate,
		ImageURL:    input.ImageURL,
		Price:       input.Price,
		Venue:       strings.TrimSpace(input.Venue),
		CategoryID:  input.CategoryID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.CategoryID != nil {
			if err := s.ensureCategoryExists(tx, *input.CategoryID); err != nil {
				return err
			}
		}

		tags, err := s.resolveTags(tx, input.TagIDs)
		if err != nil {
			return err
		}
		event.Tags = tags

		return tx.Create(event).Error
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, event.ID)
}

// Update replaces the mutable fields of an event.
func (s *EventService) Update(ctx context.Context, id string, input EventInput) (*models.Event, error) {
	ctx = ensureContext(ctx)

	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		err := tx.Take(&event, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		if err != nil {
			return err
		}

		if input.CategoryID != nil {
			if err := s.ensureCategoryExists(tx, *input.CategoryID); err != nil {
				return err
			}
		}

		tags, err := s.resolveTags(tx, input.TagIDs)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"name":        strings.TrimSpace(input.Name),
			"description": input.Description,
			"event_date":  input.EventDate,
			"image_url":   input.ImageURL,
			"price":       input.Price,
			"venue":       strings.TrimSpace(input.Venue),
			"category_id": input.CategoryID,
		}
		if err := tx.Model(&event).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Model(&event).Association("Tags").Replace(tags)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Delete removes an event together with its bookings and tag associations.
func (s *EventService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		err := tx.Take(&event, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&event).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", event.ID).Delete(&models.Booking{}).Error; err != nil {
			return err
		}
		return tx.Delete(&event).Error
	})
}

func (s *EventService) validateInput(input EventInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return apperrors.NewBadRequest("event name is required")
	}
	if strings.TrimSpace(input.Venue) == "" {
		return apperrors.NewBadRequest("event venue is required")
	}
	if input.Price < 0 {
		return apperrors.NewBadRequest("event price must not be negative")
	}
	if !input.EventDate.After(s.now()) {
		return ErrEventDateInPast
	}
	return nil
}

func (s *EventService) ensureCategoryExists(tx *gorm.DB, categoryID string) error {
	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (s *EventService) resolveTags(tx *gorm.DB, tagIDs []string) ([]models.Tag, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}

	var tags []models.Tag
	if err := tx.Where("id IN ?", tagIDs).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(tagIDs) {
		return nil, ErrTagNotFound
	}
	return tags, nil
}
