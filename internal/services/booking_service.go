package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/database"
	"github.com/epicgather/epicgather/internal/models"
	apperrors "github.com/epicgather/epicgather/pkg/errors"
)

var (
	// ErrBookingNotFound indicates the requested booking does not exist or belongs to another user.
	ErrBookingNotFound = apperrors.New("BOOKING_NOT_FOUND", "Booking not found", http.StatusNotFound)
	// ErrDuplicateBooking rejects booking the same event twice.
	ErrDuplicateBooking = apperrors.New("DUPLICATE_BOOKING", "Event is already booked", http.StatusConflict)
	// ErrEventPassed rejects booking or cancelling an event that already took place.
	ErrEventPassed = apperrors.New("EVENT_PASSED", "Event has already taken place", http.StatusBadRequest)
)

// BookingService manages user bookings for events.
type BookingService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewBookingService constructs a BookingService instance.
func NewBookingService(db *gorm.DB) (*BookingService, error) {
	if db == nil {
		return nil, errors.New("booking service: db is required")
	}
	return &BookingService{db: db, now: time.Now}, nil
}

// Book records a booking for an upcoming event. The per-user uniqueness is
// enforced by the composite index, so a concurrent double-submit cannot
// create two rows.
func (s *BookingService) Book(ctx context.Context, userID, eventID string) (*models.Booking, error) {
	ctx = ensureContext(ctx)

	var event models.Event
	err := s.db.WithContext(ctx).Take(&event, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}

	if !event.IsUpcoming(s.now()) {
		return nil, ErrEventPassed
	}

	booking := &models.Booking{UserID: userID, EventID: eventID}
	if err := s.db.WithContext(ctx).Create(booking).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return nil, ErrDuplicateBooking
		}
		return nil, err
	}

	booking.Event = &event
	return booking, nil
}

// ListForUser returns the user's bookings, most recent first. Pages are
// zero-based.
func (s *BookingService) ListForUser(ctx context.Context, userID string, page, perPage int) ([]models.Booking, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage = normalizePage(page, perPage)

	query := s.db.WithContext(ctx).Model(&models.Booking{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []models.Booking
	err := query.
		Preload("Event").
		Preload("Event.Category").
		Order("created_at DESC").
		Offset(page * perPage).
		Limit(perPage).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

// Cancel deletes the user's own booking for an event that has not yet taken
// place. A booking belonging to another user reads as not found.
func (s *BookingService) Cancel(ctx context.Context, userID, bookingID string) error {
	ctx = ensureContext(ctx)

	var booking models.Booking
	err := s.db.WithContext(ctx).
		Preload("Event").
		Take(&booking, "id = ? AND user_id = ?", bookingID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrBookingNotFound
	}
	if err != nil {
		return err
	}

	if booking.Event != nil && !booking.Event.IsUpcoming(s.now()) {
		return ErrEventPassed
	}

	return s.db.WithContext(ctx).Delete(&models.Booking{}, "id = ?", booking.ID).Error
}
