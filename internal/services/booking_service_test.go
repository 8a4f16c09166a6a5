package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/database/testutil"
	"github.com/epicgather/epicgather/internal/models"
)

func TestBookUpcomingEvent(t *testing.T) {
	db, svc := setupBookingService(t)

	user := mustCreateServiceUser(t, db, "booker1@example.com")
	event := mustCreateEvent(t, db, "Concert", fixedNow.Add(24*time.Hour))

	booking, err := svc.Book(context.Background(), user.ID, event.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, booking.UserID)
	require.Equal(t, event.ID, booking.EventID)
	require.NotNil(t, booking.Event)
}

func TestBookDuplicateRejected(t *testing.T) {
	db, svc := setupBookingService(t)

	user := mustCreateServiceUser(t, db, "dup-booker@example.com")
	event := mustCreateEvent(t, db, "Concert", fixedNow.Add(24*time.Hour))

	_, err := svc.Book(context.Background(), user.ID, event.ID)
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), user.ID, event.ID)
	require.ErrorIs(t, err, ErrDuplicateBooking)
}

func TestBookPastEventRejected(t *testing.T) {
	db, svc := setupBookingService(t)

	user := mustCreateServiceUser(t, db, "late-booker@example.com")
	event := mustCreateEvent(t, db, "Gone", fixedNow.Add(-time.Hour))

	_, err := svc.Book(context.Background(), user.ID, event.ID)
	require.ErrorIs(t, err, ErrEventPassed)
}

func TestBookUnknownEvent(t *testing.T) {
	db, svc := setupBookingService(t)

	user := mustCreateServiceUser(t, db, "lost-booker@example.com")

	_, err := svc.Book(context.Background(), user.ID, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestListForUserScopesToOwner(t *testing.T) {
	db, svc := setupBookingService(t)

	owner := mustCreateServiceUser(t, db, "owner@example.com")
	other := mustCreateServiceUser(t, db, "other@example.com")
	event := mustCreateEvent(t, db, "Shared", fixedNow.Add(24*time.Hour))
	second := mustCreateEvent(t, db, "Solo", fixedNow.Add(48*time.Hour))

	_, err := svc.Book(context.Background(), owner.ID, event.ID)
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), owner.ID, second.ID)
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), other.ID, event.ID)
	require.NoError(t, err)

	bookings, total, err := svc.ListForUser(context.Background(), owner.ID, 0, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, bookings, 2)
	for _, b := range bookings {
		require.Equal(t, owner.ID, b.UserID)
		require.NotNil(t, b.Event)
	}
}

func TestCancelOwnBooking(t *testing.T) {
	db, svc := setupBookingService(t)

	user := mustCreateServiceUser(t, db, "cancel@example.com")
	event := mustCreateEvent(t, db, "Cancellable", fixedNow.Add(24*time.Hour))

	booking, err := svc.Book(context.Background(), user.ID, event.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), user.ID, booking.ID))

	_, total, err := svc.ListForUser(context.Background(), user.ID, 0, 10)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestCancelForeignBookingReadsAsNotFound(t *testing.T) {
	db, svc := setupBookingService(t)

	owner := mustCreateServiceUser(t, db, "victim@example.com")
	attacker := mustCreateServiceUser(t, db, "attacker@example.com")
	event := mustCreateEvent(t, db, "Protected", fixedNow.Add(24*time.Hour))

	booking, err := svc.Book(context.Background(), owner.ID, event.ID)
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), attacker.ID, booking.ID)
	require.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCancelPastEventRejected(t *testing.T) {
	db, svc := setupBookingService(t)

	user := mustCreateServiceUser(t, db, "too-late@example.com")
	event := mustCreateEvent(t, db, "History", fixedNow.Add(time.Hour))

	booking, err := svc.Book(context.Background(), user.ID, event.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Event{}).
		Where("id = ?", event.ID).
		Update("event_date", fixedNow.Add(-time.Hour)).Error)

	err = svc.Cancel(context.Background(), user.ID, booking.ID)
	require.ErrorIs(t, err, ErrEventPassed)
}

func setupBookingService(t *testing.T) (*gorm.DB, *BookingService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewBookingService(db)
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }

	return db, svc
}
