package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/epicgather/epicgather/internal/database/testutil"
	"github.com/epicgather/epicgather/internal/models"
)

func TestCategoryCreateListDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCategoryService(db)
	require.NoError(t, err)

	created, err := svc.Create(context.Background(), "  Music ")
	require.NoError(t, err)
	require.Equal(t, "Music", created.Name)

	_, err = svc.Create(context.Background(), "Music")
	require.ErrorIs(t, err, ErrCategoryExists)

	_, err = svc.Create(context.Background(), "   ")
	require.Error(t, err)

	categories, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 1)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), created.ID), ErrCategoryNotFound)
}

func TestCategoryDeleteInUse(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCategoryService(db)
	require.NoError(t, err)

	category, err := svc.Create(context.Background(), "Sports")
	require.NoError(t, err)

	event := &models.Event{
		Name:       "Derby",
		EventDate:  time.Now().Add(time.Hour),
		Venue:      "Stadium",
		CategoryID: &category.ID,
	}
	require.NoError(t, db.Create(event).Error)

	require.ErrorIs(t, svc.Delete(context.Background(), category.ID), ErrCategoryInUse)
}

func TestTagCreateListDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewTagService(db)
	require.NoError(t, err)

	created, err := svc.Create(context.Background(), "outdoor")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "outdoor")
	require.ErrorIs(t, err, ErrTagExists)

	tags, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 1)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), created.ID), ErrTagNotFound)
}

func TestTagDeleteClearsEventAssociations(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewTagService(db)
	require.NoError(t, err)

	tag, err := svc.Create(context.Background(), "festival")
	require.NoError(t, err)

	event := &models.Event{
		Name:      "Summer Fest",
		EventDate: time.Now().Add(time.Hour),
		Venue:     "Park",
		Tags:      []models.Tag{*tag},
	}
	require.NoError(t, db.Create(event).Error)

	require.NoError(t, svc.Delete(context.Background(), tag.ID))

	var count int64
	require.NoError(t, db.Table("event_tags").Count(&count).Error)
	require.Zero(t, count)

	var remaining models.Event
	require.NoError(t, db.Take(&remaining, "id = ?", event.ID).Error)
}
