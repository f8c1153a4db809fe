package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

type fakeLetterheadStore struct {
	items map[string]*models.Letterhead
}

func newFakeLetterheadStore() *fakeLetterheadStore {
	return &fakeLetterheadStore{items: make(map[string]*models.Letterhead)}
}

func (f *fakeLetterheadStore) Create(_ context.Context, lh *models.Letterhead) error {
	if lh.ID == "" {
		lh.ID = uuid.NewString()
	}
	clone := *lh
	f.items[lh.ID] = &clone
	return nil
}

func (f *fakeLetterheadStore) GetByID(_ context.Context, id string) (*models.Letterhead, error) {
	lh, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *lh
	return &clone, nil
}

func (f *fakeLetterheadStore) GetDefault(_ context.Context, schoolID string) (*models.Letterhead, error) {
	for _, lh := range f.items {
		if lh.SchoolID == schoolID && lh.IsDefault {
			clone := *lh
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeLetterheadStore) ListBySchool(_ context.Context, schoolID string) ([]models.Letterhead, error) {
	var out []models.Letterhead
	for _, lh := range f.items {
		if lh.SchoolID == schoolID {
			out = append(out, *lh)
		}
	}
	return out, nil
}

func (f *fakeLetterheadStore) Delete(_ context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

func (f *fakeLetterheadStore) SetDefault(_ context.Context, schoolID, letterheadID string) error {
	target, ok := f.items[letterheadID]
	if !ok || target.SchoolID != schoolID {
		return sql.ErrNoRows
	}
	for _, lh := range f.items {
		if lh.SchoolID == schoolID {
			lh.IsDefault = false
		}
	}
	target.IsDefault = true
	return nil
}

func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, code, appErr.Code)
}

func TestLetterheadUploadRejectsBadType(t *testing.T) {
	svc := NewLetterheadService(newFakeLetterheadStore(), newMemoryBlobs(), nil, nil)
	_, err := svc.Upload(context.Background(), "school-1", "admin-1",
		dto.UploadLetterheadRequest{Name: "Main"}, "text/html", []byte("<html>"))
	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestLetterheadUploadRejectsOversize(t *testing.T) {
	svc := NewLetterheadService(newFakeLetterheadStore(), newMemoryBlobs(), nil, nil,
		WithLetterheadLimits(8, nil))
	_, err := svc.Upload(context.Background(), "school-1", "admin-1",
		dto.UploadLetterheadRequest{Name: "Main"}, "image/png", tinyPNG(t))
	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestLetterheadUploadRejectsEmptyFile(t *testing.T) {
	svc := NewLetterheadService(newFakeLetterheadStore(), newMemoryBlobs(), nil, nil)
	_, err := svc.Upload(context.Background(), "school-1", "admin-1",
		dto.UploadLetterheadRequest{Name: "Main"}, "image/png", nil)
	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestLetterheadUploadStoresBlob(t *testing.T) {
	store := newFakeLetterheadStore()
	blobs := newMemoryBlobs()
	svc := NewLetterheadService(store, blobs, nil, nil)

	lh, err := svc.Upload(context.Background(), "school-1", "admin-1",
		dto.UploadLetterheadRequest{Name: "Main", IsDefault: true}, "image/png", tinyPNG(t))
	require.NoError(t, err)
	require.True(t, lh.IsDefault)
	require.Equal(t, models.LetterheadTypeOfficial, lh.Type)
	require.Contains(t, lh.FileKey, "letterheads/school-1/")

	data, err := blobs.Read(lh.FileKey)
	require.NoError(t, err)
	require.Equal(t, tinyPNG(t), data)
}

func TestLetterheadDefaultIsExclusive(t *testing.T) {
	store := newFakeLetterheadStore()
	svc := NewLetterheadService(store, newMemoryBlobs(), nil, nil)

	first, err := svc.Upload(context.Background(), "school-1", "admin-1",
		dto.UploadLetterheadRequest{Name: "First", IsDefault: true}, "image/png", tinyPNG(t))
	require.NoError(t, err)
	second, err := svc.Upload(context.Background(), "school-1", "admin-1",
		dto.UploadLetterheadRequest{Name: "Second"}, "image/jpeg", tinyPNG(t))
	require.NoError(t, err)

	require.NoError(t, svc.SetDefault(context.Background(), "school-1", second.ID))

	def, err := store.GetDefault(context.Background(), "school-1")
	require.NoError(t, err)
	require.Equal(t, second.ID, def.ID)
	require.False(t, store.items[first.ID].IsDefault)
}

func TestLetterheadSetDefaultUnknown(t *testing.T) {
	svc := NewLetterheadService(newFakeLetterheadStore(), newMemoryBlobs(), nil, nil)
	err := svc.SetDefault(context.Background(), "school-1", "missing")
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestLetterheadDeleteRemovesRowAndBlob(t *testing.T) {
	store := newFakeLetterheadStore()
	blobs := newMemoryBlobs()
	svc := NewLetterheadService(store, blobs, nil, nil)

	lh, err := svc.Upload(context.Background(), "school-1", "admin-1",
		dto.UploadLetterheadRequest{Name: "Old"}, "image/png", tinyPNG(t))
	require.NoError(t, err)
	require.Contains(t, blobs.blobs, lh.FileKey)

	require.NoError(t, svc.Delete(context.Background(), "school-1", lh.ID, "admin-1"))
	require.NotContains(t, store.items, lh.ID)
	require.NotContains(t, blobs.blobs, lh.FileKey)
}

func TestLetterheadDeleteRefusesDefault(t *testing.T) {
	store := newFakeLetterheadStore()
	svc := NewLetterheadService(store, newMemoryBlobs(), nil, nil)

	lh, err := svc.Upload(context.Background(), "school-1", "admin-1",
		dto.UploadLetterheadRequest{Name: "Main", IsDefault: true}, "image/png", tinyPNG(t))
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "school-1", lh.ID, "admin-1")
	requireAppError(t, err, appErrors.ErrInvalidState.Code)
	require.Contains(t, store.items, lh.ID)
}

func TestLetterheadDeleteScopedToSchool(t *testing.T) {
	store := newFakeLetterheadStore()
	svc := NewLetterheadService(store, newMemoryBlobs(), nil, nil)

	lh, err := svc.Upload(context.Background(), "school-1", "admin-1",
		dto.UploadLetterheadRequest{Name: "Main"}, "image/png", tinyPNG(t))
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "school-2", lh.ID, "admin-1")
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}
