package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

type fakeSignatureStore struct {
	records map[string]*models.SignatureRecord
}

func newFakeSignatureStore() *fakeSignatureStore {
	return &fakeSignatureStore{records: make(map[string]*models.SignatureRecord)}
}

func (f *fakeSignatureStore) Create(_ context.Context, record *models.SignatureRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeSignatureStore) GetByID(_ context.Context, id string) (*models.SignatureRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

type memoryBlobs struct {
	blobs map[string][]byte
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{blobs: make(map[string][]byte)}
}

func (m *memoryBlobs) Save(key string, data []byte) (string, error) {
	m.blobs[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *memoryBlobs) Delete(key string) error {
	delete(m.blobs, key)
	return nil
}

func (m *memoryBlobs) Read(key string) ([]byte, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return data, nil
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCaptureDrawnSignature(t *testing.T) {
	store := newFakeSignatureStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewSignatureService(store, newMemoryBlobs(), nil,
		WithSignatureClock(func() time.Time { return now }))

	points := []models.SignaturePoint{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}
	record, err := svc.Capture(context.Background(), "parent-1", dto.SignatureInput{Points: points},
		CaptureMeta{IPAddress: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	require.Equal(t, models.SignatureKindDrawn, record.Kind)
	require.Equal(t, now, record.CapturedAt)
	require.Equal(t, "10.0.0.1", record.CapturedIP)
	require.NotEmpty(t, record.ContentHash)
	require.Nil(t, record.ImageKey)

	// Identical points hash identically; a different stroke does not.
	again, err := svc.Capture(context.Background(), "parent-1", dto.SignatureInput{Points: points}, CaptureMeta{})
	require.NoError(t, err)
	require.Equal(t, record.ContentHash, again.ContentHash)

	other, err := svc.Capture(context.Background(), "parent-1",
		dto.SignatureInput{Points: []models.SignaturePoint{{X: 9, Y: 9}, {X: 8, Y: 8}}}, CaptureMeta{})
	require.NoError(t, err)
	require.NotEqual(t, record.ContentHash, other.ContentHash)
}

func TestCaptureRejectsShortStroke(t *testing.T) {
	svc := NewSignatureService(newFakeSignatureStore(), newMemoryBlobs(), nil)
	_, err := svc.Capture(context.Background(), "parent-1",
		dto.SignatureInput{Points: []models.SignaturePoint{{X: 1, Y: 1}}}, CaptureMeta{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCaptureImageSignature(t *testing.T) {
	store := newFakeSignatureStore()
	blobs := newMemoryBlobs()
	svc := NewSignatureService(store, blobs, nil)

	raw := tinyPNG(t)
	record, err := svc.Capture(context.Background(), "parent-1",
		dto.SignatureInput{ImageBase64: base64.StdEncoding.EncodeToString(raw)}, CaptureMeta{})
	require.NoError(t, err)
	require.Equal(t, models.SignatureKindImage, record.Kind)
	require.NotNil(t, record.ImageKey)
	require.Equal(t, raw, blobs.blobs[*record.ImageKey])
	require.Equal(t, hashHex(raw), record.ContentHash)
}

func TestCaptureRejectsNonImageUpload(t *testing.T) {
	svc := NewSignatureService(newFakeSignatureStore(), newMemoryBlobs(), nil)
	_, err := svc.Capture(context.Background(), "parent-1",
		dto.SignatureInput{ImageBase64: base64.StdEncoding.EncodeToString([]byte("not an image"))}, CaptureMeta{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCaptureRequiresExactlyOneInput(t *testing.T) {
	svc := NewSignatureService(newFakeSignatureStore(), newMemoryBlobs(), nil)

	_, err := svc.Capture(context.Background(), "parent-1", dto.SignatureInput{}, CaptureMeta{})
	require.ErrorContains(t, err, "required")

	_, err = svc.Capture(context.Background(), "parent-1", dto.SignatureInput{
		Points:      []models.SignaturePoint{{X: 1, Y: 1}, {X: 2, Y: 2}},
		ImageBase64: base64.StdEncoding.EncodeToString(tinyPNG(t)),
	}, CaptureMeta{})
	require.ErrorContains(t, err, "not both")
}
