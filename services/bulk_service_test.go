package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xturavaina/nacento-connector/models"
	"github.com/xturavaina/nacento-connector/services"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

type capturingSNS struct {
	published [][]byte
	topic     string
	err       error
}

func (m *capturingSNS) Publish(_ context.Context, topic string, body []byte) error {
	if m.err != nil {
		return m.err
	}
	m.topic = topic
	m.published = append(m.published, body)
	return nil
}

func newTestBulkService(t *testing.T, g *mockGalleryRepo, p *mockProductRepo, sns *capturingSNS) (*services.BulkService, sqlmock.Sqlmock) {
	t.Helper()
	gormDB, mock := setupMockDB(t)
	gallery := newTestGalleryService(g, p, nil, nil)
	if sns == nil {
		return services.NewBulkService(gormDB, g, p, gallery, nil, nil, "", zap.NewNop()), mock
	}
	return services.NewBulkService(gormDB, g, p, gallery, nil, sns,
		"arn:aws:sns:us-east-1:000000000000:gallery-events", zap.NewNop()), mock
}

func TestBulkProcessDeduplicatesLastWins(t *testing.T) {
	g := newMockGalleryRepo()
	p := testProductRepo()
	svc, mock := newTestBulkService(t, g, p, nil)

	// One transaction for the single unique SKU.
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Process(context.Background(), &models.BulkRequest{
		Items: []models.BulkItem{
			{SKU: "SHIRT-RED-L", Images: []models.ImageEntry{{FilePath: "a/old.jpg", Label: "Old"}}},
			{SKU: "SHIRT-RED-L", Images: []models.ImageEntry{{FilePath: "b/new.jpg", Label: "New"}}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.SkusSeen)
	assert.Equal(t, 1, result.Stats.OK)
	require.Len(t, result.Results, 1)
	// Last payload replaced the first; image lists are not merged.
	require.Len(t, g.inserted, 1)
	assert.Equal(t, "b/new.jpg", g.inserted[0].filePath)
}

func TestBulkProcessDropsEmptySkus(t *testing.T) {
	g := newMockGalleryRepo()
	p := testProductRepo()
	svc, mock := newTestBulkService(t, g, p, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Process(context.Background(), &models.BulkRequest{
		Items: []models.BulkItem{
			{SKU: "", Images: []models.ImageEntry{{FilePath: "x.jpg", Label: "X"}}},
			{SKU: "SHIRT-RED-L", Images: []models.ImageEntry{{FilePath: "a/b.jpg", Label: "L"}}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.SkusSeen)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "SHIRT-RED-L", result.Results[0].SKU)
}

func TestBulkProcessProductNotFoundContained(t *testing.T) {
	g := newMockGalleryRepo()
	p := &mockProductRepo{findErr: gorm.ErrRecordNotFound}
	svc, _ := newTestBulkService(t, g, p, nil)

	result, err := svc.Process(context.Background(), &models.BulkRequest{
		Items: []models.BulkItem{
			{SKU: "GHOST", Images: []models.ImageEntry{{FilePath: "a.jpg", Label: "A"}}},
		},
	})

	require.NoError(t, err, "per-SKU failures never become batch errors")
	assert.Equal(t, 1, result.Stats.Error)
	assert.Equal(t, 0, result.Stats.OK)
	require.NotNil(t, result.Results[0].Error)
	assert.Equal(t, models.ErrCodeProductNotFound, *result.Results[0].Error)
	assert.Nil(t, result.Results[0].ProductID)
}

func TestBulkProcessSkuFailureRollsBackAndContinues(t *testing.T) {
	g := newMockGalleryRepo()
	p := testProductRepo()
	svc, mock := newTestBulkService(t, g, p, nil)

	// First SKU fails inside its transaction and rolls back; second commits.
	g.findErr = errors.New("deadlock detected")
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	results := make([]models.BulkSkuResult, 0, 2)
	first, err := svc.Process(context.Background(), &models.BulkRequest{
		Items: []models.BulkItem{{SKU: "BAD", Images: []models.ImageEntry{{FilePath: "a.jpg", Label: "A"}}}},
	})
	require.NoError(t, err)
	results = append(results, first.Results...)

	g.findErr = nil
	second, err := svc.Process(context.Background(), &models.BulkRequest{
		Items: []models.BulkItem{{SKU: "GOOD", Images: []models.ImageEntry{{FilePath: "b.jpg", Label: "B"}}}},
	})
	require.NoError(t, err)
	results = append(results, second.Results...)

	require.Len(t, results, 2)
	require.NotNil(t, results[0].Error)
	assert.Equal(t, models.ErrCodeException, *results[0].Error)
	assert.Nil(t, results[1].Error)
	assert.Equal(t, 1, second.Stats.OK)
}

func TestBulkProcessAggregatesStats(t *testing.T) {
	etag := "same"
	g := newMockGalleryRepo()
	g.existing["e/x/existing.jpg"] = &models.ExistingImage{
		ValueID: 5, RecordID: 50, Label: "Kept", Position: 1, S3ETag: &etag,
	}
	p := testProductRepo()
	svc, mock := newTestBulkService(t, g, p, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Process(context.Background(), &models.BulkRequest{
		Items: []models.BulkItem{
			{SKU: "SKU-A", Images: []models.ImageEntry{{FilePath: "n/e/new.jpg", Label: "New"}}},
			{SKU: "SKU-B", Images: []models.ImageEntry{{FilePath: "e/x/existing.jpg", Label: "Kept", Position: 1}}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.SkusSeen)
	assert.Equal(t, 2, result.Stats.OK)
	assert.Equal(t, 1, result.Stats.Inserted)
	// No fingerprint client in play, so stored "same" vs fetched nil counts as
	// a content change rather than a skip.
	assert.Equal(t, 1, result.Stats.UpdatedValue)
}

func TestBulkProcessContextCancelled(t *testing.T) {
	g := newMockGalleryRepo()
	p := testProductRepo()
	svc, _ := newTestBulkService(t, g, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Process(ctx, &models.BulkRequest{
		Items: []models.BulkItem{{SKU: "SKU-A", Images: []models.ImageEntry{{FilePath: "a.jpg", Label: "A"}}}},
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBulkProcessPublishesSummary(t *testing.T) {
	g := newMockGalleryRepo()
	p := testProductRepo()
	sns := &capturingSNS{}
	svc, mock := newTestBulkService(t, g, p, sns)

	mock.ExpectBegin()
	mock.ExpectCommit()

	reqID := "req-77"
	_, err := svc.Process(context.Background(), &models.BulkRequest{
		RequestID: &reqID,
		Items:     []models.BulkItem{{SKU: "SKU-A", Images: []models.ImageEntry{{FilePath: "a.jpg", Label: "A"}}}},
	})

	require.NoError(t, err)
	require.Len(t, sns.published, 1)
	assert.Contains(t, string(sns.published[0]), `"gallery_synced"`)
	assert.Contains(t, string(sns.published[0]), `"req-77"`)
}

func TestProcessOnePropagatesError(t *testing.T) {
	g := newMockGalleryRepo()
	g.insertErr = errors.New("insert failed")
	p := testProductRepo()
	svc, mock := newTestBulkService(t, g, p, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := svc.ProcessOne(context.Background(), "SKU-A", []models.ImageEntry{{FilePath: "a.jpg", Label: "A"}})
	assert.Error(t, err)
}
