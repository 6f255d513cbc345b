package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xturavaina/nacento-connector/models"
	"github.com/xturavaina/nacento-connector/repository"
	"github.com/xturavaina/nacento-connector/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ---- mock gallery repository ----

type insertedImage struct {
	filePath    string
	label       string
	position    int
	disabled    bool
	fingerprint *string
}

type mockGalleryRepo struct {
	existing    map[string]*models.ExistingImage // keyed by file path
	findErr     error
	insertErr   error
	updateErr   error
	nextValueID int64

	inserted     []insertedImage
	updatedRows  map[int64]insertedImage
	fingerprints map[int64]*string
}

func newMockGalleryRepo() *mockGalleryRepo {
	return &mockGalleryRepo{
		existing:     map[string]*models.ExistingImage{},
		nextValueID:  100,
		updatedRows:  map[int64]insertedImage{},
		fingerprints: map[int64]*string{},
	}
}

func (m *mockGalleryRepo) WithTx(_ *gorm.DB) repository.GalleryRepository { return m }

func (m *mockGalleryRepo) FindExisting(_ context.Context, _, _ int64, filePath string) (*models.ExistingImage, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.existing[filePath], nil
}

func (m *mockGalleryRepo) InsertCoreValue(_ context.Context, _ int64, filePath string) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.nextValueID++
	m.inserted = append(m.inserted, insertedImage{filePath: filePath})
	return m.nextValueID, nil
}

func (m *mockGalleryRepo) LinkToEntity(_ context.Context, _, _ int64) error { return nil }

func (m *mockGalleryRepo) InsertValueRow(_ context.Context, row *models.MediaGalleryValue) (int64, error) {
	last := &m.inserted[len(m.inserted)-1]
	last.label = row.Label
	last.position = row.Position
	last.disabled = row.Disabled
	return int64(1000 + len(m.inserted)), nil
}

func (m *mockGalleryRepo) UpdateValueRow(_ context.Context, recordID int64, label string, position int, disabled bool) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedRows[recordID] = insertedImage{label: label, position: position, disabled: disabled}
	return nil
}

func (m *mockGalleryRepo) UpsertFingerprint(_ context.Context, recordID int64, fingerprint *string) error {
	m.fingerprints[recordID] = fingerprint
	return nil
}

// ---- mock product repository ----

type mockProductRepo struct {
	product     *models.Product
	findErr     error
	attributeID int64
	attrErr     error
	rolesErr    error

	roleCalls []map[string]string
}

func (m *mockProductRepo) WithTx(_ *gorm.DB) repository.ProductRepository { return m }

func (m *mockProductRepo) FindBySKU(_ context.Context, _ string) (*models.Product, error) {
	return m.product, m.findErr
}

func (m *mockProductRepo) AttributeIDByCode(_ context.Context, _ string) (int64, error) {
	return m.attributeID, m.attrErr
}

func (m *mockProductRepo) UpdateImageRoles(_ context.Context, _ int64, roles map[string]string, _ int) error {
	if m.rolesErr != nil {
		return m.rolesErr
	}
	copied := make(map[string]string, len(roles))
	for k, v := range roles {
		copied[k] = v
	}
	m.roleCalls = append(m.roleCalls, copied)
	return nil
}

// ---- mock media storage and fingerprints ----

type mockStorage struct {
	missing map[string]bool
	err     error
}

func (m *mockStorage) Exists(_ context.Context, mediaPath string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return !m.missing[mediaPath], nil
}

type mockFingerprints struct {
	byKey    map[string]*string // canonical tails
	byRawKey map[string]*string // exact object keys
}

func (m *mockFingerprints) Fetch(_ context.Context, canonicalKey string) *string {
	return m.byKey[canonicalKey]
}

func (m *mockFingerprints) FetchObject(_ context.Context, objectKey string) *string {
	return m.byRawKey[objectKey]
}

// ---- helpers ----

func newTestGalleryService(g *mockGalleryRepo, p *mockProductRepo, st *mockStorage, fp *mockFingerprints) *services.GalleryService {
	if st == nil {
		st = &mockStorage{}
	}
	if fp == nil {
		fp = &mockFingerprints{byKey: map[string]*string{}}
	}
	return services.NewGalleryService(g, p, st, fp, zap.NewNop())
}

func testProductRepo() *mockProductRepo {
	return &mockProductRepo{
		product:     &models.Product{EntityID: 42, SKU: "SHIRT-RED-L"},
		attributeID: 90,
	}
}

// ---- tests ----

func TestReconcileEmptyImageList(t *testing.T) {
	g := newMockGalleryRepo()
	p := testProductRepo()
	svc := newTestGalleryService(g, p, nil, nil)

	stats, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Empty(t, g.inserted)
}

func TestReconcileInsertsNewImage(t *testing.T) {
	g := newMockGalleryRepo()
	p := testProductRepo()
	etag := "abc123"
	fp := &mockFingerprints{byKey: map[string]*string{"s/h/shirt.jpg": &etag}}
	svc := newTestGalleryService(g, p, nil, fp)

	stats, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", []models.ImageEntry{
		{FilePath: "/s/h/shirt.jpg", Label: "Front", Position: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	require.Len(t, g.inserted, 1)
	assert.Equal(t, "s/h/shirt.jpg", g.inserted[0].filePath)
	assert.Equal(t, "Front", g.inserted[0].label)
	require.NotNil(t, g.fingerprints[1001])
	assert.Equal(t, "abc123", *g.fingerprints[1001])
}

func TestReconcileSkipsUnchangedImage(t *testing.T) {
	etag := "abc123"
	g := newMockGalleryRepo()
	g.existing["s/h/shirt.jpg"] = &models.ExistingImage{
		ValueID: 7, RecordID: 70, Label: "Front", Position: 1, Disabled: false, S3ETag: &etag,
	}
	p := testProductRepo()
	fp := &mockFingerprints{byKey: map[string]*string{"s/h/shirt.jpg": &etag}}
	svc := newTestGalleryService(g, p, nil, fp)

	stats, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", []models.ImageEntry{
		{FilePath: "s/h/shirt.jpg", Label: "Front", Position: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedNoChange)
	assert.Empty(t, g.updatedRows, "no writes expected when nothing changed")
	assert.Empty(t, g.fingerprints)
}

func TestReconcileUpdatesOnContentChange(t *testing.T) {
	oldTag, newTag := "old", "new"
	g := newMockGalleryRepo()
	g.existing["s/h/shirt.jpg"] = &models.ExistingImage{
		ValueID: 7, RecordID: 70, Label: "Front", Position: 1, S3ETag: &oldTag,
	}
	p := testProductRepo()
	fp := &mockFingerprints{byKey: map[string]*string{"s/h/shirt.jpg": &newTag}}
	svc := newTestGalleryService(g, p, nil, fp)

	stats, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", []models.ImageEntry{
		{FilePath: "s/h/shirt.jpg", Label: "Front", Position: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.UpdatedValue)
	assert.Equal(t, 0, stats.UpdatedMeta)
	require.NotNil(t, g.fingerprints[70])
	assert.Equal(t, "new", *g.fingerprints[70])
}

func TestReconcileUpdatesOnMetadataChange(t *testing.T) {
	etag := "same"
	g := newMockGalleryRepo()
	g.existing["s/h/shirt.jpg"] = &models.ExistingImage{
		ValueID: 7, RecordID: 70, Label: "Front", Position: 1, S3ETag: &etag,
	}
	p := testProductRepo()
	fp := &mockFingerprints{byKey: map[string]*string{"s/h/shirt.jpg": &etag}}
	svc := newTestGalleryService(g, p, nil, fp)

	stats, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", []models.ImageEntry{
		{FilePath: "s/h/shirt.jpg", Label: "Back", Position: 2},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.UpdatedMeta)
	assert.Equal(t, 0, stats.UpdatedValue)
	assert.Equal(t, "Back", g.updatedRows[70].label)
	assert.Equal(t, 2, g.updatedRows[70].position)
}

func TestReconcileWarnsAndSkipsInvalidImages(t *testing.T) {
	g := newMockGalleryRepo()
	p := testProductRepo()
	st := &mockStorage{missing: map[string]bool{"catalog/product/m/i/missing.jpg": true}}
	svc := newTestGalleryService(g, p, st, nil)

	stats, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", []models.ImageEntry{
		{FilePath: "", Label: "No path"},
		{FilePath: "n/l/nolabel.jpg", Label: ""},
		{FilePath: "../../etc/passwd", Label: "Traversal"},
		{FilePath: "m/i/missing.jpg", Label: "Missing"},
		{FilePath: "o/k/good.jpg", Label: "Good"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Len(t, stats.Warnings, 4)
}

func TestReconcileStorageErrorSkipsImage(t *testing.T) {
	g := newMockGalleryRepo()
	p := testProductRepo()
	st := &mockStorage{err: errors.New("bucket unreachable")}
	svc := newTestGalleryService(g, p, st, nil)

	stats, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", []models.ImageEntry{
		{FilePath: "s/h/shirt.jpg", Label: "Front"},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Len(t, stats.Warnings, 1)
}

func TestReconcileRolesLastDeclarationWins(t *testing.T) {
	g := newMockGalleryRepo()
	p := testProductRepo()
	svc := newTestGalleryService(g, p, nil, nil)

	_, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", []models.ImageEntry{
		{FilePath: "a/first.jpg", Label: "First", Roles: []string{models.RoleBaseImage, models.RoleThumbnail}},
		{FilePath: "b/second.jpg", Label: "Second", Roles: []string{models.RoleBaseImage}},
	})

	require.NoError(t, err)
	require.Len(t, p.roleCalls, 1, "one batched role update per SKU")
	roles := p.roleCalls[0]
	assert.Equal(t, "b/second.jpg", roles[models.RoleBaseImage])
	assert.Equal(t, "a/first.jpg", roles[models.RoleThumbnail])
}

func TestReconcileProductLookupFails(t *testing.T) {
	g := newMockGalleryRepo()
	p := &mockProductRepo{findErr: gorm.ErrRecordNotFound}
	svc := newTestGalleryService(g, p, nil, nil)

	_, err := svc.Reconcile(context.Background(), "GHOST-SKU", []models.ImageEntry{
		{FilePath: "a/b.jpg", Label: "L"},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReconcileSaveFailureIsFatal(t *testing.T) {
	g := newMockGalleryRepo()
	g.insertErr = errors.New("duplicate key")
	p := testProductRepo()
	svc := newTestGalleryService(g, p, nil, nil)

	_, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", []models.ImageEntry{
		{FilePath: "a/b.jpg", Label: "L"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not save gallery")
}

func TestReconcileIdempotentSecondRun(t *testing.T) {
	etag := "abc"
	g := newMockGalleryRepo()
	p := testProductRepo()
	fp := &mockFingerprints{byKey: map[string]*string{"s/h/shirt.jpg": &etag}}
	svc := newTestGalleryService(g, p, nil, fp)

	entry := []models.ImageEntry{{FilePath: "s/h/shirt.jpg", Label: "Front", Position: 1}}

	first, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", entry)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	// Second run sees the stored state from the first run.
	g.existing["s/h/shirt.jpg"] = &models.ExistingImage{
		ValueID: 101, RecordID: 1001, Label: "Front", Position: 1, S3ETag: &etag,
	}
	second, err := svc.Reconcile(context.Background(), "SHIRT-RED-L", entry)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.SkippedNoChange)
}
