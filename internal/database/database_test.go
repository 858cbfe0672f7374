package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-ingest/internal/mediatypes"
)

func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	dbPath = filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dbPath
}

func testManifest(owner int64, name string) *mediatypes.AssetManifest {
	return &mediatypes.AssetManifest{
		OwnerID:      owner,
		OriginalName: name,
		SourceType:   mediatypes.TypeJPEG,
		Renditions: map[string]mediatypes.Rendition{
			"original":  {Name: "original", RelativePath: "2026/03/a_original.webp", ByteSize: 1000, Width: 4000, Height: 2000, Mode: "original"},
			"thumbnail": {Name: "thumbnail", RelativePath: "2026/03/a_thumbnail.webp", ByteSize: 100, Width: 150, Height: 150, Mode: "cover"},
		},
		CreatedAt: time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewDatabase(t *testing.T) {
	db, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}
}

func TestNewDatabaseMissingDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing", "test.db")
	if _, err := New(context.Background(), dbPath); err == nil {
		t.Fatal("New() succeeded for a missing directory")
	}
}

func TestNewDatabaseReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db, err := New(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertManifest(ctx, testManifest(1, "a.jpg")); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = New(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	if n, _ := db.CountAssetsByOwner(ctx, 1); n != 1 {
		t.Errorf("CountAssetsByOwner() after reopen = %d, want 1", n)
	}
}

func TestInsertAndGetManifest(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	m := testManifest(7, "holiday.jpg")
	id, err := db.InsertManifest(ctx, m)
	if err != nil {
		t.Fatalf("InsertManifest() error = %v", err)
	}
	if id <= 0 || m.ID != id {
		t.Fatalf("InsertManifest() id = %d, manifest ID = %d", id, m.ID)
	}

	got, err := db.GetManifest(ctx, 7, id)
	if err != nil {
		t.Fatalf("GetManifest() error = %v", err)
	}
	if got.OriginalName != "holiday.jpg" || got.SourceType != mediatypes.TypeJPEG {
		t.Errorf("GetManifest() = %+v", got)
	}
	if !got.CreatedAt.Equal(m.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, m.CreatedAt)
	}
	if len(got.Renditions) != 2 {
		t.Fatalf("Renditions = %d entries, want 2", len(got.Renditions))
	}
	if thumb := got.Renditions["thumbnail"]; thumb.Width != 150 || thumb.Mode != "cover" {
		t.Errorf("thumbnail rendition = %+v", thumb)
	}
}

func TestInsertManifestRejectsEmpty(t *testing.T) {
	db, _ := setupTestDB(t)
	m := testManifest(1, "x.jpg")
	m.Renditions = nil

	if _, err := db.InsertManifest(context.Background(), m); err == nil {
		t.Fatal("InsertManifest() accepted a manifest without renditions")
	}
	if n, _ := db.CountAssetsByOwner(context.Background(), 1); n != 0 {
		t.Errorf("row written despite error: count = %d", n)
	}
}

func TestInsertManifestCanceledContext(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := db.InsertManifest(ctx, testManifest(1, "x.jpg")); err == nil {
		t.Fatal("InsertManifest() succeeded with canceled context")
	}
	if n, _ := db.CountAssetsByOwner(context.Background(), 1); n != 0 {
		t.Errorf("row written despite error: count = %d", n)
	}
}

func TestGetManifestOwnership(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	id, err := db.InsertManifest(ctx, testManifest(1, "mine.jpg"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetManifest(ctx, 2, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetManifest() for another owner error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetManifest(ctx, 1, id+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetManifest() for unknown id error = %v, want ErrNotFound", err)
	}
}

func TestListManifestsAndCount(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		m := testManifest(5, name)
		m.CreatedAt = m.CreatedAt.Add(time.Duration(i) * time.Minute)
		if _, err := db.InsertManifest(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.InsertManifest(ctx, testManifest(6, "other.jpg")); err != nil {
		t.Fatal(err)
	}

	list, err := db.ListManifests(ctx, 5, 0, 0)
	if err != nil {
		t.Fatalf("ListManifests() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListManifests() = %d items, want 3", len(list))
	}
	if list[0].OriginalName != "c.jpg" {
		t.Errorf("first item = %q, want newest c.jpg", list[0].OriginalName)
	}

	page, err := db.ListManifests(ctx, 5, 1, 1)
	if err != nil || len(page) != 1 || page[0].OriginalName != "b.jpg" {
		t.Errorf("ListManifests(limit 1, offset 1) = %v, %v", page, err)
	}

	empty, err := db.ListManifests(ctx, 99, 10, 0)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("ListManifests() for owner without assets = %v, %v", empty, err)
	}

	tests := []struct {
		owner int64
		want  int
	}{
		{5, 3},
		{6, 1},
		{99, 0},
	}
	for _, tt := range tests {
		got, err := db.CountAssetsByOwner(ctx, tt.owner)
		if err != nil || got != tt.want {
			t.Errorf("CountAssetsByOwner(%d) = %d, %v, want %d", tt.owner, got, err, tt.want)
		}
	}
}

func TestReferencedPaths(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	paths, err := db.ReferencedPaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 {
		t.Errorf("empty database references %v", paths)
	}

	m := testManifest(1, "a.jpg")
	fallback := m.Renditions["original"]
	fallback.Name = "medium"
	m.Renditions["medium"] = fallback
	if _, err := db.InsertManifest(ctx, m); err != nil {
		t.Fatal(err)
	}
	other := testManifest(2, "b.jpg")
	other.Renditions = map[string]mediatypes.Rendition{
		"original": {Name: "original", RelativePath: "2026/04/b_original.webp", Mode: "original"},
	}
	if _, err := db.InsertManifest(ctx, other); err != nil {
		t.Fatal(err)
	}

	paths, err = db.ReferencedPaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"2026/03/a_original.webp", "2026/03/a_thumbnail.webp", "2026/04/b_original.webp"} {
		if _, ok := paths[want]; !ok {
			t.Errorf("ReferencedPaths() missing %s", want)
		}
	}
	if len(paths) != 3 {
		t.Errorf("ReferencedPaths() = %d paths, want 3", len(paths))
	}
}

func TestGetStats(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	png := testManifest(2, "b.png")
	png.SourceType = mediatypes.TypePNG
	for _, m := range []*mediatypes.AssetManifest{testManifest(1, "a.jpg"), testManifest(1, "c.jpg"), png} {
		if _, err := db.InsertManifest(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := db.CreateToken(ctx, 1, "laptop"); err != nil {
		t.Fatal(err)
	}

	stats := db.GetStats()
	if stats.TotalAssets != 3 || stats.TotalOwners != 2 || stats.TotalTokens != 1 {
		t.Errorf("GetStats() = %+v", stats)
	}
	if stats.BySourceType["jpeg"] != 2 || stats.BySourceType["png"] != 1 {
		t.Errorf("BySourceType = %v", stats.BySourceType)
	}
	if stats.DBFileSizes["main"] <= 0 {
		t.Errorf("DBFileSizes = %v, want main file size", stats.DBFileSizes)
	}
}

func TestGetStatsStoredBytes(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if got := db.GetStats().StoredBytes; got != 0 {
		t.Errorf("empty StoredBytes = %d", got)
	}

	a := testManifest(1, "a.jpg")
	fallback := a.Renditions["original"]
	fallback.Name = "medium"
	a.Renditions["medium"] = fallback

	b := testManifest(1, "b.jpg")
	b.Renditions = map[string]mediatypes.Rendition{
		"original": {Name: "original", RelativePath: "2026/03/b_original.webp", ByteSize: 500, Mode: "original"},
	}

	for _, m := range []*mediatypes.AssetManifest{a, b} {
		if _, err := db.InsertManifest(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	// 1000 + 100 for a (fallback shares the original), 500 for b.
	if got := db.GetStats().StoredBytes; got != 1600 {
		t.Errorf("StoredBytes = %d, want 1600", got)
	}
}

func TestDiagnoseDatabasePermissions(t *testing.T) {
	dir := t.TempDir()
	if err := diagnoseDatabasePermissions(filepath.Join(dir, "x.db")); err != nil {
		t.Errorf("diagnoseDatabasePermissions() error = %v", err)
	}

	err := diagnoseDatabasePermissions(filepath.Join(dir, "missing", "x.db"))
	if err == nil || !strings.Contains(err.Error(), "cannot stat") {
		t.Errorf("diagnoseDatabasePermissions() on missing dir = %v", err)
	}
}
