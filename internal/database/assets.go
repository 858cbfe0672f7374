package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"media-ingest/internal/mediatypes"
)

// DefaultListLimit caps ListManifests when no limit is given.
const DefaultListLimit = 50

// InsertManifest stores m and sets m.ID. This is the commit point of an
// ingestion; a returned error means no row exists.
func (d *Database) InsertManifest(ctx context.Context, m *mediatypes.AssetManifest) (id int64, err error) {
	start := time.Now()
	defer func() { recordQuery("insert_manifest", start, err) }()

	if len(m.Renditions) == 0 {
		return 0, fmt.Errorf("manifest has no renditions")
	}
	renditions, err := json.Marshal(m.Renditions)
	if err != nil {
		return 0, fmt.Errorf("failed to encode renditions: %w", err)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, txStart, err := d.beginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO assets (owner_id, original_name, source_type, renditions, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.OwnerID, m.OriginalName, string(m.SourceType), string(renditions), m.CreatedAt.Unix(),
	)
	if err == nil {
		id, err = result.LastInsertId()
	}
	if err = endTx(tx, txStart, err); err != nil {
		return 0, fmt.Errorf("failed to insert manifest: %w", err)
	}

	m.ID = id
	return id, nil
}

// GetManifest returns the owner's asset with the given id, or ErrNotFound.
func (d *Database) GetManifest(ctx context.Context, ownerID, id int64) (m *mediatypes.AssetManifest, err error) {
	start := time.Now()
	defer func() { recordQuery("get_manifest", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx,
		`SELECT id, owner_id, original_name, source_type, renditions, created_at
		 FROM assets WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	m, err = scanManifest(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return m, err
}

// ListManifests returns the owner's assets, newest first.
func (d *Database) ListManifests(ctx context.Context, ownerID int64, limit, offset int) (list []mediatypes.AssetManifest, err error) {
	start := time.Now()
	defer func() { recordQuery("list_manifests", start, err) }()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, owner_id, original_name, source_type, renditions, created_at
		 FROM assets WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list = []mediatypes.AssetManifest{}
	for rows.Next() {
		m, scanErr := scanManifest(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		list = append(list, *m)
	}
	err = rows.Err()
	return list, err
}

// CountAssetsByOwner returns how many assets ownerID holds.
func (d *Database) CountAssetsByOwner(ctx context.Context, ownerID int64) (count int, err error) {
	start := time.Now()
	defer func() { recordQuery("count_assets_by_owner", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets WHERE owner_id = ?", ownerID).Scan(&count)
	return count, err
}

// ReferencedPaths returns every rendition relativePath recorded in any
// manifest. Fallback entries share the original's path.
func (d *Database) ReferencedPaths(ctx context.Context) (paths map[string]struct{}, err error) {
	start := time.Now()
	defer func() { recordQuery("referenced_paths", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT id, renditions FROM assets")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths = make(map[string]struct{})
	for rows.Next() {
		var (
			id         int64
			raw        string
			renditions map[string]mediatypes.Rendition
		)
		if err = rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		if err = json.Unmarshal([]byte(raw), &renditions); err != nil {
			return nil, fmt.Errorf("asset %d: corrupt rendition map: %w", id, err)
		}
		for _, r := range renditions {
			paths[r.RelativePath] = struct{}{}
		}
	}
	err = rows.Err()
	return paths, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManifest(row rowScanner) (*mediatypes.AssetManifest, error) {
	var (
		m          mediatypes.AssetManifest
		sourceType string
		renditions string
		createdAt  int64
	)
	if err := row.Scan(&m.ID, &m.OwnerID, &m.OriginalName, &sourceType, &renditions, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(renditions), &m.Renditions); err != nil {
		return nil, fmt.Errorf("asset %d: corrupt rendition map: %w", m.ID, err)
	}
	m.SourceType = mediatypes.ImageType(sourceType)
	m.CreatedAt = time.Unix(createdAt, 0)
	return &m, nil
}
