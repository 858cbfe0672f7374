package database

import (
	"context"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

// GetStats gathers inventory counts for the metrics collector. Errors are
// logged and leave the affected fields at zero.
func (d *Database) GetStats() metrics.Stats {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_stats", start, err) }()

	stats := metrics.Stats{
		BySourceType: map[string]int{},
		DBFileSizes:  d.fileSizes(),
		OpenDBConns:  d.db.Stats().OpenConnections,
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT owner_id) FROM assets",
	).Scan(&stats.TotalAssets, &stats.TotalOwners)
	if err != nil {
		logging.Warn("failed to count assets: %v", err)
		return stats
	}

	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM api_tokens WHERE revoked = 0").Scan(&stats.TotalTokens)
	if err != nil {
		logging.Warn("failed to count tokens: %v", err)
		return stats
	}

	// Fallback renditions share the original's file, so sizes are summed per
	// distinct path.
	err = d.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(size), 0) FROM (
			SELECT DISTINCT json_extract(r.value, '$.relativePath') AS path,
			       json_extract(r.value, '$.byteSize') AS size
			FROM assets, json_each(assets.renditions) AS r
		)`).Scan(&stats.StoredBytes)
	if err != nil {
		logging.Warn("failed to sum stored bytes: %v", err)
		return stats
	}

	rows, err := d.db.QueryContext(ctx, "SELECT source_type, COUNT(*) FROM assets GROUP BY source_type")
	if err != nil {
		logging.Warn("failed to count assets by type: %v", err)
		return stats
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err = rows.Scan(&kind, &n); err != nil {
			logging.Warn("failed to scan asset type count: %v", err)
			return stats
		}
		stats.BySourceType[kind] = n
	}
	err = rows.Err()
	return stats
}
