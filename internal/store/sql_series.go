package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roy-sema/cto-tool-sub001/schema"
)

// ListFullScans returns full scans of the repositories captured in [from, to).
func (s *SQLStore) ListFullScans(ctx context.Context, repositoryIDs []int64, from, to time.Time) ([]schema.Snapshot, error) {
	if len(repositoryIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE kind = ? AND repository_id IN (%s) AND captured_at >= ? AND captured_at < ?
		ORDER BY captured_at, id`, snapshotColumns, s.table(snapshotsTable), placeholders(len(repositoryIDs)))

	args := make([]any, 0, len(repositoryIDs)+3)
	args = append(args, string(schema.FullScan))
	for _, id := range repositoryIDs {
		args = append(args, id)
	}
	args = append(args, s.ts(from), s.ts(to))

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query full scans: %w", err)
	}
	return collectSnapshots(rows)
}

// LatestFullScanBefore returns the newest full scan strictly before the instant, or nil.
func (s *SQLStore) LatestFullScanBefore(ctx context.Context, repositoryID int64, before time.Time) (*schema.Snapshot, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE repository_id = ? AND kind = ? AND captured_at < ?
		ORDER BY captured_at DESC, id DESC LIMIT 1`, snapshotColumns, s.table(snapshotsTable))

	snap, err := scanSnapshot(s.queryRow(ctx, query, repositoryID, string(schema.FullScan), s.ts(before)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest full scan: %w", err)
	}
	return &snap, nil
}
