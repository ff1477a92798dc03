package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

const (
	snapshotColumns = "id, repository_id, commit_sha, kind, captured_at, total_lines, ai_lines, blended_lines, last_recalculated_at"
	fileColumns     = "id, snapshot_id, path, total_lines, ai_lines, blended_lines, state, last_recalculated_at"
	unitColumns     = "id, repository_id, snapshot_id, file_id, content_hash, start_line, end_line, line_count, ai_lines, label"
)

func scanSnapshot(row rowScanner) (schema.Snapshot, error) {
	var snap schema.Snapshot
	var captured, recalculated scanTime
	err := row.Scan(&snap.ID, &snap.RepositoryID, &snap.CommitSHA, &snap.Kind, &captured,
		&snap.Counts.Total, &snap.Counts.AI, &snap.Counts.Blended, &recalculated)
	snap.CapturedAt = captured.Time
	snap.LastRecalculatedAt = recalculated.Ptr()
	return snap, err
}

func scanFile(row rowScanner) (schema.SnapshotFile, error) {
	var file schema.SnapshotFile
	var recalculated scanTime
	err := row.Scan(&file.ID, &file.SnapshotID, &file.Path,
		&file.Counts.Total, &file.Counts.AI, &file.Counts.Blended, &file.State, &recalculated)
	file.LastRecalculatedAt = recalculated.Ptr()
	return file, err
}

func scanUnit(row rowScanner) (schema.CodeUnit, error) {
	var unit schema.CodeUnit
	err := row.Scan(&unit.ID, &unit.RepositoryID, &unit.SnapshotID, &unit.FileID, &unit.ContentHash,
		&unit.StartLine, &unit.EndLine, &unit.LineCount, &unit.AILines, &unit.Label)
	return unit, err
}

// collectSnapshots drains rows into snapshots.
func collectSnapshots(rows *sql.Rows) ([]schema.Snapshot, error) {
	defer func() { _ = rows.Close() }()
	var out []schema.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// CreateSnapshot inserts the snapshot and sets its ID.
func (s *SQLStore) CreateSnapshot(ctx context.Context, snap *schema.Snapshot) error {
	query := fmt.Sprintf(`INSERT INTO %s (repository_id, commit_sha, kind, captured_at, total_lines, ai_lines, blended_lines, last_recalculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table(snapshotsTable))
	id, err := s.insert(ctx, query, snap.RepositoryID, snap.CommitSHA, string(snap.Kind), s.ts(snap.CapturedAt),
		snap.Counts.Total, snap.Counts.AI, snap.Counts.Blended, s.nullTS(snap.LastRecalculatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	snap.ID = id
	return nil
}

// GetSnapshot returns the snapshot with the id.
func (s *SQLStore) GetSnapshot(ctx context.Context, id int64) (schema.Snapshot, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", snapshotColumns, s.table(snapshotsTable))
	snap, err := scanSnapshot(s.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return snap, fmt.Errorf("%w: id %d", contract.ErrSnapshotNotFound, id)
	}
	return snap, err
}

// UpdateSnapshot writes the counters and recalculation stamp.
func (s *SQLStore) UpdateSnapshot(ctx context.Context, snap schema.Snapshot) error {
	query := fmt.Sprintf(`UPDATE %s SET total_lines = ?, ai_lines = ?, blended_lines = ?, last_recalculated_at = ? WHERE id = ?`,
		s.table(snapshotsTable))
	if _, err := s.exec(ctx, query, snap.Counts.Total, snap.Counts.AI, snap.Counts.Blended, s.nullTS(snap.LastRecalculatedAt), snap.ID); err != nil {
		return fmt.Errorf("failed to update snapshot %d: %w", snap.ID, err)
	}
	return nil
}

// ListSnapshots returns every snapshot ordered by id.
func (s *SQLStore) ListSnapshots(ctx context.Context) ([]schema.Snapshot, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", snapshotColumns, s.table(snapshotsTable))
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	return collectSnapshots(rows)
}

// CreateFile inserts the file and sets its ID.
func (s *SQLStore) CreateFile(ctx context.Context, file *schema.SnapshotFile) error {
	if file.State == "" {
		file.State = schema.FileDirty
	}
	query := fmt.Sprintf(`INSERT INTO %s (snapshot_id, path, total_lines, ai_lines, blended_lines, state, last_recalculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table(filesTable))
	id, err := s.insert(ctx, query, file.SnapshotID, file.Path,
		file.Counts.Total, file.Counts.AI, file.Counts.Blended, string(file.State), s.nullTS(file.LastRecalculatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert file %s: %w", file.Path, err)
	}
	file.ID = id
	return nil
}

// ListFiles returns the files of a snapshot ordered by id.
func (s *SQLStore) ListFiles(ctx context.Context, snapshotID int64) ([]schema.SnapshotFile, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE snapshot_id = ? ORDER BY id", fileColumns, s.table(filesTable))
	rows, err := s.query(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.SnapshotFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		out = append(out, file)
	}
	return out, rows.Err()
}

// UpdateFile writes the counters, state and recalculation stamp.
func (s *SQLStore) UpdateFile(ctx context.Context, file schema.SnapshotFile) error {
	query := fmt.Sprintf(`UPDATE %s SET total_lines = ?, ai_lines = ?, blended_lines = ?, state = ?, last_recalculated_at = ? WHERE id = ?`,
		s.table(filesTable))
	_, err := s.exec(ctx, query, file.Counts.Total, file.Counts.AI, file.Counts.Blended,
		string(file.State), s.nullTS(file.LastRecalculatedAt), file.ID)
	if err != nil {
		return fmt.Errorf("failed to update file %d: %w", file.ID, err)
	}
	return nil
}

// CreateUnits inserts the units and sets their IDs in place.
func (s *SQLStore) CreateUnits(ctx context.Context, units []schema.CodeUnit) error {
	query := fmt.Sprintf(`INSERT INTO %s (repository_id, snapshot_id, file_id, content_hash, start_line, end_line, line_count, ai_lines, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table(unitsTable))
	for i := range units {
		u := &units[i]
		id, err := s.insert(ctx, query, u.RepositoryID, u.SnapshotID, u.FileID, u.ContentHash,
			u.StartLine, u.EndLine, u.LineCount, u.AILines, string(u.Label))
		if err != nil {
			return fmt.Errorf("failed to insert unit %s: %w", u.ContentHash, err)
		}
		u.ID = id
	}
	return nil
}

// ListUnits returns the units of a file ordered by id.
func (s *SQLStore) ListUnits(ctx context.Context, fileID int64) ([]schema.CodeUnit, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE file_id = ? ORDER BY id", unitColumns, s.table(unitsTable))
	rows, err := s.query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.CodeUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}
