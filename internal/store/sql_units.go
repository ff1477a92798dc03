package store

import (
	"context"
	"fmt"

	"github.com/roy-sema/cto-tool-sub001/schema"
)

// SnapshotsForHash returns the snapshots holding a unit with the hash, ascending.
func (s *SQLStore) SnapshotsForHash(ctx context.Context, repositoryID int64, hash string) ([]int64, error) {
	query := fmt.Sprintf("SELECT DISTINCT snapshot_id FROM %s WHERE repository_id = ? AND content_hash = ? ORDER BY snapshot_id",
		s.table(unitsTable))
	rows, err := s.query(ctx, query, repositoryID, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for hash: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkHashDirty flags every file holding a unit with the hash.
func (s *SQLStore) MarkHashDirty(ctx context.Context, repositoryID int64, hash string) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET state = ? WHERE id IN (SELECT file_id FROM %s WHERE repository_id = ? AND content_hash = ?)`,
		s.table(filesTable), s.table(unitsTable))
	result, err := s.exec(ctx, query, string(schema.FileDirty), repositoryID, hash)
	if err != nil {
		return 0, fmt.Errorf("failed to mark files dirty: %w", err)
	}
	return result.RowsAffected()
}

// UpsertAttestation stores the reviewer label for a hash, replacing any previous one.
func (s *SQLStore) UpsertAttestation(ctx context.Context, att schema.Attestation) error {
	table := s.table(attestationsTable)

	var query string
	switch s.backend {
	case schema.MySQLBackend:
		query = fmt.Sprintf(`
			INSERT INTO %s (repository_id, content_hash, label, comment, author, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE label = VALUES(label), comment = VALUES(comment), author = VALUES(author), updated_at = VALUES(updated_at)
		`, table)
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`
			INSERT INTO %s (repository_id, content_hash, label, comment, author, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (repository_id, content_hash) DO UPDATE
			SET label = EXCLUDED.label, comment = EXCLUDED.comment, author = EXCLUDED.author, updated_at = EXCLUDED.updated_at
		`, table)
	default: // SQLite
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (repository_id, content_hash, label, comment, author, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, table)
	}

	_, err := s.exec(ctx, query, att.RepositoryID, att.ContentHash, string(att.Label), att.Comment, att.Author, s.ts(att.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert attestation: %w", err)
	}
	return nil
}

// GetAttestations returns the attestations for the hashes keyed by hash.
func (s *SQLStore) GetAttestations(ctx context.Context, repositoryID int64, hashes []string) (map[string]schema.Attestation, error) {
	out := make(map[string]schema.Attestation)
	for _, chunk := range chunkStrings(hashes, maxInParams) {
		query := fmt.Sprintf(`SELECT repository_id, content_hash, label, comment, author, updated_at FROM %s
			WHERE repository_id = ? AND content_hash IN (%s)`, s.table(attestationsTable), placeholders(len(chunk)))
		args := make([]any, 0, len(chunk)+1)
		args = append(args, repositoryID)
		for _, h := range chunk {
			args = append(args, h)
		}

		if err := s.scanAttestations(ctx, query, args, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLStore) scanAttestations(ctx context.Context, query string, args []any, out map[string]schema.Attestation) error {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query attestations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var att schema.Attestation
		var updated scanTime
		if err := rows.Scan(&att.RepositoryID, &att.ContentHash, &att.Label, &att.Comment, &att.Author, &updated); err != nil {
			return fmt.Errorf("failed to scan attestation: %w", err)
		}
		att.UpdatedAt = updated.Time
		out[att.ContentHash] = att
	}
	return rows.Err()
}
