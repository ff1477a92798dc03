package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roy-sema/cto-tool-sub001/schema"
)

const mergeRequestColumns = "id, repository_id, external_id, title, state, head_snapshot_id, base_snapshot_id, total_lines, ai_lines, blended_lines, last_recalculated_at"

func scanMergeRequest(row rowScanner) (schema.MergeRequest, error) {
	var mr schema.MergeRequest
	var head, base sql.NullInt64
	var recalculated scanTime
	err := row.Scan(&mr.ID, &mr.RepositoryID, &mr.ExternalID, &mr.Title, &mr.State, &head, &base,
		&mr.Counts.Total, &mr.Counts.AI, &mr.Counts.Blended, &recalculated)
	mr.HeadSnapshotID = int64Ptr(head)
	mr.BaseSnapshotID = int64Ptr(base)
	mr.LastRecalculatedAt = recalculated.Ptr()
	return mr, err
}

func (s *SQLStore) listMergeRequests(ctx context.Context, where string, args ...any) ([]schema.MergeRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY id", mergeRequestColumns, s.table(mergeRequestsTable), where)
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.MergeRequest
	for rows.Next() {
		mr, err := scanMergeRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merge request: %w", err)
		}
		out = append(out, mr)
	}
	return out, rows.Err()
}

// UpsertMergeRequest links a merge request by (repository, external id).
// An existing base snapshot is kept; counters are left to the cascade.
func (s *SQLStore) UpsertMergeRequest(ctx context.Context, mr *schema.MergeRequest) error {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE repository_id = ? AND external_id = ?", mergeRequestColumns, s.table(mergeRequestsTable))
	existing, err := scanMergeRequest(s.queryRow(ctx, query, mr.RepositoryID, mr.ExternalID))
	if errors.Is(err, sql.ErrNoRows) {
		if mr.State == "" {
			mr.State = schema.OpenMergeRequest
		}
		insert := fmt.Sprintf(`INSERT INTO %s (repository_id, external_id, title, state, head_snapshot_id, base_snapshot_id,
			total_lines, ai_lines, blended_lines, last_recalculated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table(mergeRequestsTable))
		id, err := s.insert(ctx, insert, mr.RepositoryID, mr.ExternalID, mr.Title, string(mr.State),
			nullInt64(mr.HeadSnapshotID), nullInt64(mr.BaseSnapshotID),
			mr.Counts.Total, mr.Counts.AI, mr.Counts.Blended, s.nullTS(mr.LastRecalculatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert merge request %s: %w", mr.ExternalID, err)
		}
		mr.ID = id
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up merge request %s: %w", mr.ExternalID, err)
	}

	merged := mergeMergeRequest(existing, *mr)
	if err := s.UpdateMergeRequest(ctx, merged); err != nil {
		return err
	}
	*mr = merged
	return nil
}

// ListOpenMergeRequestsByHead returns open merge requests whose head is the snapshot.
func (s *SQLStore) ListOpenMergeRequestsByHead(ctx context.Context, snapshotID int64) ([]schema.MergeRequest, error) {
	return s.listMergeRequests(ctx, "head_snapshot_id = ? AND state = ?", snapshotID, string(schema.OpenMergeRequest))
}

// ListMergeRequests returns the merge requests of a repository.
func (s *SQLStore) ListMergeRequests(ctx context.Context, repositoryID int64) ([]schema.MergeRequest, error) {
	return s.listMergeRequests(ctx, "repository_id = ?", repositoryID)
}

// UpdateMergeRequest writes every mutable column.
func (s *SQLStore) UpdateMergeRequest(ctx context.Context, mr schema.MergeRequest) error {
	query := fmt.Sprintf(`UPDATE %s SET title = ?, state = ?, head_snapshot_id = ?, base_snapshot_id = ?,
		total_lines = ?, ai_lines = ?, blended_lines = ?, last_recalculated_at = ? WHERE id = ?`, s.table(mergeRequestsTable))
	_, err := s.exec(ctx, query, mr.Title, string(mr.State), nullInt64(mr.HeadSnapshotID), nullInt64(mr.BaseSnapshotID),
		mr.Counts.Total, mr.Counts.AI, mr.Counts.Blended, s.nullTS(mr.LastRecalculatedAt), mr.ID)
	if err != nil {
		return fmt.Errorf("failed to update merge request %d: %w", mr.ID, err)
	}
	return nil
}

// mergeMergeRequest applies an inbound reference onto the stored merge request.
func mergeMergeRequest(existing, incoming schema.MergeRequest) schema.MergeRequest {
	out := existing
	if incoming.Title != "" {
		out.Title = incoming.Title
	}
	if incoming.State != "" {
		out.State = incoming.State
	}
	if incoming.HeadSnapshotID != nil {
		out.HeadSnapshotID = incoming.HeadSnapshotID
	}
	if out.BaseSnapshotID == nil {
		out.BaseSnapshotID = incoming.BaseSnapshotID
	}
	return out
}
