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
	organizationColumns = "id, name, total_lines, ai_lines, blended_lines, last_rolled_up_at"
	repositoryColumns   = "id, organization_id, name, last_snapshot_id, total_lines, ai_lines, blended_lines, last_recalculated_at"
)

func scanOrganization(row rowScanner) (schema.Organization, error) {
	var org schema.Organization
	var rolled scanTime
	err := row.Scan(&org.ID, &org.Name, &org.Counts.Total, &org.Counts.AI, &org.Counts.Blended, &rolled)
	org.LastRolledUpAt = rolled.Ptr()
	return org, err
}

func scanRepository(row rowScanner) (schema.Repository, error) {
	var repo schema.Repository
	var last sql.NullInt64
	var recalculated scanTime
	err := row.Scan(&repo.ID, &repo.OrganizationID, &repo.Name, &last,
		&repo.Counts.Total, &repo.Counts.AI, &repo.Counts.Blended, &recalculated)
	repo.LastSnapshotID = int64Ptr(last)
	repo.LastRecalculatedAt = recalculated.Ptr()
	return repo, err
}

// insertIgnore returns an INSERT that silently skips unique conflicts.
func (s *SQLStore) insertIgnore(table, columns string, conflict string, n int) string {
	switch s.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", s.table(table), columns, placeholders(n))
	case schema.PostgreSQLBackend:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING", s.table(table), columns, placeholders(n), conflict)
	default: // SQLite
		return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", s.table(table), columns, placeholders(n))
	}
}

// EnsureOrganization returns the organization with the name, creating it when missing.
func (s *SQLStore) EnsureOrganization(ctx context.Context, name string) (schema.Organization, error) {
	org, err := s.FindOrganization(ctx, name)
	if err == nil || !errors.Is(err, contract.ErrNotFound) {
		return org, err
	}

	if _, err := s.exec(ctx, s.insertIgnore(organizationsTable, "name", "name", 1), name); err != nil {
		return schema.Organization{}, fmt.Errorf("failed to insert organization %q: %w", name, err)
	}
	return s.FindOrganization(ctx, name)
}

// EnsureRepository returns the repository with the name inside the organization, creating it when missing.
func (s *SQLStore) EnsureRepository(ctx context.Context, organizationID int64, name string) (schema.Repository, error) {
	repo, err := s.findRepositoryInOrg(ctx, organizationID, name)
	if err == nil || !errors.Is(err, contract.ErrNotFound) {
		return repo, err
	}

	query := s.insertIgnore(repositoriesTable, "organization_id, name", "organization_id, name", 2)
	if _, err := s.exec(ctx, query, organizationID, name); err != nil {
		return schema.Repository{}, fmt.Errorf("failed to insert repository %q: %w", name, err)
	}
	return s.findRepositoryInOrg(ctx, organizationID, name)
}

// GetOrganization returns the organization with the id.
func (s *SQLStore) GetOrganization(ctx context.Context, id int64) (schema.Organization, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", organizationColumns, s.table(organizationsTable))
	org, err := scanOrganization(s.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return org, fmt.Errorf("%w: id %d", contract.ErrOrganizationNotFound, id)
	}
	return org, err
}

// FindOrganization returns the organization with the name.
func (s *SQLStore) FindOrganization(ctx context.Context, name string) (schema.Organization, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE name = ?", organizationColumns, s.table(organizationsTable))
	org, err := scanOrganization(s.queryRow(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return org, fmt.Errorf("%w: %q", contract.ErrOrganizationNotFound, name)
	}
	return org, err
}

// ListOrganizations returns every organization ordered by id.
func (s *SQLStore) ListOrganizations(ctx context.Context) ([]schema.Organization, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", organizationColumns, s.table(organizationsTable))
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

// UpdateOrganization writes the counters and rollup stamp.
func (s *SQLStore) UpdateOrganization(ctx context.Context, org schema.Organization) error {
	query := fmt.Sprintf(`UPDATE %s SET total_lines = ?, ai_lines = ?, blended_lines = ?, last_rolled_up_at = ? WHERE id = ?`,
		s.table(organizationsTable))
	if _, err := s.exec(ctx, query, org.Counts.Total, org.Counts.AI, org.Counts.Blended, s.nullTS(org.LastRolledUpAt), org.ID); err != nil {
		return fmt.Errorf("failed to update organization %d: %w", org.ID, err)
	}
	return nil
}

// GetRepository returns the repository with the id.
func (s *SQLStore) GetRepository(ctx context.Context, id int64) (schema.Repository, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", repositoryColumns, s.table(repositoriesTable))
	repo, err := scanRepository(s.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return repo, fmt.Errorf("%w: id %d", contract.ErrRepositoryNotFound, id)
	}
	return repo, err
}

// FindRepository resolves a repository by organization and repository name.
func (s *SQLStore) FindRepository(ctx context.Context, organization, name string) (schema.Repository, error) {
	org, err := s.FindOrganization(ctx, organization)
	if err != nil {
		return schema.Repository{}, err
	}
	return s.findRepositoryInOrg(ctx, org.ID, name)
}

func (s *SQLStore) findRepositoryInOrg(ctx context.Context, organizationID int64, name string) (schema.Repository, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = ? AND name = ?", repositoryColumns, s.table(repositoriesTable))
	repo, err := scanRepository(s.queryRow(ctx, query, organizationID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return repo, fmt.Errorf("%w: %q", contract.ErrRepositoryNotFound, name)
	}
	return repo, err
}

// ListRepositories returns the repositories of an organization ordered by id.
func (s *SQLStore) ListRepositories(ctx context.Context, organizationID int64) ([]schema.Repository, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = ? ORDER BY id", repositoryColumns, s.table(repositoriesTable))
	rows, err := s.query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		out = append(out, repo)
	}
	return out, rows.Err()
}

// UpdateRepository writes the current snapshot pointer, counters and recalculation stamp.
func (s *SQLStore) UpdateRepository(ctx context.Context, repo schema.Repository) error {
	query := fmt.Sprintf(`UPDATE %s SET last_snapshot_id = ?, total_lines = ?, ai_lines = ?, blended_lines = ?, last_recalculated_at = ? WHERE id = ?`,
		s.table(repositoriesTable))
	_, err := s.exec(ctx, query, nullInt64(repo.LastSnapshotID),
		repo.Counts.Total, repo.Counts.AI, repo.Counts.Blended, s.nullTS(repo.LastRecalculatedAt), repo.ID)
	if err != nil {
		return fmt.Errorf("failed to update repository %d: %w", repo.ID, err)
	}
	return nil
}
