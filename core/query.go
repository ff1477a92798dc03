package core

import (
	"context"
	"fmt"
	"time"

	"github.com/roy-sema/cto-tool-sub001/core/metric"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// BuildTimeseriesRequest resolves organization and repository names into a chart query.
func BuildTimeseriesRequest(ctx context.Context, store contract.RegistryStore, organization string, repositories []string, since, until time.Time, daily bool) (schema.TimeseriesRequest, error) {
	if organization == "" {
		return schema.TimeseriesRequest{}, fmt.Errorf("--org is required")
	}
	org, err := store.FindOrganization(ctx, organization)
	if err != nil {
		return schema.TimeseriesRequest{}, err
	}

	req := schema.TimeseriesRequest{OrganizationID: org.ID, Since: since, Until: until, IncludeDaily: daily}
	for _, name := range repositories {
		repo, err := store.FindRepository(ctx, organization, name)
		if err != nil {
			return schema.TimeseriesRequest{}, err
		}
		req.RepositoryIDs = append(req.RepositoryIDs, repo.ID)
	}
	return req, nil
}

// RepositoryComposition returns the current composition of one repository.
func RepositoryComposition(ctx context.Context, store contract.RegistryStore, id int64) (schema.EntityComposition, error) {
	repo, err := store.GetRepository(ctx, id)
	if err != nil {
		return schema.EntityComposition{}, err
	}
	return repositoryEntity(repo), nil
}

// BuildStatusReport lists organizations, their repositories and merge requests
// with their stored composition. An empty name selects every organization.
func BuildStatusReport(ctx context.Context, store contract.CompositionStore, organization string) (*schema.StatusReport, error) {
	var orgs []schema.Organization
	if organization != "" {
		org, err := store.FindOrganization(ctx, organization)
		if err != nil {
			return nil, err
		}
		orgs = []schema.Organization{org}
	} else {
		var err error
		if orgs, err = store.ListOrganizations(ctx); err != nil {
			return nil, fmt.Errorf("list organizations: %w", err)
		}
	}

	report := &schema.StatusReport{}
	for _, org := range orgs {
		report.Organizations = append(report.Organizations, entity(schema.OrganizationEntity, org.ID, org.Name, org.Counts, org.LastRolledUpAt))

		repos, err := store.ListRepositories(ctx, org.ID)
		if err != nil {
			return nil, fmt.Errorf("list repositories of %s: %w", org.Name, err)
		}
		for _, repo := range repos {
			report.Repositories = append(report.Repositories, repositoryEntity(repo))

			mrs, err := store.ListMergeRequests(ctx, repo.ID)
			if err != nil {
				return nil, fmt.Errorf("list merge requests of %s: %w", repo.Name, err)
			}
			for _, mr := range mrs {
				name := fmt.Sprintf("%s %s", repo.Name, mr.ExternalID)
				if mr.Title != "" {
					name += " " + mr.Title
				}
				e := entity(schema.MergeRequestEntity, mr.ID, name, mr.Counts, mr.LastRecalculatedAt)
				report.MergeRequests = append(report.MergeRequests, e)
			}
		}
	}
	return report, nil
}

func repositoryEntity(repo schema.Repository) schema.EntityComposition {
	return entity(schema.RepositoryEntity, repo.ID, repo.Name, repo.Counts, repo.LastRecalculatedAt)
}

func entity(kind string, id int64, name string, counts schema.Counts, updated *time.Time) schema.EntityComposition {
	return schema.EntityComposition{
		Kind:        kind,
		ID:          id,
		Name:        name,
		Counts:      counts,
		Composition: metric.Compose(counts),
		UpdatedAt:   updated,
	}
}
