package profile

import (
	"context"
	"fmt"

	"github.com/hongminglow/taheel-be/internal/models"
	"github.com/hongminglow/taheel-be/internal/storage"
)

// Companies returns the company accounts linked to a resident, matching the
// company owner field against the resident's display name or id. Every other
// account type has no linked companies.
func Companies(ctx context.Context, accounts storage.AccountReader, p Profile) ([]models.Account, error) {
	if p.Type() != models.Resident || p.Account.ID == "" {
		return []models.Account{}, nil
	}

	owners := []string{p.Account.ID}
	if p.Account.DisplayName != "" && p.Account.DisplayName != p.Account.ID {
		owners = append(owners, p.Account.DisplayName)
	}

	records, err := accounts.ListCompaniesByOwner(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("list companies by owner: %w", err)
	}

	out := make([]models.Account, 0, len(records))
	for i := range records {
		company, err := Classify(&records[i])
		if err != nil {
			return nil, err
		}
		if company.Type() != models.Company {
			continue
		}
		out = append(out, company.Account)
	}
	return out, nil
}
