// Package catalog partitions the service catalog and assembles the list a client may see.
package catalog

import (
	"strings"

	"github.com/hongminglow/taheel-be/internal/models"
)

// Buckets holds active services grouped by category, each in catalog order.
type Buckets struct {
	Resident    []models.Service `json:"resident"`
	NonResident []models.Service `json:"nonresident"`
	Company     []models.Service `json:"company"`
	Other       []models.Service `json:"other"`
}

// Partition drops inactive services and services with unrecognized categories.
func Partition(services []models.Service) Buckets {
	b := Buckets{
		Resident:    []models.Service{},
		NonResident: []models.Service{},
		Company:     []models.Service{},
		Other:       []models.Service{},
	}
	for _, svc := range services {
		if !svc.IsActive() {
			continue
		}
		switch svc.Category {
		case models.CategoryResident:
			b.Resident = append(b.Resident, svc)
		case models.CategoryNonResident:
			b.NonResident = append(b.NonResident, svc)
		case models.CategoryCompany:
			b.Company = append(b.Company, svc)
		case models.CategoryOther:
			b.Other = append(b.Other, svc)
		}
	}
	return b
}

// Visible concatenates the buckets an account type is eligible for. Companies
// also see resident services. Unknown types see nothing.
func (b Buckets) Visible(t models.AccountType) []models.Service {
	var groups [][]models.Service
	switch t {
	case models.Resident:
		groups = [][]models.Service{b.Resident, b.Other}
	case models.Company:
		groups = [][]models.Service{b.Company, b.Resident, b.Other}
	case models.NonResident:
		groups = [][]models.Service{b.NonResident, b.Other}
	default:
		return []models.Service{}
	}

	out := make([]models.Service, 0)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Matches reports whether the service's display name for lang contains query,
// ignoring case and surrounding whitespace in the query.
func Matches(svc models.Service, query, lang string) bool {
	needle := strings.ToLower(strings.TrimSpace(query))
	return strings.Contains(strings.ToLower(svc.DisplayName(lang)), needle)
}

// Filter keeps the services matching query, preserving order.
func Filter(services []models.Service, query, lang string) []models.Service {
	out := make([]models.Service, 0, len(services))
	for _, svc := range services {
		if Matches(svc, query, lang) {
			out = append(out, svc)
		}
	}
	return out
}
