package models

// ServiceCategory buckets catalog offerings by the client type they target.
type ServiceCategory string

const (
	CategoryResident    ServiceCategory = "resident"
	CategoryNonResident ServiceCategory = "nonresident"
	CategoryCompany     ServiceCategory = "company"
	CategoryOther       ServiceCategory = "other"
)

// Service is a read-only catalog offering. A nil Active means the flag was never set.
type Service struct {
	ID       string          `json:"id"`
	Category ServiceCategory `json:"category"`
	Active   *bool           `json:"active,omitempty"`
	Name     string          `json:"name"`
	NameEN   string          `json:"name_en,omitempty"`
	Price    int64           `json:"price"`
}

// IsActive treats an absent flag as active.
func (s Service) IsActive() bool {
	return s.Active == nil || *s.Active
}

// DisplayName picks the Arabic name for "ar" and the English name, falling back to
// the Arabic one, for every other language.
func (s Service) DisplayName(lang string) string {
	if lang == "ar" || s.NameEN == "" {
		return s.Name
	}
	return s.NameEN
}
