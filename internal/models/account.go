package models

import "strings"

// AccountType is the canonical classification of a client record.
type AccountType string

const (
	Resident    AccountType = "resident"
	NonResident AccountType = "nonresident"
	Company     AccountType = "company"
)

// ParseAccountType lowercases and trims a stored type value. Unknown values are
// returned as-is so callers can tell them apart from the empty string.
func ParseAccountType(raw string) AccountType {
	return AccountType(strings.ToLower(strings.TrimSpace(raw)))
}

// ResolveAccountType picks the legacy "type" value when set and falls back to
// "accountType". It is the only place the two columns are reconciled.
func ResolveAccountType(legacyType, accountType string) AccountType {
	if t := ParseAccountType(legacyType); t != "" {
		return t
	}
	return ParseAccountType(accountType)
}

// Message is an inline admin message stored on the account.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Time  string `json:"time"`
}

// AccountRecord is an account row as persisted, including both legacy type columns.
type AccountRecord struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"name"`
	Type             string    `json:"type,omitempty"`
	AccountType      string    `json:"accountType,omitempty"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email"`
	WalletBalance    int64     `json:"walletBalance"`
	Coins            int64     `json:"coins"`
	UnreadMessages   int       `json:"unreadMessages"`
	Messages         []Message `json:"messages"`
	Owner            string    `json:"owner,omitempty"`
	OwnerFirstName   string    `json:"ownerFirstName,omitempty"`
	OwnerMiddleName  string    `json:"ownerMiddleName,omitempty"`
	OwnerLastName    string    `json:"ownerLastName,omitempty"`
	OwnerBirthDate   string    `json:"ownerBirthDate,omitempty"`
	OwnerGender      string    `json:"ownerGender,omitempty"`
	OwnerNationality string    `json:"ownerNationality,omitempty"`
}

// ResolvedType returns the record's canonical account type.
func (r AccountRecord) ResolvedType() AccountType {
	return ResolveAccountType(r.Type, r.AccountType)
}

// Account is the normalized projection handed to the dashboard.
type Account struct {
	ID             string      `json:"id"`
	DisplayName    string      `json:"name"`
	Type           AccountType `json:"accountType"`
	Phone          string      `json:"phone"`
	Email          string      `json:"email"`
	WalletBalance  int64       `json:"walletBalance"`
	Coins          int64       `json:"coins"`
	UnreadMessages int         `json:"unreadMessages"`
	Messages       []Message   `json:"messages"`
	Owner          string      `json:"owner,omitempty"`
}

// OwnerIdentity is the embedded resident identity of a company account.
type OwnerIdentity struct {
	FirstName   string `json:"firstName"`
	MiddleName  string `json:"middleName"`
	LastName    string `json:"lastName"`
	BirthDate   string `json:"birthDate"`
	Gender      string `json:"gender"`
	Nationality string `json:"nationality"`
	Phone       string `json:"phone"`
}
