// Package profile turns stored account records into typed dashboard profiles.
package profile

import (
	"errors"

	"github.com/hongminglow/taheel-be/internal/models"
)

// ErrAccountNotFound marks the terminal "account not found" state.
var ErrAccountNotFound = errors.New("account not found")

// Profile is a classified account. Owner is set iff the account is a company.
type Profile struct {
	Account models.Account
	Owner   *models.OwnerIdentity
}

// Type returns the canonical account type.
func (p Profile) Type() models.AccountType {
	return p.Account.Type
}

// Classify normalizes a stored record. A nil record yields ErrAccountNotFound.
func Classify(rec *models.AccountRecord) (Profile, error) {
	if rec == nil {
		return Profile{}, ErrAccountNotFound
	}

	p := Profile{Account: models.Account{
		ID:             rec.ID,
		DisplayName:    rec.DisplayName,
		Type:           rec.ResolvedType(),
		Phone:          rec.Phone,
		Email:          rec.Email,
		WalletBalance:  rec.WalletBalance,
		Coins:          rec.Coins,
		UnreadMessages: rec.UnreadMessages,
		Messages:       rec.Messages,
		Owner:          rec.Owner,
	}}
	if p.Account.Messages == nil {
		p.Account.Messages = []models.Message{}
	}

	if p.Account.Type == models.Company {
		p.Owner = &models.OwnerIdentity{
			FirstName:   rec.OwnerFirstName,
			MiddleName:  rec.OwnerMiddleName,
			LastName:    rec.OwnerLastName,
			BirthDate:   rec.OwnerBirthDate,
			Gender:      rec.OwnerGender,
			Nationality: rec.OwnerNationality,
			Phone:       rec.Phone,
		}
	}
	return p, nil
}
