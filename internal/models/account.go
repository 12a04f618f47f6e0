package models

import (
	"time"
)

// Account is a user account in the product. The login handle is either
// the email or the optional secondary username.
type Account struct {
	ID                string
	Email             string
	Username          string // optional secondary login handle, "" when unset
	PasswordHash      string // "" for social-only accounts
	SocialProviders   []string
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsSocialOnly reports whether the account authenticates exclusively via
// a linked external identity provider: at least one linked social id and
// no usable local password.
func (a *Account) IsSocialOnly() bool {
	return len(a.SocialProviders) > 0 && a.PasswordHash == ""
}

// SocialLink binds an external identity provider subject to an account.
type SocialLink struct {
	Provider  string
	Subject   string
	AccountID string
	CreatedAt time.Time
}
