package models

import "time"

// Default settings for a profile created on first access.
const (
	DefaultInitialBalance    = 59000
	DefaultInitialTradeValue = 2360
	DefaultPercentTarget     = 12
)

// Settings is the per-user journal configuration.
type Settings struct {
	InitialBalance    float64 `json:"bank_initial" yaml:"bank_initial"`
	InitialTradeValue float64 `json:"initial_trade_value" yaml:"initial_trade_value"`
	PercentTarget     float64 `json:"percent_target" yaml:"percent_target"`
}

func DefaultSettings() Settings {
	return Settings{
		InitialBalance:    DefaultInitialBalance,
		InitialTradeValue: DefaultInitialTradeValue,
		PercentTarget:     DefaultPercentTarget,
	}
}

// Profile is the profiles row: one per user, keyed by the auth user id.
// Username is nullable and unique when set.
type Profile struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	Email             *string   `json:"email"`
	Username          *string   `gorm:"uniqueIndex" json:"username"`
	BankInitial       float64   `json:"bank_initial"`
	InitialTradeValue float64   `json:"initial_trade_value"`
	PercentTarget     float64   `json:"percent_target"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}

// NewProfile builds a profile for userID populated with settings.
func NewProfile(userID, email, username string, s Settings) Profile {
	p := Profile{
		ID:                userID,
		BankInitial:       s.InitialBalance,
		InitialTradeValue: s.InitialTradeValue,
		PercentTarget:     s.PercentTarget,
	}
	if email != "" {
		p.Email = &email
	}
	if username != "" {
		p.Username = &username
	}
	return p
}

func (p Profile) Settings() Settings {
	return Settings{
		InitialBalance:    p.BankInitial,
		InitialTradeValue: p.InitialTradeValue,
		PercentTarget:     p.PercentTarget,
	}
}

func (p Profile) UsernameOrEmpty() string {
	if p.Username == nil {
		return ""
	}
	return *p.Username
}
