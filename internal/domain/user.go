package domain

import (
	"strings"
	"time"
)

// Plan is a user's subscription tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// IsValid reports whether p is a known plan.
func (p Plan) IsValid() bool {
	return p == PlanFree || p == PlanPremium
}

// User is the local record of an identity-provider account.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Plan       Plan      `json:"plan"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsPremium reports whether the user has unlimited views.
func (u *User) IsPremium() bool {
	return u.Plan == PlanPremium
}

// Profile is the identity provider's view of a user.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
	ImageURL  string
}

// Overlay returns p with every non-empty field of newer applied on top.
func (p Profile) Overlay(newer Profile) Profile {
	pick := func(old, n string) string {
		if strings.TrimSpace(n) != "" {
			return n
		}
		return old
	}
	return Profile{
		Email:     pick(p.Email, newer.Email),
		FirstName: pick(p.FirstName, newer.FirstName),
		LastName:  pick(p.LastName, newer.LastName),
		ImageURL:  pick(p.ImageURL, newer.ImageURL),
	}
}

// Profile returns the user's profile fields.
func (u *User) Profile() Profile {
	return Profile{Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, ImageURL: u.ImageURL}
}

// MergeProfile applies non-empty incoming fields. Plan is never touched.
// It reports whether anything changed.
func (u *User) MergeProfile(in Profile) bool {
	merged := u.Profile().Overlay(in)
	if merged == u.Profile() {
		return false
	}
	u.Email, u.FirstName, u.LastName, u.ImageURL = merged.Email, merged.FirstName, merged.LastName, merged.ImageURL
	return true
}
