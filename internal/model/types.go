package model

import (
	"time"
)

// Role is the authorization role carried in access tokens
type Role string

const (
	RoleUser     Role = "user"
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleEmployee:
		return true
	}
	return false
}

// Channel is the verification medium an OTP is delivered over
type Channel string

const (
	ChannelMobile Channel = "mobile"
	ChannelEmail  Channel = "email"
)

// Valid reports whether c is mobile or email
func (c Channel) Valid() bool {
	return c == ChannelMobile || c == ChannelEmail
}

// Account represents an identity record. Email, Mobile and PasswordHash are
// nil until set; an account created through OTP has only a mobile, one
// created through OAuth has no password.
type Account struct {
	ID               int64
	Name             string
	Email            *string
	Mobile           *string
	PasswordHash     *string
	Role             Role
	IsMobileVerified bool
	IsEmailVerified  bool
	IsActive         bool
	LastLoggedInAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EmailValue returns the email or "" when unset
func (a *Account) EmailValue() string {
	if a.Email == nil {
		return ""
	}
	return *a.Email
}

// MobileValue returns the mobile or "" when unset
func (a *Account) MobileValue() string {
	if a.Mobile == nil {
		return ""
	}
	return *a.Mobile
}

// SessionMarker is the single live session token of an account
type SessionMarker struct {
	AccountID    int64
	SessionToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
