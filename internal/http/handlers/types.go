package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/storefront/identity/internal/auth"
	"github.com/storefront/identity/internal/model"
)

// flexString accepts a JSON string or an integer literal. Mobile numbers and
// OTPs arrive in either form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if strings.ContainsAny(n.String(), ".eE-+") {
		return fmt.Errorf("expected an integer, got %s", n)
	}
	*f = flexString(n.String())
	return nil
}

// accountView is the public shape of an account; the password hash never leaves
type accountView struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Email            *string    `json:"email"`
	Mobile           *string    `json:"mobile"`
	Role             model.Role `json:"role"`
	IsMobileVerified bool       `json:"isMobileVerified"`
	IsEmailVerified  bool       `json:"isEmailVerified"`
	IsActive         bool       `json:"isActive"`
	LastLoggedInAt   *time.Time `json:"lastLoggedInAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func newAccountView(a model.Account) accountView {
	return accountView{
		ID:               a.ID,
		Name:             a.Name,
		Email:            a.Email,
		Mobile:           a.Mobile,
		Role:             a.Role,
		IsMobileVerified: a.IsMobileVerified,
		IsEmailVerified:  a.IsEmailVerified,
		IsActive:         a.IsActive,
		LastLoggedInAt:   a.LastLoggedInAt,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type signupRequest struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Mobile   flexString `json:"mobile"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

type loginRequest struct {
	Email    string     `json:"email"`
	Mobile   flexString `json:"mobile"`
	Password string     `json:"password"`
}

// sessionResponse is returned by signup and login
type sessionResponse struct {
	Message string `json:"message,omitempty"`
	accountView
	SessionToken string    `json:"sessionToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpireAt     time.Time `json:"expireAt"`
}

func newSessionResponse(message string, s *auth.Session) sessionResponse {
	return sessionResponse{
		Message:      message,
		accountView:  newAccountView(s.Account),
		SessionToken: s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		ExpireAt:     s.Tokens.ExpiresAt,
	}
}

type requestOTPRequest struct {
	Action model.Channel `json:"action"`
	Mobile flexString    `json:"mobile"`
	Email  string        `json:"email"`
}

type requestOTPResponse struct {
	Message        string    `json:"message"`
	Token          string    `json:"token"`
	ExpirationDate time.Time `json:"expirationDate"`
}

type verifyOTPRequest struct {
	Action model.Channel `json:"action"`
	Mobile flexString    `json:"mobile"`
	Email  string        `json:"email"`
	OTP    flexString    `json:"otp"`
	Token  string        `json:"token"`
}

// verifyOTPResponse carries tokens only when the verification started a session
type verifyOTPResponse struct {
	ID               int64      `json:"id"`
	Mobile           *string    `json:"mobile"`
	Email            *string    `json:"email"`
	IsMobileVerified bool       `json:"isMobileVerified"`
	IsEmailVerified  bool       `json:"isEmailVerified"`
	AccessToken      string     `json:"accessToken,omitempty"`
	RefreshToken     string     `json:"refreshToken,omitempty"`
	ExpireAt         *time.Time `json:"expireAt,omitempty"`
}

type oauthRequest struct {
	IDToken string `json:"idToken"`
}

type tokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpireAt     time.Time    `json:"expireAt"`
	Account      *accountView `json:"account,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
