package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/storefront/identity/internal/auth"
	"github.com/storefront/identity/internal/middleware"
)

// AccountHandler handles the /accounts endpoints
type AccountHandler struct {
	authService *auth.AuthService
	logger      *zap.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(authService *auth.AuthService, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{authService: authService, logger: logger}
}

// HandleSignup handles POST /accounts
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.authService.Signup(r.Context(), auth.SignupRequest{
		Name:     req.Name,
		Email:    req.Email,
		Mobile:   string(req.Mobile),
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSessionResponse("Account Successfully Created and Registered.", s))
}

// HandleLogin handles POST /accounts/login
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.authService.Login(r.Context(), auth.LoginRequest{
		Email:    req.Email,
		Mobile:   string(req.Mobile),
		Password: req.Password,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newSessionResponse("", s))
}

// HandleRequestOTP handles POST /accounts/otp
func (h *AccountHandler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ch, err := h.authService.RequestOTP(r.Context(), auth.OTPRequest{
		Action: req.Action,
		Mobile: string(req.Mobile),
		Email:  req.Email,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, requestOTPResponse{
		Message:        "OTP sent successfully",
		Token:          ch.Token,
		ExpirationDate: ch.ExpiresAt,
	})
}

// HandleVerifyOTP handles POST /accounts/otp/verify
func (h *AccountHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.authService.VerifyOTP(r.Context(), auth.VerifyOTPRequest{
		Action: req.Action,
		Mobile: string(req.Mobile),
		Email:  req.Email,
		OTP:    string(req.OTP),
		Token:  strings.TrimSpace(req.Token),
	})
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	resp := verifyOTPResponse{
		ID:               s.Account.ID,
		Mobile:           s.Account.Mobile,
		Email:            s.Account.Email,
		IsMobileVerified: s.Account.IsMobileVerified,
		IsEmailVerified:  s.Account.IsEmailVerified,
	}
	if s.Tokens != nil {
		resp.AccessToken = s.Tokens.AccessToken
		resp.RefreshToken = s.Tokens.RefreshToken
		resp.ExpireAt = &s.Tokens.ExpiresAt
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleGoogle handles POST /accounts/continue-with-google
func (h *AccountHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	h.handleOAuth(w, r, "google")
}

// HandleApple handles POST /accounts/continue-with-apple
func (h *AccountHandler) HandleApple(w http.ResponseWriter, r *http.Request) {
	h.handleOAuth(w, r, "apple")
}

func (h *AccountHandler) handleOAuth(w http.ResponseWriter, r *http.Request, provider string) {
	var req oauthRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.authService.OAuthLogin(r.Context(), provider, strings.TrimSpace(req.IDToken))
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	view := newAccountView(s.Account)
	respondWithJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		ExpireAt:     s.Tokens.ExpiresAt,
		Account:      &view,
	})
}

// HandleRefresh handles POST /accounts/refresh
func (h *AccountHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	s, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		ExpireAt:     s.Tokens.ExpiresAt,
	})
}

// HandleMe handles GET /accounts/me (protected)
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	a, err := h.authService.Me(r.Context(), accountID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newAccountView(*a))
}

// HandleLogout handles POST /accounts/logout (protected)
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.authService.Logout(r.Context(), accountID); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleRevokeSession handles DELETE /accounts/{id}/session (admin)
func (h *AccountHandler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || accountID <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if err := h.authService.RevokeSession(r.Context(), accountID); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "session revoked"})
}
