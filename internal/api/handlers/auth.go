package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/eventviewer/server/internal/api/middleware"
	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/domain/sessions"
	"github.com/eventviewer/server/internal/domain/users"
)

// RefreshCookieName holds the refresh token between requests.
const (
	RefreshCookieName = "refreshToken"
	refreshCookiePath = "/api/v1/auth"
)

type Registrar interface {
	Register(ctx context.Context, params users.RegisterParams) (*users.User, error)
}

type SessionService interface {
	Login(ctx context.Context, email, password, userAgent string) (*sessions.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Logout(ctx context.Context, access *auth.Claims, accessToken, refreshToken string) error
}

type AuthHandler struct {
	base
	users         Registrar
	sessions      SessionService
	secureCookies bool
}

// NewAuthHandler sets the Secure flag on cookies when secureCookies is true.
func NewAuthHandler(registrar Registrar, sessionService SessionService, env string, secureCookies bool) *AuthHandler {
	return &AuthHandler{base: base{env: env}, users: registrar, sessions: sessionService, secureCookies: secureCookies}
}

type registerRequest struct {
	Role            string `json:"role" validate:"required,oneof=student admin super_admin"`
	FirstName       string `json:"firstName" validate:"required,min=1,max=50"`
	LastName        string `json:"lastName" validate:"max=50"`
	Email           string `json:"email" validate:"required,email,campusemail"`
	Password        string `json:"password" validate:"required,min=8,max=30"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	StudentID       string `json:"studentId" validate:"required_if=Role student,omitempty,len=10,numeric"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	req.Email = users.NormalizeEmail(req.Email)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := validateStruct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), users.RegisterParams{
		StudentID: req.StudentID,
		Role:      req.Role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, success("User registered successfully.", user.Public()))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Message     string    `json:"message"`
	UserID      string    `json:"userId"`
	FirstName   string    `json:"firstName"`
	Email       string    `json:"email"`
	Role        auth.Role `json:"role"`
	AccessToken string    `json:"accessToken"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.sessions.Login(r.Context(), req.Email, req.Password, r.UserAgent())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setRefreshCookie(w, result.Tokens.Refresh)
	writeJSON(w, http.StatusOK, loginResponse{
		Message:     "Login successful.",
		UserID:      result.User.ID,
		FirstName:   result.User.FirstName,
		Email:       result.User.Email,
		Role:        result.User.Role,
		AccessToken: result.Tokens.Access.Value,
	})
}

type tokenResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refresh, ok := refreshCookie(r)
	if !ok {
		h.fail(w, r, sessions.ErrRefreshTokenMissing)
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), refresh)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.Refresh)
	writeJSON(w, http.StatusOK, tokenResponse{Message: "Access token refreshed.", AccessToken: pair.Access.Value})
}

// Logout must run behind RequireAuth.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r.Context())
	if claims == nil {
		h.fail(w, r, sessions.ErrAccessTokenMissing)
		return
	}
	refresh, ok := refreshCookie(r)
	if !ok {
		h.fail(w, r, sessions.ErrRefreshTokenMissing)
		return
	}

	if err := h.sessions.Logout(r.Context(), claims, middleware.AccessToken(r.Context()), refresh); err != nil {
		h.fail(w, r, err)
		return
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, success("Logged out successfully.", nil))
}

func refreshCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	return value, value != ""
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token auth.Token) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token.Value,
		Path:     refreshCookiePath,
		Expires:  token.ExpiresAt,
		MaxAge:   int(auth.RefreshTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
