package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/eventviewer/server/internal/domain/users"
)

type PasswordResetter interface {
	ForgotPassword(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (string, error)
	ResetPassword(ctx context.Context, email, newPassword, resetToken string) error
}

type PasswordHandler struct {
	base
	resetter PasswordResetter
}

func NewPasswordHandler(resetter PasswordResetter, env string) *PasswordHandler {
	return &PasswordHandler{base: base{env: env}, resetter: resetter}
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,campusemail"`
}

func (h *PasswordHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Email = users.NormalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.resetter.ForgotPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success("OTP has been sent to your email.", nil))
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type verifyOTPResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	ResetToken string `json:"resetToken"`
}

func (h *PasswordHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Email = users.NormalizeEmail(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	if err := validateStruct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	token, err := h.resetter.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyOTPResponse{
		Status:     "success",
		Message:    "OTP verified. Use the reset token to set a new password.",
		ResetToken: token,
	})
}

type resetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=30"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	ResetToken      string `json:"resetToken" validate:"required,len=64,hexadecimal"`
}

func (h *PasswordHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Email = users.NormalizeEmail(req.Email)
	req.ResetToken = strings.TrimSpace(req.ResetToken)
	if err := validateStruct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.resetter.ResetPassword(r.Context(), req.Email, req.Password, req.ResetToken); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success("Password has been reset. Please log in again.", nil))
}
