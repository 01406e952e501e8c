package sessions

import (
	"net/http"

	"github.com/eventviewer/server/internal/apperr"
)

var (
	ErrAccessTokenMissing  = apperr.New(http.StatusUnauthorized, apperr.CodeAccessTokenMissing, "Please log in first.")
	ErrRefreshTokenMissing = apperr.New(http.StatusUnauthorized, apperr.CodeRefreshMissing, "Please log in first.")
	ErrTokenInvalid        = apperr.New(http.StatusUnauthorized, apperr.CodeTokenValidation, "Token is invalid or malformed.")
	ErrTokenExpired        = apperr.New(http.StatusUnauthorized, apperr.CodeTokenValidation, "Token has expired. Please log in again.")
	ErrTokenBlacklisted    = apperr.New(http.StatusForbidden, apperr.CodeTokenBlacklisted, "Token has been revoked.")

	// ErrRefreshNotFound covers stale, reused, revoked and foreign refresh tokens alike.
	ErrRefreshNotFound = apperr.New(http.StatusNotFound, apperr.CodeClientAuth, "No valid refresh token found. Please log in first.")

	ErrEmailNotRegistered = apperr.New(http.StatusNotFound, apperr.CodeClientAuth, "Email is not registered.")
	ErrExpiredOTP         = apperr.New(http.StatusUnauthorized, apperr.CodeExpiredOTP, "OTP is no longer valid.")
	ErrMaxOTPAttempts     = apperr.New(http.StatusUnauthorized, apperr.CodeMaxAttempts, "Too many wrong OTP attempts. Request a new code.")
	ErrInvalidOTP         = apperr.New(http.StatusUnauthorized, apperr.CodeInvalidOTP, "OTP is invalid.")
	ErrInvalidResetToken  = apperr.New(http.StatusForbidden, apperr.CodeInvalidToken, "Invalid or expired reset token.")

	ErrEmailService       = apperr.New(http.StatusBadGateway, apperr.CodeEmailService, "Failed to send the verification email. Please try again later.")
	ErrUnknownTransaction = apperr.New(http.StatusInternalServerError, apperr.CodeUnknownTransaction, "An unexpected internal error occurred.")
)
