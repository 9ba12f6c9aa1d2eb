package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mpole/hdt-auth/internal/auth"
	"github.com/mpole/hdt-auth/internal/models"
	"github.com/mpole/hdt-auth/internal/services"
	pkgauth "github.com/mpole/hdt-auth/pkg/auth"
	pkghttp "github.com/mpole/hdt-auth/pkg/http"
)

// AuthServiceInterface defines the interface for the session policy engine
type AuthServiceInterface interface {
	Login(ctx context.Context, loginID, password string, client services.ClientContext) (*services.AuthResult, error)
	Refresh(ctx context.Context, loginID, deviceID string, client services.ClientContext) (*services.AuthResult, error)
	Logout(ctx context.Context, loginID, deviceID string) error
	LogoutAll(ctx context.Context, loginID string) error
	RevokeDevice(ctx context.Context, loginID, deviceID string) error
	ActiveSessions(ctx context.Context, loginID string) ([]*models.DeviceSession, error)
	ChangePassword(ctx context.Context, loginID, currentPassword, newPassword, confirmPassword string) error
	UnlockAccount(ctx context.Context, loginID string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	LoginID  string `json:"login_id" validate:"required,min=1,max=50"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// Response DTOs — explicit projections from persistence records to
// boundary messages; every field mapping is hand-written.

// AccountSummary represents the account in auth responses
type AccountSummary struct {
	LoginID string `json:"login_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

// DeviceInfo represents one device session in responses
type DeviceInfo struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
	IPAddress  string `json:"ip_address"`
	LastUsedAt string `json:"last_used_at"`
	ExpiresAt  string `json:"expires_at"`
	Current    bool   `json:"current"`
}

// LoginResponse represents the response for login and refresh
type LoginResponse struct {
	AccessToken             string          `json:"access_token"`
	RefreshToken            string          `json:"refresh_token"`
	ExpiresIn               int64           `json:"expires_in"`
	UserInfo                *AccountSummary `json:"user_info"`
	PasswordChangeRequired  bool            `json:"password_change_required"`
	DaysUntilPasswordExpiry int             `json:"days_until_password_expiry"`
	CurrentDeviceID         string          `json:"current_device_id,omitempty"`
	ActiveDevices           []DeviceInfo    `json:"active_devices,omitempty"`
}

// SessionsResponse represents the active session list
type SessionsResponse struct {
	TotalCount int          `json:"total_count"`
	Sessions   []DeviceInfo `json:"sessions"`
}

// MessageResponse is a simple confirmation payload
type MessageResponse struct {
	Message string `json:"message"`
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.LoginID = strings.TrimSpace(req.LoginID)

	client := h.clientContext(r)

	result, err := h.service.Login(r.Context(), req.LoginID, req.Password, client)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, loginResultToResponse(result))
}

// Refresh issues a new access token for the caller's device. The route is
// guarded by the refresh-token middleware, so the principal carries the
// device binding.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	client := h.clientContext(r)

	result, err := h.service.Refresh(r.Context(), principal.LoginID, principal.DeviceID, client)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, loginResultToResponse(result))
}

// Logout removes the caller's device session; repeated calls succeed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}
	if principal.DeviceID == "" {
		pkghttp.WriteBadRequest(w, "Logout requires a device-bound token")
		return
	}

	if err := h.service.Logout(r.Context(), principal.LoginID, principal.DeviceID); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// LogoutAll removes every session for the caller's account.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.LogoutAll(r.Context(), principal.LoginID); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out from all devices"})
}

// Sessions lists the caller's active device sessions.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	sessions, err := h.service.ActiveSessions(r.Context(), principal.LoginID)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	infos := make([]DeviceInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, sessionToDeviceInfo(session, principal.DeviceID))
	}

	pkghttp.WriteJSON(w, http.StatusOK, SessionsResponse{
		TotalCount: len(infos),
		Sessions:   infos,
	})
}

// RevokeDevice forcibly terminates one of the caller's device sessions.
func (h *AuthHandler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	deviceID := chi.URLParam(r, "deviceId")
	if deviceID == "" {
		pkghttp.WriteBadRequest(w, "Device id is required")
		return
	}

	if err := h.service.RevokeDevice(r.Context(), principal.LoginID, deviceID); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Device session terminated"})
}

// ChangePassword rotates the caller's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.ChangePassword(r.Context(), principal.LoginID,
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password changed"})
}

// Unlock clears an account lock; admin only (enforced by route middleware).
func (h *AuthHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	loginID := chi.URLParam(r, "loginId")
	if loginID == "" {
		pkghttp.WriteBadRequest(w, "Login id is required")
		return
	}

	if err := h.service.UnlockAccount(r.Context(), loginID); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Account unlocked"})
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipal(r)
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"login_id":  principal.LoginID,
		"device_id": principal.DeviceID,
		"role":      principal.Role,
	})
}

func (h *AuthHandler) clientContext(r *http.Request) services.ClientContext {
	return services.ClientContext{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// writeAuthError maps service errors to client-safe responses. Distinct
// error kinds get distinct codes; nothing beyond the kind leaks out.
func writeAuthError(w http.ResponseWriter, err error) {
	var pve *pkgauth.PasswordValidationError

	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorizedCode(w, "invalid_credentials", "Invalid login id or password")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteUnauthorizedCode(w, "account_locked", "Account is locked. Contact an administrator.")
	case errors.Is(err, models.ErrAccountDisabled):
		pkghttp.WriteUnauthorizedCode(w, "account_disabled", "Account is disabled")
	case errors.Is(err, models.ErrSessionNotFound):
		pkghttp.WriteUnauthorizedCode(w, "session_not_found", "No session for this device")
	case errors.Is(err, models.ErrSessionExpired):
		pkghttp.WriteUnauthorizedCode(w, "session_expired", "Session expired, log in again")
	case errors.Is(err, models.ErrInvalidToken):
		pkghttp.WriteUnauthorizedCode(w, "invalid_token", "Invalid or expired token")
	case errors.Is(err, models.ErrPasswordMismatch):
		pkghttp.WriteError(w, http.StatusBadRequest, "password_mismatch", "New password and confirmation do not match")
	case errors.Is(err, models.ErrPasswordUnchanged):
		pkghttp.WriteError(w, http.StatusBadRequest, "password_unchanged", "New password must differ from current password")
	case errors.As(err, &pve):
		pkghttp.WriteBadRequest(w, "Password does not meet requirements")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func loginResultToResponse(result *services.AuthResult) *LoginResponse {
	resp := &LoginResponse{
		AccessToken:             result.AccessToken,
		RefreshToken:            result.RefreshToken,
		ExpiresIn:               result.ExpiresInMs,
		UserInfo:                accountToSummary(result.Account),
		PasswordChangeRequired:  result.PasswordChangeRequired,
		DaysUntilPasswordExpiry: result.DaysUntilPasswordExpiry,
		CurrentDeviceID:         result.CurrentDeviceID,
	}

	for _, session := range result.ActiveSessions {
		resp.ActiveDevices = append(resp.ActiveDevices, sessionToDeviceInfo(session, result.CurrentDeviceID))
	}

	return resp
}

func accountToSummary(account *models.Account) *AccountSummary {
	return &AccountSummary{
		LoginID: account.LoginID,
		Email:   account.Email,
		Name:    account.Name,
		Role:    account.Role,
	}
}

func sessionToDeviceInfo(session *models.DeviceSession, currentDeviceID string) DeviceInfo {
	return DeviceInfo{
		DeviceID:   session.DeviceID,
		DeviceName: session.DeviceName,
		DeviceType: session.DeviceType,
		IPAddress:  session.IPAddress,
		LastUsedAt: session.LastUsedAt.Format(time.RFC3339),
		ExpiresAt:  session.ExpiresAt.Format(time.RFC3339),
		Current:    session.DeviceID == currentDeviceID && currentDeviceID != "",
	}
}
