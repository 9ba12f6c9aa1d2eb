package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpole/hdt-auth/internal/auth"
	"github.com/mpole/hdt-auth/internal/models"
	"github.com/mpole/hdt-auth/internal/services"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, loginID, password string, client services.ClientContext) (*services.AuthResult, error)
	RefreshFunc        func(ctx context.Context, loginID, deviceID string, client services.ClientContext) (*services.AuthResult, error)
	LogoutFunc         func(ctx context.Context, loginID, deviceID string) error
	LogoutAllFunc      func(ctx context.Context, loginID string) error
	RevokeDeviceFunc   func(ctx context.Context, loginID, deviceID string) error
	ActiveSessionsFunc func(ctx context.Context, loginID string) ([]*models.DeviceSession, error)
	ChangePasswordFunc func(ctx context.Context, loginID, currentPassword, newPassword, confirmPassword string) error
	UnlockAccountFunc  func(ctx context.Context, loginID string) error
}

func (m *MockAuthService) Login(ctx context.Context, loginID, password string, client services.ClientContext) (*services.AuthResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, loginID, password, client)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Refresh(ctx context.Context, loginID, deviceID string, client services.ClientContext) (*services.AuthResult, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, loginID, deviceID, client)
	}
	return nil, models.ErrSessionNotFound
}

func (m *MockAuthService) Logout(ctx context.Context, loginID, deviceID string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, loginID, deviceID)
	}
	return nil
}

func (m *MockAuthService) LogoutAll(ctx context.Context, loginID string) error {
	if m.LogoutAllFunc != nil {
		return m.LogoutAllFunc(ctx, loginID)
	}
	return nil
}

func (m *MockAuthService) RevokeDevice(ctx context.Context, loginID, deviceID string) error {
	if m.RevokeDeviceFunc != nil {
		return m.RevokeDeviceFunc(ctx, loginID, deviceID)
	}
	return nil
}

func (m *MockAuthService) ActiveSessions(ctx context.Context, loginID string) ([]*models.DeviceSession, error) {
	if m.ActiveSessionsFunc != nil {
		return m.ActiveSessionsFunc(ctx, loginID)
	}
	return []*models.DeviceSession{}, nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, loginID, currentPassword, newPassword, confirmPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, loginID, currentPassword, newPassword, confirmPassword)
	}
	return nil
}

func (m *MockAuthService) UnlockAccount(ctx context.Context, loginID string) error {
	if m.UnlockAccountFunc != nil {
		return m.UnlockAccountFunc(ctx, loginID)
	}
	return nil
}

func withPrincipal(req *http.Request, principal *auth.Principal) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), auth.PrincipalContextKey, principal))
}

func testAuthResult() *services.AuthResult {
	return &services.AuthResult{
		AccessToken:             "access-token",
		RefreshToken:            "refresh-token",
		ExpiresInMs:             3600000,
		Account:                 &models.Account{LoginID: "operator1", Name: "Test Operator", Role: "USER"},
		DaysUntilPasswordExpiry: 45,
		CurrentDeviceID:         "device-1",
		ActiveSessions: []*models.DeviceSession{
			{
				DeviceID:   "device-1",
				DeviceName: "Chrome Browser",
				DeviceType: models.DeviceTypePC,
				IPAddress:  "10.0.0.1",
				LastUsedAt: time.Now(),
				ExpiresAt:  time.Now().Add(time.Hour),
			},
		},
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, loginID, password string, client services.ClientContext) (*services.AuthResult, error) {
			assert.Equal(t, "operator1", loginID)
			return testAuthResult(), nil
		},
	}
	handler := NewAuthHandler(service, nil)

	body, _ := json.Marshal(LoginRequest{LoginID: "operator1", Password: "SecurePass123"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "access-token", resp.AccessToken)
	assert.Equal(t, "refresh-token", resp.RefreshToken)
	assert.Equal(t, "operator1", resp.UserInfo.LoginID)
	require.Len(t, resp.ActiveDevices, 1)
	assert.True(t, resp.ActiveDevices[0].Current)
}

func TestAuthHandler_Login_InvalidBody(t *testing.T) {
	handler := NewAuthHandler(&MockAuthService{}, nil)

	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader([]byte("{not json")))
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	handler := NewAuthHandler(&MockAuthService{}, nil)

	body, _ := json.Marshal(LoginRequest{LoginID: "operator1"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAuthHandler_Login_ErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		serviceErr     error
		expectedStatus int
		expectedCode   string
	}{
		{"invalid credentials", models.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"locked", models.ErrAccountLocked, http.StatusUnauthorized, "account_locked"},
		{"disabled", models.ErrAccountDisabled, http.StatusUnauthorized, "account_disabled"},
		{"internal", models.ErrInternalServer, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &MockAuthService{
				LoginFunc: func(ctx context.Context, loginID, password string, client services.ClientContext) (*services.AuthResult, error) {
					return nil, tt.serviceErr
				},
			}
			handler := NewAuthHandler(service, nil)

			body, _ := json.Marshal(LoginRequest{LoginID: "operator1", Password: "SecurePass123"})
			req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
			recorder := httptest.NewRecorder()

			handler.Login(recorder, req)

			assert.Equal(t, tt.expectedStatus, recorder.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedCode, resp["error"])
		})
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	service := &MockAuthService{
		RefreshFunc: func(ctx context.Context, loginID, deviceID string, client services.ClientContext) (*services.AuthResult, error) {
			assert.Equal(t, "operator1", loginID)
			assert.Equal(t, "device-1", deviceID)
			result := testAuthResult()
			result.CurrentDeviceID = ""
			result.ActiveSessions = nil
			return result, nil
		},
	}
	handler := NewAuthHandler(service, nil)

	req := httptest.NewRequest("POST", "/api/auth/refresh", nil)
	req = withPrincipal(req, &auth.Principal{
		LoginID: "operator1", DeviceID: "device-1", TokenType: models.TokenTypeRefresh,
	})
	recorder := httptest.NewRecorder()

	handler.Refresh(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "access-token", resp.AccessToken)
}

func TestAuthHandler_Refresh_SessionExpired(t *testing.T) {
	service := &MockAuthService{
		RefreshFunc: func(ctx context.Context, loginID, deviceID string, client services.ClientContext) (*services.AuthResult, error) {
			return nil, models.ErrSessionExpired
		},
	}
	handler := NewAuthHandler(service, nil)

	req := httptest.NewRequest("POST", "/api/auth/refresh", nil)
	req = withPrincipal(req, &auth.Principal{
		LoginID: "operator1", DeviceID: "device-1", TokenType: models.TokenTypeRefresh,
	})
	recorder := httptest.NewRecorder()

	handler.Refresh(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "session_expired", resp["error"])
}

func TestAuthHandler_Logout_NoPrincipal(t *testing.T) {
	handler := NewAuthHandler(&MockAuthService{}, nil)

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	recorder := httptest.NewRecorder()

	handler.Logout(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAuthHandler_Logout_RequiresDeviceBinding(t *testing.T) {
	handler := NewAuthHandler(&MockAuthService{}, nil)

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req = withPrincipal(req, &auth.Principal{LoginID: "operator1", TokenType: models.TokenTypeAccess})
	recorder := httptest.NewRecorder()

	handler.Logout(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAuthHandler_Logout_Success(t *testing.T) {
	var gotDeviceID string
	service := &MockAuthService{
		LogoutFunc: func(ctx context.Context, loginID, deviceID string) error {
			gotDeviceID = deviceID
			return nil
		},
	}
	handler := NewAuthHandler(service, nil)

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req = withPrincipal(req, &auth.Principal{
		LoginID: "operator1", DeviceID: "device-1", TokenType: models.TokenTypeRefresh,
	})
	recorder := httptest.NewRecorder()

	handler.Logout(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "device-1", gotDeviceID)
}

func TestAuthHandler_Sessions_MarksCurrentDevice(t *testing.T) {
	service := &MockAuthService{
		ActiveSessionsFunc: func(ctx context.Context, loginID string) ([]*models.DeviceSession, error) {
			return []*models.DeviceSession{
				{DeviceID: "device-1", ExpiresAt: time.Now().Add(time.Hour)},
				{DeviceID: "device-2", ExpiresAt: time.Now().Add(time.Hour)},
			}, nil
		},
	}
	handler := NewAuthHandler(service, nil)

	req := httptest.NewRequest("GET", "/api/auth/sessions", nil)
	req = withPrincipal(req, &auth.Principal{
		LoginID: "operator1", DeviceID: "device-2", TokenType: models.TokenTypeAccess,
	})
	recorder := httptest.NewRecorder()

	handler.Sessions(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp SessionsResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalCount)
	assert.False(t, resp.Sessions[0].Current)
	assert.True(t, resp.Sessions[1].Current)
}

func TestAuthHandler_RevokeDevice(t *testing.T) {
	var revoked string
	service := &MockAuthService{
		RevokeDeviceFunc: func(ctx context.Context, loginID, deviceID string) error {
			revoked = deviceID
			return nil
		},
	}
	handler := NewAuthHandler(service, nil)

	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("deviceId", "device-9")

	req := httptest.NewRequest("DELETE", "/api/auth/sessions/device-9", nil)
	req = withPrincipal(req, &auth.Principal{LoginID: "operator1", TokenType: models.TokenTypeAccess})
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	recorder := httptest.NewRecorder()

	handler.RevokeDevice(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "device-9", revoked)
}

func TestAuthHandler_ChangePassword_ErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		serviceErr     error
		expectedStatus int
	}{
		{"wrong current", models.ErrInvalidCredentials, http.StatusUnauthorized},
		{"mismatch", models.ErrPasswordMismatch, http.StatusBadRequest},
		{"unchanged", models.ErrPasswordUnchanged, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &MockAuthService{
				ChangePasswordFunc: func(ctx context.Context, loginID, cur, next, confirm string) error {
					return tt.serviceErr
				},
			}
			handler := NewAuthHandler(service, nil)

			body, _ := json.Marshal(ChangePasswordRequest{
				CurrentPassword: "OldPass123",
				NewPassword:     "NewPass123",
				ConfirmPassword: "NewPass123",
			})
			req := httptest.NewRequest("POST", "/api/auth/change-password", bytes.NewReader(body))
			req = withPrincipal(req, &auth.Principal{LoginID: "operator1", TokenType: models.TokenTypeAccess})
			recorder := httptest.NewRecorder()

			handler.ChangePassword(recorder, req)

			assert.Equal(t, tt.expectedStatus, recorder.Code)
		})
	}
}

func TestAuthHandler_Unlock(t *testing.T) {
	var unlocked string
	service := &MockAuthService{
		UnlockAccountFunc: func(ctx context.Context, loginID string) error {
			if loginID == "ghost" {
				return models.ErrNotFound
			}
			unlocked = loginID
			return nil
		},
	}
	handler := NewAuthHandler(service, nil)

	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("loginId", "operator1")
	req := httptest.NewRequest("POST", "/api/auth/unlock/operator1", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	recorder := httptest.NewRecorder()

	handler.Unlock(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "operator1", unlocked)

	routeCtx = chi.NewRouteContext()
	routeCtx.URLParams.Add("loginId", "ghost")
	req = httptest.NewRequest("POST", "/api/auth/unlock/ghost", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	recorder = httptest.NewRecorder()

	handler.Unlock(recorder, req)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
