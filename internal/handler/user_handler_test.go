package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/policyfeed/internal/middleware"
	"github.com/hitoshi/policyfeed/internal/model"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// mockSessionDeleter はSessionDeleterのモック実装。
type mockSessionDeleter struct {
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionDeleter) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func findSessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

// --- GET /api/users/me テスト ---

func TestUserHandler_Me(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, &mockSessionDeleter{}, UserHandlerConfig{})

	req := withOwner(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), "user-123")
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got meResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := meResponse{ID: "user-123", Email: "user-123@example.com", SharedBy: "user-123@example.com"}
	if got != want {
		t.Errorf("me = %+v, want %+v", got, want)
	}
}

// --- DELETE /api/users/me テスト ---

func TestUserHandler_Withdraw_Success(t *testing.T) {
	withdrawCalled := false
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			withdrawCalled = true
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return nil
		},
	}
	h := NewUserHandler(svc, &mockSessionDeleter{}, UserHandlerConfig{CookieSecure: true})

	req := withOwner(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "user-123")
	w := httptest.NewRecorder()
	h.Withdraw(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if !withdrawCalled {
		t.Error("expected Withdraw to be called")
	}
	c := findSessionCookie(resp)
	if c == nil || c.MaxAge >= 0 || !c.Secure {
		t.Errorf("session cookie = %+v, want expired secure cookie", c)
	}
}

func TestUserHandler_Withdraw_NoOwner_ReturnsUnauthorized(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, &mockSessionDeleter{}, UserHandlerConfig{})

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	w := httptest.NewRecorder()
	h.Withdraw(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestUserHandler_Withdraw_UserNotFound(t *testing.T) {
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			return model.NewUserNotFoundError()
		},
	}
	h := NewUserHandler(svc, &mockSessionDeleter{}, UserHandlerConfig{})

	req := withOwner(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "user-123")
	w := httptest.NewRecorder()
	h.Withdraw(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if findSessionCookie(w.Result()) != nil {
		t.Error("session cookie should not be cleared on failure")
	}
}

func TestUserHandler_Withdraw_ServiceError(t *testing.T) {
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			return errors.New("db error")
		},
	}
	h := NewUserHandler(svc, &mockSessionDeleter{}, UserHandlerConfig{})

	req := withOwner(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "user-123")
	w := httptest.NewRecorder()
	h.Withdraw(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// --- POST /api/users/logout テスト ---

func TestUserHandler_Logout_DeletesSession(t *testing.T) {
	var deleted string
	sessions := &mockSessionDeleter{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	h := NewUserHandler(&mockUserService{}, sessions, UserHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	req = withOwner(req, "user-123")
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deleted != "session-abc" {
		t.Errorf("deleted session = %q, want %q", deleted, "session-abc")
	}
	if c := findSessionCookie(w.Result()); c == nil || c.MaxAge >= 0 {
		t.Errorf("session cookie = %+v, want expired cookie", c)
	}
}

func TestUserHandler_Logout_DeleteFailureStillClearsCookie(t *testing.T) {
	sessions := &mockSessionDeleter{
		deleteByIDFn: func(ctx context.Context, id string) error {
			return errors.New("db error")
		},
	}
	h := NewUserHandler(&mockUserService{}, sessions, UserHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	req = withOwner(req, "user-123")
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if findSessionCookie(w.Result()) == nil {
		t.Error("expected session cookie to be cleared")
	}
}
