package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/policyfeed/internal/middleware"
	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/source"
)

// --- テストヘルパー ---

// withOwner はテスト用にコンテキストへ操作ユーザーを注入するヘルパー。
func withOwner(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithOwner(r.Context(), model.Owner{UserID: userID, Email: userID + "@example.com"})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// --- handleServiceError テスト ---

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"APIError", model.NewFeedNotFoundError("https://example.com/feed"), http.StatusNotFound, model.ErrCodeFeedNotFound},
		{"ラップされたAPIError", errors.Join(errors.New("wrap"), model.NewNotOwnerError()), http.StatusForbidden, model.ErrCodeNotOwner},
		{"ConfigError", &source.ConfigError{Source: "guardian", Key: "GUARDIAN_API_KEY"}, http.StatusInternalServerError, model.ErrCodeConfiguration},
		{"その他のエラー", errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handleServiceError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := parseAPIErrorResponse(t, w)["code"]; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestRequireOwner_NoOwner_ReturnsUnauthorized(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	w := httptest.NewRecorder()

	if _, ok := requireOwner(w, req); ok {
		t.Fatal("requireOwner() = true, want false")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestNonNil(t *testing.T) {
	var items []model.Item
	if got := nonNil(items); got == nil || len(got) != 0 {
		t.Errorf("nonNil(nil) = %v, want empty slice", got)
	}
}
