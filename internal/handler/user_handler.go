package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/policyfeed/internal/middleware"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// 公開射影、保存記事、設定、セッション、ユーザー本体を削除し、取得済みストリームを破棄する。
	Withdraw(ctx context.Context, userID string) error
}

// SessionDeleter はログアウト時にセッションを削除するインターフェース。
type SessionDeleter interface {
	DeleteByID(ctx context.Context, id string) error
}

// UserHandlerConfig はセッションCookieの属性設定。
type UserHandlerConfig struct {
	CookieSecure bool
	CookieDomain string
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service  UserServiceInterface
	sessions SessionDeleter
	config   UserHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, sessions SessionDeleter, config UserHandlerConfig) *UserHandler {
	return &UserHandler{
		service:  service,
		sessions: sessions,
		config:   config,
	}
}

// meResponse はログイン中のユーザー情報のAPIレスポンス。
type meResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	SharedBy string `json:"sharedBy"`
}

// Me はログイン中のユーザー情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:       owner.UserID,
		Email:    owner.Email,
		SharedBy: owner.SharedBy(),
	})
}

// Logout は現在のセッションを削除し、セッションCookieを失効させる。
// POST /api/users/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireOwner(w, r); !ok {
		return
	}

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.DeleteByID(r.Context(), cookie.Value); err != nil {
			// Cookieは失効させるのでログアウト自体は成功扱いとする
			slog.Error("failed to delete session", slog.String("error", err.Error()))
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), owner.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
