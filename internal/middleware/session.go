// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/policyfeed/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
// セッションの発行は外部の認証基盤が行う。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// ownerContextKey はリクエストコンテキストに操作ユーザーを格納するためのキー。
var ownerContextKey = contextKey("owner")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// UserFinder はユーザーの検索に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// セッションのユーザーを解決し、共有者名に使うメールアドレスと共にコンテキストへ注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(sessions SessionFinder, users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. セッションの有効性を検証
			session, err := sessions.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. ユーザーを解決
			user, err := users.FindByID(r.Context(), session.UserID)
			if err != nil {
				slog.Error("failed to find session user",
					slog.String("user_id", session.UserID),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 4. 操作ユーザーをコンテキストに注入
			owner := model.Owner{UserID: user.ID, Email: user.Email}
			next.ServeHTTP(w, r.WithContext(ContextWithOwner(r.Context(), owner)))
		})
	}
}

// OwnerFromContext はリクエストコンテキストから操作ユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func OwnerFromContext(ctx context.Context) (model.Owner, error) {
	owner, ok := ctx.Value(ownerContextKey).(model.Owner)
	if !ok || owner.UserID == "" {
		return model.Owner{}, fmt.Errorf("owner not found in context")
	}
	return owner, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	owner, err := OwnerFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return owner.UserID, nil
}

// ContextWithOwner はコンテキストに操作ユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithOwner(ctx context.Context, owner model.Owner) context.Context {
	return context.WithValue(ctx, ownerContextKey, owner)
}

// ContextWithUserID はメールアドレスを持たない操作ユーザーをコンテキストに注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithOwner(ctx, model.Owner{UserID: userID})
}
