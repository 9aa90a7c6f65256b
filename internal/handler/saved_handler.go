package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/policyfeed/internal/item"
	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/sharing"
)

// SavedServiceInterface は保存記事の管理サービスインターフェース。
type SavedServiceInterface interface {
	ToggleSave(ctx context.Context, owner model.Owner, it model.Item) (*item.ToggleSaveResult, error)
	ListSaved(ctx context.Context, userID string) ([]model.SavedItem, error)
}

// ItemSharerInterface は保存記事の公開状態を切り替えるサービスインターフェース。
type ItemSharerInterface interface {
	ToggleItemPublic(ctx context.Context, owner model.Owner, ref string) (*sharing.ToggleResult, error)
}

// SavedHandler は保存記事のHTTPハンドラー。
type SavedHandler struct {
	saved  SavedServiceInterface
	sharer ItemSharerInterface
}

// NewSavedHandler はSavedHandlerを生成する。
func NewSavedHandler(saved SavedServiceInterface, sharer ItemSharerInterface) *SavedHandler {
	return &SavedHandler{
		saved:  saved,
		sharer: sharer,
	}
}

// ListSaved はユーザーの保存記事をsavedAt降順で返す。
// GET /api/saved
func (h *SavedHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	items, err := h.saved.ListSaved(r.Context(), owner.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(items))
}

// ToggleSave は記事の保存状態を切り替える。リクエストボディは記事そのもの。
// POST /api/saved
func (h *SavedHandler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var it model.Item
	if !decodeJSON(w, r, &it) {
		return
	}

	result, err := h.saved.ToggleSave(r.Context(), owner, it)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// TogglePublic は保存記事の公開状態を切り替え、最新のチーム記事一覧を返す。
// {id} には記事IDか記事リンクを指定できる。
// POST /api/saved/{id}/public
func (h *SavedHandler) TogglePublic(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	result, err := h.sharer.ToggleItemPublic(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
