package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/policyfeed/internal/model"
)

// PublicServiceInterface は公開射影とチーム記事を参照するサービスインターフェース。
type PublicServiceInterface interface {
	ListPublicFeeds(ctx context.Context) ([]model.PublicFeedEntry, error)
	ListPublicBuckets(ctx context.Context) ([]model.PublicBucketEntry, error)
	ListTeam(ctx context.Context) ([]model.SavedItem, error)
}

// PublicHandler は他のユーザーが公開したフィード、カテゴリ、記事のHTTPハンドラー。
type PublicHandler struct {
	service PublicServiceInterface
}

// NewPublicHandler はPublicHandlerを生成する。
func NewPublicHandler(service PublicServiceInterface) *PublicHandler {
	return &PublicHandler{service: service}
}

// ListFeeds は公開フィードの一覧を返す。
// GET /api/public/feeds
func (h *PublicHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.service.ListPublicFeeds(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(feeds))
}

// ListBuckets は公開カテゴリの一覧を返す。
// GET /api/public/buckets
func (h *PublicHandler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.service.ListPublicBuckets(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(buckets))
}

// ListItems は公開された保存記事（チーム記事）を返す。
// GET /api/public/items
func (h *PublicHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListTeam(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}
