package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/policyfeed/internal/middleware"
	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/subscription"
)

// PreferencesServiceInterface は購読フィードとカテゴリの管理サービスインターフェース。
type PreferencesServiceInterface interface {
	Load(ctx context.Context, userID string) (*model.Preferences, error)
	AddFeed(ctx context.Context, owner model.Owner, url, name string) (*model.Preferences, bool, error)
	RemoveFeed(ctx context.Context, owner model.Owner, url string) (*model.Preferences, error)
	UpdateFeed(ctx context.Context, owner model.Owner, url, name string, isPublic bool) (*subscription.UpdateResult, error)
	ToggleHidden(ctx context.Context, userID, url string) (*model.Preferences, error)
	AddCategory(ctx context.Context, owner model.Owner, name, keywordsCSV string, isPublic bool) (*model.Preferences, error)
	EditCategory(ctx context.Context, owner model.Owner, orig, name, keywordsCSV string, isPublic bool) (*model.Preferences, error)
	RemoveCategory(ctx context.Context, owner model.Owner, name string) (*model.Preferences, error)
	ImportOPML(ctx context.Context, userID string, r io.Reader) (*subscription.ImportResult, error)
	ExportOPML(ctx context.Context, userID string) ([]byte, error)
}

// PreferencesHandler は購読フィード、カテゴリ、非表示ソースのHTTPハンドラー。
type PreferencesHandler struct {
	service PreferencesServiceInterface
}

// NewPreferencesHandler はPreferencesHandlerを生成する。
func NewPreferencesHandler(service PreferencesServiceInterface) *PreferencesHandler {
	return &PreferencesHandler{
		service: service,
	}
}

// --- リクエスト・レスポンス型 ---

// preferencesResponse はユーザー設定のAPIレスポンス。
type preferencesResponse struct {
	Feeds       []model.FeedSubscription `json:"feeds"`
	Categories  []model.Category         `json:"categories"`
	HiddenFeeds []string                 `json:"hiddenFeeds"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

// feedUpdateResponse はフィード更新のAPIレスポンス。
type feedUpdateResponse struct {
	preferencesResponse
	NeedsRefresh bool `json:"needsRefresh"`
}

// feedRequest はフィード追加・更新・非表示切り替えのリクエストボディ。
type feedRequest struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	IsPublic bool   `json:"isPublic"`
}

// categoryRequest はカテゴリ追加・編集のリクエストボディ。
// keywordsはカンマ区切りの文字列で受け取る。
type categoryRequest struct {
	Name     string `json:"name"`
	Keywords string `json:"keywords"`
	IsPublic bool   `json:"isPublic"`
}

func toPreferencesResponse(p *model.Preferences) preferencesResponse {
	return preferencesResponse{
		Feeds:       nonNil(p.Feeds),
		Categories:  nonNil(p.Categories),
		HiddenFeeds: nonNil(p.HiddenFeeds),
		UpdatedAt:   p.UpdatedAt,
	}
}

// GetPreferences はユーザー設定を返す。
// GET /api/preferences
func (h *PreferencesHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	prefs, err := h.service.Load(r.Context(), owner.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}

// AddFeed はフィードを購読に追加する。登録済みのURLには409を返す。
// POST /api/feeds
func (h *PreferencesHandler) AddFeed(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req feedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prefs, added, err := h.service.AddFeed(r.Context(), owner, req.URL, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !added {
		middleware.WriteAPIError(w, model.NewFeedAlreadyExistsError(strings.TrimSpace(req.URL)))
		return
	}

	writeJSON(w, http.StatusCreated, toPreferencesResponse(prefs))
}

// UpdateFeed はフィードの表示名と公開状態を更新する。
// PATCH /api/feeds
func (h *PreferencesHandler) UpdateFeed(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req feedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.UpdateFeed(r.Context(), owner, req.URL, req.Name, req.IsPublic)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, feedUpdateResponse{
		preferencesResponse: toPreferencesResponse(result.Preferences),
		NeedsRefresh:        result.NeedsRefresh,
	})
}

// RemoveFeed はフィードの購読を解除する。
// DELETE /api/feeds?url=
func (h *PreferencesHandler) RemoveFeed(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		middleware.WriteAPIError(w, model.NewInvalidURLError("urlパラメータが必要です"))
		return
	}

	prefs, err := h.service.RemoveFeed(r.Context(), owner, url)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}

// ToggleHidden はソースの非表示状態を切り替える。
// POST /api/feeds/hidden
func (h *PreferencesHandler) ToggleHidden(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req feedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		middleware.WriteAPIError(w, model.NewInvalidURLError("URLが空です"))
		return
	}

	prefs, err := h.service.ToggleHidden(r.Context(), owner.UserID, req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}

// ImportOPML はOPML文書から購読を追加する。
// 新規フィードが0件でもエラーにはせず added=0 を返す。
// POST /api/feeds/import
func (h *PreferencesHandler) ImportOPML(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxOPMLSize)
	result, err := h.service.ImportOPML(r.Context(), owner.UserID, body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ExportOPML は購読フィードをOPML文書としてダウンロードさせる。
// GET /api/feeds/export
func (h *PreferencesHandler) ExportOPML(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	data, err := h.service.ExportOPML(r.Context(), owner.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/x-opml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="policyfeed.opml"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// AddCategory はカテゴリを追加する。
// POST /api/categories
func (h *PreferencesHandler) AddCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prefs, err := h.service.AddCategory(r.Context(), owner, req.Name, req.Keywords, req.IsPublic)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPreferencesResponse(prefs))
}

// EditCategory はカテゴリの名前、キーワード、公開状態を変更する。
// PUT /api/categories/{name}
func (h *PreferencesHandler) EditCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prefs, err := h.service.EditCategory(r.Context(), owner, chi.URLParam(r, "name"), req.Name, req.Keywords, req.IsPublic)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}

// RemoveCategory はカテゴリを削除する。
// DELETE /api/categories/{name}
func (h *PreferencesHandler) RemoveCategory(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	prefs, err := h.service.RemoveCategory(r.Context(), owner, chi.URLParam(r, "name"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}
