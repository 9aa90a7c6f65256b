package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/policyfeed/internal/item"
	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/view"
)

// StreamServiceInterface はストリームの更新と参照を提供するサービスインターフェース。
type StreamServiceInterface interface {
	// Refresh は購読とシステムソースを取得し直し、保存済みのストリームを返す。
	Refresh(ctx context.Context, userID string) ([]model.Item, error)
	// Items は保存済みのストリームを返す。
	Items(userID string) []model.Item
}

// SourceServiceInterface はシステムソースを単独で取得するサービスインターフェース。
type SourceServiceInterface interface {
	Source(ctx context.Context, name string) ([]model.Item, error)
}

// PreferencesLoader は表示に必要な非表示ソースを読み込むためのインターフェース。
type PreferencesLoader interface {
	Load(ctx context.Context, userID string) (*model.Preferences, error)
}

// SavedListerInterface は保存記事とチーム記事の一覧を返すインターフェース。
type SavedListerInterface interface {
	ListSaved(ctx context.Context, userID string) ([]model.SavedItem, error)
	ListTeam(ctx context.Context) ([]model.SavedItem, error)
}

// StreamHandler はストリーム表示のHTTPハンドラー。
type StreamHandler struct {
	stream  StreamServiceInterface
	sources SourceServiceInterface
	prefs   PreferencesLoader
	saved   SavedListerInterface
}

// NewStreamHandler はStreamHandlerを生成する。
func NewStreamHandler(stream StreamServiceInterface, sources SourceServiceInterface, prefs PreferencesLoader, saved SavedListerInterface) *StreamHandler {
	return &StreamHandler{
		stream:  stream,
		sources: sources,
		prefs:   prefs,
		saved:   saved,
	}
}

// streamResponse はストリーム表示のAPIレスポンス。
type streamResponse struct {
	Items           []model.Item `json:"items"`
	Tab             string       `json:"tab"`
	CurrentCategory string       `json:"currentCategory"`
	SortBy          string       `json:"sortBy"`
	Order           string       `json:"order"`
	SavedIDs        []string     `json:"savedIds"`
	SharedIDs       []string     `json:"sharedIds"`
}

// refreshResponse はストリーム更新のAPIレスポンス。
type refreshResponse struct {
	Items []model.Item `json:"items"`
	Count int          `json:"count"`
}

// GetStream は保存済みストリームからタブ、検索、並び替えを適用した一覧を返す。
// GET /api/stream?tab=&q=&sort=&order=
func (h *StreamHandler) GetStream(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	in := view.Input{
		Items:  h.stream.Items(owner.UserID),
		Tab:    query.Get("tab"),
		Search: query.Get("q"),
		SortBy: query.Get("sort"),
		Order:  query.Get("order"),
	}
	if in.Tab == "" {
		in.Tab = view.TabAll
	}
	if in.SortBy == "" {
		in.SortBy = view.SortByDate
	}
	if in.Order == "" {
		in.Order = view.OrderDesc
	}

	prefs, err := h.prefs.Load(r.Context(), owner.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if prefs != nil {
		in.Hidden = view.HiddenSet(prefs.HiddenFeeds)
	}

	saved, err := h.saved.ListSaved(r.Context(), owner.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	in.Saved = model.ItemsOf(saved)

	if in.Tab == view.TabTeam {
		team, err := h.saved.ListTeam(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		in.Team = model.ItemsOf(team)
	}

	items := view.Derive(in)
	resp := streamResponse{
		Items:           nonNil(items),
		Tab:             in.Tab,
		CurrentCategory: view.CurrentCategory(in.Tab),
		SortBy:          in.SortBy,
		Order:           in.Order,
		SavedIDs:        []string{},
		SharedIDs:       []string{},
	}
	for _, it := range items {
		if item.IsSaved(saved, it) {
			resp.SavedIDs = append(resp.SavedIDs, it.ID)
		}
		if item.IsShared(saved, it) {
			resp.SharedIDs = append(resp.SharedIDs, it.ID)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Refresh はユーザーのストリームを取得し直す。
// POST /api/stream/refresh
func (h *StreamHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	items, err := h.stream.Refresh(r.Context(), owner.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{Items: nonNil(items), Count: len(items)})
}

// GetSource は名前で指定したシステムソースの記事を返す。
// APIキー未設定の場合は500 CONFIGURATION_ERRORを返す。
// GET /api/sources/{name}
func (h *StreamHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	items, err := h.sources.Source(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(items))
}
