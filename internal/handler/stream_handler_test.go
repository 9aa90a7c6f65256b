package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hitoshi/policyfeed/internal/hashid"
	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/source"
)

// --- モック定義 ---

// mockStreamService はStreamServiceInterfaceのモック実装。
type mockStreamService struct {
	refreshFn func(ctx context.Context, userID string) ([]model.Item, error)
	itemsFn   func(userID string) []model.Item
}

func (m *mockStreamService) Refresh(ctx context.Context, userID string) ([]model.Item, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockStreamService) Items(userID string) []model.Item {
	if m.itemsFn != nil {
		return m.itemsFn(userID)
	}
	return nil
}

// mockSourceService はSourceServiceInterfaceのモック実装。
type mockSourceService struct {
	sourceFn func(ctx context.Context, name string) ([]model.Item, error)
}

func (m *mockSourceService) Source(ctx context.Context, name string) ([]model.Item, error) {
	if m.sourceFn != nil {
		return m.sourceFn(ctx, name)
	}
	return nil, nil
}

// mockPreferencesLoader はPreferencesLoaderのモック実装。
type mockPreferencesLoader struct {
	loadFn func(ctx context.Context, userID string) (*model.Preferences, error)
}

func (m *mockPreferencesLoader) Load(ctx context.Context, userID string) (*model.Preferences, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, userID)
	}
	return &model.Preferences{UserID: userID}, nil
}

// mockSavedLister はSavedListerInterfaceのモック実装。
type mockSavedLister struct {
	listSavedFn func(ctx context.Context, userID string) ([]model.SavedItem, error)
	listTeamFn  func(ctx context.Context) ([]model.SavedItem, error)
}

func (m *mockSavedLister) ListSaved(ctx context.Context, userID string) ([]model.SavedItem, error) {
	if m.listSavedFn != nil {
		return m.listSavedFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockSavedLister) ListTeam(ctx context.Context) ([]model.SavedItem, error) {
	if m.listTeamFn != nil {
		return m.listTeamFn(ctx)
	}
	return nil, nil
}

// streamItem はリンクから記事IDを導出したテスト用記事を返す。
func streamItem(link, title, pubDate, sourceURL string) model.Item {
	return model.Item{
		ID:         hashid.ForItem(link),
		Title:      title,
		Link:       link,
		PubDate:    pubDate,
		SourceURL:  sourceURL,
		Categories: []string{},
	}
}

func decodeStreamResponse(t *testing.T, w *httptest.ResponseRecorder) streamResponse {
	t.Helper()
	var resp streamResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func itemTitles(items []model.Item) []string {
	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}
	return titles
}

// --- GET /api/stream テスト ---

func TestStreamHandler_GetStream_DefaultsToAllByDateDesc(t *testing.T) {
	older := streamItem("https://a.example.com/1", "older", "2024-01-01T00:00:00Z", "https://a.example.com/feed")
	newer := streamItem("https://a.example.com/2", "newer", "2024-02-01T00:00:00Z", "https://a.example.com/feed")

	stream := &mockStreamService{
		itemsFn: func(userID string) []model.Item {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return []model.Item{older, newer}
		},
	}
	h := NewStreamHandler(stream, &mockSourceService{}, &mockPreferencesLoader{}, &mockSavedLister{})

	req := withOwner(httptest.NewRequest(http.MethodGet, "/api/stream", nil), "user-123")
	w := httptest.NewRecorder()
	h.GetStream(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeStreamResponse(t, w)
	if diff := cmp.Diff([]string{"newer", "older"}, itemTitles(resp.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if resp.Tab != "All" || resp.SortBy != "date" || resp.Order != "desc" {
		t.Errorf("tab/sort/order = %q/%q/%q, want All/date/desc", resp.Tab, resp.SortBy, resp.Order)
	}
	if resp.CurrentCategory != "" {
		t.Errorf("currentCategory = %q, want empty", resp.CurrentCategory)
	}
}

func TestStreamHandler_GetStream_HiddenSourcesAndSearch(t *testing.T) {
	visible := streamItem("https://a.example.com/1", "Biomass subsidy", "2024-01-01T00:00:00Z", "https://a.example.com/feed")
	other := streamItem("https://a.example.com/2", "Solar news", "2024-01-02T00:00:00Z", "https://a.example.com/feed")
	hidden := streamItem("https://b.example.com/1", "Biomass hidden", "2024-01-03T00:00:00Z", "https://b.example.com/feed")

	stream := &mockStreamService{
		itemsFn: func(string) []model.Item { return []model.Item{visible, other, hidden} },
	}
	prefs := &mockPreferencesLoader{
		loadFn: func(ctx context.Context, userID string) (*model.Preferences, error) {
			return &model.Preferences{UserID: userID, HiddenFeeds: []string{"https://b.example.com/feed"}}, nil
		},
	}
	h := NewStreamHandler(stream, &mockSourceService{}, prefs, &mockSavedLister{})

	req := withOwner(httptest.NewRequest(http.MethodGet, "/api/stream?q=BIOMASS", nil), "user-123")
	w := httptest.NewRecorder()
	h.GetStream(w, req)

	resp := decodeStreamResponse(t, w)
	if diff := cmp.Diff([]string{"Biomass subsidy"}, itemTitles(resp.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamHandler_GetStream_CategoryTab(t *testing.T) {
	tagged := streamItem("https://a.example.com/1", "tagged", "2024-01-01T00:00:00Z", "https://a.example.com/feed")
	tagged.Categories = []string{"Forests"}
	untagged := streamItem("https://a.example.com/2", "untagged", "2024-01-02T00:00:00Z", "https://a.example.com/feed")

	stream := &mockStreamService{
		itemsFn: func(string) []model.Item { return []model.Item{tagged, untagged} },
	}
	h := NewStreamHandler(stream, &mockSourceService{}, &mockPreferencesLoader{}, &mockSavedLister{})

	req := withOwner(httptest.NewRequest(http.MethodGet, "/api/stream?tab=Forests&sort=title&order=asc", nil), "user-123")
	w := httptest.NewRecorder()
	h.GetStream(w, req)

	resp := decodeStreamResponse(t, w)
	if diff := cmp.Diff([]string{"tagged"}, itemTitles(resp.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if resp.CurrentCategory != "Forests" {
		t.Errorf("currentCategory = %q, want %q", resp.CurrentCategory, "Forests")
	}
}

func TestStreamHandler_GetStream_SavedAndSharedIDs(t *testing.T) {
	a := streamItem("https://a.example.com/1", "a", "2024-01-01T00:00:00Z", "https://a.example.com/feed")
	b := streamItem("https://a.example.com/2", "b", "2024-01-02T00:00:00Z", "https://a.example.com/feed")

	stream := &mockStreamService{
		itemsFn: func(string) []model.Item { return []model.Item{a, b} },
	}
	saved := &mockSavedLister{
		listSavedFn: func(ctx context.Context, userID string) ([]model.SavedItem, error) {
			return []model.SavedItem{
				{Item: a, UserID: userID},
				{Item: b, UserID: userID, IsPublic: true},
			}, nil
		},
		listTeamFn: func(ctx context.Context) ([]model.SavedItem, error) {
			t.Error("ListTeam should not be called outside the Team tab")
			return nil, nil
		},
	}
	h := NewStreamHandler(stream, &mockSourceService{}, &mockPreferencesLoader{}, saved)

	req := withOwner(httptest.NewRequest(http.MethodGet, "/api/stream", nil), "user-123")
	w := httptest.NewRecorder()
	h.GetStream(w, req)

	resp := decodeStreamResponse(t, w)
	if diff := cmp.Diff([]string{b.ID, a.ID}, resp.SavedIDs); diff != "" {
		t.Errorf("savedIds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{b.ID}, resp.SharedIDs); diff != "" {
		t.Errorf("sharedIds mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamHandler_GetStream_TeamTab(t *testing.T) {
	shared := streamItem("https://c.example.com/1", "team pick", "2024-01-01T00:00:00Z", "https://c.example.com/feed")

	saved := &mockSavedLister{
		listTeamFn: func(ctx context.Context) ([]model.SavedItem, error) {
			return []model.SavedItem{{Item: shared, UserID: "someone-else", IsPublic: true}}, nil
		},
	}
	h := NewStreamHandler(&mockStreamService{}, &mockSourceService{}, &mockPreferencesLoader{}, saved)

	req := withOwner(httptest.NewRequest(http.MethodGet, "/api/stream?tab=Team", nil), "user-123")
	w := httptest.NewRecorder()
	h.GetStream(w, req)

	resp := decodeStreamResponse(t, w)
	if diff := cmp.Diff([]string{"team pick"}, itemTitles(resp.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamHandler_GetStream_EmptyStreamReturnsEmptyArrays(t *testing.T) {
	h := NewStreamHandler(&mockStreamService{}, &mockSourceService{}, &mockPreferencesLoader{}, &mockSavedLister{})

	req := withOwner(httptest.NewRequest(http.MethodGet, "/api/stream", nil), "user-123")
	w := httptest.NewRecorder()
	h.GetStream(w, req)

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, key := range []string{"items", "savedIds", "sharedIds"} {
		if string(raw[key]) != "[]" {
			t.Errorf("%s = %s, want []", key, raw[key])
		}
	}
}

func TestStreamHandler_GetStream_PreferencesError(t *testing.T) {
	prefs := &mockPreferencesLoader{
		loadFn: func(ctx context.Context, userID string) (*model.Preferences, error) {
			return nil, errors.New("db error")
		},
	}
	h := NewStreamHandler(&mockStreamService{}, &mockSourceService{}, prefs, &mockSavedLister{})

	req := withOwner(httptest.NewRequest(http.MethodGet, "/api/stream", nil), "user-123")
	w := httptest.NewRecorder()
	h.GetStream(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestStreamHandler_GetStream_NoOwner_ReturnsUnauthorized(t *testing.T) {
	h := NewStreamHandler(&mockStreamService{}, &mockSourceService{}, &mockPreferencesLoader{}, &mockSavedLister{})

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	w := httptest.NewRecorder()
	h.GetStream(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- POST /api/stream/refresh テスト ---

func TestStreamHandler_Refresh_Success(t *testing.T) {
	items := []model.Item{
		streamItem("https://a.example.com/1", "a", "2024-01-01T00:00:00Z", "https://a.example.com/feed"),
		streamItem("https://a.example.com/2", "b", "2024-01-02T00:00:00Z", "https://a.example.com/feed"),
	}
	stream := &mockStreamService{
		refreshFn: func(ctx context.Context, userID string) ([]model.Item, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return items, nil
		},
	}
	h := NewStreamHandler(stream, &mockSourceService{}, &mockPreferencesLoader{}, &mockSavedLister{})

	req := withOwner(httptest.NewRequest(http.MethodPost, "/api/stream/refresh", nil), "user-123")
	w := httptest.NewRecorder()
	h.Refresh(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp refreshResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Items) != 2 {
		t.Errorf("count = %d, len(items) = %d, want 2/2", resp.Count, len(resp.Items))
	}
}

func TestStreamHandler_Refresh_Error(t *testing.T) {
	stream := &mockStreamService{
		refreshFn: func(ctx context.Context, userID string) ([]model.Item, error) {
			return nil, errors.New("preferences unavailable")
		},
	}
	h := NewStreamHandler(stream, &mockSourceService{}, &mockPreferencesLoader{}, &mockSavedLister{})

	req := withOwner(httptest.NewRequest(http.MethodPost, "/api/stream/refresh", nil), "user-123")
	w := httptest.NewRecorder()
	h.Refresh(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// --- GET /api/sources/{name} テスト ---

func TestStreamHandler_GetSource(t *testing.T) {
	tests := []struct {
		name       string
		sourceErr  error
		wantStatus int
		wantCode   string
	}{
		{"成功", nil, http.StatusOK, ""},
		{"APIキー未設定", &source.ConfigError{Source: "nyt", Key: "NYT_API_KEY"}, http.StatusInternalServerError, model.ErrCodeConfiguration},
		{"未知のソース", model.NewUnknownSourceError("bogus"), http.StatusNotFound, model.ErrCodeUnknownSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := &mockSourceService{
				sourceFn: func(ctx context.Context, name string) ([]model.Item, error) {
					if name != "nyt" {
						t.Errorf("name = %q, want %q", name, "nyt")
					}
					if tt.sourceErr != nil {
						return nil, tt.sourceErr
					}
					return []model.Item{{ID: "nyt-1", Title: "t"}}, nil
				},
			}
			h := NewStreamHandler(&mockStreamService{}, sources, &mockPreferencesLoader{}, &mockSavedLister{})

			req := httptest.NewRequest(http.MethodGet, "/api/sources/nyt", nil)
			req = withChiURLParam(req, "name", "nyt")
			w := httptest.NewRecorder()
			h.GetSource(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if got := parseAPIErrorResponse(t, w)["code"]; got != tt.wantCode {
					t.Errorf("code = %q, want %q", got, tt.wantCode)
				}
			}
		})
	}
}
