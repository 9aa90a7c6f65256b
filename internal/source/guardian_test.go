package source

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

const guardianFixture = `{
  "response": {
    "status": "ok",
    "results": [
      {
        "id": "environment/2024/mar/01/forests",
        "webTitle": "Forests under pressure",
        "webUrl": "https://www.theguardian.com/environment/2024/mar/01/forests",
        "webPublicationDate": "2024-03-01T08:00:00Z",
        "fields": {"trailText": "<strong>Logging</strong> is rising", "thumbnail": "https://i.guim.co.uk/a.jpg", "byline": "Jane Doe"}
      },
      {
        "id": "environment/2024/mar/02/no-fields",
        "webTitle": "No fields",
        "webUrl": "https://www.theguardian.com/environment/2024/mar/02/no-fields",
        "webPublicationDate": "2024-03-02T08:00:00Z"
      }
    ]
  }
}`

func TestGuardianAdapter_Fetch(t *testing.T) {
	var requests []*http.Request
	ts := newFixtureServer(t, http.StatusOK, guardianFixture, &requests)

	a := NewGuardianAdapter(ts.Client(), newTextExtractor(), discardLogger(), "test-key")
	a.endpoint = ts.URL

	items, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("記事数 = %d, want 2", len(items))
	}

	q := requests[0].URL.Query()
	if q.Get("api-key") != "test-key" || q.Get("section") != "environment" || q.Get("page-size") != "20" {
		t.Errorf("クエリが不正です: %v", q)
	}
	if q.Get("show-fields") != "trailText,thumbnail,byline" {
		t.Errorf("show-fields = %q", q.Get("show-fields"))
	}

	first := items[0]
	if first.Title != "Forests under pressure" || first.Description != "Logging is rising" {
		t.Errorf("変換結果が不正です: %+v", first)
	}
	if first.Source != "The Guardian" || first.SourceURL != GuardianSourceURL {
		t.Errorf("Source/SourceURL = %q/%q", first.Source, first.SourceURL)
	}
	if first.Author == nil || *first.Author != "Jane Doe" {
		t.Errorf("Author = %v", first.Author)
	}
	if first.Image == nil || *first.Image != "https://i.guim.co.uk/a.jpg" {
		t.Errorf("Image = %v", first.Image)
	}

	second := items[1]
	if second.Author != nil || second.Image != nil || second.Description != "" {
		t.Errorf("fieldsなしの記事は任意項目が空であるべきです: %+v", second)
	}
}

func TestGuardianAdapter_Fetch_MissingKey(t *testing.T) {
	a := NewGuardianAdapter(http.DefaultClient, newTextExtractor(), discardLogger(), "")

	items, err := a.Fetch(context.Background())
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("ErrMissingCredential を期待しましたが %v", err)
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Key != "GUARDIAN_API_KEY" {
		t.Errorf("ConfigError.Key = %v", cfgErr)
	}
	if items != nil {
		t.Errorf("設定エラー時は記事を返さないべきです: %v", items)
	}
}

func TestGuardianAdapter_Fetch_FailureIsSwallowed(t *testing.T) {
	ts := newFixtureServer(t, http.StatusUnauthorized, `{"message":"bad key"}`, nil)

	a := NewGuardianAdapter(ts.Client(), newTextExtractor(), discardLogger(), "secret-key")
	a.endpoint = ts.URL

	items, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("取得失敗はエラーを返さないべきです: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("空スライスを返すべきです: %v", items)
	}
}

func TestGuardianAdapter_LogDoesNotLeakKey(t *testing.T) {
	ts := newFixtureServer(t, http.StatusInternalServerError, "", nil)

	var buf bytes.Buffer
	logger := bufferLogger(&buf)
	a := NewGuardianAdapter(ts.Client(), newTextExtractor(), logger, "secret-key")
	a.endpoint = ts.URL

	_, _ = a.Fetch(context.Background())
	if strings.Contains(buf.String(), "secret-key") {
		t.Errorf("ログにAPIキーが含まれています: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "guardian") {
		t.Errorf("ソース名が記録されていません: %s", buf.String())
	}
}
