package source

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/policyfeed/internal/hashid"
	"github.com/hitoshi/policyfeed/internal/model"
)

const (
	// NYTName はRegistryでの識別名。
	NYTName = "nyt"
	// NYTSourceURL はNYT由来の全記事に設定されるsourceUrl。
	NYTSourceURL = "https://www.nytimes.com/section/climate"

	nytEndpoint     = "https://api.nytimes.com/svc/search/v2/articlesearch.json"
	nytSourceName   = "New York Times"
	nytAPIKeyEnv    = "NYT_API_KEY"
	nytImageHost    = "https://static01.nyt.com/"
	nytUntitled     = "Untitled Article"
	nytDefaultDesk  = "NYT"
	nytPages        = 2
	nytSearchQuery  = `forest endangered bioenergy logging "climate change"`
	nytSearchFilter = `(desk:("Environment" "Science" "Climate" "U.S." "World" "Foreign" "Politics" "Washington" "Business" "Magazine" "Opinion") OR section.name:("Climate" "Environment" "Science" "U.S." "World")) AND NOT section.name:("Arts" "Music" "Movies" "Theater" "Style")`
)

// NYTAdapter はNew York Timesの記事検索APIから環境関連記事を取得する。
type NYTAdapter struct {
	client   HTTPDoer
	text     TextExtractor
	logger   *slog.Logger
	apiKey   string
	endpoint string // テスト用に差し替え可能
}

// NewNYTAdapter はNYTAdapterの新しいインスタンスを生成する。
func NewNYTAdapter(client HTTPDoer, text TextExtractor, logger *slog.Logger, apiKey string) *NYTAdapter {
	return &NYTAdapter{
		client:   client,
		text:     text,
		logger:   logger,
		apiKey:   apiKey,
		endpoint: nytEndpoint,
	}
}

// Name はSystemSourceを実装する。
func (a *NYTAdapter) Name() string { return NYTName }

// SourceURL はSystemSourceを実装する。
func (a *NYTAdapter) SourceURL() string { return NYTSourceURL }

type nytResponse struct {
	Response struct {
		Docs []nytDoc `json:"docs"`
	} `json:"response"`
}

type nytDoc struct {
	ID          string `json:"_id"`
	URI         string `json:"uri"`
	WebURL      string `json:"web_url"`
	Snippet     string `json:"snippet"`
	PubDate     string `json:"pub_date"`
	Desk        string `json:"desk"`
	NewsDesk    string `json:"news_desk"`
	SectionName string `json:"section_name"`
	Headline    *struct {
		Main string `json:"main"`
	} `json:"headline"`
	Byline *struct {
		Original string `json:"original"`
	} `json:"byline"`
	Multimedia nytMultimedia `json:"multimedia"`
}

type multimediaKind int

const (
	multimediaAbsent multimediaKind = iota
	multimediaList
	multimediaObject
)

// nytMultimedia はAPIの版によって配列またはキー付きオブジェクトで返るmultimediaを表す。
type nytMultimedia struct {
	kind   multimediaKind
	list   []nytMedia
	object nytMediaObject
}

type nytMedia struct {
	URL     string `json:"url"`
	Subtype string `json:"subtype"`
}

type nytMediaObject struct {
	Default   *nytMedia `json:"default"`
	Thumbnail *nytMedia `json:"thumbnail"`
}

// UnmarshalJSON は先頭バイトで形を判定する。想定外の形は画像なしとして扱い、記事全体は捨てない。
func (m *nytMultimedia) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*m = nytMultimedia{}
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var list []nytMedia
		if err := json.Unmarshal(trimmed, &list); err == nil {
			m.kind = multimediaList
			m.list = list
		}
	case '{':
		var obj nytMediaObject
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			m.kind = multimediaObject
			m.object = obj
		}
	}
	return nil
}

// imageURL はxlarge、thumbnail、先頭要素の順に画像を選び、相対URLを絶対URLにする。
func (m nytMultimedia) imageURL() string {
	var raw string
	switch m.kind {
	case multimediaList:
		raw = pickNYTMedia(m.list)
	case multimediaObject:
		if m.object.Default != nil && m.object.Default.URL != "" {
			raw = m.object.Default.URL
		} else if m.object.Thumbnail != nil {
			raw = m.object.Thumbnail.URL
		}
	}

	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http") {
		return raw
	}
	return nytImageHost + strings.TrimPrefix(raw, "/")
}

func pickNYTMedia(list []nytMedia) string {
	for _, subtype := range []string{"xlarge", "thumbnail"} {
		for _, media := range list {
			if media.Subtype == subtype {
				return media.URL
			}
		}
	}
	if len(list) > 0 {
		return list[0].URL
	}
	return ""
}

// Fetch は検索結果の先頭2ページを並行に取得し、ページ順に連結する。
// 片方のページが失敗した場合もう一方の結果だけを返す。
func (a *NYTAdapter) Fetch(ctx context.Context) ([]model.Item, error) {
	if a.apiKey == "" {
		return nil, &ConfigError{Source: NYTName, Key: nytAPIKeyEnv}
	}

	pages := make([][]nytDoc, nytPages)
	var g errgroup.Group
	for page := 0; page < nytPages; page++ {
		g.Go(func() error {
			pages[page] = a.fetchPage(ctx, page)
			return nil
		})
	}
	_ = g.Wait()

	items := make([]model.Item, 0)
	for _, docs := range pages {
		for _, doc := range docs {
			if item, ok := a.convert(doc); ok {
				items = append(items, item)
			}
		}
	}
	return items, nil
}

func (a *NYTAdapter) fetchPage(ctx context.Context, page int) []nytDoc {
	q := url.Values{}
	q.Set("q", nytSearchQuery)
	q.Set("fq", nytSearchFilter)
	q.Set("sort", "newest")
	q.Set("page", strconv.Itoa(page))
	logURL := a.endpoint + "?" + q.Encode()
	q.Set("api-key", a.apiKey)

	var resp nytResponse
	if err := getJSON(ctx, a.client, a.endpoint+"?"+q.Encode(), &resp); err != nil {
		logFailure(a.logger, NYTName, logURL, err)
		return nil
	}
	return resp.Response.Docs
}

func (a *NYTAdapter) convert(doc nytDoc) (model.Item, bool) {
	link := strings.TrimSpace(doc.WebURL)
	if link == "" {
		return model.Item{}, false
	}

	title := nytUntitled
	if doc.Headline != nil && doc.Headline.Main != "" {
		title = doc.Headline.Main
	}

	author := ""
	if doc.Byline != nil {
		author = strings.Replace(doc.Byline.Original, "By ", "", 1)
	}
	if author == "" {
		author = firstNonEmpty(doc.Desk, doc.NewsDesk, doc.SectionName, nytDefaultDesk)
	}

	return model.Item{
		ID:          hashid.ForItem(link),
		Title:       title,
		Link:        link,
		Description: a.text.Text(doc.Snippet),
		PubDate:     doc.PubDate,
		Source:      nytSourceName,
		SourceURL:   NYTSourceURL,
		Author:      model.StringPtr(author),
		Image:       model.StringPtr(doc.Multimedia.imageURL()),
		Categories:  []string{},
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ SystemSource = (*NYTAdapter)(nil)
