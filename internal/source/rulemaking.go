package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/policyfeed/internal/hashid"
	"github.com/hitoshi/policyfeed/internal/model"
)

const (
	// DefaultRulemakingEndpoint は連邦官報の文書検索APIのエンドポイント。
	DefaultRulemakingEndpoint = "https://www.federalregister.gov/api/v1/documents.json"

	rulemakingSourceName = "Federal Register"
	rulemakingHost       = "federalregister.gov"

	paramTerm         = "conditions[term]"
	paramAgencies     = "conditions[agencies][]"
	paramCommentAfter = "conditions[comment_date][gte]"
	paramOrder        = "order"
	orderCommentDate  = "comment_date"
)

// IsRulemakingURL は購読URLが連邦官報の検索ページかを判定する。
// 連邦官報自身が配信するRSS（.rss）は通常のフィードとして扱う。
func IsRulemakingURL(u string) bool {
	return strings.Contains(u, rulemakingHost) && !strings.Contains(u, ".rss")
}

// RulemakingAdapter は連邦官報の検索URLをAPI問い合わせに変換し、意見募集中の文書を取得する。
type RulemakingAdapter struct {
	client   HTTPDoer
	text     TextExtractor
	logger   *slog.Logger
	endpoint string
	now      func() time.Time
}

// NewRulemakingAdapter はRulemakingAdapterの新しいインスタンスを生成する。
// endpointが空の場合はDefaultRulemakingEndpointを使う。
func NewRulemakingAdapter(client HTTPDoer, text TextExtractor, logger *slog.Logger, endpoint string) *RulemakingAdapter {
	if endpoint == "" {
		endpoint = DefaultRulemakingEndpoint
	}
	return &RulemakingAdapter{
		client:   client,
		text:     text,
		logger:   logger,
		endpoint: endpoint,
		now:      time.Now,
	}
}

// BuildQueryURL は検索URLから検索語と機関の条件だけを取り出し、
// 本日以降に意見募集が締め切られる文書を締切順に返す問い合わせURLを組み立てる。
func (a *RulemakingAdapter) BuildQueryURL(searchURL string) (string, error) {
	parsed, err := url.Parse(searchURL)
	if err != nil {
		return "", fmt.Errorf("検索URLのパースに失敗: %w", err)
	}
	input := parsed.Query()

	endpoint, err := url.Parse(a.endpoint)
	if err != nil {
		return "", fmt.Errorf("エンドポイントURLのパースに失敗: %w", err)
	}

	q := url.Values{}
	if term := input.Get(paramTerm); term != "" {
		q.Set(paramTerm, term)
	}
	for _, agency := range input[paramAgencies] {
		q.Add(paramAgencies, agency)
	}
	q.Set(paramCommentAfter, a.now().UTC().Format("2006-01-02"))
	q.Set(paramOrder, orderCommentDate)

	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

type rulemakingResponse struct {
	Results []rulemakingDocument `json:"results"`
}

type rulemakingDocument struct {
	Title           string             `json:"title"`
	Abstract        *string            `json:"abstract"`
	Excerpt         *string            `json:"excerpt"`
	Excerpts        *string            `json:"excerpts"`
	HTMLURL         string             `json:"html_url"`
	PublicationDate string             `json:"publication_date"`
	CommentDate     *string            `json:"comment_date"`
	Agencies        []rulemakingAgency `json:"agencies"`
}

type rulemakingAgency struct {
	Name    string `json:"name"`
	RawName string `json:"raw_name"`
}

// FetchURL は検索URLに対応する文書を取得する。sourceUrlには検索URLをそのまま設定する。
func (a *RulemakingAdapter) FetchURL(ctx context.Context, searchURL string) []model.Item {
	queryURL, err := a.BuildQueryURL(searchURL)
	if err != nil {
		logFailure(a.logger, "rulemaking", searchURL, err)
		return []model.Item{}
	}

	var resp rulemakingResponse
	if err := getJSON(ctx, a.client, queryURL, &resp); err != nil {
		logFailure(a.logger, "rulemaking", queryURL, err)
		return []model.Item{}
	}

	items := make([]model.Item, 0, len(resp.Results))
	for _, doc := range resp.Results {
		link := strings.TrimSpace(doc.HTMLURL)
		if link == "" {
			continue
		}

		description := ""
		switch {
		case doc.Abstract != nil && *doc.Abstract != "":
			description = *doc.Abstract
		case doc.Excerpt != nil && *doc.Excerpt != "":
			description = *doc.Excerpt
		case doc.Excerpts != nil:
			description = *doc.Excerpts
		}

		items = append(items, model.Item{
			ID:          hashid.ForItem(link),
			Title:       doc.Title,
			Link:        link,
			Description: a.text.Text(description),
			PubDate:     doc.PublicationDate,
			Source:      rulemakingSourceName,
			SourceURL:   searchURL,
			Categories:  []string{},
			IsOfficial:  model.BoolPtr(true),
			Agency:      model.StringPtr(agencyNames(doc.Agencies)),
			DueDate:     doc.CommentDate,
		})
	}

	return items
}

// agencyNames は機関名をカンマ区切りで連結する。nameが空の場合はraw_nameを使う。
func agencyNames(agencies []rulemakingAgency) string {
	names := make([]string, 0, len(agencies))
	for _, ag := range agencies {
		name := ag.Name
		if name == "" {
			name = ag.RawName
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
