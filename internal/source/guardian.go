package source

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hitoshi/policyfeed/internal/hashid"
	"github.com/hitoshi/policyfeed/internal/model"
)

const (
	// GuardianName はRegistryでの識別名。
	GuardianName = "guardian"
	// GuardianSourceURL はGuardian由来の全記事に設定されるsourceUrl。
	GuardianSourceURL = "https://www.theguardian.com/us/environment"

	guardianEndpoint   = "https://content.guardianapis.com/search"
	guardianSourceName = "The Guardian"
	guardianAPIKeyEnv  = "GUARDIAN_API_KEY"
)

// GuardianAdapter はThe Guardianの環境セクションの最新記事を取得する。
type GuardianAdapter struct {
	client   HTTPDoer
	text     TextExtractor
	logger   *slog.Logger
	apiKey   string
	endpoint string // テスト用に差し替え可能
}

// NewGuardianAdapter はGuardianAdapterの新しいインスタンスを生成する。
func NewGuardianAdapter(client HTTPDoer, text TextExtractor, logger *slog.Logger, apiKey string) *GuardianAdapter {
	return &GuardianAdapter{
		client:   client,
		text:     text,
		logger:   logger,
		apiKey:   apiKey,
		endpoint: guardianEndpoint,
	}
}

// Name はSystemSourceを実装する。
func (a *GuardianAdapter) Name() string { return GuardianName }

// SourceURL はSystemSourceを実装する。
func (a *GuardianAdapter) SourceURL() string { return GuardianSourceURL }

type guardianResponse struct {
	Response struct {
		Results []guardianArticle `json:"results"`
	} `json:"response"`
}

type guardianArticle struct {
	ID                 string `json:"id"`
	WebTitle           string `json:"webTitle"`
	WebURL             string `json:"webUrl"`
	WebPublicationDate string `json:"webPublicationDate"`
	Fields             *struct {
		TrailText string `json:"trailText"`
		Thumbnail string `json:"thumbnail"`
		Byline    string `json:"byline"`
	} `json:"fields"`
}

// Fetch は環境セクションの記事を最大20件取得する。
func (a *GuardianAdapter) Fetch(ctx context.Context) ([]model.Item, error) {
	if a.apiKey == "" {
		return nil, &ConfigError{Source: GuardianName, Key: guardianAPIKeyEnv}
	}

	q := url.Values{}
	q.Set("section", "environment")
	q.Set("show-fields", "trailText,thumbnail,byline")
	q.Set("page-size", "20")
	logURL := a.endpoint + "?" + q.Encode()
	q.Set("api-key", a.apiKey)

	var resp guardianResponse
	if err := getJSON(ctx, a.client, a.endpoint+"?"+q.Encode(), &resp); err != nil {
		logFailure(a.logger, GuardianName, logURL, err)
		return []model.Item{}, nil
	}

	items := make([]model.Item, 0, len(resp.Response.Results))
	for _, article := range resp.Response.Results {
		link := strings.TrimSpace(article.WebURL)
		if link == "" {
			continue
		}

		item := model.Item{
			ID:         hashid.ForItem(link),
			Title:      article.WebTitle,
			Link:       link,
			PubDate:    article.WebPublicationDate,
			Source:     guardianSourceName,
			SourceURL:  GuardianSourceURL,
			Categories: []string{},
		}
		if article.Fields != nil {
			item.Description = a.text.Text(article.Fields.TrailText)
			item.Author = model.StringPtr(article.Fields.Byline)
			item.Image = model.StringPtr(article.Fields.Thumbnail)
		}
		items = append(items, item)
	}

	return items, nil
}

var _ SystemSource = (*GuardianAdapter)(nil)
