package source

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/hitoshi/policyfeed/internal/hashid"
	"github.com/hitoshi/policyfeed/internal/model"
)

const (
	defaultFeedTitle = "No Title"
	descriptionLimit = 150
	ellipsis         = "..."

	feedAccept = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"
)

// srcAttrPattern はgoqueryで画像を見つけられなかった場合のsrc属性の抽出に使う。
var srcAttrPattern = regexp.MustCompile(`src="([^"]+)"`)

// FeedAdapter はユーザーが購読するRSS/Atomフィードを取得し、記事に変換する。
type FeedAdapter struct {
	client      HTTPDoer
	text        TextExtractor
	logger      *slog.Logger
	maxBodySize int64
}

// NewFeedAdapter はFeedAdapterの新しいインスタンスを生成する。
// clientにはSSRF対策済みのクライアント（security.SSRFGuard.NewSafeClient）を渡す。
func NewFeedAdapter(client HTTPDoer, text TextExtractor, logger *slog.Logger, maxBodySize int64) *FeedAdapter {
	return &FeedAdapter{
		client:      client,
		text:        text,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// FetchURL はフィードURLを取得して記事一覧を返す。失敗時は空のスライス。
func (a *FeedAdapter) FetchURL(ctx context.Context, feedURL string) []model.Item {
	body, err := getBody(ctx, a.client, feedURL, feedAccept, a.maxBodySize)
	if err != nil {
		logFailure(a.logger, "feed", feedURL, err)
		return []model.Item{}
	}
	return a.Parse(body, feedURL)
}

// Parse はフィード本文を解析する。sourceURLは購読URLで、全記事のsourceUrlになる。
func (a *FeedAdapter) Parse(body []byte, sourceURL string) []model.Item {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		a.logger.Error("フィードのパースに失敗しました",
			slog.String("source", "feed"),
			slog.String("url", sourceURL),
			slog.String("error", err.Error()),
		)
		return []model.Item{}
	}

	sourceName := strings.TrimSpace(parsed.Title)
	if sourceName == "" {
		sourceName = sourceURL
	}

	items := make([]model.Item, 0, len(parsed.Items))
	skipped := 0
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}
		item, ok := a.convert(entry, sourceName, sourceURL)
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
	}

	if skipped > 0 {
		a.logger.Debug("リンクのない記事をスキップしました",
			slog.String("url", sourceURL),
			slog.Int("skipped", skipped),
		)
	}

	return items
}

func (a *FeedAdapter) convert(entry *gofeed.Item, sourceName, sourceURL string) (model.Item, bool) {
	link := strings.TrimSpace(entry.Link)
	if link == "" && looksLikeURL(entry.GUID) {
		link = entry.GUID
	}
	if link == "" {
		return model.Item{}, false
	}

	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = defaultFeedTitle
	}

	rawDescription := entry.Description
	if rawDescription == "" {
		rawDescription = entry.Content
	}

	return model.Item{
		ID:          hashid.ForItem(link),
		Title:       title,
		Link:        link,
		Description: truncateDescription(a.text.Text(rawDescription)),
		PubDate:     feedPubDate(entry),
		Source:      sourceName,
		SourceURL:   sourceURL,
		Author:      model.StringPtr(feedAuthor(entry)),
		Image:       model.StringPtr(feedImage(entry, rawDescription)),
		Categories:  []string{},
	}, true
}

// truncateDescription は先頭150文字に省略記号を付ける。説明文が空でも省略記号だけを返す。
func truncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) > descriptionLimit {
		runes = runes[:descriptionLimit]
	}
	return string(runes) + ellipsis
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func feedPubDate(entry *gofeed.Item) string {
	switch {
	case entry.PublishedParsed != nil:
		return entry.PublishedParsed.UTC().Format(time.RFC3339)
	case entry.UpdatedParsed != nil:
		return entry.UpdatedParsed.UTC().Format(time.RFC3339)
	case entry.Published != "":
		return entry.Published
	default:
		return entry.Updated
	}
}

func feedAuthor(entry *gofeed.Item) string {
	if entry.Author != nil && entry.Author.Name != "" {
		return entry.Author.Name
	}
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		return entry.Authors[0].Name
	}
	return ""
}

// feedImage は画像型のenclosure、media:content、説明文中の<img>の順に画像URLを探す。
func feedImage(entry *gofeed.Item, rawDescription string) string {
	for _, enc := range entry.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image") {
			return enc.URL
		}
	}

	if u := mediaContentURL(entry.Extensions); u != "" {
		return u
	}

	if rawDescription == "" {
		return ""
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawDescription)); err == nil {
		if src, ok := doc.Find("img[src]").First().Attr("src"); ok && src != "" {
			return src
		}
	}
	if m := srcAttrPattern.FindStringSubmatch(rawDescription); m != nil {
		return m[1]
	}
	return ""
}

// mediaContentURL は拡張要素からurl属性を持つcontent要素を探す。media名前空間を優先する。
func mediaContentURL(extensions ext.Extensions) string {
	if len(extensions) == 0 {
		return ""
	}

	prefixes := make([]string, 0, len(extensions))
	for prefix := range extensions {
		if prefix != "media" {
			prefixes = append(prefixes, prefix)
		}
	}
	sort.Strings(prefixes)
	if _, ok := extensions["media"]; ok {
		prefixes = append([]string{"media"}, prefixes...)
	}

	for _, prefix := range prefixes {
		elements := extensions[prefix]
		if u := contentURL(elements["content"]); u != "" {
			return u
		}
		for _, group := range elements["group"] {
			if u := contentURL(group.Children["content"]); u != "" {
				return u
			}
		}
	}
	return ""
}

func contentURL(contents []ext.Extension) string {
	for _, c := range contents {
		if u := c.Attrs["url"]; u != "" {
			return u
		}
	}
	return ""
}
