package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// discoverAccept はフィードとHTMLの両方を受け付けるAcceptヘッダー。
const discoverAccept = "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.8"

// sniffSize はXMLのルート要素判定に使う先頭バイト数。
const sniffSize = 4096

var feedMediaTypes = map[string]string{
	"application/rss+xml":  "rss",
	"application/atom+xml": "atom",
}

var genericXMLMediaTypes = map[string]bool{
	"text/xml":        true,
	"application/xml": true,
}

// FeedLink はHTMLの<link rel="alternate">から見つかったフィード候補。
type FeedLink struct {
	URL   string
	Kind  string
	Title string
}

// Discoverer はサイトのURLから購読すべきフィードURLを見つける。
type Discoverer struct {
	client      HTTPDoer
	logger      *slog.Logger
	maxBodySize int64
}

// NewDiscoverer はDiscovererの新しいインスタンスを生成する。
// clientにはSSRF対策済みのクライアントを渡す。
func NewDiscoverer(client HTTPDoer, logger *slog.Logger, maxBodySize int64) *Discoverer {
	return &Discoverer{
		client:      client,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// Resolve は入力URLがフィードならそのまま返し、HTMLページなら<head>内の
// フィードリンクから最適なものを返す。規制検索URLは取得せずにそのまま返す。
func (d *Discoverer) Resolve(ctx context.Context, inputURL string) (string, error) {
	if IsRulemakingURL(inputURL) {
		return inputURL, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", discoverAccept)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTPステータス %d", resp.StatusCode)
	}

	limit := d.maxBodySize
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if IsFeedResponse(contentType, body) {
		return inputURL, nil
	}
	if !strings.Contains(mediaType(contentType), "html") {
		return "", fmt.Errorf("フィードでもHTMLでもありません: %s", contentType)
	}

	best := SelectFeedLink(ParseFeedLinks(body, inputURL), inputURL)
	if best == nil {
		return "", fmt.Errorf("フィードリンクが見つかりません")
	}

	d.logger.Info("フィードを検出しました",
		slog.String("input_url", inputURL),
		slog.String("feed_url", best.URL),
		slog.String("kind", best.Kind),
	)
	return best.URL, nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mt)
}

// IsFeedResponse はContent-Typeと本文からRSS/Atomフィードかどうかを判定する。
// 汎用XMLの場合はルート要素を確認する。
func IsFeedResponse(contentType string, body []byte) bool {
	mt := mediaType(contentType)
	if _, ok := feedMediaTypes[mt]; ok {
		return true
	}
	if !genericXMLMediaTypes[mt] || len(body) == 0 {
		return false
	}

	n := len(body)
	if n > sniffSize {
		n = sniffSize
	}
	prefix := strings.ToLower(string(body[:n]))
	switch {
	case strings.Contains(prefix, "<rss"), strings.Contains(prefix, "<rdf:rdf"):
		return true
	case strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom"):
		return true
	}
	return false
}

// ParseFeedLinks はHTMLの<head>からRSS/Atomの代替リンクを抽出する。
// 相対URLはbaseURLで絶対URLに解決する。
func ParseFeedLinks(body []byte, baseURL string) []FeedLink {
	var links []FeedLink

	base, err := url.Parse(baseURL)
	if err != nil {
		return links
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	inHead := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return links

		case html.EndTagToken:
			if tn, _ := tokenizer.TagName(); string(tn) == "head" {
				return links
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			switch string(tn) {
			case "head":
				inHead = true
				continue
			case "body":
				return links
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			var rel, kind, href, title string
			for more := true; more; {
				var key, val []byte
				key, val, more = tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					kind = feedMediaTypes[strings.ToLower(string(val))]
				case "href":
					href = string(val)
				case "title":
					title = string(val)
				}
			}
			if rel != "alternate" || href == "" || kind == "" {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			links = append(links, FeedLink{
				URL:   base.ResolveReference(ref).String(),
				Kind:  kind,
				Title: title,
			})
		}
	}
}

// SelectFeedLink は候補から1件を選ぶ。同一ホストを優先し、次にAtom、同点なら先頭。
func SelectFeedLink(links []FeedLink, inputURL string) *FeedLink {
	if len(links) == 0 {
		return nil
	}

	host := hostOf(inputURL)
	bestIdx, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if hostOf(l.URL) == host {
			score += 100
		}
		if l.Kind == "atom" {
			score += 10
		}
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return &links[bestIdx]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
