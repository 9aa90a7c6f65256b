// Package opml はOPML形式の購読リストを読み書きする。
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/hitoshi/policyfeed/internal/model"
)

// document はOPML文書のルート要素。
type document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    head     `xml:"head"`
	Body    body     `xml:"body"`
}

type head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type body struct {
	Outlines []outline `xml:"outline"`
}

// outline はフォルダまたはフィードを表すoutline要素。
type outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	Outlines []outline `xml:"outline,omitempty"`
}

// Parse はOPML文書からフィードURLを文書順に取り出す。
// ネストしたoutlineも再帰的に走査し、重複したURLは最初の1件だけを残す。
func Parse(r io.Reader) ([]string, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode opml: %w", err)
	}

	urls := make([]string, 0)
	seen := make(map[string]bool)
	var walk func(outlines []outline)
	walk = func(outlines []outline) {
		for _, o := range outlines {
			if o.XMLURL != "" && !seen[o.XMLURL] {
				seen[o.XMLURL] = true
				urls = append(urls, o.XMLURL)
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)

	return urls, nil
}

// Export は購読フィードをフラットなOPML 2.0文書として出力する。
func Export(title string, feeds []model.FeedSubscription, now time.Time) ([]byte, error) {
	doc := document{
		Version: "2.0",
		Head: head{
			Title:       title,
			DateCreated: now.UTC().Format(time.RFC1123Z),
		},
	}
	for _, f := range feeds {
		name := f.Name
		if name == "" {
			name = f.URL
		}
		doc.Body.Outlines = append(doc.Body.Outlines, outline{
			Text:   name,
			Title:  name,
			Type:   "rss",
			XMLURL: f.URL,
		})
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode opml: %w", err)
	}
	return append([]byte(xml.Header), output...), nil
}
