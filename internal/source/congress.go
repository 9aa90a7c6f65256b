package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/policyfeed/internal/hashid"
	"github.com/hitoshi/policyfeed/internal/model"
)

const (
	// CongressName はRegistryでの識別名。
	CongressName = "congress"
	// CongressSourceURL はCongress.gov由来の全記事に設定されるsourceUrl。
	CongressSourceURL = "https://www.congress.gov/search?q=%7B%22source%22%3A%22legislation%22%7D"

	congressEndpoint   = "https://api.congress.gov/v3/bill"
	congressSourceName = "US Congress"
	congressAPIKeyEnv  = "CONGRESS_API_KEY"
	congressBillURL    = "https://www.congress.gov/bill/%s-congress/%s/%s"
	noRecentAction     = "No recent action"
)

// congressKeywords は法案を環境政策関連とみなすキーワード。
var congressKeywords = []string{
	"biomass", "bioenergy", "forest", "logging", "timber",
	"wood", "carbon", "climate", "renewable", "energy",
	"pollution", "environment", "emissions",
}

// billTypeSlugs はAPIの法案種別からcongress.govのURLパスへの対応。未知の種別はhouse-bill。
var billTypeSlugs = map[string]string{
	"S":     "senate-bill",
	"HRES":  "house-resolution",
	"SRES":  "senate-resolution",
	"HJRES": "house-joint-resolution",
	"SJRES": "senate-joint-resolution",
}

// CongressAdapter はCongress.govの最新法案から環境関連のものを取得する。
type CongressAdapter struct {
	client   HTTPDoer
	logger   *slog.Logger
	apiKey   string
	endpoint string // テスト用に差し替え可能
}

// NewCongressAdapter はCongressAdapterの新しいインスタンスを生成する。
func NewCongressAdapter(client HTTPDoer, logger *slog.Logger, apiKey string) *CongressAdapter {
	return &CongressAdapter{
		client:   client,
		logger:   logger,
		apiKey:   apiKey,
		endpoint: congressEndpoint,
	}
}

// Name はSystemSourceを実装する。
func (a *CongressAdapter) Name() string { return CongressName }

// SourceURL はSystemSourceを実装する。
func (a *CongressAdapter) SourceURL() string { return CongressSourceURL }

type congressResponse struct {
	Bills []congressBill `json:"bills"`
}

type congressBill struct {
	Congress      json.Number `json:"congress"`
	Type          string      `json:"type"`
	Number        json.Number `json:"number"`
	Title         string      `json:"title"`
	OriginChamber string      `json:"originChamber"`
	UpdateDate    string      `json:"updateDate"`
	LatestAction  *struct {
		ActionDate string `json:"actionDate"`
		Text       string `json:"text"`
	} `json:"latestAction"`
}

func (b congressBill) latestActionText() string {
	if b.LatestAction == nil {
		return ""
	}
	return b.LatestAction.Text
}

// Fetch は更新日の新しい順に100件の法案を取得し、キーワードに該当するものだけを返す。
func (a *CongressAdapter) Fetch(ctx context.Context) ([]model.Item, error) {
	if a.apiKey == "" {
		return nil, &ConfigError{Source: CongressName, Key: congressAPIKeyEnv}
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "100")
	q.Set("sort", "updateDate desc")
	logURL := a.endpoint + "?" + q.Encode()
	q.Set("api_key", a.apiKey)

	var resp congressResponse
	if err := getJSON(ctx, a.client, a.endpoint+"?"+q.Encode(), &resp); err != nil {
		logFailure(a.logger, CongressName, logURL, err)
		return []model.Item{}, nil
	}

	items := make([]model.Item, 0)
	for _, bill := range resp.Bills {
		if !isRelevantBill(bill) {
			continue
		}
		items = append(items, convertBill(bill))
	}
	return items, nil
}

func isRelevantBill(bill congressBill) bool {
	text := strings.ToLower(bill.Title + " " + bill.latestActionText())
	for _, k := range congressKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func convertBill(bill congressBill) model.Item {
	link := billURL(bill)

	action := bill.latestActionText()
	if action == "" {
		action = noRecentAction
	}

	pubDate := bill.UpdateDate
	if pubDate == "" && bill.LatestAction != nil {
		pubDate = bill.LatestAction.ActionDate
	}

	return model.Item{
		ID:          hashid.ForItem(link),
		Title:       fmt.Sprintf("%s%s: %s", bill.Type, bill.Number, bill.Title),
		Link:        link,
		Description: "Latest Action: " + action,
		PubDate:     pubDate,
		Source:      congressSourceName,
		SourceURL:   CongressSourceURL,
		Author:      model.StringPtr(fmt.Sprintf("Congress (%s)", bill.OriginChamber)),
		Categories:  []string{},
		IsOfficial:  model.BoolPtr(true),
	}
}

func billURL(bill congressBill) string {
	slug, ok := billTypeSlugs[strings.ToUpper(bill.Type)]
	if !ok {
		slug = "house-bill"
	}
	return fmt.Sprintf(congressBillURL, ordinal(bill.Congress.String()), slug, bill.Number.String())
}

// ordinal は議会の回次を序数表記（118th, 121st）にする。
func ordinal(n string) string {
	v, err := strconv.Atoi(n)
	if err != nil {
		return n + "th"
	}
	suffix := "th"
	if v%100 < 11 || v%100 > 13 {
		switch v % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(v) + suffix
}

var _ SystemSource = (*CongressAdapter)(nil)
