// Package aggregate は購読フィードとシステムソースを並行に取得し、1本の分類済みストリームにまとめる。
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/policyfeed/internal/categorize"
	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/source"
)

// 計測ラベルとして使うソース種別。システムソースはNameをそのまま使う。
const (
	KindFeed       = "feed"
	KindRulemaking = "rulemaking"
)

// URLFetcher はURLを指定して記事を取得するアダプタ。失敗時は空のスライスを返す。
type URLFetcher interface {
	FetchURL(ctx context.Context, rawURL string) []model.Item
}

// SourceCache はシステムソースの取得結果を一定時間保持する。
type SourceCache interface {
	Get(name string) ([]model.Item, bool)
	Set(name string, items []model.Item)
}

// MetricsRecorder はソースごとの取得結果を記録する。
type MetricsRecorder interface {
	RecordSourceFetch(kind string, items int, duration time.Duration)
	RecordSourceFailure(kind, reason string)
}

// Aggregator はユーザーの購読とシステムソースを並行取得して統合する。
type Aggregator struct {
	feeds          URLFetcher
	rulemaking     URLFetcher
	systems        []source.SystemSource
	registry       *source.Registry
	cache          SourceCache
	metrics        MetricsRecorder
	logger         *slog.Logger
	maxConcurrency int
}

// NewAggregator はAggregatorの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合は同時取得数を制限しない。
func NewAggregator(feeds, rulemaking URLFetcher, systems []source.SystemSource, logger *slog.Logger, maxConcurrency int) *Aggregator {
	registry := source.NewRegistry(systems...)
	return &Aggregator{
		feeds:          feeds,
		rulemaking:     rulemaking,
		systems:        registry.All(),
		registry:       registry,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// WithCache はシステムソースの結果キャッシュを設定する。
func (a *Aggregator) WithCache(c SourceCache) *Aggregator {
	a.cache = c
	return a
}

// WithMetrics はソース取得の計測先を設定する。
func (a *Aggregator) WithMetrics(m MetricsRecorder) *Aggregator {
	a.metrics = m
	return a
}

// Refresh は全ソースを並行に取得し、起動順に連結してカテゴリを付与し、公開日の新しい順に並べて返す。
// 個々のソースの失敗は結果から除かれるだけで、Refresh自体は失敗しない。
func (a *Aggregator) Refresh(ctx context.Context, feeds []model.FeedSubscription, categories []model.Category) []model.Item {
	results := make([][]model.Item, len(feeds)+len(a.systems))

	var g errgroup.Group
	if a.maxConcurrency > 0 {
		g.SetLimit(a.maxConcurrency)
	}

	for i, feed := range feeds {
		g.Go(func() error {
			results[i] = a.fetchSubscription(ctx, feed)
			return nil
		})
	}
	for j, src := range a.systems {
		g.Go(func() error {
			results[len(feeds)+j] = a.fetchSystem(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]model.Item, 0)
	for i, items := range results {
		if i >= len(feeds) {
			sourceURL := a.systems[i-len(feeds)].SourceURL()
			for k := range items {
				items[k].SourceURL = sourceURL
			}
		}
		merged = append(merged, items...)
	}

	merged = categorize.Categorize(merged, categories)
	SortByDateDesc(merged)

	a.logger.Info("ストリームを更新しました",
		slog.Int("feeds", len(feeds)),
		slog.Int("system_sources", len(a.systems)),
		slog.Int("items", len(merged)),
	)

	return merged
}

// fetchSubscription は購読URLを分類して取得し、別名が設定されていればソース名を置き換える。
func (a *Aggregator) fetchSubscription(ctx context.Context, feed model.FeedSubscription) []model.Item {
	start := time.Now()

	kind := KindFeed
	fetcher := a.feeds
	if source.IsRulemakingURL(feed.URL) {
		kind = KindRulemaking
		fetcher = a.rulemaking
	}

	items := fetcher.FetchURL(ctx, feed.URL)
	a.record(kind, items, time.Since(start))

	if alias, ok := feed.Alias(); ok {
		renamed := make([]model.Item, len(items))
		for i, item := range items {
			item.Source = alias
			renamed[i] = item
		}
		items = renamed
	}
	return items
}

// fetchSystem はキャッシュがあればそれを返し、なければ取得する。失敗したソースは何も返さない。
func (a *Aggregator) fetchSystem(ctx context.Context, src source.SystemSource) []model.Item {
	if a.cache != nil {
		if items, ok := a.cache.Get(src.Name()); ok {
			return items
		}
	}
	items, err := a.loadSystem(ctx, src)
	if err != nil {
		return nil
	}
	return items
}

// loadSystem はキャッシュを参照せずにシステムソースを取得し、成功時のみキャッシュする。
func (a *Aggregator) loadSystem(ctx context.Context, src source.SystemSource) ([]model.Item, error) {
	start := time.Now()
	items, err := src.Fetch(ctx)
	if err != nil {
		reason := "error"
		if errors.Is(err, source.ErrMissingCredential) {
			reason = "config"
		}
		a.logger.Error("システムソースを取得できません",
			slog.String("source", src.Name()),
			slog.String("error", err.Error()),
		)
		if a.metrics != nil {
			a.metrics.RecordSourceFailure(src.Name(), reason)
		}
		return nil, err
	}

	a.record(src.Name(), items, time.Since(start))
	if a.cache != nil && len(items) > 0 {
		a.cache.Set(src.Name(), items)
	}
	return items, nil
}

// Source は名前で指定したシステムソースを単独で取得する。
// 未登録の名前にはUNKNOWN_SOURCEを、認証情報がない場合は*source.ConfigErrorを返す。
func (a *Aggregator) Source(ctx context.Context, name string) ([]model.Item, error) {
	src, ok := a.registry.Get(name)
	if !ok {
		return nil, model.NewUnknownSourceError(name)
	}

	var (
		items  []model.Item
		cached bool
	)
	if a.cache != nil {
		items, cached = a.cache.Get(name)
	}
	if !cached {
		var err error
		if items, err = a.loadSystem(ctx, src); err != nil {
			return nil, err
		}
	}

	out := make([]model.Item, len(items))
	for i, item := range items {
		item.SourceURL = src.SourceURL()
		out[i] = item
	}
	return out, nil
}

// Warm は全システムソースをキャッシュを参照せずに並行取得し、キャッシュを更新する。
// 1件以上取得できたソースの数を返す。
func (a *Aggregator) Warm(ctx context.Context) int {
	var (
		g      errgroup.Group
		warmed atomic.Int64
	)
	if a.maxConcurrency > 0 {
		g.SetLimit(a.maxConcurrency)
	}
	for _, src := range a.systems {
		g.Go(func() error {
			if items, err := a.loadSystem(ctx, src); err == nil && len(items) > 0 {
				warmed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(warmed.Load())
}

// record は取得件数を計測する。アダプタは失敗を空の結果で返すため、0件は失敗として数える。
func (a *Aggregator) record(kind string, items []model.Item, d time.Duration) {
	if a.metrics == nil {
		return
	}
	if len(items) == 0 {
		a.metrics.RecordSourceFailure(kind, "empty")
		return
	}
	a.metrics.RecordSourceFetch(kind, len(items), d)
}

// SortByDateDesc は公開日の新しい順に安定ソートする。解析できない日付は最も古いものとして扱う。
func SortByDateDesc(items []model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedTime().After(items[j].PublishedTime())
	})
}
