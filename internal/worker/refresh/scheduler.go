// Package refresh はシステムソース（Guardian、NYT、Congress）のキャッシュを
// 定期的に取得し直すバックグラウンドスケジューラを提供する。
// ユーザーのストリーム更新はキャッシュ済みの結果を使うため、外部APIへの呼び出しは
// スケジューラの間隔ごとに1回に抑えられる。
package refresh

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval はキャッシュ更新間隔のデフォルト値。
const DefaultInterval = 15 * time.Minute

// Warmer はシステムソースを取得してキャッシュを更新するインターフェース。
// aggregate.Aggregatorが実装する。
type Warmer interface {
	// Warm は全システムソースを取得し、1件以上取得できたソース数を返す。
	Warm(ctx context.Context) int
}

// Scheduler はティッカーでWarmerを定期実行する。
type Scheduler struct {
	warmer Warmer
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(warmer Warmer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		warmer: warmer,
		logger: logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで実行を継続する。
// intervalが0以下の場合はDefaultIntervalを使用する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("キャッシュ更新スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("キャッシュ更新スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce はシステムソースを1回取得し、取得できたソース数を返す。
// 個々のソースの失敗はアダプタ側でログに記録されるため、ここではエラーを返さない。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	start := time.Now()

	warmed := s.warmer.Warm(ctx)

	level := slog.LevelInfo
	if warmed == 0 {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "キャッシュ更新サイクルが完了しました",
		slog.Int("warmed_sources", warmed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return warmed
}
