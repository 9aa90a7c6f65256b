package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/policyfeed/internal/model"
)

// PreferencesLoader はユーザーの購読とカテゴリを読み込む。
type PreferencesLoader interface {
	Load(ctx context.Context, userID string) (*model.Preferences, error)
}

// Refresher は購読とカテゴリからストリームを組み立てる。*Aggregator が実装する。
type Refresher interface {
	Refresh(ctx context.Context, feeds []model.FeedSubscription, categories []model.Category) []model.Item
}

// RefreshRecorder は更新の結果を記録する。
type RefreshRecorder interface {
	RecordRefresh(items int, superseded bool)
}

// Service はユーザー単位でストリームの更新と参照を提供する。
type Service struct {
	prefs   PreferencesLoader
	agg     Refresher
	store   *Store
	metrics RefreshRecorder
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(prefs PreferencesLoader, agg Refresher, store *Store, metrics RefreshRecorder, logger *slog.Logger) *Service {
	return &Service{
		prefs:   prefs,
		agg:     agg,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// Refresh はユーザーのストリームを取得し直して保存する。
// 実行中に同じユーザーの新しい更新が始まっていた場合、この結果は破棄され保存済みの内容を返す。
func (s *Service) Refresh(ctx context.Context, userID string) ([]model.Item, error) {
	// 設定の読み込みより先に世代を発行し、読み込み以降の編集をCommit時に適用し直せるようにする
	generation := s.store.Begin(userID)

	prefs, err := s.prefs.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("購読設定の読み込みに失敗: %w", err)
	}
	if prefs == nil {
		prefs = &model.Preferences{UserID: userID}
	}

	items := s.agg.Refresh(ctx, prefs.Feeds, prefs.Categories)

	committed := s.store.Commit(userID, generation, items)
	if s.metrics != nil {
		s.metrics.RecordRefresh(len(items), !committed)
	}
	if !committed {
		s.logger.Info("新しい更新が開始されたため結果を破棄しました",
			slog.String("user_id", userID),
			slog.Uint64("generation", generation),
		)
	}

	return s.store.Items(userID), nil
}

// Items は保存済みのストリームを返す。
func (s *Service) Items(userID string) []model.Item {
	return s.store.Items(userID)
}
