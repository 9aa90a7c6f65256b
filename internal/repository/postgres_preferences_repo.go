package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/policyfeed/internal/model"
)

// PostgresPreferencesRepo はPostgreSQLを使用したユーザー設定リポジトリ。
// 購読フィード、カテゴリ、非表示ソースはそれぞれJSONBカラムに保存する。
type PostgresPreferencesRepo struct {
	db *sql.DB
}

// NewPostgresPreferencesRepo はPostgresPreferencesRepoを生成する。
func NewPostgresPreferencesRepo(db *sql.DB) *PostgresPreferencesRepo {
	return &PostgresPreferencesRepo{db: db}
}

// FindByUserID はユーザーの設定を取得する。見つからない場合はnilを返す。
func (r *PostgresPreferencesRepo) FindByUserID(ctx context.Context, userID string) (*model.Preferences, error) {
	var feeds, categories, hidden []byte
	prefs := &model.Preferences{UserID: userID}
	err := r.db.QueryRowContext(ctx,
		`SELECT feeds, categories, hidden_feeds, updated_at
		 FROM user_preferences
		 WHERE user_id = $1`,
		userID,
	).Scan(&feeds, &categories, &hidden, &prefs.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find preferences: %w", err)
	}

	if err := decodePreferences(prefs, feeds, categories, hidden); err != nil {
		return nil, err
	}
	return prefs, nil
}

// Save は設定を冪等にUPSERTする。
func (r *PostgresPreferencesRepo) Save(ctx context.Context, prefs *model.Preferences) error {
	feeds, categories, hidden, err := encodePreferences(prefs)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, feeds, categories, hidden_feeds, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
		   feeds = EXCLUDED.feeds,
		   categories = EXCLUDED.categories,
		   hidden_feeds = EXCLUDED.hidden_feeds,
		   updated_at = EXCLUDED.updated_at`,
		prefs.UserID, feeds, categories, hidden, prefs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの設定を削除する。
func (r *PostgresPreferencesRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_preferences WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	return nil
}

// encodePreferences は設定の各リストをJSONBカラム用にエンコードする。nilは空配列として保存する。
func encodePreferences(prefs *model.Preferences) (feeds, categories, hidden []byte, err error) {
	f := prefs.Feeds
	if f == nil {
		f = []model.FeedSubscription{}
	}
	c := prefs.Categories
	if c == nil {
		c = []model.Category{}
	}
	h := prefs.HiddenFeeds
	if h == nil {
		h = []string{}
	}

	if feeds, err = json.Marshal(f); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode feeds: %w", err)
	}
	if categories, err = json.Marshal(c); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode categories: %w", err)
	}
	if hidden, err = json.Marshal(h); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode hidden feeds: %w", err)
	}
	return feeds, categories, hidden, nil
}

// decodePreferences はJSONBカラムの値を設定に復元する。
// 旧形式のフィード（URL文字列のみ）はFeedSubscriptionのUnmarshalJSONで変換される。
func decodePreferences(prefs *model.Preferences, feeds, categories, hidden []byte) error {
	if len(feeds) > 0 {
		if err := json.Unmarshal(feeds, &prefs.Feeds); err != nil {
			return fmt.Errorf("failed to decode feeds: %w", err)
		}
	}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &prefs.Categories); err != nil {
			return fmt.Errorf("failed to decode categories: %w", err)
		}
	}
	if len(hidden) > 0 {
		if err := json.Unmarshal(hidden, &prefs.HiddenFeeds); err != nil {
			return fmt.Errorf("failed to decode hidden feeds: %w", err)
		}
	}

	if prefs.Feeds == nil {
		prefs.Feeds = []model.FeedSubscription{}
	}
	if prefs.Categories == nil {
		prefs.Categories = []model.Category{}
	}
	if prefs.HiddenFeeds == nil {
		prefs.HiddenFeeds = []string{}
	}
	for i, c := range prefs.Categories {
		if c.Keywords == nil {
			prefs.Categories[i].Keywords = []string{}
		}
	}
	return nil
}

// compile-time interface check
var _ PreferencesRepository = (*PostgresPreferencesRepo)(nil)
