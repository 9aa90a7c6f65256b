package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/policyfeed/internal/model"
)

// savedItemColumns はsaved_itemsテーブルのSELECT対象カラム。scanSavedItemの引数順と一致させる。
const savedItemColumns = `id, user_id, shared_by, is_public, saved_at, item`

// PostgresSavedItemRepo はPostgreSQLを使用した保存記事リポジトリ。
// 記事本体はitemカラムにJSONBで保存し、検索に使うメタ情報は個別カラムに持つ。
type PostgresSavedItemRepo struct {
	db *sql.DB
}

// NewPostgresSavedItemRepo はPostgresSavedItemRepoを生成する。
func NewPostgresSavedItemRepo(db *sql.DB) *PostgresSavedItemRepo {
	return &PostgresSavedItemRepo{db: db}
}

// FindByID は指定IDの保存記事を取得する。見つからない場合はnilを返す。
func (r *PostgresSavedItemRepo) FindByID(ctx context.Context, id string) (*model.SavedItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+savedItemColumns+` FROM saved_items WHERE id = $1`,
		id,
	)
	saved, err := scanSavedItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find saved item: %w", err)
	}
	return saved, nil
}

// Create は保存記事を作成する。
func (r *PostgresSavedItemRepo) Create(ctx context.Context, saved *model.SavedItem) error {
	body, err := json.Marshal(saved.Item)
	if err != nil {
		return fmt.Errorf("failed to encode saved item: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO saved_items (id, user_id, shared_by, is_public, saved_at, item)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		saved.ID, saved.UserID, saved.SharedBy, saved.IsPublic, saved.SavedAt, body,
	)
	if err != nil {
		return fmt.Errorf("failed to create saved item: %w", err)
	}
	return nil
}

// Delete は指定IDの保存記事を削除する。
func (r *PostgresSavedItemRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM saved_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete saved item: %w", err)
	}
	return nil
}

// UpdatePublic は保存記事の公開フラグを更新する。
func (r *PostgresSavedItemRepo) UpdatePublic(ctx context.Context, id string, isPublic bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE saved_items SET is_public = $2 WHERE id = $1`,
		id, isPublic,
	)
	if err != nil {
		return fmt.Errorf("failed to update saved item visibility: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("saved item not found: %s", id)
	}
	return nil
}

// ListByUserID はユーザーの保存記事をsaved_at降順で返す。
func (r *PostgresSavedItemRepo) ListByUserID(ctx context.Context, userID string) ([]model.SavedItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+savedItemColumns+`
		 FROM saved_items
		 WHERE user_id = $1
		 ORDER BY saved_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved items: %w", err)
	}
	defer rows.Close()

	return collectSavedItems(rows)
}

// ListPublic は公開された保存記事をsaved_at降順で最大limit件返す。
func (r *PostgresSavedItemRepo) ListPublic(ctx context.Context, limit int) ([]model.SavedItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+savedItemColumns+`
		 FROM saved_items
		 WHERE is_public = true
		 ORDER BY saved_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list public saved items: %w", err)
	}
	defer rows.Close()

	return collectSavedItems(rows)
}

// DeleteByUserID はユーザーの全保存記事を削除する。
func (r *PostgresSavedItemRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM saved_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user saved items: %w", err)
	}
	return nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSavedItem は1行を保存記事に変換する。IDは行のidカラムを正とする。
func scanSavedItem(row rowScanner) (*model.SavedItem, error) {
	var (
		saved model.SavedItem
		id    string
		body  []byte
	)
	if err := row.Scan(&id, &saved.UserID, &saved.SharedBy, &saved.IsPublic, &saved.SavedAt, &body); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &saved.Item); err != nil {
		return nil, fmt.Errorf("failed to decode saved item %s: %w", id, err)
	}
	saved.ID = id
	if saved.Categories == nil {
		saved.Categories = []string{}
	}
	return &saved, nil
}

func collectSavedItems(rows *sql.Rows) ([]model.SavedItem, error) {
	items := make([]model.SavedItem, 0)
	for rows.Next() {
		saved, err := scanSavedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saved item: %w", err)
		}
		items = append(items, *saved)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate saved items: %w", err)
	}
	return items, nil
}

// compile-time interface check
var _ SavedItemRepository = (*PostgresSavedItemRepo)(nil)
