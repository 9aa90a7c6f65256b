package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/policyfeed/internal/model"
)

// PostgresPublicFeedRepo はPostgreSQLを使用した公開フィードリポジトリ。
type PostgresPublicFeedRepo struct {
	db *sql.DB
}

// NewPostgresPublicFeedRepo はPostgresPublicFeedRepoを生成する。
func NewPostgresPublicFeedRepo(db *sql.DB) *PostgresPublicFeedRepo {
	return &PostgresPublicFeedRepo{db: db}
}

// Upsert は公開フィードをマージ書き込みする。
func (r *PostgresPublicFeedRepo) Upsert(ctx context.Context, entry *model.PublicFeedEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO public_feeds (id, url, name, shared_by, owner_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   url = EXCLUDED.url,
		   name = EXCLUDED.name,
		   shared_by = EXCLUDED.shared_by,
		   owner_id = EXCLUDED.owner_id,
		   updated_at = EXCLUDED.updated_at`,
		entry.ID, entry.URL, entry.Name, entry.SharedBy, entry.OwnerID, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert public feed: %w", err)
	}
	return nil
}

// Delete は指定IDの公開フィードを削除する。存在しない場合も成功とする。
func (r *PostgresPublicFeedRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM public_feeds WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete public feed: %w", err)
	}
	return nil
}

// List は公開フィードを更新日時降順で返す。
func (r *PostgresPublicFeedRepo) List(ctx context.Context) ([]model.PublicFeedEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, url, name, shared_by, owner_id, updated_at
		 FROM public_feeds
		 ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list public feeds: %w", err)
	}
	defer rows.Close()

	entries := make([]model.PublicFeedEntry, 0)
	for rows.Next() {
		var e model.PublicFeedEntry
		if err := rows.Scan(&e.ID, &e.URL, &e.Name, &e.SharedBy, &e.OwnerID, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan public feed: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate public feeds: %w", err)
	}
	return entries, nil
}

// DeleteByOwner は指定ユーザーが公開した全フィードを削除する。
func (r *PostgresPublicFeedRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM public_feeds WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("failed to delete owner public feeds: %w", err)
	}
	return nil
}

// PostgresPublicBucketRepo はPostgreSQLを使用した公開バケットリポジトリ。
// キーワードはTEXT[]カラムにpq.Arrayで保存する。
type PostgresPublicBucketRepo struct {
	db *sql.DB
}

// NewPostgresPublicBucketRepo はPostgresPublicBucketRepoを生成する。
func NewPostgresPublicBucketRepo(db *sql.DB) *PostgresPublicBucketRepo {
	return &PostgresPublicBucketRepo{db: db}
}

// Upsert は公開バケットをマージ書き込みする。
func (r *PostgresPublicBucketRepo) Upsert(ctx context.Context, entry *model.PublicBucketEntry) error {
	keywords := entry.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO public_buckets (id, name, keywords, shared_by, owner_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   keywords = EXCLUDED.keywords,
		   shared_by = EXCLUDED.shared_by,
		   owner_id = EXCLUDED.owner_id,
		   updated_at = EXCLUDED.updated_at`,
		entry.ID, entry.Name, pq.Array(keywords), entry.SharedBy, entry.OwnerID, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert public bucket: %w", err)
	}
	return nil
}

// Delete は指定IDの公開バケットを削除する。存在しない場合も成功とする。
func (r *PostgresPublicBucketRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM public_buckets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete public bucket: %w", err)
	}
	return nil
}

// List は公開バケットを更新日時降順で返す。
func (r *PostgresPublicBucketRepo) List(ctx context.Context) ([]model.PublicBucketEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, keywords, shared_by, owner_id, updated_at
		 FROM public_buckets
		 ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list public buckets: %w", err)
	}
	defer rows.Close()

	entries := make([]model.PublicBucketEntry, 0)
	for rows.Next() {
		var (
			e        model.PublicBucketEntry
			keywords pq.StringArray
		)
		if err := rows.Scan(&e.ID, &e.Name, &keywords, &e.SharedBy, &e.OwnerID, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan public bucket: %w", err)
		}
		e.Keywords = []string(keywords)
		if e.Keywords == nil {
			e.Keywords = []string{}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate public buckets: %w", err)
	}
	return entries, nil
}

// DeleteByOwner は指定ユーザーが公開した全バケットを削除する。
func (r *PostgresPublicBucketRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM public_buckets WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("failed to delete owner public buckets: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ PublicFeedRepository   = (*PostgresPublicFeedRepo)(nil)
	_ PublicBucketRepository = (*PostgresPublicBucketRepo)(nil)
)
