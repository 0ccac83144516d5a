package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresKV はPostgreSQLのapp_storageテーブルを使用したKV実装。
// スロットごとに1行を保持し、書き込みはUPSERTで行う。
type PostgresKV struct {
	db *sql.DB
}

// NewPostgresKV はPostgresKVを生成する。
func NewPostgresKV(db *sql.DB) *PostgresKV {
	return &PostgresKV{db: db}
}

// Get は指定キーの値を取得する。キーが存在しない場合はok=falseを返す。
func (r *PostgresKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM app_storage WHERE key = $1`,
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get slot %s: %w", key, err)
	}

	return value, true, nil
}

// Set は指定キーに値を書き込む。既存の値は上書きされる。
func (r *PostgresKV) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_storage (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set slot %s: %w", key, err)
	}
	return nil
}

// Remove は指定キーを削除する。キーが存在しない場合も成功として扱う。
func (r *PostgresKV) Remove(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM app_storage WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to remove slot %s: %w", key, err)
	}
	return nil
}

// compile-time interface check
var _ KV = (*PostgresKV)(nil)
