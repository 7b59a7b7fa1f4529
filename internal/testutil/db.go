// Package testutil はパッケージ横断で使うテスト用ヘルパーを提供する。
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/hitoshi/profilekeeper/internal/database"
)

// SQLiteURL は一時ディレクトリ上のSQLiteファイルを指すDATABASE_URLを返す。
func SQLiteURL(t testing.TB) string {
	t.Helper()
	return "sqlite:///" + filepath.Join(t.TempDir(), "profilekeeper.db")
}

// NewSQLiteDB はマイグレーション適用済みのSQLiteデータベースを開く。
// テスト終了時に自動でクローズされる。
func NewSQLiteDB(t testing.TB) *database.DB {
	t.Helper()

	url := SQLiteURL(t)
	if err := database.RunMigrations(url); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db, err := database.Open(url)
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}

	return db
}
