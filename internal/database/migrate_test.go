package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func sqliteTestURL(t *testing.T) string {
	t.Helper()
	return "sqlite:///" + filepath.Join(t.TempDir(), "migrate.db")
}

func openForAssert(t *testing.T, url string) *DB {
	t.Helper()
	db, err := Open(url)
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sqliteTableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		table,
	).Scan(&count)
	if err != nil {
		t.Fatalf("テーブル存在確認クエリに失敗: %v", err)
	}
	return count == 1
}

func TestRunMigrations_SQLite_CreatesTables(t *testing.T) {
	url := sqliteTestURL(t)

	if err := RunMigrations(url); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db := openForAssert(t, url)
	for _, table := range []string{"user_profile", "sessions"} {
		t.Run("テーブル存在確認_"+table, func(t *testing.T) {
			if !sqliteTableExists(t, db.DB, table) {
				t.Errorf("テーブル %q が存在しません", table)
			}
		})
	}
}

func TestRunMigrations_SQLite_Idempotent(t *testing.T) {
	url := sqliteTestURL(t)

	if err := RunMigrations(url); err != nil {
		t.Fatalf("1回目のマイグレーション実行に失敗: %v", err)
	}
	if err := RunMigrations(url); err != nil {
		t.Fatalf("2回目のマイグレーション実行に失敗（冪等性の問題）: %v", err)
	}
}

func TestRunMigrations_SQLite_EmailIsUnique(t *testing.T) {
	url := sqliteTestURL(t)
	if err := RunMigrations(url); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db := openForAssert(t, url)
	if _, err := db.Exec(`INSERT INTO user_profile (email) VALUES ('a@example.com')`); err != nil {
		t.Fatalf("1件目のINSERTに失敗: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO user_profile (email) VALUES ('a@example.com')`); err == nil {
		t.Fatal("同一emailの2件目のINSERTは一意制約違反になるべき")
	}
}

func TestMigrations_SQLite_UpAndDown(t *testing.T) {
	url := sqliteTestURL(t)

	db, err := Open(url)
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	m, err := NewMigrator(db)
	if err != nil {
		t.Fatalf("Migrator生成に失敗: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		t.Fatalf("Up マイグレーション実行に失敗: %v", err)
	}
	if !sqliteTableExists(t, db.DB, "user_profile") {
		t.Fatal("Up後に user_profile が存在しません")
	}

	if err := m.Down(); err != nil {
		t.Fatalf("Down マイグレーション実行に失敗: %v", err)
	}
	if sqliteTableExists(t, db.DB, "user_profile") || sqliteTableExists(t, db.DB, "sessions") {
		t.Error("Down後にテーブルが残っています")
	}
}

// TestRunMigrations_Postgres はTEST_DATABASE_URLが設定されている場合のみ実行する。
func TestRunMigrations_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db := openForAssert(t, url)
	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if _, err := db.Exec(`DROP TABLE IF EXISTS sessions, user_profile, schema_migrations CASCADE`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}

	if err := RunMigrations(url); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	var exists bool
	err := db.QueryRow(
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
		"user_profile",
	).Scan(&exists)
	if err != nil {
		t.Fatalf("テーブル存在確認クエリに失敗: %v", err)
	}
	if !exists {
		t.Error("テーブル user_profile が存在しません")
	}
}
