package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver は接続先データベースの種別を表す。
type Driver string

const (
	// DriverPostgres はlib/pqによるPostgreSQL接続を示す。
	DriverPostgres Driver = "postgres"
	// DriverSQLite はmodernc.org/sqliteによるSQLite接続を示す。
	DriverSQLite Driver = "sqlite"
)

// sqlitePragmas はSQLite接続ごとに適用するPRAGMA。
// 同時書き込み時にSQLITE_BUSYを即返さず待機させる。
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// DB はドライバ種別付きのデータベース接続。
type DB struct {
	*sql.DB
	Driver Driver
}

// ParseURL はDATABASE_URLからドライバ種別とドライバ用DSNを導出する。
//
//	postgres://... / postgresql://...  → PostgreSQL（URLをそのまま使用）
//	sqlite:///relative.db             → SQLite（カレントディレクトリからの相対パス）
//	sqlite:////abs/path.db            → SQLite（絶対パス）
func ParseURL(databaseURL string) (Driver, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return "", "", fmt.Errorf("sqlite database path is empty")
		}
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		return DriverSQLite, path + "?" + sqlitePragmas, nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme")
	}
}

// Open はDATABASE_URLに応じたデータベース接続を開く。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*DB, error) {
	driver, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &DB{DB: db, Driver: driver}, nil
}
