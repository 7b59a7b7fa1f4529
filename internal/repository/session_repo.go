package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/profilekeeper/internal/database"
	"github.com/hitoshi/profilekeeper/internal/model"
)

// SessionRepo はsessionsテーブルを使用したセッションリポジトリ。
// 時刻はドライバ間で比較結果を揃えるためUnixミリ秒で保存する。
type SessionRepo struct {
	db     *sql.DB
	driver database.Driver
	now    func() time.Time
}

// NewSessionRepo はSessionRepoを生成する。
func NewSessionRepo(db *sql.DB, driver database.Driver) *SessionRepo {
	return &SessionRepo{db: db, driver: driver, now: time.Now}
}

// Create はセッションを作成する。
func (r *SessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		rebind(r.driver,
			`INSERT INTO sessions (id, email, name, expires_at, created_at)
			 VALUES (?, ?, ?, ?, ?)`),
		session.ID, session.Email, session.Name, toMillis(session.ExpiresAt), toMillis(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *SessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var (
		session   model.Session
		expiresAt int64
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		rebind(r.driver,
			`SELECT id, email, name, expires_at, created_at
			 FROM sessions
			 WHERE id = ? AND expires_at > ?`),
		id, toMillis(r.now()),
	).Scan(&session.ID, &session.Email, &session.Name, &expiresAt, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	session.ExpiresAt = fromMillis(expiresAt)
	session.CreatedAt = fromMillis(createdAt)
	return &session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *SessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		rebind(r.driver, `DELETE FROM sessions WHERE id = ?`),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は指定時刻までに期限切れとなったセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		rebind(r.driver, `DELETE FROM sessions WHERE expires_at <= ?`),
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// toMillis は時刻をUTCのUnixミリ秒に正規化する。
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// fromMillis はUnixミリ秒をUTCの時刻に戻す。
func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// compile-time interface check
var _ SessionRepository = (*SessionRepo)(nil)
