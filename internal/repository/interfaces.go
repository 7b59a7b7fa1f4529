// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/profilekeeper/internal/model"
)

// ProfileRepository はプロフィールデータの永続化インターフェース。
// emailの一意制約をストア側で保証し、アプリケーション側ではロックを取らない。
type ProfileRepository interface {
	// FindByEmail はemailが完全一致するプロフィールを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Profile, error)

	// Create はemailのみを設定したプロフィールを作成する。
	// 同じemailが既に存在する場合はmodel.ErrDuplicateEmailを返す。
	Create(ctx context.Context, email string) (*model.Profile, error)

	// Update はemailに一致するプロフィールのnicknameとaddressを上書きする。
	// 空文字列はNULLとして保存する。該当行がない場合はmodel.ErrProfileNotFoundを返す。
	Update(ctx context.Context, email, nickname, address string) (*model.Profile, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は指定時刻までに期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
