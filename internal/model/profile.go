// Package model はドメインモデルを定義する。
package model

// プロフィール項目の最大長（文字数）。user_profileテーブルの列定義と一致させる。
const (
	MaxEmailLength    = 120
	MaxNicknameLength = 50
	MaxAddressLength  = 200
)

// MaxNameLength はセッションに保持する表示名の最大長（文字数）。sessions.nameの列定義と一致させる。
const MaxNameLength = 255

// Profile はメールアドレス単位で1件だけ存在するユーザープロフィールを表す。
// Emailは作成時に一度だけ設定され、以後変更されない。
type Profile struct {
	ID       int64
	Email    string
	Nickname string // 未設定の場合は空文字列
	Address  string // 未設定の場合は空文字列
}
