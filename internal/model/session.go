package model

import "time"

// Session はブラウザ単位のログインセッションを表す。
// EmailとNameはログイン時にIdPの検証済みクレームからコピーされる。
type Session struct {
	ID        string
	Email     string
	Name      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
