package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/profilekeeper/internal/model"
	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	Rate          rate.Limit    // 1セッションあたりのレート（req/sec）
	Burst         int           // バーストサイズ
	IdleTTL       time.Duration // 最終アクセスからこの時間が経過したエントリは破棄する
	ErrorRenderer ErrorRenderer
}

// RateLimiterConfigPerMinute は1分あたりの許容回数からRateLimiterConfigを生成する。
// 例: 30 req/min → 0.5 req/sec、バースト30
func RateLimiterConfigPerMinute(perMinute int) RateLimiterConfig {
	if perMinute < 1 {
		perMinute = 1
	}
	return RateLimiterConfig{
		Rate:    rate.Limit(float64(perMinute) / 60.0),
		Burst:   perMinute,
		IdleTTL: 10 * time.Minute,
	}
}

// sessionLimiter はセッションごとのレートリミッターとアクセス時刻を保持する。
type sessionLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はセッションごとのレート制限を管理する。
// プロフィール更新にのみ適用し、ログインには適用しない。
// 期限切れエントリはアクセス時にまとめて破棄するため、バックグラウンドゴルーチンを持たない。
type RateLimiter struct {
	config RateLimiterConfig

	mu        sync.Mutex
	limiters  map[string]*sessionLimiter
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter は新しいRateLimiterを生成する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		config:    config,
		limiters:  make(map[string]*sessionLimiter),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Middleware はセッション単位のレート制限ミドルウェアを返す。
// SessionMiddlewareの後に配置する。セッションのないリクエストはそのまま通す。
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.allow(sess.ID) {
				slog.Warn("rate limit exceeded",
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
				)
				writeRateLimitResponse(w, rl.config.ErrorRenderer, rl.config.Rate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// allow はキーに対応するリミッターでトークンを1つ消費できるかを返す。
func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.config.IdleTTL {
		rl.sweep(now)
	}

	sl, exists := rl.limiters[key]
	if !exists {
		sl = &sessionLimiter{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.limiters[key] = sl
	}
	sl.lastAccess = now

	return sl.limiter.AllowN(now, 1)
}

// sweep は最終アクセス時刻がIdleTTLを超えたエントリを削除する。呼び出し側でロックを保持すること。
func (rl *RateLimiter) sweep(now time.Time) {
	for key, sl := range rl.limiters {
		if now.Sub(sl.lastAccess) > rl.config.IdleTTL {
			delete(rl.limiters, key)
		}
	}
	rl.lastSweep = now
}

// writeRateLimitResponse は429 Too Many Requestsのエラーページを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, renderer ErrorRenderer, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, renderer, http.StatusTooManyRequests, model.NewRateLimitedError())
}
