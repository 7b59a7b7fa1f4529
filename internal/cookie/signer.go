// Package cookie はSECRET_KEYで署名したCookie値の生成と検証を提供する。
// 値はHS256で署名したJWTとして表現し、用途（purpose）ごとに区別する。
package cookie

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid は署名・用途・有効期限のいずれかの検証に失敗した場合に返る。
var ErrInvalid = errors.New("invalid signed cookie value")

// signedClaims は署名付きCookieのペイロード。
type signedClaims struct {
	Purpose string            `json:"pur"`
	Values  map[string]string `json:"val,omitempty"`
	jwt.RegisteredClaims
}

// Signer はCookie値の署名と検証を行う。
type Signer struct {
	key []byte
	now func() time.Time
}

// NewSigner はSignerを生成する。secretが空の場合はエラーを返す。
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("cookie signing secret is required")
	}
	return &Signer{key: []byte(secret), now: time.Now}, nil
}

// Sign は用途と値を署名し、ttl後に失効するCookie値を返す。
func (s *Signer) Sign(purpose string, values map[string]string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := signedClaims{
		Purpose: purpose,
		Values:  values,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign cookie value: %w", err)
	}
	return token, nil
}

// Verify はCookie値を検証し、署名時の値を返す。
// 署名不正・期限切れ・用途不一致の場合はErrInvalidを返す。
func (s *Signer) Verify(purpose, value string) (map[string]string, error) {
	claims := &signedClaims{}
	_, err := jwt.ParseWithClaims(value, claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose mismatch", ErrInvalid)
	}

	if claims.Values == nil {
		claims.Values = map[string]string{}
	}
	return claims.Values, nil
}
