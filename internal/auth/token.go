package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken は署名不正・形式不正のトークンを表す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired は有効期限切れのトークンを表す。
	ErrTokenExpired = errors.New("token expired")
)

// Claims はトークンに埋め込むユーザー情報。
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Codec はHS256署名付きトークンの発行と検証を行う。
// 検証はI/Oを伴わない。セッションの有無はGateで確認する。
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec はCodecを生成する。ttlはトークンの有効期間。
func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はユーザーIDとユーザー名を埋め込んだトークンを発行する。
// 同一ユーザーが同時刻に複数回ログインしても別のトークンになるようjtiを付与する。
func (c *Codec) Issue(userID int64, username string) (string, error) {
	now := c.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 期限切れはErrTokenExpired、それ以外の失敗はErrInvalidTokenを返す。
func (c *Codec) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	return claims, nil
}
