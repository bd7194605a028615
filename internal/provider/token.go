package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// errTokenRejected はアクセストークンがローカル検証で無効と判定されたことを示す。
var errTokenRejected = errors.New("access token rejected")

// tokenVerifier はプロバイダー呼び出し前にアクセストークンを検査する。
// secretが設定されていればHS256署名と有効期限を検証し、
// 未設定の場合は署名を検証せず有効期限だけを確認する。
type tokenVerifier struct {
	secret []byte
	now    func() time.Time
}

func newTokenVerifier(secret string) *tokenVerifier {
	v := &tokenVerifier{now: time.Now}
	if secret != "" {
		v.secret = []byte(secret)
	}
	return v
}

// inspect はトークンの有効期限を返す。
// 無効なトークンの場合はerrTokenRejectedをラップしたエラーを返す。
// 署名検証なしでパースできないトークンはゼロ値を返し、判定をプロバイダーに委ねる。
func (v *tokenVerifier) inspect(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}

	if v.secret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return time.Time{}, nil
		}
		if claims.ExpiresAt != nil && !claims.ExpiresAt.After(v.now()) {
			return time.Time{}, fmt.Errorf("%w: expired", errTokenRejected)
		}
		return expiry(claims), nil
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errTokenRejected, err)
	}
	return expiry(claims), nil
}

func expiry(claims *jwt.RegisteredClaims) time.Time {
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
