package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/session"
)

const (
	pendingEmailCookie = "pending_verification_email"

	defaultAccessMaxAge = 3600           // 有効期限が不明な場合のアクセストークンCookieの有効期間（秒）
	refreshMaxAge       = 30 * 24 * 3600 // リフレッシュトークンCookieの有効期間（秒）
	pendingEmailMaxAge  = 24 * 3600      // 確認待ちメールアドレスの保持期間（秒）
)

// CookieConfig はCookie属性の設定。
type CookieConfig struct {
	Domain string
	Secure bool
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// setSessionCookies はプロバイダーが発行したトークンをHttpOnly Cookieに保存する。
func (c CookieConfig) setSessionCookies(w http.ResponseWriter, sess *model.Session, now time.Time) {
	maxAge := defaultAccessMaxAge
	if !sess.ExpiresAt.IsZero() {
		if d := int(sess.ExpiresAt.Sub(now).Seconds()); d > 0 {
			maxAge = d
		}
	}
	http.SetCookie(w, c.cookie(session.AccessTokenCookie, sess.AccessToken, maxAge))
	if sess.RefreshToken != "" {
		http.SetCookie(w, c.cookie(session.RefreshTokenCookie, sess.RefreshToken, refreshMaxAge))
	}
}

// clearSessionCookies はセッションCookieを削除する。
func (c CookieConfig) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(session.AccessTokenCookie, "", -1))
	http.SetCookie(w, c.cookie(session.RefreshTokenCookie, "", -1))
}

func (c CookieConfig) setPendingEmail(w http.ResponseWriter, email string) {
	http.SetCookie(w, c.cookie(pendingEmailCookie, email, pendingEmailMaxAge))
}

func (c CookieConfig) clearPendingEmail(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(pendingEmailCookie, "", -1))
}

func pendingEmail(r *http.Request) string {
	if ck, err := r.Cookie(pendingEmailCookie); err == nil {
		return ck.Value
	}
	return ""
}
