// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey  = contextKey("user_id")
	sessionContextKey = contextKey("session")
)

// AccessChecker はリクエストのアクセス可否を判定するインターフェース。
// session.Guardが実装する。
type AccessChecker interface {
	CheckAccess(ctx context.Context, accessToken string) session.Decision
}

// NewRequireSession はAPIルート向けのセッション必須ミドルウェアを返す。
// 判定がDeniedの場合は401の統一エラーレスポンスを返す。
func NewRequireSession(checker AccessChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := checker.CheckAccess(r.Context(), session.TokenFromRequest(r))
			if !d.Allowed() {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), d.Session)))
		})
	}
}

// NewRedirectUnauthenticated はページルート向けのガードミドルウェアを返す。
// 判定がDeniedの場合は保護対象を描画せずsignInPathへ303でリダイレクトする。
func NewRedirectUnauthenticated(checker AccessChecker, signInPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := checker.CheckAccess(r.Context(), session.TokenFromRequest(r))
			if !d.Allowed() {
				http.Redirect(w, r, signInPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), d.Session)))
		})
	}
}

func contextWithSession(ctx context.Context, sess *model.Session) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, sess)
	return ContextWithUserID(ctx, sess.UserID())
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if h, ok := ctx.Value(userIDHolderKey).(*userIDHolder); ok {
		h.userID = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

// SessionFromContext はガードが確認したセッションを返す。ない場合はnil。
func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionContextKey).(*model.Session)
	return sess
}

// ContextWithSession はコンテキストにセッションとそのユーザーIDを注入する。
func ContextWithSession(ctx context.Context, sess *model.Session) context.Context {
	return contextWithSession(ctx, sess)
}
