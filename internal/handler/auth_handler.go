package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, req auth.SignUpRequest) (*auth.SignUpResult, error)
	ResendVerification(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, accessToken, password, confirm string) error
	SignOut(ctx context.Context, accessToken string)
	CurrentUser(ctx context.Context, accessToken string) (*model.ProviderUser, error)
	AuthPage(ctx context.Context, accessToken string) string
	VerifyPage(ctx context.Context, accessToken, pendingEmail string) (string, *auth.VerifyState)
	Callback(ctx context.Context, p auth.CallbackParams) string
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string // ログアウト後の遷移先
	Cookie  CookieConfig
}

// AuthHandler は認証フローのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	now     func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		now:     time.Now,
	}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AccessToken     string `json:"accessToken,omitempty"` // リカバリーリンクで受け取ったトークン
}

// AuthPage はサインイン画面の状態を返す。
// GET /auth
func (h *AuthHandler) AuthPage(w http.ResponseWriter, r *http.Request) {
	if to := h.service.AuthPage(r.Context(), session.TokenFromRequest(r)); to != "" {
		http.Redirect(w, r, to, http.StatusSeeOther)
		return
	}

	body := map[string]any{"authenticated": false}
	if msg := r.URL.Query().Get("error"); msg != "" {
		body["error"] = msg
	}
	writeJSON(w, http.StatusOK, body)
}

// SignIn はメールアドレスとパスワードでログインする。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	sess, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.config.Cookie.setSessionCookies(w, sess, h.now())
	writeJSON(w, http.StatusOK, map[string]any{"user": sess.User})
}

// SignUp はクライアントAPIでユーザーを登録し、確認待ちのメールアドレスをCookieに保存する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	res, err := h.service.SignUp(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.config.Cookie.setPendingEmail(w, res.Email)
	if res.Session != nil {
		h.config.Cookie.setSessionCookies(w, res.Session, h.now())
	}
	writeJSON(w, http.StatusOK, res)
}

// VerifyPage はメール確認待ち画面の状態を返す。
// GET /auth/verify
func (h *AuthHandler) VerifyPage(w http.ResponseWriter, r *http.Request) {
	to, state := h.service.VerifyPage(r.Context(), session.TokenFromRequest(r), pendingEmail(r))
	if to != "" {
		h.config.Cookie.clearPendingEmail(w)
		http.Redirect(w, r, to, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ResendVerification は確認メールを再送する。
// POST /auth/resend-verification
// メールアドレスは確認待ちCookie、なければボディのemailを使う。
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	email := pendingEmail(r)
	if email == "" {
		var req resendRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err)
			return
		}
		email = req.Email
	}

	if err := h.service.ResendVerification(r.Context(), email); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": auth.ResendMessage})
}

// ResetPassword はパスワードを再設定する。
// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	token := req.AccessToken
	if token == "" {
		token = session.TokenFromRequest(r)
	}

	if err := h.service.ResetPassword(r.Context(), token, req.Password, req.ConfirmPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":              auth.ResetPasswordMessage,
		"redirectTo":           auth.PathSignIn,
		"redirectAfterSeconds": auth.ResetRedirectSeconds,
	})
}

// Callback はOAuth・メールリンクからの戻り先。
// GET /auth/callback
// クエリでトークンが渡された場合は先にCookieへ保存し、セッションがなければ削除する。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := auth.CallbackParams{
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		AccessToken:      q.Get("access_token"),
	}

	fromQuery := params.AccessToken != ""
	if fromQuery && params.Error == "" && params.ErrorDescription == "" {
		h.config.Cookie.setSessionCookies(w, &model.Session{
			AccessToken:  params.AccessToken,
			RefreshToken: q.Get("refresh_token"),
		}, h.now())
	} else if !fromQuery {
		params.AccessToken = session.TokenFromRequest(r)
	}

	to := h.service.Callback(r.Context(), params)
	if fromQuery && to != auth.PathHome {
		h.config.Cookie.clearSessionCookies(w)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// Logout はセッションを失効させCookieを削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.SignOut(r.Context(), session.TokenFromRequest(r))
	h.config.Cookie.clearSessionCookies(w)

	slog.Info("logged out")
	http.Redirect(w, r, h.config.BaseURL, http.StatusSeeOther)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), session.TokenFromRequest(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
