// Package auth はプロバイダーのクライアントAPIに委譲する認証フローを提供する。
// パスワード検証・トークン発行・メール送信はプロバイダーの責務で、ここでは入力検証と
// 画面遷移の判定のみを行う。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/provider"
	"github.com/hitoshi/authgate/internal/security"
	"github.com/hitoshi/authgate/internal/session"
)

// 画面パス
const (
	PathRoot   = "/"
	PathSignIn = "/auth"
	PathVerify = "/auth/verify"
	PathHome   = "/home"
)

// MinPasswordLength はパスワード再設定時の最小文字数。
const MinPasswordLength = 8

// レスポンスメッセージ
const (
	SignUpMessage        = "Check your email to verify your account"
	ResendMessage        = "Verification email resent successfully!"
	ResetPasswordMessage = "Your password has been updated successfully. You can now sign in with your new password."
)

// 画面遷移の待ち秒数
const (
	VerifyRedirectSeconds = 10
	ResetRedirectSeconds  = 3
)

// callbackFailurePath は認証コールバック失敗時の遷移先。
var callbackFailurePath = PathSignIn + "?error=" + url.QueryEscape("Authentication failed")

// Provider はプロバイダーのクライアントAPIのうち認証フローで使う部分。
type Provider interface {
	GetSession(ctx context.Context, accessToken string) (*model.Session, error)
	GetUser(ctx context.Context, accessToken string) (*model.ProviderUser, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, p provider.SignUpParams) (*provider.SignUpResult, error)
	UpdatePassword(ctx context.Context, accessToken, password string) (*model.ProviderUser, error)
	Resend(ctx context.Context, email, redirectTo string) error
	SignOut(ctx context.Context, accessToken string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BaseURL string // 確認メールのリンク先の組み立てに使う
}

// Service は認証フローのビジネスロジックを提供する。
type Service struct {
	provider  Provider
	sanitizer security.TextSanitizer
	config    ServiceConfig
}

// NewService はServiceを生成する。
func NewService(p Provider, sanitizer security.TextSanitizer, config ServiceConfig) *Service {
	return &Service{provider: p, sanitizer: sanitizer, config: config}
}

// VerifyRedirectURL は確認メールのリンク先URLを返す。
func (s *Service) VerifyRedirectURL() string {
	return s.config.BaseURL + PathVerify
}

// SignIn はメールアドレスとパスワードでログインする。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewMissingFieldsError()
	}

	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		slog.Warn("ログインに失敗しました", slog.String("error", err.Error()))
		return nil, model.NewProviderError(provider.MessageOf(err), "Invalid login credentials")
	}

	slog.Info("ログインしました", slog.String("user_id", sess.UserID()))
	return sess, nil
}

// SignUpRequest は公開サインアップの入力。
type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

// SignUpResult は公開サインアップの結果。
// メール確認が必要な場合Sessionはnil。
type SignUpResult struct {
	User    *model.ProviderUser `json:"user"`
	Message string              `json:"message"`
	Email   string              `json:"-"` // 確認待ちのメールアドレス
	Session *model.Session      `json:"-"`
}

// SignUp はクライアントAPIでユーザーを登録し、確認メールを送信させる。
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	email := strings.TrimSpace(req.Email)
	first := s.sanitizer.Clean(req.FirstName)
	last := s.sanitizer.Clean(req.LastName)
	if email == "" || strings.TrimSpace(req.Password) == "" || first == "" || last == "" {
		return nil, model.NewMissingFieldsError()
	}

	data := map[string]any{"full_name": first + " " + last}
	if phone := s.sanitizer.Clean(req.Phone); phone != "" {
		data["phone"] = phone
	}

	res, err := s.provider.SignUp(ctx, provider.SignUpParams{
		Email:      email,
		Password:   req.Password,
		Data:       data,
		RedirectTo: s.VerifyRedirectURL(),
	})
	if err != nil {
		slog.Warn("サインアップに失敗しました", slog.String("error", err.Error()))
		return nil, model.NewProviderError(provider.MessageOf(err), "Error signing up")
	}

	return &SignUpResult{
		User:    res.User,
		Message: SignUpMessage,
		Email:   email,
		Session: res.Session,
	}, nil
}

// ResendVerification は確認メールを再送する。
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.NewValidationError("Please go back to sign up to resend verification email")
	}

	if err := s.provider.Resend(ctx, email, s.VerifyRedirectURL()); err != nil {
		slog.Warn("確認メールの再送に失敗しました", slog.String("error", err.Error()))
		return model.NewProviderError(provider.MessageOf(err), "Failed to resend verification email")
	}
	return nil
}

// ResetPassword はセッションまたはリカバリートークンのユーザーのパスワードを変更する。
func (s *Service) ResetPassword(ctx context.Context, accessToken, password, confirm string) error {
	if accessToken == "" {
		return model.NewUnauthorizedError()
	}
	if password == "" || confirm == "" {
		return model.NewValidationError("Both fields are required")
	}
	if password != confirm {
		return model.NewValidationError("Passwords do not match")
	}
	if len([]rune(password)) < MinPasswordLength {
		return model.NewValidationError(fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength))
	}

	user, err := s.provider.UpdatePassword(ctx, accessToken, password)
	if err != nil {
		if provider.IsUnauthorized(err) {
			return model.NewUnauthorizedError()
		}
		slog.Warn("パスワードの変更に失敗しました", slog.String("error", err.Error()))
		return model.NewProviderError(provider.MessageOf(err), "An error occurred during password reset")
	}

	slog.Info("パスワードを変更しました", slog.String("user_id", user.ID))
	return nil
}

// SignOut はセッションを失効させる。失敗してもCookieは削除するためエラーは返さない。
func (s *Service) SignOut(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		slog.Warn("ログアウトに失敗しました", slog.String("error", err.Error()))
	}
}

// CurrentUser はアクセストークンのユーザーを返す。
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*model.ProviderUser, error) {
	if accessToken == "" {
		return nil, model.NewUnauthorizedError()
	}
	user, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		if provider.IsUnauthorized(err) {
			return nil, model.NewUnauthorizedError()
		}
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return user, nil
}

// AuthPage はサインイン画面の遷移先を返す。セッションがあればトップへ、なければ空文字列。
func (s *Service) AuthPage(ctx context.Context, accessToken string) string {
	if s.hasSession(ctx, accessToken) {
		return PathRoot
	}
	return ""
}

// VerifyState はメール確認待ち画面の表示内容。
type VerifyState struct {
	Verified             bool   `json:"verified"`
	PendingEmail         string `json:"pendingEmail,omitempty"`
	RedirectAfterSeconds int    `json:"redirectAfterSeconds"`
	RedirectTo           string `json:"redirectTo"`
}

// VerifyPage はメール確認待ち画面の遷移先と表示内容を返す。
// 確認リンク経由でセッションがあればホームへ遷移する。
func (s *Service) VerifyPage(ctx context.Context, accessToken, pendingEmail string) (string, *VerifyState) {
	if s.hasSession(ctx, accessToken) {
		return PathHome, nil
	}
	return "", &VerifyState{
		PendingEmail:         pendingEmail,
		RedirectAfterSeconds: VerifyRedirectSeconds,
		RedirectTo:           PathSignIn,
	}
}

// CallbackParams はOAuthコールバックのクエリパラメータ。
type CallbackParams struct {
	Error            string
	ErrorDescription string
	AccessToken      string
}

// Callback は認証コールバック後の遷移先を返す。
// プロバイダーのエラーとセッション確認の失敗はサインイン画面にエラー付きで戻す。
func (s *Service) Callback(ctx context.Context, p CallbackParams) string {
	if p.Error != "" || p.ErrorDescription != "" {
		slog.Warn("認証コールバックでエラーを受け取りました",
			slog.String("error", p.Error),
			slog.String("error_description", p.ErrorDescription),
		)
		return callbackFailurePath
	}
	if p.AccessToken == "" {
		return PathSignIn
	}

	sess, err := s.provider.GetSession(ctx, p.AccessToken)
	if err != nil {
		slog.Error("認証コールバックでセッションの確認に失敗しました", slog.String("error", err.Error()))
		return callbackFailurePath
	}
	if sess == nil {
		return PathSignIn
	}
	return PathHome
}

// hasSession はセッションの有無を返す。確認の失敗はセッションなしとして扱う。
func (s *Service) hasSession(ctx context.Context, accessToken string) bool {
	if accessToken == "" {
		return false
	}
	sess, err := s.provider.GetSession(ctx, accessToken)
	return session.Decide(sess, err) == session.StateAllowed
}
