package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/authgate/internal/model"
)

// プロバイダー操作名（メトリクスのoperationラベル）
const (
	OpGetUser         = "get_user"
	OpSignIn          = "sign_in_password"
	OpSignUp          = "sign_up"
	OpUpdateUser      = "update_user"
	OpResend          = "resend"
	OpSignOut         = "sign_out"
	OpAdminCreateUser = "admin_create_user"
)

// tokenResponse はトークン発行系エンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string              `json:"access_token"`
	TokenType    string              `json:"token_type"`
	ExpiresIn    int64               `json:"expires_in"`
	ExpiresAt    int64               `json:"expires_at"`
	RefreshToken string              `json:"refresh_token"`
	User         *model.ProviderUser `json:"user"`
}

func (t *tokenResponse) session(now time.Time) *model.Session {
	s := &model.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		User:         t.User,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return s
}

// GetUser はアクセストークンに紐づくユーザーを取得する。
func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.ProviderUser, error) {
	var user model.ProviderUser
	err := c.do(ctx, request{
		operation: OpGetUser,
		method:    http.MethodGet,
		path:      "/user",
		bearer:    accessToken,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetSession はアクセストークンが有効なセッションを表すかを確認する。
// セッションがない場合（トークンなし・無効・期限切れ・プロバイダーが401/403）はnil, nilを返す。
// それ以外の失敗はエラーとして返す。
func (c *Client) GetSession(ctx context.Context, accessToken string) (*model.Session, error) {
	if accessToken == "" {
		return nil, nil
	}

	expiresAt, err := c.tokens.inspect(accessToken)
	if err != nil {
		c.logger.Debug("access token rejected locally", slog.String("reason", err.Error()))
		return nil, nil
	}

	user, err := c.GetUser(ctx, accessToken)
	if err != nil {
		if IsUnauthorized(err) {
			return nil, nil
		}
		return nil, err
	}

	return &model.Session{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// SignInWithPassword はメールアドレスとパスワードでログインし、セッションを返す。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	var tr tokenResponse
	err := c.do(ctx, request{
		operation: OpSignIn,
		method:    http.MethodPost,
		path:      "/token",
		query:     url.Values{"grant_type": {"password"}},
		body:      map[string]string{"email": email, "password": password},
	}, &tr)
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, errors.New("sign in response did not contain an access token")
	}
	return tr.session(time.Now()), nil
}

// SignUpParams は公開サインアップのパラメータ。
type SignUpParams struct {
	Email      string
	Password   string
	Data       map[string]any // user_metadataとして保存される
	RedirectTo string         // 確認メールのリンク先
}

// SignUpResult は公開サインアップの結果。
// メール確認が必要な場合Sessionはnilになる。
type SignUpResult struct {
	User    *model.ProviderUser
	Session *model.Session
}

// SignUp はクライアントAPIでユーザーを登録する。確認メールはプロバイダーが送信する。
func (c *Client) SignUp(ctx context.Context, p SignUpParams) (*SignUpResult, error) {
	var query url.Values
	if p.RedirectTo != "" {
		query = url.Values{"redirect_to": {p.RedirectTo}}
	}

	var raw json.RawMessage
	err := c.do(ctx, request{
		operation: OpSignUp,
		method:    http.MethodPost,
		path:      "/signup",
		query:     query,
		body: map[string]any{
			"email":    p.Email,
			"password": p.Password,
			"data":     p.Data,
		},
	}, &raw)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return &SignUpResult{}, nil
	}

	// 自動確認が有効な場合はセッション、そうでない場合はユーザーそのものが返る
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", OpSignUp, err)
	}
	if tr.AccessToken != "" {
		return &SignUpResult{User: tr.User, Session: tr.session(time.Now())}, nil
	}

	var user model.ProviderUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", OpSignUp, err)
	}
	if user.ID == "" {
		return &SignUpResult{}, nil
	}
	return &SignUpResult{User: &user}, nil
}

// UpdatePassword はアクセストークンのユーザーのパスワードを変更する。
// リカバリーリンクで発行されたトークンも受け付ける。
func (c *Client) UpdatePassword(ctx context.Context, accessToken, password string) (*model.ProviderUser, error) {
	var user model.ProviderUser
	err := c.do(ctx, request{
		operation: OpUpdateUser,
		method:    http.MethodPut,
		path:      "/user",
		body:      map[string]string{"password": password},
		bearer:    accessToken,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Resend はサインアップ確認メールを再送する。
func (c *Client) Resend(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, request{
		operation: OpResend,
		method:    http.MethodPost,
		path:      "/resend",
		query:     query,
		body:      map[string]string{"type": "signup", "email": email},
	}, nil)
}

// SignOut はアクセストークンのセッションを失効させる。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, request{
		operation: OpSignOut,
		method:    http.MethodPost,
		path:      "/logout",
		bearer:    accessToken,
	}, nil)
}

// AdminCreateUserParams は管理APIでのユーザー作成パラメータ。
type AdminCreateUserParams struct {
	Email        string
	Password     string
	EmailConfirm bool
	UserMetadata map[string]any
}

// AdminCreateUser はservice roleキーでユーザーを作成する。
// 成功レスポンスにユーザーが含まれない場合はnil, nilを返す。
func (c *Client) AdminCreateUser(ctx context.Context, p AdminCreateUserParams) (*model.ProviderUser, error) {
	var user model.ProviderUser
	err := c.do(ctx, request{
		operation: OpAdminCreateUser,
		method:    http.MethodPost,
		path:      "/admin/users",
		body: map[string]any{
			"email":         p.Email,
			"password":      p.Password,
			"email_confirm": p.EmailConfirm,
			"user_metadata": p.UserMetadata,
		},
		admin: true,
	}, &user)
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}
