// Package model はドメインモデルを定義する。
package model

import "time"

// ProviderUser は認証プロバイダーが管理するユーザーを表す。
// レスポンスにはプロバイダーから受け取った形のまま返す。
type ProviderUser struct {
	ID               string         `json:"id"`
	Aud              string         `json:"aud,omitempty"`
	Role             string         `json:"role,omitempty"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Session はプロバイダーが発行したログインセッションを表す。
// トークンの発行・更新はプロバイダー側の責務で、ここでは参照のみ行う。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *ProviderUser
}

// UserID はセッションのユーザーIDを返す。ユーザー情報がない場合は空文字列を返す。
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}
