package model

import "time"

// Profile はprofilesテーブルの1行を表す。IDはプロバイダーのユーザーIDと同一。
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone,omitempty"` // 空文字列はNULLとして保存する
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanBasic はサインアップ時に付与する既定プラン。
const PlanBasic = "basic"

// DefaultSubscriptionTerm はサインアップ時に付与する購読の有効期間（3650日）。
const DefaultSubscriptionTerm = 10 * 365 * 24 * time.Hour

// Subscription はuser_subscriptionsテーブルの1行を表す。
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Plan      string    `json:"plan"`
	Active    bool      `json:"active"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDefaultSubscription はサインアップ直後のユーザーに付与する既定の購読を生成する。
func NewDefaultSubscription(id, userID string, now time.Time) *Subscription {
	return &Subscription{
		ID:        id,
		UserID:    userID,
		Plan:      PlanBasic,
		Active:    true,
		ExpiresAt: now.Add(DefaultSubscriptionTerm),
		CreatedAt: now,
	}
}
