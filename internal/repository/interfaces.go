// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/authgate/internal/model"
)

// ProfileRepository はprofilesテーブルの永続化インターフェース。
type ProfileRepository interface {
	// FindByEmail はメールアドレスの完全一致でプロフィールを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Profile, error)

	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Create はプロフィールを作成する。
	Create(ctx context.Context, profile *model.Profile) error

	// CreateIfNotExists は同一IDの行がない場合のみプロフィールを作成する。
	// 作成した場合はtrueを返す。
	CreateIfNotExists(ctx context.Context, profile *model.Profile) (bool, error)
}

// SubscriptionRepository はuser_subscriptionsテーブルの永続化インターフェース。
type SubscriptionRepository interface {
	// FindByUserID は指定ユーザーの購読を有効・無効を問わず1件取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Subscription, error)

	// FindActiveByUserID は指定ユーザーの有効な購読のうち最新のものを取得する。見つからない場合はnilを返す。
	FindActiveByUserID(ctx context.Context, userID string) (*model.Subscription, error)

	// Create は購読を作成する。
	Create(ctx context.Context, sub *model.Subscription) error

	// CreateIfNotExists は同一ユーザーの購読がない場合のみ作成する。
	// 作成した場合はtrueを返す。
	CreateIfNotExists(ctx context.Context, sub *model.Subscription) (bool, error)

	// ListUserIDsWithoutSubscription は購読を1件も持たないプロフィールのIDを最大limit件返す。
	ListUserIDsWithoutSubscription(ctx context.Context, limit int) ([]string, error)
}
