// Package account はログイン中ユーザーのプロフィールと購読の参照を提供する。
package account

import (
	"context"
	"fmt"

	"github.com/hitoshi/authgate/internal/model"
)

// ProfileFinder はプロフィールの参照インターフェース。
type ProfileFinder interface {
	FindByID(ctx context.Context, id string) (*model.Profile, error)
}

// SubscriptionFinder は購読の参照インターフェース。
type SubscriptionFinder interface {
	FindActiveByUserID(ctx context.Context, userID string) (*model.Subscription, error)
}

// Service はアカウント情報の参照サービス。
type Service struct {
	profiles ProfileFinder
	subs     SubscriptionFinder
}

// NewService はServiceを生成する。
func NewService(profiles ProfileFinder, subs SubscriptionFinder) *Service {
	return &Service{profiles: profiles, subs: subs}
}

// Profile はユーザーのプロフィールを返す。存在しない場合はPROFILE_NOT_FOUND。
func (s *Service) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError(userID)
	}
	return p, nil
}

// ActiveSubscription はユーザーの最新の有効な購読を返す。存在しない場合はSUBSCRIPTION_NOT_FOUND。
func (s *Service) ActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subs.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	if sub == nil {
		return nil, model.NewSubscriptionNotFoundError(userID)
	}
	return sub, nil
}

// Overview はホーム画面の表示内容。
// バックフィルが未完了の場合ProfileとSubscriptionはnilになる。
type Overview struct {
	User         *model.ProviderUser `json:"user"`
	Profile      *model.Profile      `json:"profile"`
	Subscription *model.Subscription `json:"subscription"`
}

// Overview はホーム画面用にユーザー・プロフィール・購読をまとめて返す。
// 行が存在しないことはエラーにしない。
func (s *Service) Overview(ctx context.Context, user *model.ProviderUser) (*Overview, error) {
	p, err := s.profiles.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	sub, err := s.subs.FindActiveByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return &Overview{User: user, Profile: p, Subscription: sub}, nil
}
