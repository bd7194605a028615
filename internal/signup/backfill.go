package signup

import (
	"context"
	"log/slog"

	"github.com/cenkalti/backoff/v5"

	"github.com/hitoshi/authgate/internal/model"
)

// バックフィル対象テーブル（メトリクスのtableラベル）
const (
	tableProfiles      = "profiles"
	tableSubscriptions = "user_subscriptions"
)

// backfill はプロフィールと既定の購読を補完する。
// 通常モードでは失敗を記録するのみでnilを返す。
// strictモードでは両テーブルを試行したうえで、最初に失敗したテーブルのエラーを返す。
func (s *Service) backfill(ctx context.Context, userID string, in *input) error {
	ctx, span := s.tracer.Start(ctx, "signup.Backfill")
	defer span.End()

	now := s.now()
	profile := &model.Profile{
		ID:        userID,
		Email:     in.Email,
		FullName:  in.FullName,
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sub := model.NewDefaultSubscription(s.newID(), userID, now)

	if !s.opts.Strict {
		s.ensureProfile(ctx, profile)
		s.ensureSubscription(ctx, sub)
		return nil
	}

	profileErr := s.retry(ctx, tableProfiles, userID, func() (bool, error) {
		return s.profiles.CreateIfNotExists(ctx, profile)
	})
	subErr := s.retry(ctx, tableSubscriptions, userID, func() (bool, error) {
		return s.subs.CreateIfNotExists(ctx, sub)
	})

	switch {
	case profileErr != nil:
		return model.NewPersistenceFailedError("profile")
	case subErr != nil:
		return model.NewPersistenceFailedError("subscription")
	}
	return nil
}

// ensureProfile はプロフィールが存在しなければ作成する。
// 確認クエリが失敗した場合も作成を試みる。
func (s *Service) ensureProfile(ctx context.Context, p *model.Profile) {
	existing, err := s.profiles.FindByID(ctx, p.ID)
	if err == nil && existing != nil {
		return
	}

	if err := s.profiles.Create(ctx, p); err != nil {
		s.warnBackfill(tableProfiles, p.ID, err)
	}
}

// ensureSubscription は購読が1件もなければ既定の購読を作成する。
func (s *Service) ensureSubscription(ctx context.Context, sub *model.Subscription) {
	existing, err := s.subs.FindByUserID(ctx, sub.UserID)
	if err == nil && existing != nil {
		return
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		s.warnBackfill(tableSubscriptions, sub.UserID, err)
	}
}

// retry は冪等INSERTを指数バックオフで最大MaxAttempts回試行する。
func (s *Service) retry(ctx context.Context, table, userID string, op func() (bool, error)) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (bool, error) {
		attempts++
		return op()
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.opts.MaxAttempts)),
	)
	if err != nil {
		slog.Error("バックフィルのリトライが上限に達しました",
			slog.String("table", table),
			slog.String("user_id", userID),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordBackfillFailure(table)
	}
	return err
}

func (s *Service) warnBackfill(table, userID string, err error) {
	slog.Warn("バックフィルに失敗しました。ユーザーは作成済みのため処理を続行します",
		slog.String("table", table),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	s.metrics.RecordBackfillFailure(table)
}
