// Package reconcile はサインアップ時に作成できなかった既定購読を補完するジョブを提供する。
// 購読を1件も持たないプロフィールに対し、basicプランの有効な購読を作成する。
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/model"
)

const (
	// DefaultBatchSize は1回の問い合わせで取得するユーザー数。
	DefaultBatchSize = 100
	// DefaultInterval はStartに正でない間隔が渡された場合の実行間隔。
	DefaultInterval = time.Hour
)

// SubscriptionStore は補完ジョブが必要とする購読リポジトリの操作。
type SubscriptionStore interface {
	ListUserIDsWithoutSubscription(ctx context.Context, limit int) ([]string, error)
	CreateIfNotExists(ctx context.Context, sub *model.Subscription) (bool, error)
}

// Job は購読の欠落を補完するジョブ。何度実行しても結果は変わらない。
type Job struct {
	subs      SubscriptionStore
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	BatchSize int

	newID func() string
	now   func() time.Time
}

// NewJob は新しいJobを生成する。mがnilの場合はメトリクスを記録しない。
func NewJob(subs SubscriptionStore, logger *slog.Logger, m metrics.MetricsCollector) *Job {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Job{
		subs:      subs,
		logger:    logger,
		metrics:   m,
		BatchSize: DefaultBatchSize,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
}

// Run は購読のないユーザーに既定の購読を作成し、作成件数を返す。
// 個々のユーザーの作成失敗はログに残して続行する。一覧の取得に失敗した場合はエラーを返す。
func (j *Job) Run(ctx context.Context) (int, error) {
	start := time.Now()
	created, failed := 0, 0

	for {
		ids, err := j.subs.ListUserIDsWithoutSubscription(ctx, j.BatchSize)
		if err != nil {
			j.logger.Error("failed to list users without subscription",
				slog.String("error", err.Error()),
			)
			return created, fmt.Errorf("failed to list users without subscription: %w", err)
		}

		batchCreated := 0
		for _, userID := range ids {
			if err := ctx.Err(); err != nil {
				return created, err
			}

			ok, err := j.subs.CreateIfNotExists(ctx, model.NewDefaultSubscription(j.newID(), userID, j.now()))
			if err != nil {
				failed++
				j.logger.Error("failed to create default subscription",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if ok {
				batchCreated++
			}
		}
		created += batchCreated

		// 失敗したユーザーは次回も一覧に残るため、進捗がなければ打ち切る
		if len(ids) < j.BatchSize || batchCreated == 0 {
			break
		}
	}

	j.metrics.RecordReconciled(created)
	j.logger.Info("subscription reconcile completed",
		slog.Int("created_count", created),
		slog.Int("failed_count", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return created, nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		j.logger.Warn("non-positive reconcile interval, using default",
			slog.Duration("interval", interval),
			slog.Duration("default", DefaultInterval),
		)
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("reconcile worker started", slog.Duration("interval", interval))

	j.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *Job) runLogged(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("reconcile cycle failed", slog.String("error", err.Error()))
	}
}
