package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/authgate/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

const subscriptionColumns = `id, user_id, plan, active, expires_at, created_at`

// FindByUserID は指定ユーザーの購読を有効・無効を問わず1件取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM user_subscriptions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription by user ID: %w", err)
	}
	return sub, nil
}

// FindActiveByUserID は指定ユーザーの有効な購読のうち最新のものを取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM user_subscriptions
		 WHERE user_id = $1 AND active = true
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find active subscription: %w", err)
	}
	return sub, nil
}

// Create は購読を作成する。
func (r *PostgresSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_subscriptions (id, user_id, plan, active, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.ID, sub.UserID, sub.Plan, sub.Active, sub.ExpiresAt, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

// CreateIfNotExists は同一ユーザーの購読がない場合のみ作成する。
func (r *PostgresSubscriptionRepo) CreateIfNotExists(ctx context.Context, sub *model.Subscription) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO user_subscriptions (id, user_id, plan, active, expires_at, created_at)
		 SELECT $1::uuid, $2::uuid, $3, $4::boolean, $5::timestamptz, $6::timestamptz
		 WHERE NOT EXISTS (SELECT 1 FROM user_subscriptions WHERE user_id = $2)`,
		sub.ID, sub.UserID, sub.Plan, sub.Active, sub.ExpiresAt, sub.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert subscription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListUserIDsWithoutSubscription は購読を1件も持たないプロフィールのIDを作成日時順に最大limit件返す。
func (r *PostgresSubscriptionRepo) ListUserIDsWithoutSubscription(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id FROM profiles p
		 WHERE NOT EXISTS (SELECT 1 FROM user_subscriptions s WHERE s.user_id = p.id)
		 ORDER BY p.created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users without subscription: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users without subscription: %w", err)
	}
	return ids, nil
}

// scanSubscription は1行をSubscriptionに読み込む。行がない場合はnil, nilを返す。
func scanSubscription(row *sql.Row) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := row.Scan(&sub.ID, &sub.UserID, &sub.Plan, &sub.Active, &sub.ExpiresAt, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
