package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/authgate/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

const profileColumns = `id, email, full_name, phone, created_at, updated_at`

// FindByEmail はメールアドレスの完全一致でプロフィールを検索する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByEmail(ctx context.Context, email string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE email = $1`,
		email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by email: %w", err)
	}
	return p, nil
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}
	return p, nil
}

// Create はプロフィールを作成する。
func (r *PostgresProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Email, p.FullName, nullString(p.Phone), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// CreateIfNotExists は同一IDの行がない場合のみプロフィールを作成する。
// トリガーなどで先に作成済みの場合はfalseを返す。
func (r *PostgresProfileRepo) CreateIfNotExists(ctx context.Context, p *model.Profile) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Email, p.FullName, nullString(p.Phone), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert profile: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// scanProfile は1行をProfileに読み込む。行がない場合はnil, nilを返す。
func scanProfile(row *sql.Row) (*model.Profile, error) {
	p := &model.Profile{}
	var phone sql.NullString
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &phone, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Phone = phone.String
	return p, nil
}

// nullString は空文字列をNULLとして扱う。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
