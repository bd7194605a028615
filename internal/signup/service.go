// Package signup はサービスロールによるカスタムサインアップを提供する。
// 管理APIでメール確認済みのユーザーを作成し、profilesとuser_subscriptionsの行を補完する。
package signup

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/provider"
	"github.com/hitoshi/authgate/internal/repository"
	"github.com/hitoshi/authgate/internal/security"
	"github.com/hitoshi/authgate/internal/telemetry"
)

// SuccessMessage はサインアップ成功時のレスポンスメッセージ。
const SuccessMessage = "User created successfully"

// fallbackProviderMessage はプロバイダーがメッセージを返さなかった場合のエラーメッセージ。
const fallbackProviderMessage = "Error creating user"

// AdminUserCreator は管理APIでユーザーを作成するインターフェース。
type AdminUserCreator interface {
	AdminCreateUser(ctx context.Context, p provider.AdminCreateUserParams) (*model.ProviderUser, error)
}

// Request はサインアップの入力。Phoneのみ任意。
type Request struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

// Result はサインアップの結果。
type Result struct {
	User    *model.ProviderUser `json:"user"`
	Message string              `json:"message"`
}

// Options はバックフィルの動作設定。
type Options struct {
	// Strict が有効な場合、バックフィルを冪等INSERTとリトライで実行し、
	// 失敗時はPERSISTENCE_FAILEDを返す。無効な場合は失敗をログとメトリクスに残して成功を返す。
	Strict bool
	// MaxAttempts はstrictモードでの1テーブルあたりの最大試行回数。
	MaxAttempts int
}

// Service はカスタムサインアップのサービス層。
type Service struct {
	profiles  repository.ProfileRepository
	subs      repository.SubscriptionRepository
	users     AdminUserCreator
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	tracer    trace.Tracer
	opts      Options

	newID      func() string
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

// NewService はServiceを生成する。
func NewService(
	profiles repository.ProfileRepository,
	subs repository.SubscriptionRepository,
	users AdminUserCreator,
	sanitizer security.TextSanitizer,
	m metrics.MetricsCollector,
	opts Options,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Service{
		profiles:  profiles,
		subs:      subs,
		users:     users,
		sanitizer: sanitizer,
		metrics:   m,
		tracer:    telemetry.Tracer("github.com/hitoshi/authgate/internal/signup"),
		opts:      opts,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

// Signup はユーザーを作成し、プロフィールと既定の購読を補完する。
//
// 手順:
//  1. メールアドレスでプロフィールを検索し、存在すればALREADY_REGISTERED
//  2. 管理APIでメール確認済みユーザーを作成
//  3. プロフィールがなければ作成
//  4. 購読がなければbasicプランで作成
//
// 1と2の間は排他制御しない。同時リクエストの重複はプロバイダーの一意性制約で防ぐ。
func (s *Service) Signup(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "signup.Signup")
	defer span.End()

	in, apiErr := s.normalize(req)
	if apiErr != nil {
		s.metrics.RecordSignup(metrics.SignupValidationError)
		return nil, apiErr
	}

	// 1. 既存プロフィールの確認
	existing, err := s.lookupByEmail(ctx, in.Email)
	if err != nil {
		slog.Warn("プロフィールの重複確認に失敗しました。処理を続行します",
			slog.String("error", err.Error()),
		)
	}
	if existing != nil {
		s.metrics.RecordSignup(metrics.SignupAlreadyRegistered)
		return nil, model.NewAlreadyRegisteredError()
	}

	// 2. 管理APIでユーザー作成
	user, err := s.createUser(ctx, in)
	if err != nil {
		slog.Error("ユーザーの作成に失敗しました",
			slog.String("error", err.Error()),
		)
		span.SetStatus(codes.Error, "admin create user failed")
		s.metrics.RecordSignup(metrics.SignupProviderError)
		return nil, model.NewProviderError(provider.MessageOf(err), fallbackProviderMessage)
	}
	if user == nil {
		s.metrics.RecordSignup(metrics.SignupCreationFailed)
		return nil, model.NewCreationFailedError()
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	// 3, 4. バックフィル
	if err := s.backfill(ctx, user.ID, in); err != nil {
		span.SetStatus(codes.Error, "backfill failed")
		s.metrics.RecordSignup(metrics.SignupPersistenceFailed)
		return nil, err
	}

	slog.Info("ユーザーを作成しました",
		slog.String("user_id", user.ID),
	)
	s.metrics.RecordSignup(metrics.SignupSuccess)

	return &Result{User: user, Message: SuccessMessage}, nil
}

// input は正規化済みのサインアップ入力。
type input struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// normalize は必須項目を検証し、氏名と電話番号からマークアップを除去する。
// 空白のみの値は未入力として扱う。
func (s *Service) normalize(req Request) (*input, *model.APIError) {
	email := strings.TrimSpace(req.Email)
	first := s.sanitizer.Clean(req.FirstName)
	last := s.sanitizer.Clean(req.LastName)

	if email == "" || strings.TrimSpace(req.Password) == "" || first == "" || last == "" {
		return nil, model.NewMissingFieldsError()
	}

	return &input{
		Email:    email,
		Password: req.Password,
		FullName: first + " " + last,
		Phone:    s.sanitizer.Clean(req.Phone),
	}, nil
}

func (s *Service) lookupByEmail(ctx context.Context, email string) (*model.Profile, error) {
	ctx, span := s.tracer.Start(ctx, "signup.LookupProfile")
	defer span.End()

	p, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
	}
	return p, err
}

func (s *Service) createUser(ctx context.Context, in *input) (*model.ProviderUser, error) {
	ctx, span := s.tracer.Start(ctx, "signup.AdminCreateUser")
	defer span.End()

	meta := map[string]any{"full_name": in.FullName}
	if in.Phone != "" {
		meta["phone"] = in.Phone
	}

	user, err := s.users.AdminCreateUser(ctx, provider.AdminCreateUserParams{
		Email:        in.Email,
		Password:     in.Password,
		EmailConfirm: true,
		UserMetadata: meta,
	})
	if err != nil {
		span.RecordError(err)
	}
	return user, err
}
