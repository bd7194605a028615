// Package session はプロバイダーのセッション有無に基づくアクセス判定を提供する。
// 判定は純粋関数で行い、リダイレクトなどの副作用はHTTPミドルウェアが担う。
package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/model"
)

// Cookie名
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
)

// State はガードの判定状態。
type State string

const (
	// StateChecking はプロバイダーの応答待ち。保護対象の内容は表示しない。
	StateChecking State = "checking"
	// StateAllowed はセッションが存在する。
	StateAllowed State = "allowed"
	// StateDenied はセッションがない、または確認に失敗した。
	StateDenied State = "denied"
)

// Decide はプロバイダーの応答から判定状態を決める。
// 確認に失敗した場合はセッションなしと同じ扱いにする。
func Decide(sess *model.Session, err error) State {
	if err != nil || sess == nil {
		return StateDenied
	}
	return StateAllowed
}

// Getter はアクセストークンからセッションを取得するインターフェース。
// セッションがない場合はnil, nilを返す。
type Getter interface {
	GetSession(ctx context.Context, accessToken string) (*model.Session, error)
}

// Decision はCheckAccessの結果。
type Decision struct {
	State   State
	Session *model.Session
}

// Allowed はアクセスを許可するかを返す。
func (d Decision) Allowed() bool {
	return d.State == StateAllowed
}

// Guard はリクエストのアクセス可否を判定する。
type Guard struct {
	sessions Getter
	metrics  metrics.MetricsCollector
}

// NewGuard はGuardを生成する。
func NewGuard(sessions Getter, m metrics.MetricsCollector) *Guard {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Guard{sessions: sessions, metrics: m}
}

// CheckAccess はセッションの有無を1回だけ問い合わせて判定する。リトライはしない。
// トークンが空の場合はプロバイダーを呼ばずにDeniedを返す。
func (g *Guard) CheckAccess(ctx context.Context, accessToken string) Decision {
	if accessToken == "" {
		return g.record(Decision{State: StateDenied})
	}

	sess, err := g.sessions.GetSession(ctx, accessToken)
	if err != nil {
		slog.Warn("セッションの確認に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	d := Decision{State: Decide(sess, err)}
	if d.State == StateAllowed {
		d.Session = sess
	}
	return g.record(d)
}

func (g *Guard) record(d Decision) Decision {
	g.metrics.RecordGuardDecision(string(d.State))
	return d
}

// TokenFromRequest はアクセストークンをCookie、次にAuthorizationヘッダーから取得する。
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
