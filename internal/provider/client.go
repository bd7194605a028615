// Package provider はホスト型認証プロバイダー（GoTrue互換）のHTTPクライアントを提供する。
// クライアントAPIはanonキー、管理APIはservice roleキーで呼び出す。
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hitoshi/authgate/internal/metrics"
)

// apiPath は認証APIのベースパス。
const apiPath = "/auth/v1"

// maxResponseBytes はレスポンスボディの読み取り上限。
const maxResponseBytes = 1 << 20

// Config はClientの設定。
type Config struct {
	URL            string // プロジェクトURL（例: https://xxx.supabase.co）
	AnonKey        string
	ServiceRoleKey string // サーバー専用。ログやエラーに含めないこと
	JWTSecret      string // 空の場合はアクセストークンの署名検証を行わない
	Timeout        time.Duration
}

// Client は認証プロバイダーのHTTPクライアント。
// グローバルなシングルトンは持たず、起動時に明示的に生成して依存として渡す。
type Client struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	tokens         *tokenVerifier
	httpClient     *http.Client
	logger         *slog.Logger
	metrics        metrics.MetricsCollector
}

// NewClient はClientを生成する。
// httpClientがnilの場合はotelhttpで計装したクライアントを生成する。
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger, m metrics.MetricsCollector) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Client{
		baseURL:        cfg.URL + apiPath,
		anonKey:        cfg.AnonKey,
		serviceRoleKey: cfg.ServiceRoleKey,
		tokens:         newTokenVerifier(cfg.JWTSecret),
		httpClient:     httpClient,
		logger:         logger,
		metrics:        m,
	}
}

// Error はプロバイダーが返したエラーレスポンスを表す。
type Error struct {
	Status  int
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned status %d", e.Status)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Message)
}

// IsUnauthorized はエラーがトークン無効（401/403）を示すかを返す。
func IsUnauthorized(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Status == http.StatusUnauthorized || pe.Status == http.StatusForbidden
	}
	return false
}

// MessageOf はエラーがプロバイダーのエラーであればそのメッセージを返す。
func MessageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return ""
}

// request は1回のAPI呼び出しのパラメータ。
type request struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
	bearer    string
	admin     bool
}

// do はAPIを呼び出し、2xxの場合はレスポンスをoutにデコードする。
// 非2xxの場合は*Errorを返す。
func (c *Client) do(ctx context.Context, r request, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.RecordProviderLatency(r.operation, time.Since(start))
	}()

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", r.operation, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", r.operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	apiKey := c.anonKey
	if r.admin {
		apiKey = c.serviceRoleKey
	}
	req.Header.Set("apikey", apiKey)

	bearer := r.bearer
	if r.admin {
		bearer = c.serviceRoleKey
	}
	if bearer == "" {
		bearer = apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("provider request failed",
			slog.String("operation", r.operation),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s request failed: %w", r.operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", r.operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		pe := &Error{Status: resp.StatusCode, Message: errorMessage(respBody)}
		level := slog.LevelWarn
		if resp.StatusCode >= 500 {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "provider returned error status",
			slog.String("operation", r.operation),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", pe.Message),
		)
		return pe
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", r.operation, err)
	}
	return nil
}

// errorMessage はエラーレスポンスからメッセージを取り出す。
// GoTrueはエンドポイントやバージョンによりフィールド名が異なる。
func errorMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"msg", "message", "error_description", "error"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
