package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/model"
)

// fakeStore は購読のないユーザー集合をメモリ上で管理する。
type fakeStore struct {
	missing   []string
	failFor   map[string]bool
	listErr   error
	created   []*model.Subscription
	listCalls int
}

func (f *fakeStore) ListUserIDsWithoutSubscription(ctx context.Context, limit int) ([]string, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.missing) > limit {
		return append([]string(nil), f.missing[:limit]...), nil
	}
	return append([]string(nil), f.missing...), nil
}

func (f *fakeStore) CreateIfNotExists(ctx context.Context, sub *model.Subscription) (bool, error) {
	if f.failFor[sub.UserID] {
		return false, errors.New("insert failed")
	}
	for i, id := range f.missing {
		if id == sub.UserID {
			f.missing = append(f.missing[:i], f.missing[i+1:]...)
			f.created = append(f.created, sub)
			return true, nil
		}
	}
	return false, nil
}

type countingMetrics struct {
	metrics.Nop
	reconciled []int
}

func (c *countingMetrics) RecordReconciled(n int) { c.reconciled = append(c.reconciled, n) }

// syncBuffer はゴルーチンから書き込まれるログを読むためのバッファ。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestJob(store *fakeStore, buf io.Writer, m metrics.MetricsCollector) *Job {
	job := NewJob(store, slog.New(slog.NewJSONHandler(buf, nil)), m)
	job.newID = func() string { return "sub-id" }
	job.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return job
}

func TestNewJob_Defaults(t *testing.T) {
	job := NewJob(&fakeStore{}, slog.Default(), nil)
	if job.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", job.BatchSize, DefaultBatchSize)
	}
	if _, ok := job.metrics.(metrics.Nop); !ok {
		t.Errorf("metrics = %T, want metrics.Nop", job.metrics)
	}
}

func TestRun_CreatesDefaultSubscriptions(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeStore{missing: []string{"u1", "u2"}}
	m := &countingMetrics{}

	created, err := newTestJob(store, &buf, m).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	for _, sub := range store.created {
		if sub.Plan != model.PlanBasic || !sub.Active {
			t.Errorf("subscription = %+v, want active basic", sub)
		}
		want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 3650)
		if !sub.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v, want %v", sub.ExpiresAt, want)
		}
	}
	if len(m.reconciled) != 1 || m.reconciled[0] != 2 {
		t.Errorf("RecordReconciled calls = %v, want [2]", m.reconciled)
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeStore{missing: []string{"u1"}}
	job := newTestJob(store, &buf, nil)

	job.Run(context.Background())
	created, err := job.Run(context.Background())

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if created != 0 || len(store.created) != 1 {
		t.Errorf("second run created = %d, total = %d", created, len(store.created))
	}
}

func TestRun_PagesThroughBatches(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeStore{missing: []string{"u1", "u2", "u3", "u4", "u5"}}
	job := newTestJob(store, &buf, nil)
	job.BatchSize = 2

	created, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if created != 5 {
		t.Errorf("created = %d, want 5", created)
	}
	if store.listCalls != 3 {
		t.Errorf("list calls = %d, want 3", store.listCalls)
	}
}

func TestRun_StopsWhenNoProgress(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeStore{
		missing: []string{"u1", "u2"},
		failFor: map[string]bool{"u1": true, "u2": true},
	}
	job := newTestJob(store, &buf, nil)
	job.BatchSize = 2

	created, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if created != 0 || store.listCalls != 1 {
		t.Errorf("created = %d, list calls = %d", created, store.listCalls)
	}

	// 失敗はユーザー単位でログに残る
	if strings.Count(buf.String(), "failed to create default subscription") != 2 {
		t.Errorf("expected two failure logs, got:\n%s", buf.String())
	}
}

func TestRun_ListError_ReturnsError(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeStore{listErr: errors.New("connection refused")}

	_, err := newTestJob(store, &buf, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error = %v", err)
	}
}

func TestRun_LogsCreatedCount(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeStore{missing: []string{"u1", "u2", "u3"}}

	newTestJob(store, &buf, nil).Run(context.Background())

	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) != nil {
			continue
		}
		if entry["created_count"] == float64(3) {
			found = true
		}
	}
	if !found {
		t.Errorf("log should contain created_count=3:\n%s", buf.String())
	}
}

func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf syncBuffer
	store := &fakeStore{missing: []string{"u1"}}
	job := newTestJob(store, &buf, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if strings.Contains(buf.String(), "subscription reconcile completed") {
			break
		}
		select {
		case <-deadline:
			t.Fatal("initial run did not complete")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStart_NonPositiveIntervalFallsBackToDefault(t *testing.T) {
	var buf syncBuffer
	job := newTestJob(&fakeStore{}, &buf, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		job.Start(ctx, 0)
	}()

	deadline := time.After(2 * time.Second)
	for !strings.Contains(buf.String(), "subscription reconcile completed") {
		select {
		case <-deadline:
			t.Fatal("initial run did not complete")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if !strings.Contains(buf.String(), `"default":3600000000000`) {
		t.Errorf("fallback should be logged:\n%s", buf.String())
	}
}
