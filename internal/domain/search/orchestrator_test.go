package search

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeStrategy 可编程的召回策略桩
type fakeStrategy struct {
	name  string
	items []Candidate
	err   error
	delay time.Duration
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Recall(ctx context.Context, sctx *SearchContext, topK int) ([]Candidate, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

// TestRecallPartialFailure 单路失败只影响该路，整体仍然成功
func TestRecallPartialFailure(t *testing.T) {
	ok := &fakeStrategy{name: "vector", items: []Candidate{{DocID: "d1", Rank: 1}}}
	bad := &fakeStrategy{name: "keyword", err: errors.New("backend down")}

	orch := NewOrchestrator([]RecallStrategy{ok, bad}, time.Second)
	results, err := orch.Recall(context.Background(), &SearchContext{}, 10)
	if err != nil {
		t.Fatalf("expected success with one healthy strategy, got error: %v", err)
	}

	if len(results["vector"]) != 1 {
		t.Errorf("expected 1 result from vector, got %d", len(results["vector"]))
	}
	if len(results["keyword"]) != 0 {
		t.Errorf("expected empty result for failed keyword strategy, got %d", len(results["keyword"]))
	}
}

// TestRecallTotalFailure 全部策略失败时返回 ErrTotalRecallFailure
func TestRecallTotalFailure(t *testing.T) {
	bad1 := &fakeStrategy{name: "vector", err: errors.New("down")}
	bad2 := &fakeStrategy{name: "keyword", err: errors.New("down")}

	orch := NewOrchestrator([]RecallStrategy{bad1, bad2}, time.Second)
	results, err := orch.Recall(context.Background(), &SearchContext{}, 10)
	if !errors.Is(err, ErrTotalRecallFailure) {
		t.Fatalf("expected ErrTotalRecallFailure, got %v", err)
	}

	// 每个策略仍有对应条目，只是为空
	if _, ok := results["vector"]; !ok {
		t.Error("expected vector entry in results even on total failure")
	}
	if _, ok := results["keyword"]; !ok {
		t.Error("expected keyword entry in results even on total failure")
	}
}

// TestRecallTimeoutAbandonsSlow 超时后放弃慢策略，保留已完成结果
func TestRecallTimeoutAbandonsSlow(t *testing.T) {
	fast := &fakeStrategy{name: "keyword", items: []Candidate{{DocID: "d1", Rank: 1}}}
	slow := &fakeStrategy{name: "vector", delay: 2 * time.Second, items: []Candidate{{DocID: "d2", Rank: 1}}}

	orch := NewOrchestrator([]RecallStrategy{fast, slow}, 100*time.Millisecond)

	start := time.Now()
	results, err := orch.Recall(context.Background(), &SearchContext{}, 10)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("expected success with one fast strategy, got error: %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("expected recall to return near the 100ms deadline, took %v", elapsed)
	}
	if len(results["keyword"]) != 1 {
		t.Errorf("expected fast strategy result to survive, got %d", len(results["keyword"]))
	}
	if len(results["vector"]) != 0 {
		t.Errorf("expected slow strategy to contribute nothing, got %d", len(results["vector"]))
	}
}

// TestRecallNoStrategies 没有可用策略视为整体失败
func TestRecallNoStrategies(t *testing.T) {
	orch := NewOrchestrator(nil, time.Second)
	_, err := orch.Recall(context.Background(), &SearchContext{}, 10)
	if !errors.Is(err, ErrTotalRecallFailure) {
		t.Fatalf("expected ErrTotalRecallFailure with zero strategies, got %v", err)
	}
}

// TestStrategyInputGuards 缺少输入时策略返回哨兵错误
func TestStrategyInputGuards(t *testing.T) {
	vs := NewVectorStrategy(nil)
	if _, err := vs.Recall(context.Background(), &SearchContext{}, 10); !errors.Is(err, ErrNoQueryVector) {
		t.Errorf("expected ErrNoQueryVector without vector, got %v", err)
	}

	ks := NewKeywordStrategy(nil)
	if _, err := ks.Recall(context.Background(), &SearchContext{}, 10); !errors.Is(err, ErrNoTokens) {
		t.Errorf("expected ErrNoTokens without tokens, got %v", err)
	}
}
