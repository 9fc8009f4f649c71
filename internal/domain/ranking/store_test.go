package ranking

import (
	"context"
	"errors"
	"testing"
)

// TestStoreSnapshotCaching 快照命中时不再访问后端，写操作使快照失效
func TestStoreSnapshotCaching(t *testing.T) {
	lambdas := &memLambdaRepo{lambda: 0.7}
	rules := newMemRuleBackend()
	store := NewConfigStore(lambdas, rules, DefaultLambda)

	ctx := context.Background()

	cfg, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Lambda != 0.7 {
		t.Errorf("expected lambda 0.7, got %f", cfg.Lambda)
	}

	if _, err := store.Load(ctx); err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if rules.fetches != 1 {
		t.Errorf("expected snapshot hit on second load, backend fetched %d times", rules.fetches)
	}

	// 写操作写穿后端并使快照失效
	if err := store.SetLambda(ctx, 0.3); err != nil {
		t.Fatalf("set lambda failed: %v", err)
	}
	cfg, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load after write failed: %v", err)
	}
	if cfg.Lambda != 0.3 {
		t.Errorf("expected updated lambda 0.3, got %f", cfg.Lambda)
	}
	if rules.fetches != 2 {
		t.Errorf("expected backend refetch after invalidation, fetched %d times", rules.fetches)
	}
}

// TestStoreLambdaFailSoft lambda 后端失败时回退默认值，不阻塞排序
func TestStoreLambdaFailSoft(t *testing.T) {
	lambdas := &memLambdaRepo{err: errors.New("postgres down")}
	store := NewConfigStore(lambdas, newMemRuleBackend(), 0.42)

	cfg, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("expected fail-soft load, got error: %v", err)
	}
	if cfg.Lambda != 0.42 {
		t.Errorf("expected default lambda 0.42, got %f", cfg.Lambda)
	}
}

// TestStoreRulesBackendErrorPropagates 规则后端失败必须上抛（由排序引擎降级处理）
func TestStoreRulesBackendErrorPropagates(t *testing.T) {
	rules := newMemRuleBackend()
	rules.listErr = errors.New("redis down")
	store := NewConfigStore(&memLambdaRepo{lambda: 0.5}, rules, DefaultLambda)

	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected error when rule backend is down")
	}
}

// TestStoreValidation 管理写操作的边界校验
func TestStoreValidation(t *testing.T) {
	store := NewConfigStore(&memLambdaRepo{lambda: 0.5}, newMemRuleBackend(), DefaultLambda)
	ctx := context.Background()

	if err := store.SetLambda(ctx, 1.5); !errors.Is(err, ErrInvalidLambda) {
		t.Errorf("expected ErrInvalidLambda for 1.5, got %v", err)
	}
	if err := store.SetLambda(ctx, -0.1); !errors.Is(err, ErrInvalidLambda) {
		t.Errorf("expected ErrInvalidLambda for -0.1, got %v", err)
	}
	if err := store.SetLambda(ctx, 0.0); err != nil {
		t.Errorf("expected boundary 0.0 to be valid, got %v", err)
	}
	if err := store.SetLambda(ctx, 1.0); err != nil {
		t.Errorf("expected boundary 1.0 to be valid, got %v", err)
	}

	if err := store.SetPlacementRule(ctx, "golang", PlacementRule{DocID: "", Position: 0}); !errors.Is(err, ErrEmptyDocID) {
		t.Errorf("expected ErrEmptyDocID, got %v", err)
	}
	if err := store.SetPlacementRule(ctx, "golang", PlacementRule{DocID: "d1", Position: -1}); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("expected ErrInvalidPosition, got %v", err)
	}
	if err := store.DeletePlacementRule(ctx, "missing"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("expected ErrRuleNotFound, got %v", err)
	}
}

// TestStorePlacementRuleNormalization 规则按规范化查询存储，读写一致
func TestStorePlacementRuleNormalization(t *testing.T) {
	store := NewConfigStore(&memLambdaRepo{lambda: 0.5}, newMemRuleBackend(), DefaultLambda)
	ctx := context.Background()

	if err := store.SetPlacementRule(ctx, "  Golang Tips ", PlacementRule{DocID: "d1", Position: 2}); err != nil {
		t.Fatalf("set rule failed: %v", err)
	}

	cfg, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	rule, ok := cfg.Rule("golang tips")
	if !ok {
		t.Fatal("expected rule stored under normalized query")
	}
	if rule.DocID != "d1" || rule.Position != 2 {
		t.Errorf("unexpected rule: %+v", rule)
	}

	if err := store.DeletePlacementRule(ctx, "GOLANG TIPS"); err != nil {
		t.Errorf("expected delete by differently-cased query to succeed, got %v", err)
	}
}

// TestStoreExclusionRoundTrip 黑名单增删与快照联动
func TestStoreExclusionRoundTrip(t *testing.T) {
	store := NewConfigStore(&memLambdaRepo{lambda: 0.5}, newMemRuleBackend(), DefaultLambda)
	ctx := context.Background()

	n, err := store.AddExclusions(ctx, []string{"d1", "d2", "d1"})
	if err != nil {
		t.Fatalf("add exclusions failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 new exclusions (set dedup), got %d", n)
	}

	cfg, _ := store.Load(ctx)
	if !cfg.IsExcluded("d1") || !cfg.IsExcluded("d2") {
		t.Error("expected d1 and d2 excluded")
	}

	if _, err := store.RemoveExclusions(ctx, []string{"d1"}); err != nil {
		t.Fatalf("remove exclusions failed: %v", err)
	}
	cfg, _ = store.Load(ctx)
	if cfg.IsExcluded("d1") {
		t.Error("expected d1 removed from exclusions")
	}
	if !cfg.IsExcluded("d2") {
		t.Error("expected d2 still excluded")
	}
}
