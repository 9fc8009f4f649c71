package ranking

import (
	"context"
	"fmt"
	"sync/atomic"

	applog "recallgate/internal/platform/log"
)

// LambdaRepository 多样性权重的持久化后端（Postgres diversity_config 表）
type LambdaRepository interface {
	GetLambda(ctx context.Context) (float64, error)
	SetLambda(ctx context.Context, lambda float64) error
}

// RuleBackend 黑名单与位置规则的持久化后端（Redis Set / position_rules 键）
type RuleBackend interface {
	AddExclusions(ctx context.Context, docIDs []string) (int64, error)
	RemoveExclusions(ctx context.Context, docIDs []string) (int64, error)
	ListExclusions(ctx context.Context) ([]string, error)
	SetPlacementRule(ctx context.Context, normalizedQuery string, rule PlacementRule) error
	DeletePlacementRule(ctx context.Context, normalizedQuery string) (bool, error)
	ListPlacementRules(ctx context.Context) (map[string]PlacementRule, error)
}

// snapshot 带代号的配置快照。gen 落后于 store 的代号时视为失效。
type snapshot struct {
	cfg *Config
	gen uint64
}

// ConfigStore 排序配置存取。
// 读路径无锁：Load 命中时直接返回不可变快照；写操作先写穿后端再使快照失效，
// 并发读者要么看到旧快照要么看到新快照，不会观察到半套配置。
type ConfigStore struct {
	lambdas       LambdaRepository
	rules         RuleBackend
	defaultLambda float64

	snap atomic.Pointer[snapshot]
	gen  atomic.Uint64
}

// NewConfigStore 创建配置存取器
func NewConfigStore(lambdas LambdaRepository, rules RuleBackend, defaultLambda float64) *ConfigStore {
	if defaultLambda < 0 || defaultLambda > 1 {
		defaultLambda = DefaultLambda
	}
	return &ConfigStore{
		lambdas:       lambdas,
		rules:         rules,
		defaultLambda: defaultLambda,
	}
}

// Load 返回当前配置快照，缓存失效时从后端重读。
// 黑名单/规则后端不可用时返回错误（上层按排序降级处理）；
// lambda 读取失败只回退默认值并告警。
func (s *ConfigStore) Load(ctx context.Context) (*Config, error) {
	gen := s.gen.Load()
	if sn := s.snap.Load(); sn != nil && sn.gen == gen {
		return sn.cfg, nil
	}

	cfg, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	// gen 取自读取开始之前：期间有写入的话快照立即视为过期，下次 Load 再读
	s.snap.Store(&snapshot{cfg: cfg, gen: gen})
	return cfg, nil
}

// Invalidate 使内存快照失效，下次 Load 重读后端
func (s *ConfigStore) Invalidate() {
	s.gen.Add(1)
}

func (s *ConfigStore) fetch(ctx context.Context) (*Config, error) {
	lambda, err := s.lambdas.GetLambda(ctx)
	if err != nil {
		applog.Warn("[RankingConfig] Failed to read lambda, using default",
			"default", s.defaultLambda,
			"error", err,
		)
		lambda = s.defaultLambda
	}

	excluded, err := s.rules.ListExclusions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exclusion set: %w", err)
	}
	ruleMap, err := s.rules.ListPlacementRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load placement rules: %w", err)
	}

	exclusions := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		exclusions[id] = struct{}{}
	}

	return &Config{
		Lambda:         lambda,
		Exclusions:     exclusions,
		PlacementRules: ruleMap,
	}, nil
}

// --- 管理写操作（写穿后端 + 快照失效）---

// GetLambda 读取当前多样性权重
func (s *ConfigStore) GetLambda(ctx context.Context) (float64, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.Lambda, nil
}

// SetLambda 更新多样性权重，λ 必须在 [0,1]
func (s *ConfigStore) SetLambda(ctx context.Context, lambda float64) error {
	if lambda < 0 || lambda > 1 {
		return ErrInvalidLambda
	}
	if err := s.lambdas.SetLambda(ctx, lambda); err != nil {
		return fmt.Errorf("persist lambda: %w", err)
	}
	s.Invalidate()
	applog.Info("[RankingConfig] Lambda updated", "lambda", lambda)
	return nil
}

// AddExclusions 批量加入黑名单，返回新增数量
func (s *ConfigStore) AddExclusions(ctx context.Context, docIDs []string) (int64, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	n, err := s.rules.AddExclusions(ctx, docIDs)
	if err != nil {
		return 0, fmt.Errorf("add exclusions: %w", err)
	}
	s.Invalidate()
	applog.Info("[RankingConfig] Exclusions added", "count", n)
	return n, nil
}

// RemoveExclusions 批量移出黑名单，返回移除数量
func (s *ConfigStore) RemoveExclusions(ctx context.Context, docIDs []string) (int64, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	n, err := s.rules.RemoveExclusions(ctx, docIDs)
	if err != nil {
		return 0, fmt.Errorf("remove exclusions: %w", err)
	}
	s.Invalidate()
	applog.Info("[RankingConfig] Exclusions removed", "count", n)
	return n, nil
}

// ListExclusions 返回黑名单全部 doc_id
func (s *ConfigStore) ListExclusions(ctx context.Context) ([]string, error) {
	return s.rules.ListExclusions(ctx)
}

// SetPlacementRule 设置位置规则。query 先规范化；position 必须 >= 0
func (s *ConfigStore) SetPlacementRule(ctx context.Context, query string, rule PlacementRule) error {
	if rule.DocID == "" {
		return ErrEmptyDocID
	}
	if rule.Position < 0 {
		return ErrInvalidPosition
	}
	normalized := NormalizeQuery(query)
	if normalized == "" {
		return fmt.Errorf("placement rule requires a non-empty query")
	}
	if err := s.rules.SetPlacementRule(ctx, normalized, rule); err != nil {
		return fmt.Errorf("persist placement rule: %w", err)
	}
	s.Invalidate()
	applog.Info("[RankingConfig] Placement rule set",
		"query", normalized,
		"doc_id", rule.DocID,
		"position", rule.Position,
	)
	return nil
}

// DeletePlacementRule 删除位置规则，规则不存在时返回 ErrRuleNotFound
func (s *ConfigStore) DeletePlacementRule(ctx context.Context, query string) error {
	normalized := NormalizeQuery(query)
	deleted, err := s.rules.DeletePlacementRule(ctx, normalized)
	if err != nil {
		return fmt.Errorf("delete placement rule: %w", err)
	}
	if !deleted {
		return ErrRuleNotFound
	}
	s.Invalidate()
	applog.Info("[RankingConfig] Placement rule deleted", "query", normalized)
	return nil
}

// ListPlacementRules 返回全部位置规则
func (s *ConfigStore) ListPlacementRules(ctx context.Context) (map[string]PlacementRule, error) {
	return s.rules.ListPlacementRules(ctx)
}
