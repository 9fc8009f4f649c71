package ranking

import (
	"context"

	applog "recallgate/internal/platform/log"

	"recallgate/internal/domain/search"
)

// Engine 排序引擎。
//
// 对融合结果依次执行三个子阶段: 黑名单过滤 → MMR 多样性重排 → 位置插入规则。
// 三个阶段都是请求本地的纯变换；唯一的共享状态是 ConfigStore 的配置快照。
// 配置存储不可用时整体跳过（fail-open），排序永远不会让搜索失败。
type Engine struct {
	store *ConfigStore
}

// NewEngine 创建排序引擎
func NewEngine(store *ConfigStore) *Engine {
	return &Engine{store: store}
}

// Apply 应用完整排序流程，返回最终列表和各阶段计数
func (e *Engine) Apply(ctx context.Context, query string, fused []search.FusedCandidate, topN int) ([]search.FusedCandidate, search.RankingStats) {
	var stats search.RankingStats
	if len(fused) == 0 {
		return nil, stats
	}

	cfg, err := e.store.Load(ctx)
	if err != nil {
		// 降级：返回融合顺序，跳过全部排序阶段
		applog.Error("[Ranking] Config store unavailable, skipping ranking", "error", err)
		stats.Skipped = true
		if topN > 0 && len(fused) > topN {
			fused = fused[:topN]
		}
		return fused, stats
	}

	// Step 1: 黑名单过滤（保持存活候选的相对顺序）
	filtered := make([]search.FusedCandidate, 0, len(fused))
	for _, fc := range fused {
		if cfg.IsExcluded(fc.DocID) {
			continue
		}
		filtered = append(filtered, fc)
	}
	stats.Excluded = len(fused) - len(filtered)
	if stats.Excluded > 0 {
		applog.Info("[Ranking] Exclusion filter applied", "removed", stats.Excluded)
	}

	// Step 2: MMR 多样性重排
	selected := mmrRerank(filtered, cfg.Lambda, topN)
	stats.Diversified = len(selected)

	// Step 3: 位置插入规则。filtered 作为元数据兜底池：
	// 被 MMR 截掉（而非被黑名单剔除）的文档插回时保留已知元数据。
	final, placed := e.applyPlacement(query, selected, filtered, cfg)
	stats.Placed = placed

	return final, stats
}

// applyPlacement 位置插入：删除已有出现，再插入到 min(position, len)。
// 黑名单中的 doc_id 即便有规则也不插入（黑名单不变式优先）。
func (e *Engine) applyPlacement(query string, items, pool []search.FusedCandidate, cfg *Config) ([]search.FusedCandidate, bool) {
	normalized := NormalizeQuery(query)
	rule, ok := cfg.Rule(normalized)
	if !ok {
		return items, false
	}

	if cfg.IsExcluded(rule.DocID) {
		applog.Warn("[Ranking] Placement rule targets excluded doc, skipping",
			"query", normalized,
			"doc_id", rule.DocID,
		)
		return items, false
	}

	target, found := extract(items, rule.DocID)
	if !found {
		if pooled, ok := lookup(pool, rule.DocID); ok {
			target = pooled
		} else {
			// 候选池中完全未知的文档：插入占位候选并告警
			applog.Warn("[Ranking] Placement rule targets unknown doc, inserting placeholder",
				"query", normalized,
				"doc_id", rule.DocID,
			)
			target = search.FusedCandidate{DocID: rule.DocID}
		}
	} else {
		items = removeByID(items, rule.DocID)
	}

	pos := rule.Position
	if pos > len(items) {
		pos = len(items)
	}

	result := make([]search.FusedCandidate, 0, len(items)+1)
	result = append(result, items[:pos]...)
	result = append(result, target)
	result = append(result, items[pos:]...)

	applog.Info("[Ranking] Placement rule applied",
		"query", normalized,
		"doc_id", rule.DocID,
		"position", pos,
	)
	return result, true
}

func extract(items []search.FusedCandidate, docID string) (search.FusedCandidate, bool) {
	for _, it := range items {
		if it.DocID == docID {
			return it, true
		}
	}
	return search.FusedCandidate{}, false
}

func lookup(pool []search.FusedCandidate, docID string) (search.FusedCandidate, bool) {
	return extract(pool, docID)
}

func removeByID(items []search.FusedCandidate, docID string) []search.FusedCandidate {
	out := items[:0]
	for _, it := range items {
		if it.DocID != docID {
			out = append(out, it)
		}
	}
	return out
}
