package ranking

import (
	applog "recallgate/internal/platform/log"

	"recallgate/internal/domain/search"
)

// mmrRerank MMR（最大边际相关性）贪心重排。
//
// 公式: mmr(c) = λ·relevance(c) − (1−λ)·max_similarity(c, selected)
// relevance 为 fused_score 在整个候选池上做 min-max 归一化到 [0,1]；
// λ=1 退化为纯相关性排序，λ=0 时首个选择仍是最高相关候选（对空 selected 相似度为 0）。
// 同分时保留融合排名靠前的候选（按融合顺序扫描 + 严格大于比较）。
func mmrRerank(items []search.FusedCandidate, lambda float64, topN int) []search.FusedCandidate {
	if len(items) == 0 {
		return nil
	}
	if lambda < 0 || lambda > 1 {
		applog.Warn("[MMR] Lambda out of range, using default", "lambda", lambda)
		lambda = DefaultLambda
	}
	if topN <= 0 || topN > len(items) {
		topN = len(items)
	}

	relevance := normalizeScores(items)

	selected := make([]search.FusedCandidate, 0, topN)
	remaining := make([]int, len(items)) // 候选在 items 中的下标，保持融合顺序
	for i := range items {
		remaining[i] = i
	}

	for len(selected) < topN && len(remaining) > 0 {
		bestPos := 0
		bestScore := mmrScore(items, relevance, remaining[0], selected, lambda)
		for pos := 1; pos < len(remaining); pos++ {
			score := mmrScore(items, relevance, remaining[pos], selected, lambda)
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}

		selected = append(selected, items[remaining[bestPos]])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}

func mmrScore(items []search.FusedCandidate, relevance []float64, idx int, selected []search.FusedCandidate, lambda float64) float64 {
	maxSim := 0.0
	for i := range selected {
		if sim := similarity(&items[idx], &selected[i]); sim > maxSim {
			maxSim = sim
		}
	}
	return lambda*relevance[idx] - (1-lambda)*maxSim
}

// similarity 基于元数据的文档相似度：同类别 +0.6，同来源 +0.4，截断到 [0,1]。
// 字段为空或缺失不计入匹配。
func similarity(a, b *search.FusedCandidate) float64 {
	score := 0.0
	if c := a.Metadata["category"]; c != "" && c == b.Metadata["category"] {
		score += 0.6
	}
	if s := a.Metadata["source"]; s != "" && s == b.Metadata["source"] {
		score += 0.4
	}
	if score > 1 {
		score = 1
	}
	return score
}

// normalizeScores fused_score 的 min-max 归一化。分数全相等时视为全 1。
func normalizeScores(items []search.FusedCandidate) []float64 {
	minScore, maxScore := items[0].FusedScore, items[0].FusedScore
	for _, it := range items[1:] {
		if it.FusedScore < minScore {
			minScore = it.FusedScore
		}
		if it.FusedScore > maxScore {
			maxScore = it.FusedScore
		}
	}

	relevance := make([]float64, len(items))
	span := maxScore - minScore
	for i, it := range items {
		if span == 0 {
			relevance[i] = 1.0
			continue
		}
		relevance[i] = (it.FusedScore - minScore) / span
	}
	return relevance
}
