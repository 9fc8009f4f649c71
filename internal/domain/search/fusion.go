package search

import (
	"sort"

	applog "recallgate/internal/platform/log"
)

// DefaultRRFConstant RRF 平滑常数，k=60 为通用标准值
const DefaultRRFConstant = 60

// Fuser Reciprocal Rank Fusion 融合器。
// 只依赖各路召回的 rank，不依赖各自的原始分数量纲。
type Fuser struct {
	k        float64
	priority []string // 元数据取值的策略优先级（first-seen wins）
}

// NewFuser 创建融合器。priority 决定同一文档出现在多路时元数据取自哪一路。
func NewFuser(priority []string) *Fuser {
	return &Fuser{k: DefaultRRFConstant, priority: priority}
}

// NewFuserWithK 自定义 k 值，k<=0 时回退为 60
func NewFuserWithK(priority []string, k int) *Fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fuser{k: float64(k), priority: priority}
}

// Fuse 融合多路召回结果。
// 公式: fused_score(d) = Σ 1/(k + rank_i(d))，rank 为 1-based；
// 输出按 fused_score 降序，同分按 doc_id 升序保证可复现。
func (f *Fuser) Fuse(lists map[string][]Candidate) []FusedCandidate {
	fusedByID := make(map[string]*FusedCandidate)

	for _, name := range f.iterationOrder(lists) {
		for i, c := range lists[name] {
			rank := c.Rank
			if rank <= 0 {
				rank = i + 1
			}

			fc, ok := fusedByID[c.DocID]
			if !ok {
				fc = &FusedCandidate{
					DocID:    c.DocID,
					Content:  c.Content,
					Metadata: c.Metadata,
				}
				fusedByID[c.DocID] = fc
			}
			fc.FusedScore += 1.0 / (f.k + float64(rank))
			fc.Sources = append(fc.Sources, name)
		}
	}

	fused := make([]FusedCandidate, 0, len(fusedByID))
	for _, fc := range fusedByID {
		fused = append(fused, *fc)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].FusedScore != fused[j].FusedScore {
			return fused[i].FusedScore > fused[j].FusedScore
		}
		return fused[i].DocID < fused[j].DocID
	})

	applog.Debug("[Fusion] RRF merge done", "input_lists", len(lists), "merged", len(fused))
	return fused
}

// iterationOrder 按优先级顺序遍历各路结果；不在优先级里的策略按名称排序追加，
// 保证元数据 first-seen 的归属是确定的。
func (f *Fuser) iterationOrder(lists map[string][]Candidate) []string {
	order := make([]string, 0, len(lists))
	seen := make(map[string]bool, len(lists))
	for _, name := range f.priority {
		if _, ok := lists[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range lists {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
