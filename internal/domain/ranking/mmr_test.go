package ranking

import (
	"testing"

	"recallgate/internal/domain/search"
)

func fc(docID string, score float64, meta map[string]string) search.FusedCandidate {
	return search.FusedCandidate{DocID: docID, FusedScore: score, Metadata: meta}
}

// TestMMRLambdaOneKeepsRelevanceOrder λ=1 退化为纯相关性排序
func TestMMRLambdaOneKeepsRelevanceOrder(t *testing.T) {
	meta := map[string]string{"category": "tech", "source": "wiki"}
	items := []search.FusedCandidate{
		fc("d1", 3.0, meta),
		fc("d2", 2.0, meta),
		fc("d3", 1.0, meta),
	}

	out := mmrRerank(items, 1.0, 3)

	want := []string{"d1", "d2", "d3"}
	for i, w := range want {
		if out[i].DocID != w {
			t.Errorf("position %d: expected %s, got %s", i, w, out[i].DocID)
		}
	}
}

// TestMMRPenalizesDuplicates 同类别同来源的文档被多样性惩罚压后
func TestMMRPenalizesDuplicates(t *testing.T) {
	techWiki := map[string]string{"category": "tech", "source": "wiki"}
	newsBlog := map[string]string{"category": "news", "source": "blog"}
	items := []search.FusedCandidate{
		fc("d1", 3.0, techWiki),
		fc("d2", 2.9, techWiki), // 和 d1 完全同质，相似度 1.0
		fc("d3", 2.0, newsBlog),
	}

	out := mmrRerank(items, 0.5, 3)

	if out[0].DocID != "d1" {
		t.Fatalf("expected most relevant d1 first, got %s", out[0].DocID)
	}
	// d2: 0.5*0.9 - 0.5*1.0 < 0；d3: 0.5*0 - 0 = 0，多样性赢
	if out[1].DocID != "d3" {
		t.Errorf("expected diverse d3 second, got %s", out[1].DocID)
	}
	if out[2].DocID != "d2" {
		t.Errorf("expected duplicate d2 last, got %s", out[2].DocID)
	}
}

// TestMMREqualScoresPreserveFusedOrder 分数全相等时保持融合顺序（严格大于才替换）
func TestMMREqualScoresPreserveFusedOrder(t *testing.T) {
	items := []search.FusedCandidate{
		fc("d1", 1.0, nil),
		fc("d2", 1.0, nil),
		fc("d3", 1.0, nil),
	}

	out := mmrRerank(items, 0.5, 3)

	want := []string{"d1", "d2", "d3"}
	for i, w := range want {
		if out[i].DocID != w {
			t.Errorf("position %d: expected %s, got %s", i, w, out[i].DocID)
		}
	}
}

// TestMMRTopNClamp topN 超出候选数时全量返回，小于候选数时截断
func TestMMRTopNClamp(t *testing.T) {
	items := []search.FusedCandidate{
		fc("d1", 2.0, nil),
		fc("d2", 1.0, nil),
	}

	if out := mmrRerank(items, 0.5, 100); len(out) != 2 {
		t.Errorf("expected all 2 items with oversized topN, got %d", len(out))
	}
	if out := mmrRerank(items, 0.5, 1); len(out) != 1 || out[0].DocID != "d1" {
		t.Errorf("expected only d1 with topN=1, got %v", out)
	}
}

// TestMMRInvalidLambdaFallsBack λ 越界时回退默认值而不是失败
func TestMMRInvalidLambdaFallsBack(t *testing.T) {
	items := []search.FusedCandidate{
		fc("d1", 2.0, nil),
		fc("d2", 1.0, nil),
	}

	out := mmrRerank(items, 1.5, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	if out[0].DocID != "d1" {
		t.Errorf("expected d1 first with default lambda, got %s", out[0].DocID)
	}
}

// TestSimilarityWeights 相似度权重：类别 0.6 + 来源 0.4，空字段不计入
func TestSimilarityWeights(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]string
		want float64
	}{
		{
			name: "same category and source",
			a:    map[string]string{"category": "tech", "source": "wiki"},
			b:    map[string]string{"category": "tech", "source": "wiki"},
			want: 1.0,
		},
		{
			name: "same category only",
			a:    map[string]string{"category": "tech", "source": "wiki"},
			b:    map[string]string{"category": "tech", "source": "blog"},
			want: 0.6,
		},
		{
			name: "same source only",
			a:    map[string]string{"category": "tech", "source": "wiki"},
			b:    map[string]string{"category": "news", "source": "wiki"},
			want: 0.4,
		},
		{
			name: "empty fields never match",
			a:    map[string]string{},
			b:    map[string]string{},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := fc("a", 0, tt.a)
			b := fc("b", 0, tt.b)
			if got := similarity(&a, &b); got != tt.want {
				t.Errorf("expected similarity %.1f, got %.1f", tt.want, got)
			}
		})
	}
}
