package search

import "context"

// RecallStrategy 召回策略接口。所有召回路径（向量、关键词、后续扩展）实现此接口；
// 实现必须按自身相关性降序返回结果，rank 从 1 开始。
type RecallStrategy interface {
	Name() string
	Recall(ctx context.Context, sctx *SearchContext, topK int) ([]Candidate, error)
}

// VectorIndex 向量检索后端（Milvus 等）
type VectorIndex interface {
	SearchVector(ctx context.Context, vector []float32, topK int) ([]Candidate, error)
}

// KeywordIndex 关键词检索后端（Elasticsearch BM25 等）
type KeywordIndex interface {
	SearchKeyword(ctx context.Context, tokens []string, topK int) ([]Candidate, error)
}

// Embedder 查询向量化服务
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dims() int
}

// Tokenizer 查询分词服务
type Tokenizer interface {
	Analyze(ctx context.Context, text string) ([]string, error)
}

// Ranker 融合后的排序引擎（过滤 / 多样性 / 位置干预）
type Ranker interface {
	Apply(ctx context.Context, query string, fused []FusedCandidate, topN int) ([]FusedCandidate, RankingStats)
}

// RankingStats 排序引擎各阶段计数
type RankingStats struct {
	Excluded    int  // 被黑名单剔除的数量
	Diversified int  // MMR 选出的数量
	Placed      bool // 是否命中位置规则
	Skipped     bool // 配置存储不可用，排序被整体跳过
}

// CacheStore 搜索结果缓存
type CacheStore interface {
	Get(ctx context.Context, req *SearchRequest) (*SearchResult, bool)
	Set(ctx context.Context, req *SearchRequest, result *SearchResult)
	InvalidateAll(ctx context.Context)
}
