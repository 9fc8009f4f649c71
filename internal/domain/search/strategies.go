package search

import (
	"context"

	applog "recallgate/internal/platform/log"
)

// VectorStrategy 向量召回策略：用查询向量在向量索引中做相似度检索
type VectorStrategy struct {
	index VectorIndex
}

// NewVectorStrategy 创建向量召回策略
func NewVectorStrategy(index VectorIndex) *VectorStrategy {
	return &VectorStrategy{index: index}
}

func (s *VectorStrategy) Name() string { return "vector" }

// Recall 执行向量召回
func (s *VectorStrategy) Recall(ctx context.Context, sctx *SearchContext, topK int) ([]Candidate, error) {
	if len(sctx.QueryVector) == 0 {
		return nil, ErrNoQueryVector
	}

	items, err := s.index.SearchVector(ctx, sctx.QueryVector, topK)
	if err != nil {
		return nil, err
	}

	for i := range items {
		items[i].Rank = i + 1
		items[i].Source = s.Name()
	}

	applog.Debug("[Recall] Vector recall done", "query", sctx.OriginalQuery, "count", len(items))
	return items, nil
}

// KeywordStrategy 关键词召回策略：用分词结果在倒排索引中做 BM25 检索
type KeywordStrategy struct {
	index KeywordIndex
}

// NewKeywordStrategy 创建关键词召回策略
func NewKeywordStrategy(index KeywordIndex) *KeywordStrategy {
	return &KeywordStrategy{index: index}
}

func (s *KeywordStrategy) Name() string { return "keyword" }

// Recall 执行关键词召回
func (s *KeywordStrategy) Recall(ctx context.Context, sctx *SearchContext, topK int) ([]Candidate, error) {
	if len(sctx.Tokens) == 0 {
		return nil, ErrNoTokens
	}

	items, err := s.index.SearchKeyword(ctx, sctx.Tokens, topK)
	if err != nil {
		return nil, err
	}

	for i := range items {
		items[i].Rank = i + 1
		items[i].Source = s.Name()
	}

	applog.Debug("[Recall] Keyword recall done", "query", sctx.OriginalQuery, "count", len(items))
	return items, nil
}
