package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	applog "recallgate/internal/platform/log"
)

// Gateway 搜索网关，多路召回系统的主入口。
// 流程: 构建上下文（向量化+分词）→ 并行召回 → RRF 融合 → 排序引擎 → 响应。
type Gateway struct {
	orchestrator *Orchestrator
	fuser        *Fuser
	config       *Config
	embedder     Embedder   // 可选
	tokenizer    Tokenizer  // 可选
	ranker       Ranker     // 可选
	cache        CacheStore // 可选
}

// NewGateway 创建搜索网关
func NewGateway(orchestrator *Orchestrator, fuser *Fuser, cfg *Config) *Gateway {
	return &Gateway{
		orchestrator: orchestrator,
		fuser:        fuser,
		config:       cfg,
	}
}

// SetEmbedder 设置向量化服务（启用向量召回）
func (g *Gateway) SetEmbedder(e Embedder) { g.embedder = e }

// SetTokenizer 设置分词服务（启用关键词召回）
func (g *Gateway) SetTokenizer(t Tokenizer) { g.tokenizer = t }

// SetRanker 设置排序引擎
func (g *Gateway) SetRanker(r Ranker) { g.ranker = r }

// SetCache 设置结果缓存
func (g *Gateway) SetCache(c CacheStore) { g.cache = c }

// Search 执行多路召回搜索
func (g *Gateway) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	start := time.Now()

	if req.TopN <= 0 {
		req.TopN = g.config.DefaultTopN
	}
	if req.RecallTopK <= 0 {
		req.RecallTopK = g.config.DefaultRecallTopK
	}

	requestID := uuid.NewString()
	applog.Info("[Gateway] Search started",
		"request_id", requestID,
		"query", req.Query,
		"top_n", req.TopN,
		"recall_top_k", req.RecallTopK,
		"ranking", req.RankingEnabled(),
	)

	if g.cache != nil {
		if cached, ok := g.cache.Get(ctx, req); ok {
			return cached, nil
		}
	}

	// Step 1: 搜索上下文（向量化 + 分词并行执行）
	sctx := g.buildContext(ctx, req.Query)

	// Step 2: 并行召回
	lists, err := g.orchestrator.Recall(ctx, sctx, req.RecallTopK)
	if err != nil {
		return nil, fmt.Errorf("recall: %w", err)
	}

	// Step 3: RRF 融合
	fused := g.fuser.Fuse(lists)

	stageCounts := map[string]int{"fused": len(fused)}

	// Step 4: 排序引擎（黑名单 → MMR → 位置规则）
	var final []FusedCandidate
	if req.RankingEnabled() && g.ranker != nil {
		ranked, rs := g.ranker.Apply(ctx, req.Query, fused, req.TopN)
		final = ranked
		stageCounts["excluded"] = rs.Excluded
		stageCounts["diversified"] = rs.Diversified
		if rs.Placed {
			stageCounts["placed"] = 1
		}
		if rs.Skipped {
			stageCounts["ranking_skipped"] = 1
		}
	} else {
		final = fused
		if len(final) > req.TopN {
			final = final[:req.TopN]
		}
	}

	result := g.buildResult(req.Query, final, lists, stageCounts, time.Since(start))

	if g.cache != nil {
		cached := *result
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			g.cache.Set(cacheCtx, req, &cached)
		}()
	}

	applog.Info("[Gateway] Search done",
		"request_id", requestID,
		"results", result.Total,
		"took_ms", result.TookMs,
	)
	return result, nil
}

// buildContext 并行执行向量化和分词。单边失败只记录告警，
// 对应的召回策略会因缺少输入而失败，由调度器按单路失败处理。
func (g *Gateway) buildContext(ctx context.Context, query string) *SearchContext {
	sctx := &SearchContext{OriginalQuery: query}

	var eg errgroup.Group
	if g.embedder != nil {
		eg.Go(func() error {
			vector, err := g.embedder.Embed(ctx, query)
			if err != nil {
				applog.Warn("[Gateway] Query embedding failed", "error", err)
				return nil
			}
			sctx.QueryVector = vector
			return nil
		})
	}
	if g.tokenizer != nil {
		eg.Go(func() error {
			tokens, err := g.tokenizer.Analyze(ctx, query)
			if err != nil {
				applog.Warn("[Gateway] Query tokenization failed", "error", err)
				return nil
			}
			sctx.Tokens = tokens
			return nil
		})
	}
	_ = eg.Wait()

	return sctx
}

func (g *Gateway) buildResult(
	query string,
	final []FusedCandidate,
	lists map[string][]Candidate,
	stageCounts map[string]int,
	took time.Duration,
) *SearchResult {
	items := make([]SearchResultItem, 0, len(final))
	for _, fc := range final {
		items = append(items, SearchResultItem{
			DocID:    fc.DocID,
			Score:    fc.FusedScore,
			Content:  fc.Content,
			Metadata: fc.Metadata,
		})
	}

	recallStats := make(map[string]int, len(lists)+1)
	for name, list := range lists {
		recallStats[name] = len(list)
	}
	recallStats["merged"] = len(final)

	return &SearchResult{
		Query:       query,
		Results:     items,
		Total:       len(items),
		TookMs:      float64(took.Microseconds()) / 1000.0,
		RecallStats: recallStats,
		StageCounts: stageCounts,
	}
}
