package search

// Candidate 单路召回返回的候选文档
type Candidate struct {
	DocID    string            `json:"doc_id"`
	Score    float64           `json:"score"`          // 召回侧原始分数（相似度或 BM25），不跨策略比较
	Rank     int               `json:"rank"`           // 在本路召回中的位置（1-based），由策略生成后不再修改
	Source   string            `json:"source"`         // 策略名，如 "vector" / "keyword"
	Content  string            `json:"content,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// FusedCandidate RRF 融合后的候选文档（每个 doc_id 唯一）
type FusedCandidate struct {
	DocID      string            `json:"doc_id"`
	FusedScore float64           `json:"fused_score"`
	Content    string            `json:"content,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"` // 按策略优先级 first-seen
	Sources    []string          `json:"sources,omitempty"`  // 命中该文档的召回策略
}

// SearchContext 搜索上下文，在向量化、分词、召回各阶段之间传递
type SearchContext struct {
	OriginalQuery string
	QueryVector   []float32 // 可为空（Embedding 失败或未配置）
	Tokens        []string  // 可为空（分词失败或未配置）
}

// SearchRequest 搜索请求
type SearchRequest struct {
	Query         string `json:"query"`
	TopN          int    `json:"top_n,omitempty"`
	RecallTopK    int    `json:"recall_top_k,omitempty"`
	EnableRanking *bool  `json:"enable_ranking,omitempty"` // 缺省为 true
}

// RankingEnabled 是否启用排序引擎
func (r *SearchRequest) RankingEnabled() bool {
	return r.EnableRanking == nil || *r.EnableRanking
}

// SearchResultItem 返回给客户端的单条结果
type SearchResultItem struct {
	DocID    string            `json:"doc_id"`
	Score    float64           `json:"score"`
	Content  string            `json:"content,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResult 搜索响应
type SearchResult struct {
	Query       string             `json:"query"`
	Results     []SearchResultItem `json:"results"`
	Total       int                `json:"total"`
	TookMs      float64            `json:"took_ms"`
	RecallStats map[string]int     `json:"recall_stats,omitempty"` // 各路召回数量 + "merged"
	StageCounts map[string]int     `json:"stage_counts,omitempty"` // 排序引擎各阶段计数
}
