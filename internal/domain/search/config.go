package search

// Config 搜索模块配置
type Config struct {
	// Elasticsearch（关键词召回 + 查询分词）
	ESURL      string `json:"es_url"`
	ESUsername string `json:"es_username"`
	ESPassword string `json:"es_password"`
	ESIndex    string `json:"es_index"`
	ESAnalyzer string `json:"es_analyzer"`

	// Milvus（向量召回）
	MilvusURL        string `json:"milvus_url"`
	MilvusToken      string `json:"milvus_token"`
	MilvusCollection string `json:"milvus_collection"`

	// Embedding
	EmbeddingBaseURL string `json:"embedding_base_url"`
	EmbeddingAPIKey  string `json:"embedding_api_key"`
	EmbeddingModel   string `json:"embedding_model"`
	EmbeddingDims    int    `json:"embedding_dims"`

	// 检索参数
	DefaultTopN       int `json:"default_top_n"`
	DefaultRecallTopK int `json:"default_recall_top_k"`
	RecallTimeoutMS   int `json:"recall_timeout_ms"` // 多路召回共享超时

	// 缓存
	CacheTTL int `json:"cache_ttl"` // 秒，0=禁用
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		ESIndex:           "documents",
		ESAnalyzer:        "standard",
		MilvusCollection:  "documents",
		EmbeddingModel:    "text-embedding-3-small",
		EmbeddingDims:     1536,
		DefaultTopN:       10,
		DefaultRecallTopK: 100,
		RecallTimeoutMS:   3000,
		CacheTTL:          300,
	}
}

// HasKeyword 是否配置了关键词召回后端
func (c *Config) HasKeyword() bool { return c.ESURL != "" }

// HasVector 是否配置了向量召回后端
func (c *Config) HasVector() bool { return c.MilvusURL != "" }

// HasCache 是否启用结果缓存
func (c *Config) HasCache() bool { return c.CacheTTL > 0 }
