package search

import "errors"

var (
	// ErrTotalRecallFailure 所有召回策略均失败或超时
	ErrTotalRecallFailure = errors.New("all recall strategies failed")

	// ErrNoQueryVector 搜索上下文中没有查询向量
	ErrNoQueryVector = errors.New("search context has no query vector")

	// ErrNoTokens 搜索上下文中没有分词结果
	ErrNoTokens = errors.New("search context has no tokens")
)
