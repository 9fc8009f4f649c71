package ranking

import (
	"errors"
	"strings"
)

// DefaultLambda MMR 平衡参数默认值
const DefaultLambda = 0.5

var (
	// ErrInvalidLambda 多样性权重不在 [0,1] 范围内
	ErrInvalidLambda = errors.New("diversity lambda must be in [0, 1]")

	// ErrInvalidPosition 位置规则的目标位置为负数
	ErrInvalidPosition = errors.New("placement position must be >= 0")

	// ErrEmptyDocID 位置规则缺少 doc_id
	ErrEmptyDocID = errors.New("placement rule requires a doc_id")

	// ErrRuleNotFound 指定查询没有位置规则
	ErrRuleNotFound = errors.New("placement rule not found")
)

// PlacementRule 位置插入规则：指定查询命中时把某文档强制放到固定位置
type PlacementRule struct {
	DocID    string `json:"doc_id"`
	Position int    `json:"position"` // 0-based，超出列表长度时截断到末尾
}

// Config 排序引擎运行时配置的不可变快照。
// 读路径只持有快照指针，写操作通过 ConfigStore 替换整个快照。
type Config struct {
	Lambda         float64
	Exclusions     map[string]struct{}      // doc_id 黑名单
	PlacementRules map[string]PlacementRule // 规范化查询 → 规则（1:1）
}

// IsExcluded 文档是否在黑名单
func (c *Config) IsExcluded(docID string) bool {
	_, ok := c.Exclusions[docID]
	return ok
}

// Rule 按规范化查询取位置规则
func (c *Config) Rule(normalizedQuery string) (PlacementRule, bool) {
	rule, ok := c.PlacementRules[normalizedQuery]
	return rule, ok
}

// NormalizeQuery 查询规范化：小写 + 去首尾空白
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
