package redisdb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	applog "recallgate/internal/platform/log"

	"recallgate/internal/domain/ranking"

	"github.com/redis/go-redis/v9"
)

const (
	exclusionSetKey    = "blacklist"
	placementKeyPrefix = "position_rules:"
	placementScanBatch = 200
)

// RankingBackend 排序规则 Redis 持久化。
// 黑名单落在 Set 上（天然去重），位置规则按查询词散落为独立 String，
// 值格式 "doc_id:position"，doc_id 中允许出现冒号，解析取最后一个分隔符。
type RankingBackend struct {
	redis *redis.Client
}

// NewRankingBackend 创建排序规则后端
func NewRankingBackend(rdb *redis.Client) *RankingBackend {
	return &RankingBackend{redis: rdb}
}

// AddExclusions 加入黑名单，返回新增数量
func (b *RankingBackend) AddExclusions(ctx context.Context, docIDs []string) (int64, error) {
	members := make([]interface{}, 0, len(docIDs))
	for _, id := range docIDs {
		members = append(members, id)
	}
	n, err := b.redis.SAdd(ctx, exclusionSetKey, members...).Result()
	if err != nil {
		return 0, fmt.Errorf("sadd blacklist: %w", err)
	}
	return n, nil
}

// RemoveExclusions 移出黑名单，返回移除数量
func (b *RankingBackend) RemoveExclusions(ctx context.Context, docIDs []string) (int64, error) {
	members := make([]interface{}, 0, len(docIDs))
	for _, id := range docIDs {
		members = append(members, id)
	}
	n, err := b.redis.SRem(ctx, exclusionSetKey, members...).Result()
	if err != nil {
		return 0, fmt.Errorf("srem blacklist: %w", err)
	}
	return n, nil
}

// ListExclusions 返回黑名单全部成员（排序保证展示稳定）
func (b *RankingBackend) ListExclusions(ctx context.Context) ([]string, error) {
	members, err := b.redis.SMembers(ctx, exclusionSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers blacklist: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

// SetPlacementRule 写入位置规则
func (b *RankingBackend) SetPlacementRule(ctx context.Context, normalizedQuery string, rule ranking.PlacementRule) error {
	key := placementKeyPrefix + normalizedQuery
	value := fmt.Sprintf("%s:%d", rule.DocID, rule.Position)
	if err := b.redis.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set placement rule: %w", err)
	}
	return nil
}

// DeletePlacementRule 删除位置规则，返回是否确有删除
func (b *RankingBackend) DeletePlacementRule(ctx context.Context, normalizedQuery string) (bool, error) {
	key := placementKeyPrefix + normalizedQuery
	n, err := b.redis.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("del placement rule: %w", err)
	}
	return n > 0, nil
}

// ListPlacementRules SCAN 遍历全部位置规则
func (b *RankingBackend) ListPlacementRules(ctx context.Context) (map[string]ranking.PlacementRule, error) {
	rules := make(map[string]ranking.PlacementRule)

	iter := b.redis.Scan(ctx, 0, placementKeyPrefix+"*", placementScanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		value, err := b.redis.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("get placement rule %s: %w", key, err)
		}

		query := strings.TrimPrefix(key, placementKeyPrefix)
		rule, err := parsePlacementValue(value)
		if err != nil {
			applog.Warn("[RankingConfig] Malformed placement rule, skipping", "key", key, "value", value)
			continue
		}
		rules[query] = rule
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan placement rules: %w", err)
	}
	return rules, nil
}

func parsePlacementValue(value string) (ranking.PlacementRule, error) {
	idx := strings.LastIndex(value, ":")
	if idx <= 0 || idx == len(value)-1 {
		return ranking.PlacementRule{}, fmt.Errorf("invalid rule value %q", value)
	}
	pos, err := strconv.Atoi(value[idx+1:])
	if err != nil || pos < 0 {
		return ranking.PlacementRule{}, fmt.Errorf("invalid rule position %q", value)
	}
	return ranking.PlacementRule{DocID: value[:idx], Position: pos}, nil
}
