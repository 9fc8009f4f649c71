package search

import (
	"context"
	"time"

	applog "recallgate/internal/platform/log"
)

// Orchestrator 并行调度所有召回策略。
// 单路失败或超时只会让该路贡献空结果；全部失败才返回 ErrTotalRecallFailure。
type Orchestrator struct {
	strategies []RecallStrategy
	timeout    time.Duration
}

// NewOrchestrator 创建召回调度器。timeout 是所有策略共享的总超时。
func NewOrchestrator(strategies []RecallStrategy, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Orchestrator{strategies: strategies, timeout: timeout}
}

// Strategies 返回已注册的策略（按注册顺序，也是融合时的元数据优先级顺序）
func (o *Orchestrator) Strategies() []RecallStrategy {
	return o.strategies
}

type recallOutcome struct {
	name  string
	items []Candidate
	err   error
}

// Recall 并行执行所有策略，在共享超时内收集完成的结果。
// 返回值对每个已注册策略都有一项；失败/超时的策略为空列表。
func (o *Orchestrator) Recall(ctx context.Context, sctx *SearchContext, topK int) (map[string][]Candidate, error) {
	results := make(map[string][]Candidate, len(o.strategies))
	if len(o.strategies) == 0 {
		return results, ErrTotalRecallFailure
	}

	rctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	// buffered channel 保证超时后滞留的 goroutine 也能退出
	ch := make(chan recallOutcome, len(o.strategies))
	for _, s := range o.strategies {
		results[s.Name()] = nil
		go func(s RecallStrategy) {
			items, err := s.Recall(rctx, sctx, topK)
			ch <- recallOutcome{name: s.Name(), items: items, err: err}
		}(s)
	}

	received := 0
	failed := 0
collect:
	for received < len(o.strategies) {
		select {
		case out := <-ch:
			received++
			if out.err != nil {
				failed++
				applog.Warn("[Orchestrator] Recall strategy failed",
					"strategy", out.name,
					"error", out.err,
				)
				continue
			}
			results[out.name] = out.items
		case <-rctx.Done():
			// 超时：放弃未完成的策略，带着已完成的结果继续
			break collect
		}
	}

	abandoned := len(o.strategies) - received
	if abandoned > 0 {
		applog.Warn("[Orchestrator] Recall deadline reached, abandoning slow strategies",
			"abandoned", abandoned,
			"timeout", o.timeout,
		)
	}

	if failed+abandoned == len(o.strategies) {
		return results, ErrTotalRecallFailure
	}
	return results, nil
}
