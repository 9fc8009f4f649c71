package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	applog "recallgate/internal/platform/log"

	"recallgate/internal/domain/ranking"
	"recallgate/internal/domain/search"

	"github.com/go-chi/chi/v5"
)

// RankingHandler 排序配置管理 API
type RankingHandler struct {
	store *ranking.ConfigStore
	cache search.CacheStore // 可选，配置变更后清除检索缓存
}

// NewRankingHandler 创建排序配置处理器
func NewRankingHandler(store *ranking.ConfigStore) *RankingHandler {
	return &RankingHandler{store: store}
}

// SetCache 设置检索缓存（配置写操作后整体清除）
func (h *RankingHandler) SetCache(cache search.CacheStore) {
	h.cache = cache
}

// RegisterRoutes 注册排序配置路由
func (h *RankingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/ranking", func(r chi.Router) {
		r.Get("/lambda", h.GetLambda)
		r.Put("/lambda", h.SetLambda)

		r.Post("/exclusions", h.UpdateExclusions)
		r.Get("/exclusions", h.ListExclusions)

		r.Post("/position", h.SetPlacementRule)
		r.Get("/position", h.ListPlacementRules)
		r.Delete("/position/{query}", h.DeletePlacementRule)
	})
}

// --- 多样性权重 ---

func (h *RankingHandler) GetLambda(w http.ResponseWriter, r *http.Request) {
	lambda, err := h.store.GetLambda(r.Context())
	if err != nil {
		applog.Error("[Ranking] Failed to get lambda", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load diversity config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"lambda": lambda})
}

func (h *RankingHandler) SetLambda(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lambda *float64 `json:"lambda"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Lambda == nil {
		writeError(w, http.StatusBadRequest, "lambda is required")
		return
	}

	if err := h.store.SetLambda(r.Context(), *req.Lambda); err != nil {
		if errors.Is(err, ranking.ErrInvalidLambda) {
			writeError(w, http.StatusBadRequest, "lambda must be within [0, 1]")
			return
		}
		applog.Error("[Ranking] Failed to set lambda", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update diversity config")
		return
	}

	h.flushSearchCache()
	writeJSON(w, http.StatusOK, map[string]float64{"lambda": *req.Lambda})
}

// --- 黑名单 ---

func (h *RankingHandler) UpdateExclusions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string   `json:"action"` // "add" / "remove"
		DocIDs []string `json:"doc_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.DocIDs) == 0 {
		writeError(w, http.StatusBadRequest, "doc_ids is required")
		return
	}
	for _, id := range req.DocIDs {
		if id == "" {
			writeError(w, http.StatusBadRequest, "doc_ids must not contain empty values")
			return
		}
	}

	var (
		n   int64
		err error
	)
	switch req.Action {
	case "add", "":
		n, err = h.store.AddExclusions(r.Context(), req.DocIDs)
	case "remove":
		n, err = h.store.RemoveExclusions(r.Context(), req.DocIDs)
	default:
		writeError(w, http.StatusBadRequest, "action must be \"add\" or \"remove\"")
		return
	}
	if err != nil {
		applog.Error("[Ranking] Failed to update exclusions", "action", req.Action, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update exclusion list")
		return
	}

	h.flushSearchCache()
	writeJSON(w, http.StatusOK, map[string]int64{"affected": n})
}

func (h *RankingHandler) ListExclusions(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.ListExclusions(r.Context())
	if err != nil {
		applog.Error("[Ranking] Failed to list exclusions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load exclusion list")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"doc_ids": ids,
		"total":   len(ids),
	})
}

// --- 位置规则 ---

func (h *RankingHandler) SetPlacementRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query    string `json:"query"`
		DocID    string `json:"doc_id"`
		Position *int   `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Position == nil {
		writeError(w, http.StatusBadRequest, "position is required")
		return
	}

	rule := ranking.PlacementRule{DocID: req.DocID, Position: *req.Position}
	if err := h.store.SetPlacementRule(r.Context(), req.Query, rule); err != nil {
		switch {
		case errors.Is(err, ranking.ErrEmptyDocID):
			writeError(w, http.StatusBadRequest, "doc_id is required")
		case errors.Is(err, ranking.ErrInvalidPosition):
			writeError(w, http.StatusBadRequest, "position must be non-negative")
		default:
			applog.Error("[Ranking] Failed to set placement rule", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save placement rule")
		}
		return
	}

	h.flushSearchCache()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":    ranking.NormalizeQuery(req.Query),
		"doc_id":   req.DocID,
		"position": *req.Position,
	})
}

func (h *RankingHandler) ListPlacementRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListPlacementRules(r.Context())
	if err != nil {
		applog.Error("[Ranking] Failed to list placement rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load placement rules")
		return
	}

	type ruleItem struct {
		Query    string `json:"query"`
		DocID    string `json:"doc_id"`
		Position int    `json:"position"`
	}
	items := make([]ruleItem, 0, len(rules))
	for q, rule := range rules {
		items = append(items, ruleItem{Query: q, DocID: rule.DocID, Position: rule.Position})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": items,
		"total": len(items),
	})
}

func (h *RankingHandler) DeletePlacementRule(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if decoded, err := url.PathUnescape(query); err == nil {
		query = decoded
	}
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	if err := h.store.DeletePlacementRule(r.Context(), query); err != nil {
		if errors.Is(err, ranking.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "placement rule not found")
			return
		}
		applog.Error("[Ranking] Failed to delete placement rule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete placement rule")
		return
	}

	h.flushSearchCache()
	writeJSON(w, http.StatusOK, map[string]string{"query": ranking.NormalizeQuery(query)})
}

// flushSearchCache 排序配置变更会改变同一查询的结果，清除全部缓存
func (h *RankingHandler) flushSearchCache() {
	if h.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.cache.InvalidateAll(ctx)
}
