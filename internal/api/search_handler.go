package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	applog "recallgate/internal/platform/log"

	"recallgate/internal/domain/search"

	"github.com/go-chi/chi/v5"
)

// SearchHandler 文档检索 API
type SearchHandler struct {
	gateway *search.Gateway
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(gateway *search.Gateway) *SearchHandler {
	return &SearchHandler{gateway: gateway}
}

// RegisterRoutes 注册检索路由
func (h *SearchHandler) RegisterRoutes(r chi.Router) {
	r.Post("/search", h.Search)
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req search.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopN < 0 || req.RecallTopK < 0 {
		writeError(w, http.StatusBadRequest, "top_n and recall_top_k must be non-negative")
		return
	}

	result, err := h.gateway.Search(r.Context(), &req)
	if err != nil {
		if errors.Is(err, search.ErrTotalRecallFailure) {
			applog.Error("[Search] All recall strategies failed", "query", req.Query)
			writeError(w, http.StatusServiceUnavailable, "all recall strategies failed")
			return
		}
		applog.Error("[Search] Search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
