package milvus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	applog "recallgate/internal/platform/log"

	domainsearch "recallgate/internal/domain/search"
)

// Client Milvus RESTful v2 客户端（向量召回）
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	collection string
}

// NewClient 创建 Milvus 客户端
func NewClient(cfg *domainsearch.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.MilvusURL, "/"),
		token:   cfg.MilvusToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		collection: cfg.MilvusCollection,
	}
}

// SearchVector 向量近邻检索。
// Milvus 返回 L2 距离，统一转换为 1/(1+distance) 使分数越大越相近。
func (c *Client) SearchVector(ctx context.Context, vector []float32, topK int) ([]domainsearch.Candidate, error) {
	if topK <= 0 {
		topK = 10
	}

	reqBody := map[string]interface{}{
		"collectionName": c.collection,
		"data":           [][]float32{vector},
		"limit":          topK,
		"outputFields":   []string{"*"},
	}
	body, _ := json.Marshal(reqBody)

	resp, err := c.doRequest(ctx, "POST", "/v2/vectordb/entities/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("vector search failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var mvResp struct {
		Code    int                      `json:"code"`
		Message string                   `json:"message"`
		Data    []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &mvResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if mvResp.Code != 0 {
		return nil, fmt.Errorf("milvus error (%d): %s", mvResp.Code, mvResp.Message)
	}

	var candidates []domainsearch.Candidate
	for _, row := range mvResp.Data {
		docID := stringField(row, "doc_id")
		if docID == "" {
			docID = stringField(row, "id")
		}
		if docID == "" {
			applog.Warn("[Search] Milvus hit without doc_id, skipping")
			continue
		}

		distance, _ := row["distance"].(float64)
		candidates = append(candidates, domainsearch.Candidate{
			DocID:    docID,
			Score:    1.0 / (1.0 + distance),
			Content:  stringField(row, "content"),
			Metadata: flattenMetadata(row),
		})
	}
	return candidates, nil
}

// Ping 检查 Milvus 连通性（通过 collection describe 接口）
func (c *Client) Ping(ctx context.Context) error {
	reqBody := map[string]interface{}{
		"collectionName": c.collection,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := c.doRequest(ctx, "POST", "/v2/vectordb/collections/describe", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ping milvus: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("milvus returned status %d", resp.StatusCode)
	}
	return nil
}

func stringField(row map[string]interface{}, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

// flattenMetadata 提取结果行中除向量和正文外的标量字段
func flattenMetadata(row map[string]interface{}) map[string]string {
	meta := make(map[string]string)
	for k, v := range row {
		switch k {
		case "content", "doc_id", "id", "distance", "vector":
			continue
		}
		switch val := v.(type) {
		case string:
			meta[k] = val
		case float64:
			meta[k] = fmt.Sprintf("%v", val)
		case bool:
			meta[k] = fmt.Sprintf("%v", val)
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// doRequest 执行 HTTP 请求
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}
