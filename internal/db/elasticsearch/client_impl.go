package elasticsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	applog "recallgate/internal/platform/log"

	domainsearch "recallgate/internal/domain/search"
)

// Client Elasticsearch HTTP 客户端，承担关键词召回和查询分词两个角色
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	indexName  string
	analyzer   string
}

// NewClient 创建 Elasticsearch 客户端
func NewClient(cfg *domainsearch.Config) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // 开发环境
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.ESURL, "/"),
		username: cfg.ESUsername,
		password: cfg.ESPassword,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		indexName: cfg.ESIndex,
		analyzer:  cfg.ESAnalyzer,
	}
}

// Analyze 调用 _analyze 接口对查询做分词
func (c *Client) Analyze(ctx context.Context, text string) ([]string, error) {
	reqBody := map[string]interface{}{
		"analyzer": c.analyzer,
		"text":     text,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := c.doRequest(ctx, "POST", "/"+c.indexName+"/_analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("analyze failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var esResp struct {
		Tokens []struct {
			Token string `json:"token"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(respBody, &esResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	tokens := make([]string, 0, len(esResp.Tokens))
	for _, t := range esResp.Tokens {
		if t.Token != "" {
			tokens = append(tokens, t.Token)
		}
	}
	return tokens, nil
}

// SearchKeyword 基于分词结果的 BM25 检索（bool should，任一词命中即召回）
func (c *Client) SearchKeyword(ctx context.Context, tokens []string, topK int) ([]domainsearch.Candidate, error) {
	if topK <= 0 {
		topK = 10
	}

	should := make([]interface{}, 0, len(tokens))
	for _, tok := range tokens {
		should = append(should, map[string]interface{}{
			"match": map[string]interface{}{
				"content": tok,
			},
		})
	}

	query := map[string]interface{}{
		"size": topK,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	}

	body, _ := json.Marshal(query)
	resp, err := c.doRequest(ctx, "POST", "/"+c.indexName+"/_search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("search failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var esResp struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(respBody, &esResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var candidates []domainsearch.Candidate
	for _, hit := range esResp.Hits.Hits {
		var src map[string]interface{}
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			applog.Warn("[Search] Failed to parse hit source", "id", hit.ID, "error", err)
			continue
		}

		docID := hit.ID
		if v, ok := src["doc_id"].(string); ok && v != "" {
			docID = v
		}
		content, _ := src["content"].(string)

		candidates = append(candidates, domainsearch.Candidate{
			DocID:    docID,
			Score:    hit.Score,
			Content:  content,
			Metadata: flattenMetadata(src),
		})
	}
	return candidates, nil
}

// flattenMetadata 提取 _source 中除正文外的标量字段作为元数据
func flattenMetadata(src map[string]interface{}) map[string]string {
	meta := make(map[string]string)
	for k, v := range src {
		if k == "content" || k == "doc_id" || k == "vector" {
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

// Ping 检查 Elasticsearch 连通性
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "GET", "/", nil)
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("elasticsearch returned status %d", resp.StatusCode)
	}
	return nil
}

// doRequest 执行 HTTP 请求
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	return c.httpClient.Do(req)
}
