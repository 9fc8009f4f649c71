package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"recallgate/internal/domain/ranking"
	"recallgate/internal/domain/search"
)

// fakeLambdaRepo 内存 lambda 后端
type fakeLambdaRepo struct {
	lambda float64
}

func (f *fakeLambdaRepo) GetLambda(ctx context.Context) (float64, error) { return f.lambda, nil }
func (f *fakeLambdaRepo) SetLambda(ctx context.Context, lambda float64) error {
	f.lambda = lambda
	return nil
}

// fakeRuleBackend 内存规则后端
type fakeRuleBackend struct {
	exclusions map[string]struct{}
	rules      map[string]ranking.PlacementRule
}

func newFakeRuleBackend() *fakeRuleBackend {
	return &fakeRuleBackend{
		exclusions: make(map[string]struct{}),
		rules:      make(map[string]ranking.PlacementRule),
	}
}

func (f *fakeRuleBackend) AddExclusions(ctx context.Context, docIDs []string) (int64, error) {
	var n int64
	for _, id := range docIDs {
		if _, ok := f.exclusions[id]; !ok {
			f.exclusions[id] = struct{}{}
			n++
		}
	}
	return n, nil
}

func (f *fakeRuleBackend) RemoveExclusions(ctx context.Context, docIDs []string) (int64, error) {
	var n int64
	for _, id := range docIDs {
		if _, ok := f.exclusions[id]; ok {
			delete(f.exclusions, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRuleBackend) ListExclusions(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(f.exclusions))
	for id := range f.exclusions {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeRuleBackend) SetPlacementRule(ctx context.Context, normalizedQuery string, rule ranking.PlacementRule) error {
	f.rules[normalizedQuery] = rule
	return nil
}

func (f *fakeRuleBackend) DeletePlacementRule(ctx context.Context, normalizedQuery string) (bool, error) {
	if _, ok := f.rules[normalizedQuery]; !ok {
		return false, nil
	}
	delete(f.rules, normalizedQuery)
	return true, nil
}

func (f *fakeRuleBackend) ListPlacementRules(ctx context.Context) (map[string]ranking.PlacementRule, error) {
	out := make(map[string]ranking.PlacementRule, len(f.rules))
	for k, v := range f.rules {
		out[k] = v
	}
	return out, nil
}

// stubStrategy 固定结果的召回策略
type stubStrategy struct {
	name  string
	items []search.Candidate
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Recall(ctx context.Context, sctx *search.SearchContext, topK int) ([]search.Candidate, error) {
	return s.items, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	strategy := &stubStrategy{name: "keyword", items: []search.Candidate{
		{DocID: "d1", Rank: 1},
		{DocID: "d2", Rank: 2},
	}}
	orch := search.NewOrchestrator([]search.RecallStrategy{strategy}, time.Second)
	fuser := search.NewFuser([]string{"keyword"})
	gateway := search.NewGateway(orch, fuser, search.DefaultConfig())

	store := ranking.NewConfigStore(&fakeLambdaRepo{lambda: 0.5}, newFakeRuleBackend(), ranking.DefaultLambda)
	gateway.SetRanker(ranking.NewEngine(store))

	cfg := DefaultServerConfig()
	cfg.JWTSecret = "test-secret"
	return NewServer(cfg, gateway, store)
}

func signTestToken(t *testing.T, secret string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHealthBypassesJWT(t *testing.T) {
	handler := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for /health without token, got %d", rr.Code)
	}
}

func TestProtectedRoutesRequireJWT(t *testing.T) {
	handler := newTestServer(t).Handler()

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "search requires jwt", method: http.MethodPost, path: "/api/v1/search"},
		{name: "lambda requires jwt", method: http.MethodGet, path: "/api/v1/ranking/lambda"},
		{name: "exclusions require jwt", method: http.MethodGet, path: "/api/v1/ranking/exclusions"},
		{name: "position rules require jwt", method: http.MethodGet, path: "/api/v1/ranking/position"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 for protected route %s, got %d", tt.path, rr.Code)
			}
		})
	}
}

func TestValidTokenPassesAuth(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()
	token := signTestToken(t, "test-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ranking/lambda", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestWrongSecretRejected(t *testing.T) {
	handler := newTestServer(t).Handler()
	token := signTestToken(t, "wrong-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"golang"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for token signed with wrong secret, got %d", rr.Code)
	}
}

func TestSearchEndToEnd(t *testing.T) {
	handler := newTestServer(t).Handler()
	token := signTestToken(t, "test-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"golang"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for search, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "d1") {
		t.Errorf("expected d1 in search response, got %s", rr.Body.String())
	}
}
