package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"recallgate/internal/api"
	"recallgate/internal/db/elasticsearch"
	"recallgate/internal/db/milvus"
	"recallgate/internal/db/postgres"
	redisdb "recallgate/internal/db/redis"
	"recallgate/internal/domain/ranking"
	"recallgate/internal/domain/search"
	"recallgate/internal/platform/config"
	applog "recallgate/internal/platform/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		applog.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSeconds) * time.Second)

	if err := db.Ping(); err != nil {
		applog.Fatalf("❌ Failed to ping database: %v", err)
	}
	applog.Info("✅ Connected to PostgreSQL")

	lambdaRepo := postgres.NewLambdaRepo(db)
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := lambdaRepo.EnsureTable(migrateCtx, cfg.Ranking.DefaultLambda); err != nil {
		applog.Warnf("⚠️  Failed to ensure diversity_config table: %v", err)
	} else {
		applog.Info("✅ Diversity config table ready")
	}
	migrateCancel()

	redisClient := initRedis(cfg.Redis.URL)

	searchCfg := &cfg.Search
	strategies := buildStrategies(searchCfg)
	if len(strategies) == 0 {
		applog.Fatal("❌ No recall strategy available, check ES_URL / MILVUS_URL")
	}

	priority := make([]string, 0, len(strategies))
	for _, s := range strategies {
		priority = append(priority, s.Name())
	}

	orchestrator := search.NewOrchestrator(strategies, time.Duration(searchCfg.RecallTimeoutMS)*time.Millisecond)
	fuser := search.NewFuser(priority)
	gateway := search.NewGateway(orchestrator, fuser, searchCfg)

	if searchCfg.HasKeyword() {
		// ES 客户端同时承担查询分词
		gateway.SetTokenizer(elasticsearch.NewClient(searchCfg))
	}
	if searchCfg.HasVector() {
		if searchCfg.EmbeddingBaseURL == "" {
			applog.Warn("⚠️  Vector recall enabled without embedding service, queries will fall through to keyword recall")
		} else {
			embedder := search.NewOpenAIEmbedder(search.OpenAIEmbedderConfig{
				BaseURL: searchCfg.EmbeddingBaseURL,
				APIKey:  searchCfg.EmbeddingAPIKey,
				Model:   searchCfg.EmbeddingModel,
				Dims:    searchCfg.EmbeddingDims,
			})
			gateway.SetEmbedder(embedder)
			applog.Infof("✅ Embedder initialized (model: %s, dims: %d)", searchCfg.EmbeddingModel, embedder.Dims())
		}
	}

	rankingBackend := redisdb.NewRankingBackend(redisClient)
	configStore := ranking.NewConfigStore(lambdaRepo, rankingBackend, cfg.Ranking.DefaultLambda)
	gateway.SetRanker(ranking.NewEngine(configStore))
	applog.Info("✅ Ranking engine initialized")

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	serverConfig.JWTSecret = cfg.Auth.JWTSecret
	serverConfig.JWTIssuer = cfg.Auth.JWTIssuer
	server := api.NewServer(serverConfig, gateway, configStore)

	if searchCfg.HasCache() {
		searchCache := redisdb.NewSearchCache(redisClient, searchCfg.CacheTTL)
		gateway.SetCache(searchCache)
		server.SetCache(searchCache)
		applog.Infof("✅ Search cache initialized (TTL: %ds)", searchCfg.CacheTTL)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
		applog.Fatalf("❌ Server error: %v", err)
	}

	applog.Info("👋 Server stopped")
}

// buildStrategies 根据配置组装召回策略，注册顺序即融合时的元数据优先级
func buildStrategies(cfg *search.Config) []search.RecallStrategy {
	var strategies []search.RecallStrategy

	if cfg.HasVector() {
		client := milvus.NewClient(cfg)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx)
		cancel()
		if err != nil {
			applog.Warnf("⚠️  Milvus ping failed: %v (vector recall disabled)", err)
		} else {
			strategies = append(strategies, search.NewVectorStrategy(client))
			applog.Infof("✅ Connected to Milvus (collection: %s)", cfg.MilvusCollection)
		}
	}

	if cfg.HasKeyword() {
		client := elasticsearch.NewClient(cfg)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx)
		cancel()
		if err != nil {
			applog.Warnf("⚠️  Elasticsearch ping failed: %v (keyword recall disabled)", err)
		} else {
			strategies = append(strategies, search.NewKeywordStrategy(client))
			applog.Infof("✅ Connected to Elasticsearch (index: %s)", cfg.ESIndex)
		}
	}

	return strategies
}

func initRedis(url string) *goredis.Client {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		applog.Fatalf("❌ Invalid REDIS_URL: %v", err)
	}

	client := goredis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		applog.Fatalf("❌ Redis connection failed: %v", err)
	}
	applog.Info("✅ Connected to Redis")
	return client
}
