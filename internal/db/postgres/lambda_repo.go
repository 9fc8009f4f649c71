package postgres

import (
	"context"
	"database/sql"
	"fmt"

	applog "recallgate/internal/platform/log"
)

// diversityConfigID 多样性配置单行表的固定主键
const diversityConfigID = 1

// LambdaRepo 多样性权重 PostgreSQL 存储
type LambdaRepo struct {
	db *sql.DB
}

// NewLambdaRepo 创建 lambda 存储
func NewLambdaRepo(db *sql.DB) *LambdaRepo {
	return &LambdaRepo{db: db}
}

// EnsureTable 确保 diversity_config 表存在并播种默认行
func (r *LambdaRepo) EnsureTable(ctx context.Context, defaultLambda float64) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS diversity_config (
		id           INT PRIMARY KEY,
		lambda_param DOUBLE PRECISION NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create diversity_config: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO diversity_config (id, lambda_param) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		diversityConfigID, defaultLambda,
	)
	if err != nil {
		return fmt.Errorf("seed diversity_config: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		applog.Info("[Storage] Seeded diversity config", "lambda", defaultLambda)
	}
	return nil
}

// GetLambda 读取当前多样性权重
func (r *LambdaRepo) GetLambda(ctx context.Context) (float64, error) {
	var lambda float64
	err := r.db.QueryRowContext(ctx,
		`SELECT lambda_param FROM diversity_config WHERE id = $1`,
		diversityConfigID,
	).Scan(&lambda)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("diversity config row missing")
	}
	if err != nil {
		return 0, fmt.Errorf("get lambda: %w", err)
	}
	return lambda, nil
}

// SetLambda 更新多样性权重（upsert）
func (r *LambdaRepo) SetLambda(ctx context.Context, lambda float64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO diversity_config (id, lambda_param, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE SET lambda_param = EXCLUDED.lambda_param, updated_at = NOW()`,
		diversityConfigID, lambda,
	)
	if err != nil {
		return fmt.Errorf("set lambda: %w", err)
	}
	return nil
}
