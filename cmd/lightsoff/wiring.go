package main

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sqlxpert/lights-off-aws/internal/catalog"
	"github.com/sqlxpert/lights-off-aws/internal/config"
	"github.com/sqlxpert/lights-off-aws/internal/db"
	"github.com/sqlxpert/lights-off-aws/internal/lease"
	"github.com/sqlxpert/lights-off-aws/internal/logx"
	"github.com/sqlxpert/lights-off-aws/internal/queue"
	"github.com/sqlxpert/lights-off-aws/internal/repo"
)

// runtime bundles everything find, do, serve, and dlq each need a subset
// of, assembled once per invocation the way the teacher's cmd/api/main.go
// wired one pool/client set at process start.
type runtime struct {
	cfg     config.Config
	log     logx.Logger
	db      *pgxpool.Pool
	rdb     *redis.Client
	lease   *lease.Manager
	table   []catalog.Entry
	clients *catalog.Clients
	repo    *repo.OperationRepo
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logx.New(cfg.LogLevel, os.Stderr)

	pool, err := db.Init(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	rdb, err := queue.Connect(ctx, cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		pool.Close()
		rdb.Close()
		return nil, fmt.Errorf("aws config: %w", err)
	}

	clients := catalog.NewClients(
		ec2.NewFromConfig(awsCfg),
		rds.NewFromConfig(awsCfg),
		cloudformation.NewFromConfig(awsCfg),
		cfg.PerServiceRPS,
	)

	table, err := catalog.BuildTable()
	if err != nil {
		pool.Close()
		rdb.Close()
		return nil, fmt.Errorf("catalog: %w", err)
	}

	return &runtime{
		cfg:     cfg,
		log:     log,
		db:      pool,
		rdb:     rdb,
		lease:   lease.NewManager(rdb),
		table:   table,
		clients: clients,
		repo:    repo.NewOperationRepo(pool),
	}, nil
}

func (r *runtime) close() {
	r.db.Close()
	_ = r.rdb.Close()
}

// queueName picks the single operation queue this process drains or
// feeds. Multiple logical queues (config.QueueNames) are for sharding
// across deployments, not for one process to fan out to simultaneously.
func (r *runtime) queueName() string {
	if len(r.cfg.QueueNames) == 0 {
		return "default"
	}
	return r.cfg.QueueNames[0]
}
