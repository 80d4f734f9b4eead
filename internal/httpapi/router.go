package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sqlxpert/lights-off-aws/internal/repo"
)

// NewRouter assembles the serve subcommand's gin engine: health/ready
// probes, the Prometheus scrape endpoint, dead-letter inspection, and the
// operation audit trail, the way the teacher's cmd/api/main.go wired one
// engine per concern group instead of one handler per route.
func NewRouter(db *pgxpool.Pool, rdb *redis.Client, operationRepo *repo.OperationRepo, queueName string) *gin.Engine {
	health := NewHealthHandler(db, rdb)
	queueH := NewQueueHandler(rdb, queueName)
	opsH := NewOperationHandler(operationRepo)

	engine := gin.Default()
	engine.GET("/healthz", health.Healthz)
	engine.GET("/readyz", health.Readyz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	{
		api.GET("/dlq", queueH.ListDLQ)
		api.POST("/dlq/replay", queueH.ReplayDLQ)
		api.GET("/operations", opsH.ListRecent)
		api.GET("/resources/:id/operations", opsH.ListByResource)
	}

	return engine
}
