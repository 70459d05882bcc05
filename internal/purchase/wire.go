//go:build wireinject
// +build wireinject

package purchase

import (
	"database/sql"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tair/purchase-ingest/internal/config"
	"github.com/tair/purchase-ingest/kafka"
)

// Wire sets
var RepositorySet = wire.NewSet(
	ProvideLineItemCodec,
	ProvidePurchaseRepository,
)

var CommandHandlerSet = wire.NewSet(
	ProvideMailer,
	ProvideNotifier,
	ProvideIDGenerator,
	ProvideIngestMetrics,
	ProvideIngestPurchaseHandler,
)

var QueryHandlerSet = wire.NewSet(
	ProvidePurchaseCache,
	ProvideGetPurchaseHandler,
	ProvideListPurchasesHandler,
)

var HTTPSet = wire.NewSet(
	ProvideJWTManager,
	ProvideRateLimiter,
	ProvideHTTPMetrics,
	ProvidePurchaseHandler,
)

var AllHandlersSet = wire.NewSet(
	RepositorySet,
	CommandHandlerSet,
	QueryHandlerSet,
	HTTPSet,
)

// InitializeService initializes the ingest and HTTP handlers with all dependencies
func InitializeService(
	cfg *config.Config,
	db *gorm.DB,
	sqlDB *sql.DB,
	redisClient *redis.Client,
	publisher *kafka.Publisher,
	reg prometheus.Registerer,
	log zerolog.Logger,
) (*Service, error) {
	wire.Build(
		AllHandlersSet,
		wire.Struct(new(Service), "*"),
	)
	return nil, nil
}
