package purchase

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tair/purchase-ingest/internal/config"
	"github.com/tair/purchase-ingest/internal/purchase/codec"
	httpDelivery "github.com/tair/purchase-ingest/internal/purchase/delivery/http"
	"github.com/tair/purchase-ingest/internal/purchase/domain"
	"github.com/tair/purchase-ingest/internal/purchase/notifier"
	"github.com/tair/purchase-ingest/internal/purchase/repository"
	"github.com/tair/purchase-ingest/internal/purchase/usecase/command"
	"github.com/tair/purchase-ingest/internal/purchase/usecase/query"
	"github.com/tair/purchase-ingest/kafka"
	"github.com/tair/purchase-ingest/pkg/auth"
)

// Service bundles the wired entry points of the purchase service
type Service struct {
	Ingest *command.IngestPurchaseHandler
	HTTP   *httpDelivery.PurchaseHandler
}

// ProvideLineItemCodec provides the line-item column codec
func ProvideLineItemCodec() codec.LineItemCodec {
	return codec.JSONCodec{}
}

// ProvidePurchaseRepository picks the store driver from configuration and
// wraps it with tracing.
func ProvidePurchaseRepository(cfg *config.Config, db *gorm.DB, sqlDB *sql.DB, items codec.LineItemCodec) (domain.PurchaseRepository, error) {
	var repo domain.PurchaseRepository
	switch cfg.Database.Driver {
	case config.StoreDriverGorm:
		repo = repository.NewGormPurchaseRepository(db, items)
	case config.StoreDriverSQL:
		repo = repository.NewPostgresPurchaseRepository(sqlDB, items)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Database.Driver)
	}
	return repository.NewTracingPurchaseRepository(repo, cfg.Database.Driver), nil
}

// ProvideMailer uses SendGrid behind a circuit breaker when an API key is
// configured and logs the message otherwise.
func ProvideMailer(cfg *config.Config, log zerolog.Logger) notifier.Mailer {
	if cfg.Mail.SendGridAPIKey == "" {
		log.Warn().Msg("SENDGRID_API_KEY not set, notifications will only be logged")
		return notifier.NewLogMailer(log)
	}
	transport := notifier.NewSendGridMailer(cfg.Mail.SendGridAPIKey, cfg.Service.Name, log)
	return notifier.NewBreakingMailer(transport, cfg.Mail.BreakerMaxFailures, cfg.Mail.BreakerCooldown, log)
}

// ProvideNotifier provides the operator notifier
func ProvideNotifier(mailer notifier.Mailer, cfg *config.Config, log zerolog.Logger) command.Notifier {
	return notifier.NewEmailNotifier(mailer, notifier.Options{
		From:      cfg.Mail.From,
		Recipient: cfg.Mail.OperatorEmail,
		Subject:   cfg.Mail.Subject,
	}, log)
}

// ProvideIDGenerator provides the record id generator
func ProvideIDGenerator() command.IDGenerator {
	return uuid.New
}

// Command Handlers Providers
func ProvideIngestMetrics(reg prometheus.Registerer) *command.IngestMetrics {
	return command.NewIngestMetrics(reg)
}

func ProvideIngestPurchaseHandler(
	repo domain.PurchaseRepository,
	n command.Notifier,
	newID command.IDGenerator,
	metrics *command.IngestMetrics,
	log zerolog.Logger,
) *command.IngestPurchaseHandler {
	return command.NewIngestPurchaseHandler(repo, n, newID, metrics, log)
}

// Query Handlers Providers
func ProvidePurchaseCache(cfg *config.Config, client *redis.Client) query.PurchaseCache {
	if client == nil {
		return nil
	}
	return query.NewRedisPurchaseCache(client, cfg.Redis.CacheTTL)
}

func ProvideGetPurchaseHandler(repo domain.PurchaseRepository, cache query.PurchaseCache, log zerolog.Logger) *query.GetPurchaseHandler {
	return query.NewGetPurchaseHandler(repo, cache, log)
}

func ProvideListPurchasesHandler(repo domain.PurchaseRepository) *query.ListPurchasesHandler {
	return query.NewListPurchasesHandler(repo)
}

// HTTP Providers
func ProvideJWTManager(cfg *config.Config) *auth.JWTManager {
	return auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
}

func ProvideRateLimiter(cfg *config.Config, client *redis.Client, log zerolog.Logger) *httpDelivery.RateLimiter {
	return httpDelivery.NewRateLimiter(client, cfg.HTTP.TriggerRateLimit, cfg.HTTP.TriggerRateWindow, log)
}

func ProvideHTTPMetrics(reg prometheus.Registerer) *httpDelivery.HTTPMetrics {
	return httpDelivery.NewHTTPMetrics(reg)
}

func ProvidePurchaseHandler(
	getHandler *query.GetPurchaseHandler,
	listHandler *query.ListPurchasesHandler,
	publisher *kafka.Publisher,
	limiter *httpDelivery.RateLimiter,
	tokens *auth.JWTManager,
	metrics *httpDelivery.HTTPMetrics,
	log zerolog.Logger,
) *httpDelivery.PurchaseHandler {
	var trigger httpDelivery.TriggerPublisher
	if publisher != nil {
		trigger = publisher
	}
	return httpDelivery.NewPurchaseHandler(getHandler, listHandler, trigger, limiter, tokens, metrics, log)
}
