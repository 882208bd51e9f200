package bootstrap

import (
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/loop-safety/internal/config"
	"github.com/wolfman30/loop-safety/internal/notify"
	"github.com/wolfman30/loop-safety/internal/review"
	"github.com/wolfman30/loop-safety/internal/safety"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

// Safety store names accepted by SAFETY_STORE.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamo   = "dynamodb"
)

// BuildSafetyRepository selects the account safety store.
func BuildSafetyRepository(cfg *appconfig.Config, pool *pgxpool.Pool, dynamo safety.DynamoAPI) (safety.Repository, error) {
	switch cfg.SafetyStore {
	case "", StoreMemory:
		return safety.NewMemoryRepository(), nil
	case StorePostgres:
		if pool == nil {
			return nil, fmt.Errorf("bootstrap: SAFETY_STORE=postgres requires DATABASE_URL")
		}
		return safety.NewPostgresRepository(pool), nil
	case StoreDynamo:
		if dynamo == nil {
			return nil, fmt.Errorf("bootstrap: SAFETY_STORE=dynamodb requires a dynamodb client")
		}
		return safety.NewDynamoRepository(dynamo, cfg.SafetyTable), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown safety store %q", cfg.SafetyStore)
	}
}

// BuildNotificationStore persists notifications in Postgres when a database
// is available.
func BuildNotificationStore(db *sql.DB) notify.Store {
	if db == nil {
		return notify.NewMemoryStore()
	}
	return notify.NewSQLStore(db)
}

// BuildEmailSender selects the operator email transport. Misconfigured
// providers degrade to the logging stub.
func BuildEmailSender(cfg *appconfig.Config, ses notify.SESAPI, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	from := notify.Identity{Email: cfg.EmailFrom, Name: cfg.EmailFromName}
	switch cfg.EmailProvider {
	case "ses":
		if sender := notify.NewSESSender(ses, from, logger); sender != nil {
			return sender
		}
		logger.Warn("ses email requested without a client, using stub")
	case "sendgrid":
		if sender := notify.NewSendGridSender(cfg.SendGridAPIKey, from, logger); sender != nil {
			return sender
		}
		logger.Warn("sendgrid email requested without SENDGRID_API_KEY, using stub")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildReviewQueue returns the SQS review queue, or an in-memory queue when
// REVIEW_QUEUE_URL is unset.
func BuildReviewQueue(cfg *appconfig.Config, client review.SQSAPI) (review.Queue, bool) {
	if cfg.ReviewQueueURL == "" || client == nil {
		return review.NewMemoryQueue(256), false
	}
	return review.NewSQSQueue(client, cfg.ReviewQueueURL), true
}
