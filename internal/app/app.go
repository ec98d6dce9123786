// Package app builds the service graph shared by the API, the job worker
// and the ops CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/taskhub/taskhub-api/internal/config"
	"github.com/taskhub/taskhub-api/internal/domain/admin"
	"github.com/taskhub/taskhub-api/internal/domain/booking"
	"github.com/taskhub/taskhub-api/internal/domain/deposit"
	"github.com/taskhub/taskhub-api/internal/domain/escrow"
	"github.com/taskhub/taskhub-api/internal/domain/realtime"
	"github.com/taskhub/taskhub-api/internal/domain/settings"
	"github.com/taskhub/taskhub-api/internal/domain/user"
	"github.com/taskhub/taskhub-api/internal/domain/wallet"
	"github.com/taskhub/taskhub-api/internal/jobs"
	"github.com/taskhub/taskhub-api/internal/pkg/cache"
	"github.com/taskhub/taskhub-api/internal/pkg/database"
	"github.com/taskhub/taskhub-api/internal/pkg/email"
	"github.com/taskhub/taskhub-api/internal/pkg/jwt"
	"github.com/taskhub/taskhub-api/internal/pkg/paypal"
	"github.com/taskhub/taskhub-api/internal/pkg/sepay"
	"github.com/taskhub/taskhub-api/internal/pkg/storage"
)

const localCacheTTL = 10 * time.Second

// Options select the process specific parts of the graph.
type Options struct {
	// Sockets starts a hub that accepts WebSocket clients. Without it
	// events are only forwarded to Redis for the API instances.
	Sockets bool
}

type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client

	JWT    *jwt.Service
	Hub    *realtime.Hub
	Mailer *email.Service
	PayPal *paypal.Client
	Queue  *jobs.Enqueuer

	// Users is the uncached profile store used where role changes must
	// apply at once. CachedUsers serves everything else.
	Users       user.Repository
	CachedUsers *user.CachedRepository

	Settings *settings.Service
	Wallet   *wallet.Service
	Escrow   *escrow.Service
	Deposits *deposit.Service
	Bookings *booking.Service
	Admin    *admin.Service
}

// New connects to Postgres and Redis and wires every service. Redis is
// optional: without it caching, locking, rate limits and jobs are disabled.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	// amounts go over the wire, to clients and into events, as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rdb, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		database.ClosePostgres(db)
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	a := &App{Config: cfg, DB: db, Redis: rdb}
	if err := a.wire(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, opts Options) error {
	cfg := a.Config

	a.JWT = jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	a.Mailer = email.NewService(email.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.MailFrom,
		FromName:  "TaskHub",
	}, cfg.OpsEmail)
	a.PayPal = paypal.NewClient(paypal.Config{
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		Live:         cfg.PayPalLive(),
		ReturnURL:    cfg.FrontendURL + "/wallet/deposit/paypal/return",
		CancelURL:    cfg.FrontendURL + "/wallet/deposit/paypal/cancel",
	})

	if opts.Sockets {
		a.Hub = realtime.NewHub(a.Redis)
		go a.Hub.Run()
	} else {
		a.Hub = realtime.NewPublisher(a.Redis)
	}

	archive, err := storage.New(ctx, storage.Config{
		S3Endpoint:  cfg.S3Endpoint,
		S3Region:    cfg.S3Region,
		S3Bucket:    cfg.S3Bucket,
		S3AccessKey: cfg.S3AccessKey,
		S3SecretKey: cfg.S3SecretKey,
		LocalPath:   cfg.ArchivePath,
	})
	if err != nil {
		return fmt.Errorf("webhook archive: %w", err)
	}

	if cfg.RedisURL != "" {
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse queue redis url: %w", err)
		}
		a.Queue = jobs.NewEnqueuer(asynq.NewClient(redisOpt))
	} else {
		log.Warn().Msg("Job queue disabled, escrows are released by the periodic sweep only")
	}

	sharedCache := cache.New(a.Redis, localCacheTTL)

	a.Users = user.NewRepository(a.DB)
	a.CachedUsers = user.NewCachedRepository(a.Users, sharedCache)
	a.Settings = settings.NewService(settings.NewRepository(a.DB), sharedCache)

	a.Wallet = wallet.NewService(wallet.NewRepository(a.DB), a.Settings, a.PayPal, a.Mailer, a.Hub)

	a.Escrow = escrow.NewService(escrow.NewRepository(a.DB), a.CachedUsers, a.Settings)
	a.Escrow.SetNotifier(a.Mailer)
	a.Escrow.SetEventPublisher(a.Hub)
	a.Escrow.SetLockClient(a.Redis)

	a.Deposits = deposit.NewService(deposit.NewRepository(a.DB), a.Settings, deposit.Config{
		Account: sepay.Account{
			BankName:      cfg.SepayBankName,
			AccountNumber: cfg.SepayAccountNumber,
			AccountName:   cfg.SepayAccountName,
			QRBaseURL:     cfg.SepayQRBaseURL,
		},
		USDToVND: cfg.USDToVNDRate,
		TTL:      cfg.DepositTTL,
	})
	a.Deposits.SetOrderGateway(a.PayPal)
	a.Deposits.SetArchive(archive)
	a.Deposits.SetNotifier(a.Mailer)
	a.Deposits.SetEventPublisher(a.Hub)

	if a.Queue != nil {
		a.Escrow.SetScheduler(a.Queue)
		a.Deposits.SetScheduler(a.Queue)
	}

	a.Bookings = booking.NewService(booking.NewRepository(a.DB), a.Escrow, a.Wallet, a.CachedUsers)
	a.Bookings.SetEventPublisher(a.Hub)

	a.Admin = admin.NewService(admin.NewRepository(a.DB))
	return nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing job queue client")
		}
	}
	if a.Hub != nil {
		a.Hub.Shutdown()
	}
	if a.Mailer != nil {
		a.Mailer.Close()
	}
	database.CloseRedis(a.Redis)
	database.ClosePostgres(a.DB)
}
