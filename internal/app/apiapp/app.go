package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/config"
	s3infra "github.com/ebuka-odih/nyem-sub003/internal/infra/s3"
	pgrepo "github.com/ebuka-odih/nyem-sub003/internal/repo/postgres"
	redrepo "github.com/ebuka-odih/nyem-sub003/internal/repo/redis"
	"github.com/ebuka-odih/nyem-sub003/internal/relay"
	authsvc "github.com/ebuka-odih/nyem-sub003/internal/services/auth"
	matchessvc "github.com/ebuka-odih/nyem-sub003/internal/services/matches"
	messagesvc "github.com/ebuka-odih/nyem-sub003/internal/services/messages"
	notifysvc "github.com/ebuka-odih/nyem-sub003/internal/services/notify"
	ratesvc "github.com/ebuka-odih/nyem-sub003/internal/services/rate"
	swipesvc "github.com/ebuka-odih/nyem-sub003/internal/services/swipes"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	dispatcher *notifysvc.Dispatcher
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, pgrepo.PoolConfig{
		DSN:      cfg.Postgres.DSN,
		MaxConns: cfg.Postgres.MaxConns,
	}); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
		if cfg.Postgres.AutoMigrate {
			if err := pgrepo.ApplySchema(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("apply schema: %w", err)
			}
		}
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	presenceRepo := redrepo.NewPresenceRepo(redisClient, cfg.Relay.PresenceTTL)
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)

	dispatcher := newDispatcher(cfg, log)

	var photos notifysvc.PhotoResolver
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
		Region:    cfg.S3.Region,
	}); err != nil {
		log.Warn("s3 init failed, photo urls disabled", zap.Error(err))
	} else {
		photos = s3infra.NewPhotoSigner(c, cfg.S3.Bucket, cfg.S3.PhotoTTL)
	}

	deps := Dependencies{
		Tokens:   jwtManager,
		Presence: presenceRepo,
		Logger:   log,
	}

	if pool != nil {
		tx := pgrepo.NewTransactor(pool)
		swipeRepo := pgrepo.NewSwipeRepo(pool)
		matchRepo := pgrepo.NewMatchRepo(pool)
		conversationRepo := pgrepo.NewConversationRepo(pool)
		messageRepo := pgrepo.NewMessageRepo(pool)
		blockRepo := pgrepo.NewBlockRepo(pool)
		itemRepo := pgrepo.NewItemRepo(pool)
		userRepo := pgrepo.NewUserRepo(pool)

		publisher := notifysvc.NewPublisher(notifysvc.PublisherDependencies{
			Dispatcher: dispatcher,
			Users:      userRepo,
			Items:      itemRepo,
			Photos:     photos,
			Logger:     log,
		})
		detector := matchessvc.NewDetector(matchessvc.DetectorDependencies{
			Swipes:        swipeRepo,
			Matches:       matchRepo,
			Conversations: conversationRepo,
			Logger:        log,
		}, matchessvc.DetectorConfig{
			ReuseConversation: cfg.Matches.ReuseConversation,
			OnePerPair:        cfg.Matches.OnePerPair,
		})

		deps.SwipeService = swipesvc.NewService(swipesvc.Dependencies{
			Tx:          tx,
			Items:       itemRepo,
			Blocks:      blockRepo,
			Swipes:      swipeRepo,
			Detector:    detector,
			Notifier:    publisher,
			RateLimiter: ratesvc.NewLimiter(rateRepo, "swipes", cfg.Swipes.RatePerMinute, cfg.Swipes.RatePer10Sec),
			Logger:      log,
		}, swipesvc.Config{ConflictPolicy: cfg.ConflictPolicy()})
		deps.MatchService = matchessvc.NewService(matchessvc.Dependencies{
			Tx:         tx,
			MatchStore: matchRepo,
			BlockStore: blockRepo,
		})
		deps.MessageService = messagesvc.NewService(messagesvc.Dependencies{
			Tx:            tx,
			Conversations: conversationRepo,
			Messages:      messageRepo,
			Blocks:        blockRepo,
			Notifier:      publisher,
			RateLimiter:   ratesvc.NewLimiter(rateRepo, "messages", 0, cfg.Messages.RatePer10Sec),
		}, messagesvc.Config{MaxLength: cfg.Messages.MaxLength})
	}

	RegisterRoutes(r, deps)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		dispatcher: dispatcher,
		httpRouter: r,
	}, nil
}

// newDispatcher returns nil when no relay control address is configured;
// services then skip realtime delivery.
func newDispatcher(cfg config.Config, log *zap.Logger) *notifysvc.Dispatcher {
	if cfg.Dispatch.ControlAddr == "" {
		log.Warn("dispatch.control_addr is empty, realtime delivery disabled")
		return nil
	}
	transport, err := relay.NewControlClient(cfg.Dispatch.ControlAddr)
	if err != nil {
		log.Warn("relay control client init failed, realtime delivery disabled", zap.Error(err))
		return nil
	}
	return notifysvc.NewDispatcher(transport, notifysvc.Config{
		Timeout:     cfg.Dispatch.Timeout,
		MaxInFlight: cfg.Dispatch.MaxInFlight,
	}, log)
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.dispatcher != nil {
		if err := a.dispatcher.Wait(ctx); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
