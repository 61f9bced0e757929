package relayapp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/config"
	redrepo "github.com/ebuka-odih/nyem-sub003/internal/repo/redis"
	"github.com/ebuka-odih/nyem-sub003/internal/relay"
	authsvc "github.com/ebuka-odih/nyem-sub003/internal/services/auth"
	httperrors "github.com/ebuka-odih/nyem-sub003/internal/transport/http/errors"
)

type App struct {
	cfg     config.Config
	logger  *zap.Logger
	relay   *relay.Relay
	control *relay.ControlServer
	server  *http.Server
	redis   *goredis.Client
	router  http.Handler
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	var verifier relay.Verifier = relay.TrustingVerifier{}
	if cfg.Relay.RequireToken {
		verifier = relay.TokenVerifier{Tokens: authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)}
	} else {
		log.Warn("relay.require_token is false, clients are trusted on their claimed user id")
	}

	rl := relay.New(relay.Dependencies{
		Verifier: verifier,
		Presence: redrepo.NewPresenceRepo(redisClient, cfg.Relay.PresenceTTL),
		Logger:   log,
	}, relay.Config{
		HeartbeatInterval: cfg.Relay.HeartbeatInterval,
		WriteTimeout:      cfg.Relay.WriteTimeout,
		ReadLimit:         cfg.Relay.ReadLimit,
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Get("/ws", rl.ServeWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httperrors.Write(w, http.StatusOK, struct {
			OK bool `json:"ok"`
		}{OK: true})
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		httperrors.Write(w, http.StatusOK, rl.Stats())
	})

	return &App{
		cfg:     cfg,
		logger:  log,
		relay:   rl,
		control: relay.NewRelayControlServer(rl, log),
		server: &http.Server{
			Addr:              cfg.Relay.Addr,
			Handler:           r,
			ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
			IdleTimeout:       cfg.HTTP.IdleTimeout,
		},
		redis:  redisClient,
		router: r,
	}, nil
}

// Run serves websocket clients, the control socket and the heartbeat until
// ctx is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := relay.ListenControl(a.cfg.Relay.ControlAddr)
	if err != nil {
		return fmt.Errorf("open relay control socket: %w", err)
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, controlLn net.Listener) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- a.control.Serve(runCtx, controlLn)
	}()
	go func() {
		a.logger.Info("relay server started", zap.String("addr", a.cfg.Relay.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
	go a.relay.RunHeartbeat(runCtx)

	select {
	case <-ctx.Done():
		a.logger.Info("relay app stopping")
		return nil
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}
}

// Shutdown stops accepting clients, closes every live connection and
// releases redis.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if err := a.relay.Shutdown(ctx); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) Relay() *relay.Relay {
	return a.relay
}
