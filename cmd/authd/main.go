package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatekit/gatekit/modules/authweb"
	"github.com/gatekit/gatekit/pkg/authn"
	"github.com/gatekit/gatekit/pkg/config"
	"github.com/gatekit/gatekit/pkg/httpserver"
	"github.com/gatekit/gatekit/pkg/logger"
	"github.com/gatekit/gatekit/pkg/mailer"
	"github.com/gatekit/gatekit/pkg/pg"
	"github.com/gatekit/gatekit/pkg/redis"
	"github.com/gatekit/gatekit/pkg/session"
	"github.com/gatekit/gatekit/storage/postgres"
)

type appConfig struct {
	BaseURL     string `env:"BASE_URL,required"`
	StateSecret string `env:"OAUTH_STATE_SECRET,required"`
	RedisURL    string `env:"REDIS_URL"`
	BcryptCost  int    `env:"BCRYPT_COST" envDefault:"10"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("authd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.New(logCfg, slog.String("service", "authd"))

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return err
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}
	store := postgres.NewStore(pool)

	mail, err := buildMailer(log)
	if err != nil {
		return err
	}

	verifier := authn.NewVerificationTokenService(store, store, mail, cfg.BaseURL,
		authn.WithVerificationLogger(log))
	linker := authn.NewAccountLinker(store, store, authn.NewBcryptHasher(cfg.BcryptCost), verifier,
		authn.WithLinkerLogger(log))

	auth := authn.New(authn.WithAuthLogger(log))
	if err := auth.Register(authn.NewFormStrategy(linker)); err != nil {
		return err
	}
	if err := registerOAuth(auth, cfg, linker, log); err != nil {
		return err
	}

	sessions, readiness, err := buildSessions(ctx, cfg, pool)
	if err != nil {
		return err
	}

	web := authweb.New(auth, sessions, verifier, authweb.WithLogger(log))

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(log))
	r.Get("/readyz", httpserver.HealthCheckHandler(log, readiness...))
	r.Mount("/", web.Router())

	var srvCfg httpserver.Config
	if err := config.Load(&srvCfg); err != nil {
		return err
	}
	return httpserver.New(srvCfg, httpserver.WithLogger(log)).Run(ctx, r)
}

// registerOAuth wires every provider with credentials present in the
// environment. config.Load fails on a partially configured provider, so a
// missing client secret stops the process here rather than at first login.
func registerOAuth(auth *authn.Authenticator, cfg appConfig, linker *authn.AccountLinker, log *slog.Logger) error {
	if os.Getenv("GITHUB_CLIENT_ID") != "" {
		var gh authn.GitHubConfig
		if err := config.Load(&gh); err != nil {
			return err
		}
		strategy := authn.NewOAuthStrategy(authn.StrategyGitHub, authn.OAuthConfig{
			ClientID:     gh.ClientID,
			ClientSecret: gh.ClientSecret,
			RedirectURL:  gh.RedirectURL,
			StateSecret:  cfg.StateSecret,
			StateTTL:     gh.StateTTL,
		}, authn.NewGitHubClient(gh), linker, authn.WithOAuthLogger(log))
		if err := auth.Register(strategy); err != nil {
			return err
		}
	}

	if os.Getenv("GOOGLE_CLIENT_ID") != "" {
		var gg authn.GoogleConfig
		if err := config.Load(&gg); err != nil {
			return err
		}
		strategy := authn.NewOAuthStrategy(authn.StrategyGoogle, authn.OAuthConfig{
			ClientID:     gg.ClientID,
			ClientSecret: gg.ClientSecret,
			RedirectURL:  gg.RedirectURL,
			StateSecret:  cfg.StateSecret,
			StateTTL:     gg.StateTTL,
		}, authn.NewGoogleClient(gg), linker, authn.WithOAuthLogger(log))
		if err := auth.Register(strategy); err != nil {
			return err
		}
	}

	return nil
}

func buildMailer(log *slog.Logger) (mailer.Mailer, error) {
	var cfg mailer.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if cfg.PostmarkServerToken == "" {
		log.Warn("postmark not configured, writing emails to disk",
			slog.String("dir", cfg.DevOutputDir))
		return mailer.NewDevSender(cfg.DevOutputDir), nil
	}
	return mailer.NewPostmark(cfg)
}

// buildSessions picks the session store and returns the readiness checks for
// the stores in use.
func buildSessions(ctx context.Context, cfg appConfig, pool *pgxpool.Pool) (*session.Manager, []func(context.Context) error, error) {
	var sessCfg session.Config
	if err := config.Load(&sessCfg); err != nil {
		return nil, nil, err
	}

	readiness := []func(context.Context) error{pg.Healthcheck(pool)}

	var store session.Store
	if cfg.RedisURL != "" {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, nil, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		store = session.NewRedisStore(client)
		readiness = append(readiness, redis.Healthcheck(client))
	} else {
		store = session.NewMemoryStore(time.Hour)
	}

	return session.NewManager(store, sessCfg), readiness, nil
}
