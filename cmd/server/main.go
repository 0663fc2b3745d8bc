package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	echoapi "github.com/signet-dev/signet/api/echo"
	"github.com/signet-dev/signet/cache"
	redisstore "github.com/signet-dev/signet/cache/redis"
	"github.com/signet-dev/signet/config"
	"github.com/signet-dev/signet/domain"
	"github.com/signet-dev/signet/internal/auth"
	"github.com/signet-dev/signet/internal/federation"
	"github.com/signet-dev/signet/internal/metrics"
	"github.com/signet-dev/signet/memory"
	"github.com/signet-dev/signet/mongodb"
	"github.com/signet-dev/signet/services"
)

// repositories groups the persistence handles one storage backend provides.
type repositories struct {
	codes      domain.AuthCodeRepository
	tokens     domain.TokenRepository
	clients    domain.ClientRepository
	users      domain.UserRepository
	identities domain.FederatedIdentityRepository
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.Storage).
		Str("issuer", cfg.Issuer).
		Msg("Starting signet server")

	ctx := context.Background()

	repos, cleanup, err := buildRepositories(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer cleanup()

	tokenCache := buildTokenCache(cfg)
	defer tokenCache.Close()

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	// Services, composed explicitly.
	hasher := auth.NewBcryptPasswordHasher(bcrypt.DefaultCost)
	authenticator := services.NewAuthenticator(repos.users, hasher)
	clientService := services.NewClientService(repos.clients)
	tokenService := services.NewTokenService(repos.tokens, tokenCache)

	var signer *services.TokenSigner
	if cfg.IDTokenSigningKey != "" {
		signer = services.NewTokenSigner(cfg.IDTokenSigningKey, cfg.Issuer)
	}

	grantService := services.NewGrantService(
		clientService, repos.codes, tokenService, repos.users, signer,
		services.GrantConfig{
			AuthCodeTTL:     cfg.AuthCodeTTL(),
			AccessTokenTTL:  cfg.AccessTokenTTL(),
			RefreshTokenTTL: cfg.RefreshTokenTTL(),
		})

	fedService := buildFederation(cfg, repos)

	sessions := echoapi.NewSessionStore(cfg.SessionTTL())
	defer sessions.Close()

	api := echoapi.NewOAuth2API(authenticator, clientService, grantService, fedService, sessions)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	api.RegisterRoutes(e)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}

func setupLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

func buildRepositories(ctx context.Context, cfg *config.ServerConfig) (*repositories, func(), error) {
	switch cfg.Storage {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		client, db, err := mongodb.Connect(connectCtx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		if err := mongodb.EnsureIndexes(connectCtx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		repos := &repositories{
			codes:      mongodb.NewAuthCodeRepository(db),
			tokens:     mongodb.NewTokenRepository(db),
			clients:    mongodb.NewClientRepository(db),
			users:      mongodb.NewUserRepository(db),
			identities: mongodb.NewFederatedIdentityRepository(db),
		}
		cleanup := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("MongoDB disconnect failed")
			}
		}
		return repos, cleanup, nil

	case "memory":
		return &repositories{
			codes:      memory.NewAuthCodeRepository(),
			tokens:     memory.NewTokenRepository(),
			clients:    memory.NewClientRepository(),
			users:      memory.NewUserRepository(),
			identities: memory.NewFederatedIdentityRepository(),
		}, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

func buildTokenCache(cfg *config.ServerConfig) cache.TokenStore {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using redis token cache")
		return redisstore.NewTokenStore(client, "signet")
	}
	return cache.NewMemoryTokenStore(cfg.AccessTokenTTL())
}

func buildFederation(cfg *config.ServerConfig, repos *repositories) *services.FederationService {
	var providers []federation.OAuth2Provider
	if cfg.GoogleClientID != "" {
		providers = append(providers, federation.NewGoogleProvider(federation.ProviderConfig{
			Name:         "google",
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
		}))
	}
	if cfg.FacebookClientID != "" {
		providers = append(providers, federation.NewFacebookProvider(federation.ProviderConfig{
			Name:         "facebook",
			ClientID:     cfg.FacebookClientID,
			ClientSecret: cfg.FacebookClientSecret,
		}))
	}
	if len(providers) == 0 {
		return nil
	}
	log.Info().Int("providers", len(providers)).Msg("Delegated login enabled")
	return services.NewFederationService(
		providers, repos.users, repos.identities,
		cfg.FederationCallbackURL, cfg.UpstreamTimeout())
}
