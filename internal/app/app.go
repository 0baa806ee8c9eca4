package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keyshield/keyshield/internal/config"
	"github.com/keyshield/keyshield/internal/db"
	internalhttp "github.com/keyshield/keyshield/internal/http"
	"github.com/keyshield/keyshield/internal/http/api"
	"github.com/keyshield/keyshield/internal/logging"
	"github.com/keyshield/keyshield/internal/provider"
	"github.com/keyshield/keyshield/internal/relay"
	"github.com/keyshield/keyshield/internal/security"
	internalsettings "github.com/keyshield/keyshield/internal/settings"
	"github.com/keyshield/keyshield/internal/store"
	internalusage "github.com/keyshield/keyshield/internal/usage"
	"github.com/keyshield/keyshield/internal/webui"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the configured database and runs migrations.
func Migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Store.Backend != config.StoreBackendGorm {
		return fmt.Errorf("app: migrations only apply to the gorm backend, got %q", cfg.Store.Backend)
	}
	conn, err := db.Open(cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

// backend bundles the store-dependent components.
type backend struct {
	store    store.EndpointStore
	conn     *gorm.DB
	recorder *internalusage.Recorder
	cleaner  *internalusage.RetentionCleaner
	close    func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if errPing := client.Ping(ctx).Err(); errPing != nil {
			_ = client.Close()
			return nil, fmt.Errorf("app: redis ping: %w", errPing)
		}
		log.Warn("redis store selected: invocation history is disabled and settings are kept in memory")
		return &backend{
			store: store.NewRedisStore(client, cfg.Store.RedisPrefix),
			close: func() { _ = client.Close() },
		}, nil
	default:
		conn, err := db.Open(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		if errMigrate := db.Migrate(conn); errMigrate != nil {
			_ = db.Close(conn)
			return nil, errMigrate
		}
		if errRefresh := internalsettings.Refresh(ctx, conn); errRefresh != nil {
			log.WithError(errRefresh).Warn("failed to load settings, using defaults")
		}
		return &backend{
			store:    store.NewGormStore(conn),
			conn:     conn,
			recorder: internalusage.NewRecorder(conn),
			cleaner:  internalusage.NewRetentionCleaner(conn),
			close:    func() { _ = db.Close(conn) },
		}, nil
	}
}

func newSealer(secret string) (*security.Sealer, error) {
	if strings.TrimSpace(secret) != "" {
		return security.NewSealer(secret)
	}
	log.Warn("no secret-key configured: stored API keys will not survive a restart")
	return security.NewEphemeralSealer()
}

// NewEngine builds the gin engine with middleware, API routes and the web UI.
func NewEngine(cfg *config.Config, svc *relay.Service, conn *gorm.DB) (*gin.Engine, error) {
	bundle, errLoad := webui.Load()
	if errLoad != nil {
		return nil, errLoad
	}
	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery(), internalhttp.CORSMiddleware(cfg.CORSOrigins))
	api.RegisterRoutes(engine, svc, conn)
	webui.Register(engine, bundle)
	return engine, nil
}

// RunServer boots the HTTP server and background workers until ctx is canceled.
func RunServer(ctx context.Context, cfg *config.Config) error {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	sealer, err := newSealer(cfg.SecretKey)
	if err != nil {
		return err
	}
	dispatcher, err := provider.NewDispatcher(provider.Options{
		Timeout:          time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		ProxyURL:         cfg.Upstream.ProxyURL,
		MaxResponseBytes: cfg.Upstream.MaxResponseBytes,
		OpenAIURL:        cfg.Providers.OpenAI,
		AnthropicURL:     cfg.Providers.Anthropic,
		CohereURL:        cfg.Providers.Cohere,
	})
	if err != nil {
		return err
	}
	svc := relay.NewService(relay.Options{
		Store:      be.store,
		Dispatcher: dispatcher,
		Sealer:     sealer,
		Recorder:   be.recorder,
		BaseURL:    cfg.BaseURL,
	})

	engine, err := NewEngine(cfg, svc, be.conn)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Infof("listening on %s (public base %s, store %s)", server.Addr, cfg.BaseURL, cfg.Store.Backend)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", errServe)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	if be.cleaner != nil {
		group.Go(func() error {
			return be.cleaner.Run(groupCtx)
		})
	}
	return group.Wait()
}
