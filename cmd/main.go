package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fjod/go_cart/cartsync/internal/cache"
	"github.com/fjod/go_cart/cartsync/internal/catalog"
	"github.com/fjod/go_cart/cartsync/internal/config"
	"github.com/fjod/go_cart/cartsync/internal/events"
	carthttp "github.com/fjod/go_cart/cartsync/internal/http"
	"github.com/fjod/go_cart/cartsync/internal/logger"
	"github.com/fjod/go_cart/cartsync/internal/producttruth"
	"github.com/fjod/go_cart/cartsync/internal/repository"
	"github.com/fjod/go_cart/cartsync/internal/service"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName       = "cart-service"
	memoryCacheSize   = 10_000
	readHeaderTimeout = 5 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(logger.Options{Service: serviceName, Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()
	zap.ReplaceGlobals(lg)

	if err := run(cfg, lg); err != nil {
		lg.Fatal("cart service failed", zap.Error(err))
	}
	lg.Info("cart service stopped")
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	lg.Info("cart store ready", zap.String("driver", cfg.StoreDriver))

	store, closeStore, err := openCacheStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	lg.Info("product cache ready", zap.String("driver", cfg.CacheDriver))

	catalogClient := catalog.NewBreakerClient(
		catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout),
		catalog.DefaultBreakerSettings(),
		lg,
	)
	products := producttruth.NewCache(store, catalogClient, cfg.ProductCacheTTL, cfg.ProductCacheJitter, lg)

	cartService := service.NewCartService(repo, products, lg, service.Options{
		ResolveConcurrency: cfg.ResolveConcurrency,
		MaxItemQuantity:    cfg.MaxItemQuantity,
	})

	subscriber := events.NewSubscriber(events.SubscriberConfig{
		Brokers:       cfg.KafkaBrokers,
		Topic:         cfg.KafkaTopic,
		GroupID:       cfg.KafkaGroupID,
		DLQTopic:      cfg.KafkaDLQTopic,
		HandleTimeout: cfg.EventHandleTimeout,
	}, events.NewHandler(products, repo, lg), lg)
	defer func() {
		if err := subscriber.Close(); err != nil {
			lg.Warn("error closing subscriber", zap.Error(err))
		}
	}()

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           carthttp.NewRouter(carthttp.NewCartHandler(cartService, lg), cfg.RequestTimeout),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("cart service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return subscriber.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down cart service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func openRepository(cfg *config.Config) (repository.CartRepository, error) {
	var (
		repo repository.CartRepository
		err  error
	)
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		repo, err = repository.NewSQLiteRepository(cfg.SQLitePath)
	default:
		repo, err = repository.NewPostgresRepository(&repository.Credentials{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cart store: %w", err)
	}

	if err := repo.RunMigrations(filepath.Join(cfg.MigrationsPath, cfg.StoreDriver)); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repo, nil
}

func openCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	if cfg.CacheDriver == config.CacheDriverMemory {
		return cache.NewMemoryStore(memoryCacheSize, cfg.ProductCacheTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return cache.NewRedisStore(client), func() { client.Close() }, nil
}
