package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thisisprabalapndey/pathpooja/internal/checkout"
	"github.com/thisisprabalapndey/pathpooja/internal/config"
	h "github.com/thisisprabalapndey/pathpooja/internal/http"
	"github.com/thisisprabalapndey/pathpooja/internal/identity"
	"github.com/thisisprabalapndey/pathpooja/internal/storage"
	"github.com/thisisprabalapndey/pathpooja/internal/visitor"
)

const connectTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the storefront HTTP API",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), connectTimeout)
	defer cancel()

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	log.Printf("storage backend: %s", cfg.Storage.Backend)

	cat, err := loadCatalog(ctx, cfg)
	if err != nil {
		_ = store.Close(context.Background())
		return err
	}
	log.Printf("catalog loaded: %d products", cat.Len())

	registry, err := visitor.NewRegistry(store, providerFactory(cfg), visitor.Config{
		OrderTTL: cfg.Checkout.OrderTTL,
		IdleTTL:  cfg.Visitor.IdleTTL,
	})
	if err != nil {
		_ = store.Close(context.Background())
		return fmt.Errorf("failed to create visitor registry: %w", err)
	}

	svc := checkout.NewService(newPublisher(cfg), cfg.Checkout.Delay)

	srv := &http.Server{
		Addr: cfg.Server.Port,
		Handler: h.NewRouter(h.RouterConfig{
			Products:       cat,
			Visitors:       registry,
			Checkout:       svc,
			RequestTimeout: cfg.Server.RequestTimeout,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Storefront starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := svc.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("checkout shutdown: %w", err))
	}
	if err := registry.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("flush visitors: %w", err))
	}
	if err := store.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}

	log.Println("server exited")
	return errors.Join(errs...)
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		client, err := storage.ConnectRedis(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return storage.NewRedisStorage(client, "storefront"), nil

	case config.BackendMongo:
		db, err := storage.ConnectMongoDB(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase)
		if err != nil {
			return nil, err
		}
		store := storage.NewMongoStorage(db)
		if err := store.CreateIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, err
		}
		return store, nil

	case config.BackendFile:
		store, err := storage.NewFileStorage(cfg.Storage.FileDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open file storage: %w", err)
		}
		return store, nil

	default:
		return storage.NewMemoryStorage(), nil
	}
}

// providerFactory returns nil without a signing secret; visitors then browse anonymously.
func providerFactory(cfg *config.Config) visitor.ProviderFactory {
	if cfg.Auth.JWTSecret == "" {
		log.Println("AUTH_JWT_SECRET not set, sign-in disabled")
		return nil
	}
	secret := []byte(cfg.Auth.JWTSecret)
	return func(string) identity.Provider {
		return identity.NewJWTProvider(secret)
	}
}

func newPublisher(cfg *config.Config) checkout.Publisher {
	if len(cfg.Checkout.KafkaBrokers) == 0 {
		return checkout.NopPublisher{}
	}
	log.Printf("publishing orders to %s on %v", cfg.Checkout.OrderTopic, cfg.Checkout.KafkaBrokers)
	return checkout.NewKafkaPublisher(cfg.Checkout.OrderTopic, cfg.Checkout.KafkaBrokers...)
}
