package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/text/language"

	mw "github.com/5w1tchy/local-library/internal/api/middlewares"
	"github.com/5w1tchy/local-library/internal/api/router"
	"github.com/5w1tchy/local-library/internal/catalog"
	"github.com/5w1tchy/local-library/internal/config"
	"github.com/5w1tchy/local-library/internal/repository/sqlconnect"
	"github.com/5w1tchy/local-library/internal/store/docstore"
	"github.com/5w1tchy/local-library/internal/store/memstore"
	"github.com/5w1tchy/local-library/internal/store/pgstore"
	"github.com/5w1tchy/local-library/internal/telemetry"
)

func main() {
	cfg, err := config.Load(".env", "../../.env")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	for _, w := range cfg.HardeningWarnings() {
		log.Printf("[Config] warning: %s", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.AppEnv)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		log.Fatalf("CATALOG_LOCALE: %v", err)
	}

	store, err := openStore(ctx, cfg, tag)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	svc := catalog.NewService(store, catalog.WithLocale(tag))

	limiter := rateLimiter(ctx, cfg)

	server := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.Router(svc, router.Options{
			CORSOrigins:    cfg.CORSOrigins,
			MaxBodySize:    cfg.MaxBodySize,
			StrictSecurity: cfg.StrictSecurity,
			RateLimit:      limiter,
			AccessLog:      true,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("[Server] listening on %s (store=%s)", server.Addr, cfg.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Server] %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[Server] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("[Telemetry] shutdown: %v", err)
	}
}

func openStore(ctx context.Context, cfg config.Config, locale language.Tag) (catalog.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := sqlconnect.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s := pgstore.New(db, locale)
		if cfg.Migrate {
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		return s, nil
	case config.DriverFirestore:
		return docstore.Open(ctx, docstore.Options{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsPath: cfg.FirebaseCredentialsPath,
			CredentialsJSON: cfg.FirebaseCredentialsJSON,
		})
	}
	log.Println("[Store] using in-memory catalog")
	return memstore.New(), nil
}

// rateLimiter prefers a shared Redis limiter and falls back to an in-process
// one when Redis is not configured or not reachable at startup.
func rateLimiter(ctx context.Context, cfg config.Config) func(http.Handler) http.Handler {
	key := mw.PerIPKey("catalog")
	local := mw.NewLocalLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, key).Middleware

	rdb, err := cfg.Redis()
	if err != nil {
		log.Printf("[RateLimit] %v; using in-process limiter", err)
		return local
	}
	if rdb == nil {
		return local
	}
	if err := config.PingRedis(ctx, rdb, 3*time.Second); err != nil {
		log.Printf("[RateLimit] Redis unreachable (%v); using in-process limiter", err)
		_ = rdb.Close()
		return local
	}
	log.Printf("[RateLimit] Redis %s: %d requests per %s", cfg.RateLimitPolicy, cfg.RateLimitMax, cfg.RateLimitWindow)
	if cfg.RateLimitPolicy == "token-bucket" {
		return mw.NewRedisTokenBucket(rdb, cfg.RateLimitMax, cfg.RateLimitWindow, key).Middleware
	}
	return mw.NewRedisSlidingWindow(rdb, cfg.RateLimitMax, cfg.RateLimitWindow, key).Middleware
}
