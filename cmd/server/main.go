package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/YounesEssl/zlegacy-sub000/internal/adapter/balance"
	"github.com/YounesEssl/zlegacy-sub000/internal/adapter/cache"
	grpcadapter "github.com/YounesEssl/zlegacy-sub000/internal/adapter/grpc"
	"github.com/YounesEssl/zlegacy-sub000/internal/adapter/pricefeed"
	"github.com/YounesEssl/zlegacy-sub000/internal/adapter/repository/postgres"
	"github.com/YounesEssl/zlegacy-sub000/internal/config"
	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/logging"
	"github.com/YounesEssl/zlegacy-sub000/internal/metrics"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/portfolio"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/registry"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/will"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 2. Metrics
	m := metrics.New()
	metricsServer := &http.Server{
		Addr:              ":" + cfg.Server.MetricsPort,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", logging.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", logging.Err(err))
		}
	}()

	// 3. Draft persistence (optional)
	var draftRepo domain.DraftRepository
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(ctx, cfg.Database.ConnString())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to create schema: %v", err)
		}
		draftRepo = postgres.NewDraftRepository(db)
		logger.Info("draft persistence enabled")
	}

	// 4. Price cache (optional)
	var priceCache domain.PriceCache
	if cfg.Redis.Enabled {
		client, err := cache.Connect(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		priceCache = cache.NewPriceCache(client)
		logger.Info("price cache enabled", logging.String("addr", cfg.Redis.Addr()))
	}

	// 5. Asset registry and will service
	assetRegistry := registry.NewAssetRegistry(
		balance.NewClient(cfg.Balance.URL, cfg.Registry.HTTPTimeout),
		pricefeed.NewClient(cfg.PriceFeed.URL, cfg.Registry.HTTPTimeout, cfg.PriceFeed.RequestsPerSecond),
		priceCache,
		cfg.PriceFeed.CacheTTL,
		logger,
		m,
	)

	policy, err := portfolio.ParseWritePolicy(cfg.Allocation.OverAllocationPolicy)
	if err != nil {
		log.Fatalf("Invalid allocation policy: %v", err)
	}
	willService := will.NewWillService(assetRegistry, draftRepo, policy, logger, m)

	go assetRegistry.Run(ctx, cfg.Registry.RefreshInterval, willService.OnSnapshot)

	// 6. Start gRPC Server
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger.Named("grpc")),
			grpcadapter.AuthInterceptor(cfg.Server.APIToken),
		),
	)
	grpcadapter.RegisterWillServiceServer(grpcServer, grpcadapter.NewServer(willService, assetRegistry))
	reflection.Register(grpcServer)

	grpcAddr := ":" + cfg.Server.GRPCPort
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", grpcAddr, err)
	}

	// Start server in a goroutine
	go func() {
		logger.Info("gRPC server listening", logging.String("addr", grpcAddr), logging.String("policy", string(policy)))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC server: %v", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down gracefully")

	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown failed", logging.Err(err))
	}
	logger.Info("gRPC server stopped")
}
