package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpc_adapter "github.com/JoeShih716/go-balance-ledger/internal/app/core/adapter/in/grpc"
	kafka_adapter "github.com/JoeShih716/go-balance-ledger/internal/app/core/adapter/out/kafka"
	prometheus_adapter "github.com/JoeShih716/go-balance-ledger/internal/app/core/adapter/out/prometheus"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-balance-ledger/internal/config"
	"github.com/JoeShih716/go-balance-ledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	os.Exit(exitCode(appLogger, run(cfg, appLogger)))
}

// exitCode 記錄 run 的結果並 flush logger，回傳 process exit code
// run 內的 defer (關閉 store / publisher) 在此之前已執行完畢
func exitCode(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("server exited with error", zap.Error(err))
		code = 1
	} else {
		logger.Info("server exited")
	}
	_ = logger.Sync()
	return code
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化儲存 (依 store.driver)
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer closeStore()
	logger.Info("account store ready", zap.String("driver", cfg.Store.Driver))

	// 3. 指標與事件
	registry := prom.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := prometheus_adapter.NewMetrics(registry)

	opts := []usecase.Option{
		usecase.WithConfig(cfg.Ledger),
		usecase.WithLogger(logger.Named("ledger")),
		usecase.WithMetrics(metrics),
	}
	if cfg.Kafka.Enabled() {
		publisher := kafka_adapter.NewPublisher(cfg.Kafka)
		defer publisher.Close()
		opts = append(opts, usecase.WithPublisher(publisher))
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// 4. 初始化 UseCase
	coreUseCase := usecase.NewCoreUseCase(store, opts...)

	// 5. 初始化 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}
	s := grpc.NewServer(grpc.UnaryInterceptor(grpc_adapter.UnaryLoggingInterceptor(logger.Named("grpc"))))
	grpc_adapter.RegisterLedgerServiceServer(s, grpc_adapter.NewGrpcServer(coreUseCase))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpc_adapter.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting grpc server", zap.String("addr", cfg.Server.GRPCAddr))
		return s.Serve(lis)
	})

	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		metricsServer = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting metrics server", zap.String("addr", cfg.Server.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}

		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			logger.Warn("graceful stop timed out, forcing")
			s.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
