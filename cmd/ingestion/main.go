package main

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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	apiconfig "tdp/config"
	core "tdp/ingestion/service/core"
	httphandler "tdp/ingestion/service/http"
	"tdp/internal/grpcserver"
	"tdp/internal/messaging/consumer"
	"tdp/internal/messaging/producer"
)

// API Gateway configuration file path
const apiConfigPath = "./config/" + apiconfig.GatewayConfigFile

// Set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	logger := log.New(os.Stdout, "[API-GW] ", log.LstdFlags|log.Lshortfile)
	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Fatalf("FATAL: %v", err)
	}
}

func newRootCmd(logger *log.Logger) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ingestion",
		Short:         "Ingestion gateway",
		Long:          "Accepts JSON and plain-text uploads over HTTP and queues them for the worker.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(logger, configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", apiConfigPath, "path to the gateway YAML configuration")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})
	return rootCmd
}

func run(logger *log.Logger, configPath string) error {
	logger.Println("Starting API Gateway (Ingestion Service)...")

	// 1. Load API Gateway configuration
	cfg, err := apiconfig.LoadApiGatewayConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load API Gateway configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize the producer
	var mqProducer producer.Producer
	if cfg.KafkaProducer.IsMock() {
		logger.Println("Initializing Mock message queue producer (messages stay in this process)...")
		mqProducer = consumer.NewMockBroker(logger, 0)
	} else {
		logger.Println("Initializing Kafka producer...")
		mqProducer, err = producer.NewKafkaProducer(ctx, cfg.KafkaProducer, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Kafka producer: %w", err)
		}
	}
	defer mqProducer.Close()

	// 3. Create core Service and Handlers
	coreService := core.NewService(mqProducer, logger, cfg.PublishTimeout)
	reportedVersion := cfg.Version
	if version != "dev" {
		reportedVersion = version
	}
	logHandler := httphandler.NewLogHandler(coreService, logger, httphandler.HandlerOptions{
		ServiceName:  cfg.ServiceName,
		Version:      reportedVersion,
		Topic:        cfg.KafkaProducer.Topic,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:           cfg.HttpListenAddr,
		Handler:        httphandler.NewRouter(logHandler),
		ReadTimeout:    cfg.HttpServer.ReadTimeout,
		WriteTimeout:   cfg.HttpServer.WriteTimeout,
		IdleTimeout:    cfg.HttpServer.IdleTimeout,
		MaxHeaderBytes: cfg.HttpServer.MaxHeaderBytes,
	}

	var grpcServer *grpcserver.Server
	if cfg.GrpcListenAddr != "" {
		grpcServer, err = grpcserver.New(cfg.GrpcListenAddr, cfg.ServiceName, logger)
		if err != nil {
			return err
		}
	} else {
		logger.Println("grpc_listen_addr not configured, skipping gRPC health server startup.")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("HTTP server listening on %s", cfg.HttpListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server startup failed: %w", err)
		}
		logger.Println("HTTP server stopped listening.")
		return nil
	})
	if grpcServer != nil {
		g.Go(grpcServer.Serve)
	}

	// 4. Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Println("Starting graceful shutdown of API Gateway...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if grpcServer != nil {
			grpcServer.SetServing(false)
		}
		logger.Println("Shutting down HTTP server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP server shutdown failed: %v", err)
		}
		if grpcServer != nil {
			grpcServer.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Println("All servers stopped. API Gateway shutdown.")
	return nil
}
