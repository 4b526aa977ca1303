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
	"tdp/config"
	"tdp/internal/filter"
	"tdp/internal/grpcserver"
	"tdp/internal/messaging"
	"tdp/internal/messaging/consumer"
	"tdp/internal/models"
	worker "tdp/processing"
	"tdp/storage/store"
)

const defaultConfigPath = "./config/" + config.EngineConfigFile

// Set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	logger := log.New(os.Stdout, "[WORKER] ", log.LstdFlags|log.Lshortfile)
	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Fatalf("FATAL: %v", err)
	}
}

func newRootCmd(logger *log.Logger) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "worker",
		Short:         "Message processing worker",
		Long:          "Consumes queued envelopes, redacts them and stores one record per tenant and log id.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(logger, configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the worker YAML configuration")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the worker version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})
	return rootCmd
}

func run(logger *log.Logger, configPath string) error {
	logger.Println("Starting data processor worker...")

	// 1. Load Engine Config
	cfg, err := config.LoadEngineConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load worker configuration: %w", err)
	}
	cfg.Store.LogConfiguration()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Dependencies
	logger.Printf("Initializing %s tenant store...", cfg.Store.Driver)
	tenantStore, err := store.NewStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tenant store: %w", err)
	}
	defer tenantStore.Close()

	var mqConsumer consumer.Consumer
	if cfg.KafkaConsumer.IsMock() {
		logger.Println("Initializing Mock message queue consumer...")
		broker := consumer.NewMockBroker(logger, cfg.KafkaConsumer.MaxDeliveryAttempts)
		if err := seedDemoMessages(ctx, broker); err != nil {
			return err
		}
		mqConsumer = broker
	} else {
		logger.Println("Initializing Kafka message queue consumer...")
		mqConsumer, err = consumer.NewKafkaConsumer(ctx, cfg.KafkaConsumer, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Kafka consumer: %w", err)
		}
	}
	defer mqConsumer.Close()

	attrFilter, err := filter.Compile(cfg.Worker.Filter)
	if err != nil {
		return fmt.Errorf("invalid worker.filter: %w", err)
	}

	w := worker.New(*cfg, logger, tenantStore, mqConsumer, worker.WithFilter(attrFilter))

	// 3. Liveness surfaces
	gin.SetMode(gin.ReleaseMode)
	healthServer := &http.Server{
		Addr:              cfg.Monitoring.HealthListenAddr,
		Handler:           worker.HealthRouter(w, cfg.Monitoring.ServiceName, cfg.KafkaConsumer.GroupID),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcServer *grpcserver.Server
	if cfg.Monitoring.GrpcListenAddr != "" {
		grpcServer, err = grpcserver.New(cfg.Monitoring.GrpcListenAddr, cfg.Monitoring.ServiceName, logger)
		if err != nil {
			return err
		}
	} else {
		logger.Println("grpc_listen_addr not configured, skipping gRPC health server startup.")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("Health check server listening on %s", cfg.Monitoring.HealthListenAddr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(grpcServer.Serve)
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.SetServing(false)
			return nil
		})
	}

	// The liveness surfaces stay up until the worker has settled every delivery
	g.Go(func() error {
		runErr := w.Run(gctx)
		stop() // Also ends the group when the consumer closed on its own

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Health server shutdown failed: %v", err)
		}
		if grpcServer != nil {
			grpcServer.Stop()
		}
		return runErr
	})

	logger.Printf("Worker started (subscription %q). Press Ctrl+C to stop.", cfg.KafkaConsumer.GroupID)
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Println("Worker shut down gracefully.")
	return nil
}

// seedDemoMessages fills the in-process broker so a local run has work,
// including one message that exercises the redelivery path
func seedDemoMessages(ctx context.Context, broker *consumer.MockBroker) error {
	demo := []struct {
		tenant, logID, text string
		source              models.Source
	}{
		{"acme", "demo-1", "User 555-0199 reported an outage", models.SourceTextUpload},
		{"acme", "demo-2", `{"event":"signup","phone":"555-123-4567"}`, models.SourceJSONUpload},
		{"beta", "demo-3", "crash_test: this record fails five times before it is stored", models.SourceTextUpload},
	}
	for _, d := range demo {
		env, err := models.NewEnvelope(d.tenant, d.logID, d.text, d.source, time.Now())
		if err != nil {
			return err
		}
		data, err := models.EncodeEnvelope(env)
		if err != nil {
			return err
		}
		if _, err := broker.Publish(ctx, &messaging.Message{
			Key:  env.TenantID,
			Data: data,
			Attributes: map[string]string{
				messaging.AttrTenantID: env.TenantID,
				messaging.AttrSource:   string(env.Source),
			},
		}); err != nil {
			return fmt.Errorf("failed to seed demo message: %w", err)
		}
	}
	return nil
}
