package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Go2NetSynth/internal/api"
	"Go2NetSynth/internal/config"
	"Go2NetSynth/internal/engine/generator"
	"Go2NetSynth/internal/engine/library"
	"Go2NetSynth/internal/metrics"
	"Go2NetSynth/internal/query"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. gRPC health, NOT_SERVING until the automata are loaded
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	var grpcServer *grpc.Server
	if cfg.API.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.API.GRPCAddr)
		if err != nil {
			log.Fatalf("Failed to listen on %s: %v", cfg.API.GRPCAddr, err)
		}
		grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		go func() {
			log.Printf("gRPC health server starting on %s", cfg.API.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("gRPC server stopped: %v", err)
			}
		}()
	}

	// 3. Load the automata
	m := metrics.New()
	lib := library.New(m)
	lib.ImportDir(cfg.Generator.ModelsDir)
	selector, err := library.NewSelector(cfg.Generator.Selection)
	if err != nil {
		log.Fatalf("Invalid selection policy: %v", err)
	}
	gen := generator.New(lib, cfg.Generator.Seed, generator.Options{
		Selector:        selector,
		ConstrainToFlow: cfg.Generator.ConstrainToFlow,
		Noise:           cfg.Generator.Noise,
		Metrics:         m,
	})

	// 4. Optional ClickHouse querier, from the first enabled ClickHouse writer
	var querier query.Querier
	for _, writerDef := range cfg.Writers {
		if writerDef.Enabled && writerDef.Type == "clickhouse" {
			querier, err = query.NewClickHouseQuerier(writerDef.ClickHouse)
			if err != nil {
				log.Printf("Warning: flow summaries disabled: %v", err)
				querier = nil
			}
			break
		}
	}

	// 5. Start HTTP server
	handler := api.NewHandler(gen, lib, querier, m, cfg.API.MaxStream)
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: handler.Router(),
	}
	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")
	healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if querier != nil {
		querier.Close()
	}
	log.Println("API server exited.")
}
