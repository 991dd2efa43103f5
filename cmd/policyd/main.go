// Command policyd runs the signed-capability-token daemon: an HTTP API for
// minting and verifying tokens (spec §6), wired the way the teacher's
// cmd/gateway/main.go assembles its own service (telemetry init, config
// load, graceful shutdown) but fronting internal/token and internal/policy
// instead of a JSON-RPC proxy.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/agent-safe/splcap/internal/config"
	"github.com/agent-safe/splcap/internal/gatewayhttp"
	"github.com/agent-safe/splcap/internal/hostadapter"
	"github.com/agent-safe/splcap/internal/logging"
	"github.com/agent-safe/splcap/internal/policy"
	"github.com/agent-safe/splcap/internal/telemetry"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to policyd configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SPLCAP_ENV"))
	slogger := logging.Setup("policyd", env)
	logger := log.New(os.Stdout, "policyd ", log.LstdFlags|log.Lmsgprefix)

	shutdownTelemetry, err := initTelemetry(env)
	if err != nil {
		slogger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	perDayCount, closePerDay, err := buildPerDayCounter(cfg.PerDayCounter)
	if err != nil {
		logger.Fatalf("configure per-day counter: %v", err)
	}
	defer closePerDay()

	var nonceStore gatewayhttp.NoncePersistence
	if cfg.PerDayCounter.Backend == "leveldb" {
		persistence, err := gatewayhttp.OpenLevelDBNoncePersistence(cfg.PerDayCounter.Path + ".nonces")
		if err != nil {
			logger.Fatalf("open nonce persistence: %v", err)
		}
		defer persistence.Close()
		nonceStore = persistence
	}

	authSecrets := cfg.Auth.Secrets
	if !cfg.Auth.Enabled {
		authSecrets = nil
	}
	authenticator := gatewayhttp.NewAuthenticator(authSecrets, cfg.Auth.ClockSkew, cfg.Auth.NonceTTL, cfg.Auth.NonceCapacity, nonceStore)
	if err := authenticator.HydrateNonces(context.Background(), time.Now().Add(-cfg.Auth.NonceTTL)); err != nil {
		logger.Printf("hydrate nonce cache: %v", err)
	}

	rateLimits := make(map[string]gatewayhttp.RateLimit, len(cfg.RateLimits))
	for _, entry := range cfg.RateLimits {
		if entry.ID == "" {
			continue
		}
		rateLimits[entry.ID] = gatewayhttp.RateLimit{RatePerSecond: entry.RatePerSecond, Burst: entry.Burst}
	}
	if len(rateLimits) == 0 {
		rateLimits["mint"] = gatewayhttp.RateLimit{RatePerSecond: 2, Burst: 20}
		rateLimits["verify"] = gatewayhttp.RateLimit{RatePerSecond: 10, Burst: 100}
	}

	obs := gatewayhttp.NewObservability(gatewayhttp.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Enabled:       cfg.Observability.Metrics || cfg.Observability.Tracing,
	}, logger)

	var threshold *hostadapter.ThresholdRegistry
	if cfg.Threshold.K > 0 {
		threshold = hostadapter.NewThresholdRegistry(cfg.Threshold.K, cfg.Threshold.Members)
	}

	server := &gatewayhttp.Server{
		Logger:         logger,
		Authenticator:  authenticator,
		RateLimiter:    gatewayhttp.NewRateLimiter(rateLimits),
		Observability:  obs,
		CORSConfig:     gatewayhttp.CORSConfig{AllowedOrigins: []string{"*"}},
		SigningSeedHex: cfg.Signing.SeedHex,
		PerDayCount:    perDayCount,
		Threshold:      threshold,
		Vrf:            hostadapter.NewHMACVrfStub(),
		DefaultGas:     cfg.DefaultGas,
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      server.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Fatalf("listen: %v", err)
	}
	go func() {
		logger.Printf("listening on http://%s", listener.Addr())
		if serveErr := httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Fatalf("listen and serve: %v", serveErr)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func initTelemetry(env string) (func(context.Context) error, error) {
	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	return telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "policyd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
}

func buildPerDayCounter(cfg config.PerDayCounterConfig) (policy.PerDayCounter, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "leveldb":
		counter, err := hostadapter.OpenLevelDBPerDayCounter(cfg.Path)
		if err != nil {
			return nil, func() {}, err
		}
		return counter.Count, func() { counter.Close() }, nil
	default:
		counter := hostadapter.NewMemoryPerDayCounter(cfg.Capacity)
		return counter.Count, func() {}, nil
	}
}
