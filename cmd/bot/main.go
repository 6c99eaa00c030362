package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/config"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/exchange"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/exchange/hyperliquid"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/marketdata"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/monitoring"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/notifications"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/orchestrator"
	"github.com/trhieu92/hyperliquid-risk-bot/pkg/reporting"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file (e.g., engine.json)")
		envFile    = flag.String("env", ".env", "Environment file path (default: .env)")
		mode       = flag.String("mode", "", "Override execution mode from config (paper|live)")
	)
	flag.Parse()

	if *configFile == "" {
		log.Fatal("Please specify a config file with -config flag")
	}

	// Load environment variables from .env file
	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: Could not load .env file (%v), checking environment variables...", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *mode != "" {
		cfg.Execution.Mode = *mode
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid config after mode override: %v", err)
		}
	}

	fileLog, err := logger.NewLogger(cfg.Engine.Account)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer fileLog.Close()

	fmt.Println("🚀 Hyperliquid Risk Engine Starting...")
	reporting.PrintStartupInfo(
		cfg.Engine.Account,
		cfg.Execution.Mode,
		cfg.Engine.Symbols,
		cfg.Sizing.Capital,
		cfg.Engine.CycleInterval.String(),
	)

	// The venue client is always created: paper mode still reads live
	// prices from the public info endpoint.
	client, err := hyperliquid.NewClient(cfg.Execution.Hyperliquid, fileLog)
	if err != nil {
		log.Fatalf("Failed to create venue client: %v", err)
	}

	market := marketdata.NewProvider(client, cfg.Engine.SignalPath, fileLog)
	if cfg.Engine.SignalPath == "" {
		fmt.Println("⚠️  No signal file configured, entries are disabled")
	}

	deps := orchestrator.Deps{
		Market: market,
		Logger: fileLog,
		Health: monitoring.NewHealthChecker(),
	}

	switch cfg.Execution.Mode {
	case "live":
		live := exchange.NewLiveExecutor(cfg.Execution.Live, client, fileLog)
		deps.Executor = live
		deps.Venue = live
		deps.Stats = live
		fmt.Printf("🏦 Exchange: Hyperliquid (%s)\n", client.Address())
	default:
		sim := exchange.NewSimulatedExecutor(cfg.Execution.Simulated, fileLog)
		deps.Executor = sim
		deps.Venue = sim
		deps.Stats = sim
		fmt.Printf("🧪 Paper trading, simulated balance: $%.2f\n", sim.Balance())
	}

	if cfg.Notifications != nil && cfg.Notifications.Enabled {
		deps.Notifier = notifications.NewTelegramNotifier(
			cfg.Notifications.TelegramToken,
			cfg.Notifications.TelegramChat,
		)
		fmt.Println("📱 Telegram notifications enabled")
	}

	if cfg.Monitoring != nil && cfg.Monitoring.Enabled {
		startMonitoringServer(cfg.Monitoring.ListenAddr, deps.Health)
		fmt.Printf("📊 Metrics server listening on %s\n", cfg.Monitoring.ListenAddr)
	}

	engine, err := orchestrator.NewEngine(cfg, deps)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	if err := engine.Start(); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	fmt.Printf("🔄 Cycle loop running every %s, press Ctrl+C to stop\n", cfg.Engine.CycleInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n🛑 Shutdown signal received...")
	engine.Stop()
	fmt.Println("🛑 Engine stopped, state saved")
}

func loadEnvFile(envFile string) error {
	// Load .env file if it exists
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}

func startMonitoringServer(addr string, health *monitoring.HealthChecker) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/health", health)

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()
}
