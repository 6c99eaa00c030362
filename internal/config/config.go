package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/exchange"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/exchange/hyperliquid"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/risk"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/safety"
)

// EngineConfig is the complete configuration for the risk engine.
type EngineConfig struct {
	// Engine-level settings
	Engine EngineSettings `json:"engine"`

	// Position sizing and leverage limits
	Sizing risk.SizingConfig `json:"sizing"`

	// Circuit breaker thresholds
	Breaker risk.BreakerConfig `json:"breaker"`

	// Emergency exit thresholds
	Emergency risk.EmergencyConfig `json:"emergency"`

	// Exit condition thresholds
	Exit position.EvaluatorConfig `json:"exit"`

	// Venue reconciliation settings
	Reconciler position.ReconcilerConfig `json:"reconciler"`

	// Execution mode and per-mode settings
	Execution ExecutionConfig `json:"execution"`

	// Notification configuration (optional)
	Notifications *NotificationConfig `json:"notifications,omitempty"`

	// Monitoring configuration (optional)
	Monitoring *MonitoringConfig `json:"monitoring,omitempty"`
}

// EngineSettings holds cycle-level engine configuration.
type EngineSettings struct {
	Account       string        `json:"account"`        // account label used in logs and state files
	Symbols       []string      `json:"symbols"`        // tradeable universe
	CycleInterval time.Duration `json:"cycle_interval"` // tick spacing
	MaxPositions  int           `json:"max_positions"`  // concurrent open position cap
	StateDir      string        `json:"state_dir"`      // state snapshot directory
	ReportPath    string        `json:"report_path"`    // performance report file
	SignalPath    string        `json:"signal_path"`    // external signal file, empty disables entries
}

// ExecutionConfig selects and configures one of the execution backends.
type ExecutionConfig struct {
	Mode        string              `json:"mode"` // "paper" or "live"
	Simulated   exchange.SimConfig  `json:"simulated"`
	Live        exchange.LiveConfig `json:"live"`
	Hyperliquid hyperliquid.Config  `json:"hyperliquid"`
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	Enabled       bool   `json:"enabled"`
	TelegramToken string `json:"telegram_token,omitempty"`
	TelegramChat  string `json:"telegram_chat,omitempty"`
}

// MonitoringConfig holds the metrics endpoint settings.
type MonitoringConfig struct {
	Enabled    bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr"`
}

// Load loads configuration from file and applies environment overrides.
// Secrets are never read from the file; they come from the environment.
func Load(configFile string) (*EngineConfig, error) {
	// If config file doesn't contain path separators, look in configs/ directory
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}

	// Add .json extension if not present
	if !strings.HasSuffix(configFile, ".json") {
		configFile += ".json"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var config EngineConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvOverrides()
	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides pulls secrets and environment-specific values from
// the process environment.
func (c *EngineConfig) applyEnvOverrides() {
	if v := os.Getenv("HYPERLIQUID_PRIVATE_KEY"); v != "" {
		c.Execution.Hyperliquid.PrivateKey = v
	}
	if v := os.Getenv("HYPERLIQUID_ADDRESS"); v != "" {
		c.Execution.Hyperliquid.Address = v
	}
	if v := os.Getenv("HYPERLIQUID_BASE_URL"); v != "" {
		c.Execution.Hyperliquid.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		if c.Notifications == nil {
			c.Notifications = &NotificationConfig{Enabled: true}
		}
		c.Notifications.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if c.Notifications == nil {
			c.Notifications = &NotificationConfig{Enabled: true}
		}
		c.Notifications.TelegramChat = v
	}
}

// setDefaults sets default values for missing configuration.
func (c *EngineConfig) setDefaults() {
	if c.Engine.Account == "" {
		c.Engine.Account = "main"
	}
	if c.Engine.CycleInterval == 0 {
		c.Engine.CycleInterval = 30 * time.Second
	}
	if c.Engine.MaxPositions == 0 {
		c.Engine.MaxPositions = 5
	}
	if c.Engine.StateDir == "" {
		c.Engine.StateDir = "state"
	}
	if c.Engine.ReportPath == "" {
		c.Engine.ReportPath = filepath.Join("reports", "performance.json")
	}
	if c.Execution.Mode == "" {
		c.Execution.Mode = "paper"
	}
	if c.Monitoring != nil && c.Monitoring.ListenAddr == "" {
		c.Monitoring.ListenAddr = ":9090"
	}

	c.Sizing.ApplyDefaults()
	c.Breaker.ApplyDefaults()
	c.Emergency.ApplyDefaults()
	c.Exit.ApplyDefaults()
	c.Reconciler.ApplyDefaults()
	c.Execution.Simulated.ApplyDefaults()
	c.Execution.Live.ApplyDefaults()
	c.Execution.Hyperliquid.ApplyDefaults()
}

// Validate checks the configuration for completeness and consistency.
func (c *EngineConfig) Validate() error {
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("at least one trading symbol is required")
	}
	validator := safety.NewValidator()
	for _, symbol := range c.Engine.Symbols {
		if v := validator.ValidateSymbol(symbol); !v.Valid {
			return fmt.Errorf("invalid symbol: %s", v.Message)
		}
	}
	if c.Engine.CycleInterval < time.Second {
		return fmt.Errorf("cycle interval must be at least 1s")
	}
	if c.Sizing.Capital <= 0 {
		return fmt.Errorf("sizing capital must be greater than 0")
	}
	if c.Sizing.MaxLeverage < 1 {
		return fmt.Errorf("max leverage must be at least 1")
	}

	switch c.Execution.Mode {
	case "paper":
		// Simulated mode needs no credentials.
	case "live":
		if c.Execution.Hyperliquid.Address == "" {
			return fmt.Errorf("live mode requires HYPERLIQUID_ADDRESS")
		}
		if c.Execution.Hyperliquid.PrivateKey == "" {
			return fmt.Errorf("live mode requires HYPERLIQUID_PRIVATE_KEY")
		}
	default:
		return fmt.Errorf("unknown execution mode %q (want paper or live)", c.Execution.Mode)
	}

	if c.Notifications != nil && c.Notifications.Enabled {
		if c.Notifications.TelegramToken == "" || c.Notifications.TelegramChat == "" {
			return fmt.Errorf("notifications enabled but telegram token or chat id missing")
		}
	}

	return nil
}
