// Package config loads process configuration. Precedence, lowest to highest:
// struct defaults, an optional mhm.yaml file, then the environment (a .env
// file in the working directory is honored when present).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// defaultConfigFile is the yaml overlay looked up in the working directory.
// MHM_CONFIG_FILE points somewhere else.
const defaultConfigFile = "mhm.yaml"

// AppConfig is the full configuration surface of the bot process.
type AppConfig struct {
	// Channel provider credentials.
	DiscordBotToken      string `envconfig:"DISCORD_BOT_TOKEN"`
	DiscordApplicationID string `envconfig:"DISCORD_APPLICATION_ID"`

	// Webhook server.
	WebhookPort   int    `envconfig:"WEBHOOK_PORT" default:"8765"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
	AutoTunnel    bool   `envconfig:"AUTO_TUNNEL" default:"false"`
	TunnelCommand string `envconfig:"TUNNEL_COMMAND"`

	// Filesystem layout.
	DataRoot      string `envconfig:"DATA_ROOT" default:"data"`
	ResourcesRoot string `envconfig:"RESOURCES_ROOT" default:"resources"`

	// Conversation behavior.
	CheckinInactivityMinutes int     `envconfig:"CHECKIN_INACTIVITY_MINUTES" default:"30"`
	MinCommandConfidence     float64 `envconfig:"MIN_COMMAND_CONFIDENCE" default:"0.3"`

	// AI collaborator.
	AIEnabled           bool   `envconfig:"AI_ENABLED" default:"true"`
	AIMaxResponseLength int    `envconfig:"AI_MAX_RESPONSE_LENGTH" default:"600"`
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel         string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	// Channel adapter tuning.
	SendTimeoutSeconds   int `envconfig:"SEND_TIMEOUT_SECONDS" default:"10"`
	MaxReconnectAttempts int `envconfig:"MAX_RECONNECT_ATTEMPTS" default:"10"`

	// Scheduler.
	ReminderCron string `envconfig:"REMINDER_CRON" default:"0 9 * * *"`

	// Observability.
	LogLevel            string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile             string `envconfig:"LOG_FILE"`
	MetricsEnabled      bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricsOTLPEndpoint string `envconfig:"METRICS_OTLP_ENDPOINT"`
}

// Load reads .env (if present), overlays the yaml file, and resolves the
// configuration from the environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}

	path := os.Getenv("MHM_CONFIG_FILE")
	if path == "" {
		path = defaultConfigFile
	}
	if err := applyYAMLOverlay(path); err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

// applyYAMLOverlay exports the yaml file's keys into the environment, keeping
// any variable the environment already sets. Keys are the envconfig names in
// lower case (discord_bot_token, webhook_port, ...). A missing file is fine.
func applyYAMLOverlay(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for key, value := range raw {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, fmt.Sprint(value)); err != nil {
			return fmt.Errorf("failed to apply config key %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks that the configuration can run a connected bot.
func (c *AppConfig) Validate() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if c.WebhookPort <= 0 || c.WebhookPort > 65535 {
		return fmt.Errorf("WEBHOOK_PORT %d is out of range", c.WebhookPort)
	}
	if c.MinCommandConfidence < 0 || c.MinCommandConfidence > 1 {
		return fmt.Errorf("MIN_COMMAND_CONFIDENCE must be in [0,1], got %v", c.MinCommandConfidence)
	}
	return nil
}

// StatePath returns the conversation state file location under the data root.
func (c *AppConfig) StatePath() string {
	return filepath.Join(c.DataRoot, "conversation_states.json")
}

// CheckinResourceDir returns the directory holding the check-in catalogs.
func (c *AppConfig) CheckinResourceDir() string {
	return filepath.Join(c.ResourcesRoot, "default_checkin")
}
