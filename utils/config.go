package utils

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

var (
	EnvPath string = "."
)

type Config struct {
	Env        string `mapstructure:"ENV"`
	ServerPort int    `mapstructure:"SERVER_PORT"`
	OpsAPIKey  string `mapstructure:"OPS_API_KEY"`

	// Ledger daemon (signing sidecar holding the hot wallet key)
	LedgerBaseURL   string `mapstructure:"LEDGER_BASE_URL"`
	LedgerAccessKey string `mapstructure:"LEDGER_ACCESS_KEY"`
	WalletAddress   string `mapstructure:"WALLET_ADDRESS"`
	WalletPasskey   string `mapstructure:"WALLET_PASSKEY"`

	DBUsername string `mapstructure:"DB_USERNAME"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBName     string `mapstructure:"DB_NAME"`
	SSLMode    string `mapstructure:"SSLMODE"`

	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     string `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramOpsChat  string `mapstructure:"TELEGRAM_OPS_CHAT"`

	Papertrail        string `mapstructure:"PAPERTRAIL"`
	PapertrailAppName string `mapstructure:"PAPERTRAIL_APP_NAME"`

	// Payout policy
	PayoutCeiling     string `mapstructure:"PAYOUT_CEILING"`
	PayoutPrecision   int    `mapstructure:"PAYOUT_PRECISION"`
	PayoutFloor       string `mapstructure:"PAYOUT_FLOOR"`
	BalanceBuffer     string `mapstructure:"BALANCE_BUFFER"`
	MaxRetries        int    `mapstructure:"MAX_RETRIES"`
	RetryDelaySecs    int    `mapstructure:"RETRY_DELAY_SECS"`
	BatchDelaySecs    int    `mapstructure:"BATCH_DELAY_SECS"`
	TransferCooldown  int    `mapstructure:"TRANSFER_COOLDOWN_SECS"`
	AlertCooldownMins int    `mapstructure:"ALERT_COOLDOWN_MINS"`
	BatchIntervalSecs int    `mapstructure:"BATCH_INTERVAL_SECS"`
}

func LoadConfig(path string) (*Config, error) {
	// Validate that the path is not empty
	if path == "" {
		path = "."
	}

	// Create a new Viper instance to avoid global state
	v := viper.New()

	// Disable environment variable prefix
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	// Configure config file
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Log the error, but don't fail entirely
		log.Printf("Warning: Unable to read config file: %v", err)
	}

	// Create config struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("SSLMODE", "disable")
	v.SetDefault("PAYOUT_CEILING", "1")
	v.SetDefault("PAYOUT_PRECISION", 3)
	v.SetDefault("PAYOUT_FLOOR", "0.001")
	v.SetDefault("BALANCE_BUFFER", "0.05")
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("RETRY_DELAY_SECS", 30)
	v.SetDefault("BATCH_DELAY_SECS", 2)
	v.SetDefault("TRANSFER_COOLDOWN_SECS", 5)
	v.SetDefault("ALERT_COOLDOWN_MINS", 30)
	v.SetDefault("BATCH_INTERVAL_SECS", 60)
}

// validateConfig refuses to start without the credentials the payout
// pipeline cannot operate without.
func validateConfig(config *Config) error {
	if config.ServerPort == 0 {
		return fmt.Errorf("server port must be specified")
	}

	if config.LedgerBaseURL == "" || config.LedgerAccessKey == "" {
		return fmt.Errorf("ledger daemon URL and access key must be provided")
	}

	if config.WalletAddress == "" {
		return fmt.Errorf("hot wallet address must be provided")
	}

	if config.WalletPasskey == "" {
		return fmt.Errorf("hot wallet passkey must be provided")
	}

	if config.DBUsername == "" || config.DBPassword == "" {
		return fmt.Errorf("database credentials must be provided")
	}

	if config.TelegramBotToken == "" {
		return fmt.Errorf("telegram bot token must be provided")
	}

	// The ops API can create payable requests; it never runs keyless.
	if config.OpsAPIKey == "" {
		return fmt.Errorf("ops API key must be provided")
	}

	return nil
}

// RetryDelay is the base delay for the linear retry backoff.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySecs) * time.Second
}

func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelaySecs) * time.Second
}

func (c *Config) CooldownAfterTransfer() time.Duration {
	return time.Duration(c.TransferCooldown) * time.Second
}

func (c *Config) AlertCooldown() time.Duration {
	return time.Duration(c.AlertCooldownMins) * time.Minute
}

func (c *Config) BatchInterval() time.Duration {
	return time.Duration(c.BatchIntervalSecs) * time.Second
}

// Optional: Masking sensitive information for logging
func (c *Config) Redact() Config {
	redacted := *c
	redacted.LedgerAccessKey = "****"
	redacted.WalletPasskey = "****"
	redacted.DBPassword = "****"
	redacted.RedisPassword = "****"
	redacted.TelegramBotToken = "****"
	return redacted
}

func LoadCustomConfig(path string, val interface{}) error {
	// Validate that the path is not empty
	if path == "" {
		path = "."
	}

	// Create a new Viper instance to avoid global state
	v := viper.New()

	v.SetEnvPrefix("")
	v.AutomaticEnv()

	// Configure config file
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Log the error, but don't fail entirely
		log.Printf("Warning: Unable to read config file: %v", err)
	}

	if err := v.Unmarshal(&val); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}

	return nil
}
