package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".syncpoint"
	defaultBatchSize     = 100
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	LogLevel      string `mapstructure:"log_level"`
	ConfigDir     string `mapstructure:"config_dir"`
	ClientIDPath  string `mapstructure:"client_id_path"`
	TokenPath     string `mapstructure:"token_path"`
	QueuePath     string `mapstructure:"queue_path"`
	BatchSize     int    `mapstructure:"batch_size"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
}

// MustLoad loads the client configuration from the environment, falling
// back to defaults. State files (client id, resume token, pending queue)
// live under ConfigDir.
func MustLoad() *Config {
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("failed to load .env file: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("BATCH_SIZE", defaultBatchSize)
	viper.SetDefault("ENABLE_TLS", false)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("failed to create config directory: %v\n", err)
	}

	config := &Config{
		Env:           viper.GetString("APP_ENV"),
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		LogLevel:      viper.GetString("LOG_LEVEL"),
		ConfigDir:     configDir,
		ClientIDPath:  filepath.Join(configDir, "client_id"),
		TokenPath:     filepath.Join(configDir, "resume_token"),
		QueuePath:     filepath.Join(configDir, "pending.json"),
		BatchSize:     viper.GetInt("BATCH_SIZE"),
		EnableTLS:     viper.GetBool("ENABLE_TLS"),
	}

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	return config
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address must not be empty")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative")
	}
	return nil
}

// IsProd reports whether the client runs against a production environment.
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsLocal reports whether the client runs in a local environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
