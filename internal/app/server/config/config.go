package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = "../../.env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env    string
	DB     db
	Server server
	Sync   syncSettings
	Logger logger
}

type db struct {
	DatabaseURI    string `env:"DATABASE_URI"`
	Migrations     string `env:"MIGRATIONS_PATH"`
	LocalStorePath string `env:"LOCAL_STORE_PATH"`
}

type server struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	UpstreamAddress string `env:"UPSTREAM_ADDRESS"`
}

type syncSettings struct {
	SessionTTLMinutes    int `env:"SESSION_TTL_MINUTES"`
	SweepIntervalMinutes int `env:"SWEEP_INTERVAL_MINUTES"`
	DefaultBatchSize     int `env:"DEFAULT_BATCH_SIZE"`
}

type logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func MustLoad() *Config {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	viper.AutomaticEnv()
	viper.SetDefault("run_address", "localhost:8080")
	viper.SetDefault("upstream_address", "http://localhost:8081")
	viper.SetDefault("local_store_path", "syncpoint.db")
	viper.SetDefault("session_ttl_minutes", 30)
	viper.SetDefault("sweep_interval_minutes", 5)
	viper.SetDefault("default_batch_size", 100)

	config := Config{
		Env: viper.GetString("app_env"),
		DB: db{
			DatabaseURI:    viper.GetString("database_uri"),
			Migrations:     viper.GetString("migrations_path"),
			LocalStorePath: viper.GetString("local_store_path"),
		},
		Server: server{
			RunAddress:      viper.GetString("run_address"),
			UpstreamAddress: viper.GetString("upstream_address"),
		},
		Sync: syncSettings{
			SessionTTLMinutes:    viper.GetInt("session_ttl_minutes"),
			SweepIntervalMinutes: viper.GetInt("sweep_interval_minutes"),
			DefaultBatchSize:     viper.GetInt("default_batch_size"),
		},
		Logger: logger{LogLevel: viper.GetString("log_level")},
	}

	return &config
}
