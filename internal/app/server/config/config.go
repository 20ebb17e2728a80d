package config

import (
	"log"
	"time"

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
	Env     string
	DB      db
	Server  server
	Logger  logger
	Archive archive
}

type defaultConfig struct {
	RunAddress       string
	DatabaseURI      string
	LogLevel         string
	Env              string
	Migrations       string
	ArchiveRetention int
	ShutdownTimeout  time.Duration
}

type db struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type server struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type archive struct {
	// Retention число копий, хранимых для одного устройства
	Retention int `env:"ARCHIVE_RETENTION" envDefault:"10"`
}

func MustLoad() *Config {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	viper.AutomaticEnv()
	viper.SetDefault("run_address", "localhost:8080")
	viper.SetDefault("app_env", EnvLocal)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("migrations_path", "migrations")
	viper.SetDefault("archive_retention", 10)
	viper.SetDefault("shutdown_timeout", 10*time.Second)

	d := defaultConfig{
		RunAddress:       viper.GetString("run_address"),
		DatabaseURI:      viper.GetString("database_uri"),
		LogLevel:         viper.GetString("log_level"),
		Env:              viper.GetString("app_env"),
		Migrations:       viper.GetString("migrations_path"),
		ArchiveRetention: viper.GetInt("archive_retention"),
		ShutdownTimeout:  viper.GetDuration("shutdown_timeout"),
	}

	config := Config{
		Env: d.Env,
		DB: db{
			DatabaseURI: d.DatabaseURI,
			Migrations:  d.Migrations,
		},
		Server:  server{RunAddress: d.RunAddress, ShutdownTimeout: d.ShutdownTimeout},
		Logger:  logger{LogLevel: d.LogLevel},
		Archive: archive{Retention: d.ArchiveRetention},
	}

	if config.DB.DatabaseURI == "" {
		log.Fatalln("DATABASE_URI is required")
	}

	return &config
}
