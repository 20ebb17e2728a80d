package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"scoutsync/internal/domain/backup"
	"scoutsync/internal/domain/conflict"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".scoutsync"
	deviceIDFile         = "device_id"
)

// AppVersion версия клиента, попадает в метаданные резервных копий
var AppVersion = "dev"

type Config struct {
	Env           string
	ServerAddress string
	EnableTLS     bool
	LogLevel      string
	LogFile       string
	ConfigDir     string
	DataPath      string
	DeviceID      string
	AppVersion    string
	// Ephemeral хранить данные только в памяти процесса
	Ephemeral bool

	Sync         Sync
	Conflict     conflict.StrategyName
	Changelog    Changelog
	Backup       Backup
	Connectivity Connectivity
	Notify       Notify
}

type Sync struct {
	Interval       time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	CallTimeout    time.Duration
}

type Changelog struct {
	Retention time.Duration
}

type Backup struct {
	Interval    time.Duration
	Retention   int
	Destination backup.Destination
}

type Connectivity struct {
	ProbeInterval time.Duration
}

type Notify struct {
	// Rate уведомлений в секунду
	Rate  float64
	Burst int
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	config, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return config
}

// Load читает конфигурацию из переменных окружения
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	v.SetDefault("ENABLE_TLS", false)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("CONFIG_DIR", defaultConfigDir)
	v.SetDefault("SYNC_INTERVAL", 30*time.Minute)
	v.SetDefault("SYNC_MAX_RETRIES", 3)
	v.SetDefault("SYNC_RETRY_BASE_DELAY", 5*time.Second)
	v.SetDefault("SYNC_CALL_TIMEOUT", 30*time.Second)
	v.SetDefault("CONFLICT_STRATEGY", string(conflict.LastWriteWins))
	v.SetDefault("CHANGELOG_RETENTION", 24*time.Hour)
	v.SetDefault("BACKUP_INTERVAL", time.Hour)
	v.SetDefault("BACKUP_RETENTION", 10)
	v.SetDefault("BACKUP_DESTINATION", string(backup.DestinationLocal))
	v.SetDefault("CONNECTIVITY_PROBE_INTERVAL", 15*time.Second)
	v.SetDefault("NOTIFY_RATE", 0.2)
	v.SetDefault("NOTIFY_BURST", 3)

	// Получаем домашнюю директорию пользователя
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := v.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	dataPath := v.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "scoutsync.db")
	}

	deviceID := v.GetString("DEVICE_ID")
	if deviceID == "" {
		deviceID, err = ensureDeviceID(configDir)
		if err != nil {
			return nil, err
		}
	}

	config := &Config{
		Env:           v.GetString("APP_ENV"),
		ServerAddress: v.GetString("SERVER_ADDRESS"),
		EnableTLS:     v.GetBool("ENABLE_TLS"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		LogFile:       v.GetString("LOG_FILE"),
		ConfigDir:     configDir,
		DataPath:      dataPath,
		DeviceID:      deviceID,
		AppVersion:    AppVersion,
		Ephemeral:     v.GetBool("EPHEMERAL"),
		Sync: Sync{
			Interval:       v.GetDuration("SYNC_INTERVAL"),
			MaxRetries:     v.GetInt("SYNC_MAX_RETRIES"),
			RetryBaseDelay: v.GetDuration("SYNC_RETRY_BASE_DELAY"),
			CallTimeout:    v.GetDuration("SYNC_CALL_TIMEOUT"),
		},
		Conflict:  conflict.StrategyName(v.GetString("CONFLICT_STRATEGY")),
		Changelog: Changelog{Retention: v.GetDuration("CHANGELOG_RETENTION")},
		Backup: Backup{
			Interval:    v.GetDuration("BACKUP_INTERVAL"),
			Retention:   v.GetInt("BACKUP_RETENTION"),
			Destination: backup.Destination(v.GetString("BACKUP_DESTINATION")),
		},
		Connectivity: Connectivity{ProbeInterval: v.GetDuration("CONNECTIVITY_PROBE_INTERVAL")},
		Notify: Notify{
			Rate:  v.GetFloat64("NOTIFY_RATE"),
			Burst: v.GetInt("NOTIFY_BURST"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync_interval должен быть положительным")
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync_max_retries не может быть отрицательным")
	}
	if c.Sync.RetryBaseDelay <= 0 || c.Sync.CallTimeout <= 0 {
		return fmt.Errorf("sync_retry_base_delay и sync_call_timeout должны быть положительными")
	}
	if _, err := conflict.NewStrategy(c.Conflict); err != nil {
		return fmt.Errorf("conflict_strategy: %w", err)
	}
	if !c.Backup.Destination.Valid() {
		return fmt.Errorf("backup_destination должен быть local, remote или both")
	}
	if c.Backup.Interval <= 0 {
		return fmt.Errorf("backup_interval должен быть положительным")
	}
	if c.Connectivity.ProbeInterval <= 0 {
		return fmt.Errorf("connectivity_probe_interval должен быть положительным")
	}
	if c.Notify.Rate <= 0 || c.Notify.Burst < 1 {
		return fmt.Errorf("notify_rate и notify_burst должны быть положительными")
	}
	return nil
}

// BaseURL адрес сервера со схемой
func (c *Config) BaseURL() string {
	if strings.HasPrefix(c.ServerAddress, "http://") || strings.HasPrefix(c.ServerAddress, "https://") {
		return strings.TrimRight(c.ServerAddress, "/")
	}
	scheme := "http"
	if c.EnableTLS {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimRight(c.ServerAddress, "/")
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}

// ensureDeviceID читает идентификатор устройства или создает новый при первом запуске
func ensureDeviceID(configDir string) (string, error) {
	path := filepath.Join(configDir, deviceIDFile)

	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("ошибка чтения идентификатора устройства: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("ошибка сохранения идентификатора устройства: %w", err)
	}
	return id, nil
}
