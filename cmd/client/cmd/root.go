// cmd/client/cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"scoutsync/internal/app/client"
	"scoutsync/internal/app/client/config"
	"scoutsync/internal/domain/conflict"
	"scoutsync/internal/utils/logger"
)

var (
	cfg        *config.Config
	log        *slog.Logger
	app        *client.App
	debug      bool
	ephemeral  bool
	jsonOutput bool
	serverURL  string
	strategy   string
)

var rootCmd = &cobra.Command{
	Use:   "scoutsync",
	Short: "ScoutSync - офлайн-клиент справочника скаутских баз",
	Long: `ScoutSync хранит изменения справочника локально и синхронизирует
их с сервером, когда появляется связь.

Каждое изменение сразу записывается в журнал на диске и применяется к
локальной копии. Синхронизация отправляет журнал на сервер, разрешает
конфликты выбранной стратегией и периодически создает резервные копии.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: shutdownApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	if ephemeral {
		cfg.Ephemeral = true
	}
	if strategy != "" {
		cfg.Conflict = conflict.StrategyName(strategy)
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	log = newLogger(cfg)

	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(client.WithApp(cmd.Context(), app))
	return nil
}

func shutdownApp(_ *cobra.Command, _ []string) error {
	if app != nil {
		app.Shutdown()
	}
	return nil
}

// newLogger без LOG_FILE пишет в stderr только предупреждения, если не указан --debug
func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.LogFile != "" {
		return logger.NewWithFile(cfg.Env, cfg.LogFile)
	}
	level := "warn"
	if debug {
		level = "debug"
	}
	return logger.NewConsole(level)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "хранить данные только в памяти")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера ScoutSync")
	rootCmd.PersistentFlags().StringVar(&strategy, "strategy", "", "стратегия конфликтов: last-write-wins, field-merge, manual")

	// Команды добавляются в init.go
}
