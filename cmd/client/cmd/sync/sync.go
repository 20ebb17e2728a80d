package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scoutsync/cmd/client/cmd/cli"
	"scoutsync/internal/app/client"
	syncdomain "scoutsync/internal/domain/sync"
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизировать с сервером",
	Long: `Отправляет журнал изменений на сервер и разрешает конфликты.

Отдельные отклоненные изменения не прерывают сессию: итог показывает,
сколько изменений подтверждено, сколько отклонено и сколько конфликтов
разрешено.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}
		return runSync(cmd, app)
	},
}

func runSync(cmd *cobra.Command, app *client.App) error {
	summary, err := app.Sync(cmd.Context())
	if errors.Is(err, syncdomain.ErrSessionRunning) {
		fmt.Println(cli.Warning("Синхронизация уже выполняется"))
		return nil
	}

	if cli.JSON(cmd) && summary != nil {
		if perr := cli.PrintJSON(os.Stdout, summary); perr != nil {
			return perr
		}
		return err
	}

	if summary != nil {
		printSummary(summary)
	}
	return err
}

func printSummary(s *syncdomain.Summary) {
	status := cli.Success(string(s.Status))
	switch {
	case s.Status == syncdomain.StatusFailed:
		status = cli.Failure(string(s.Status))
	case s.Failed > 0:
		status = cli.Warning(string(s.Status))
	}

	fmt.Printf("Сессия %s: %s\n", s.ID, status)
	fmt.Printf("  Начало: %s, длительность %v\n",
		s.StartedAt.Local().Format(time.DateTime), s.Duration().Round(time.Millisecond))
	fmt.Printf("  Обработано: %d, подтверждено: %d, отклонено: %d, конфликтов: %d\n",
		s.RecordsProcessed, s.Confirmed, s.Failed, s.ConflictsResolved)

	for i, e := range s.Errors {
		if i == 5 {
			fmt.Printf("  ... и еще %d ошибок\n", len(s.Errors)-5)
			break
		}
		marker := cli.Failure("•")
		if e.Retryable {
			marker = cli.Warning("•")
		}
		fmt.Printf("  %s #%d %s: %s\n", marker, e.ChangeID, e.Entity, e.Reason)
	}
	if s.Err != "" {
		fmt.Printf("  Ошибка: %s\n", cli.Failure(s.Err))
	}
}

var sessionsLimit int

// StatusCmd показывает последние сессии и состояние соединения
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Статус синхронизации",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		sessions, err := app.Sessions(cmd.Context(), sessionsLimit)
		if err != nil {
			return fmt.Errorf("ошибка чтения истории сессий: %w", err)
		}
		pending, err := app.ChangeLog().Pending(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка чтения журнала: %w", err)
		}

		if cli.JSON(cmd) {
			return cli.PrintJSON(os.Stdout, map[string]interface{}{
				"pending":  len(pending),
				"sessions": sessions,
			})
		}

		cfg := app.Config()
		fmt.Println("=== Статус синхронизации ===")
		fmt.Printf("Устройство: %s\n", cfg.DeviceID)
		fmt.Printf("Сервер: %s ", cfg.BaseURL())
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := app.CheckConnection(ctx); err != nil {
			fmt.Println(cli.Failure("недоступен"))
		} else {
			fmt.Println(cli.Success("доступен"))
		}
		fmt.Printf("Стратегия конфликтов: %s\n", app.Conflicts().Strategy())
		fmt.Printf("Интервал: %v, повторов: %d\n", cfg.Sync.Interval, cfg.Sync.MaxRetries)
		fmt.Printf("Ожидают синхронизации: %d\n", len(pending))

		if len(sessions) == 0 {
			fmt.Println(cli.Muted("Сессий еще не было"))
			return nil
		}
		fmt.Println()
		for i := range sessions {
			printSummary(&sessions[i])
		}
		return nil
	},
}

func init() {
	StatusCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 5, "число последних сессий")
}
