package backup

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scoutsync/cmd/client/cmd/cli"
	"scoutsync/internal/domain/backup"
)

var (
	force bool
	yes   bool
)

var RestoreCmd = &cobra.Command{
	Use:   "restore BACKUP_ID",
	Short: "Восстановить состояние из копии",
	Long: `Заменяет локальное состояние содержимым копии целиком.

Если в журнале есть несинхронизированные изменения, восстановление
отменяется. С флагом --force такие изменения помечаются как отклоненные
и не будут отправлены на сервер. Во время синхронизации восстановление
невозможно.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		if force && !yes {
			ok, err := cli.Confirm("Несинхронизированные изменения будут отброшены. Продолжить?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Отменено")
				return nil
			}
		}

		err = app.Restore(cmd.Context(), args[0], force)
		switch {
		case errors.Is(err, backup.ErrPendingChanges):
			return fmt.Errorf("%w; синхронизируйте изменения или используйте --force", err)
		case errors.Is(err, backup.ErrSyncRunning):
			return fmt.Errorf("идет синхронизация, повторите позже")
		case errors.Is(err, backup.ErrChecksumMismatch):
			return fmt.Errorf("копия повреждена: %w", err)
		case err != nil:
			return fmt.Errorf("ошибка восстановления: %w", err)
		}

		fmt.Printf("%s Состояние восстановлено из копии %s\n", cli.Success("✓"), args[0])
		return nil
	},
}

var ClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Удалить все копии, кроме последней",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		if !yes {
			ok, err := cli.Confirm("Удалить все резервные копии, кроме самой свежей?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Отменено")
				return nil
			}
		}

		removed, err := app.Backups().Clear(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка удаления копий: %w", err)
		}
		fmt.Printf("%s Удалено копий: %d\n", cli.Success("✓"), removed)
		return nil
	},
}

func init() {
	RestoreCmd.Flags().BoolVar(&force, "force", false, "отбросить несинхронизированные изменения")
	RestoreCmd.Flags().BoolVarP(&yes, "yes", "y", false, "не спрашивать подтверждение")
	ClearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "не спрашивать подтверждение")
}
