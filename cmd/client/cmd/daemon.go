// cmd/client/cmd/daemon.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"scoutsync/cmd/client/cmd/cli"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Фоновая синхронизация и резервное копирование",
	Long: `Запускает синхронизацию по таймеру и при восстановлении связи с
сервером, а также автоматические резервные копии. Работает до SIGINT
или SIGTERM. Логи пишутся в LOG_FILE, если он задан.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		c := app.Config()
		fmt.Printf("Синхронизация каждые %v, резервные копии каждые %v (%s)\n",
			c.Sync.Interval, c.Backup.Interval, c.Backup.Destination)

		return app.Daemon(cmd.Context())
	},
}
