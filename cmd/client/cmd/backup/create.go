package backup

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scoutsync/cmd/client/cmd/cli"
	"scoutsync/internal/domain/backup"
)

var destination string

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Создать резервную копию",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		snap, err := app.Backup(cmd.Context(), backup.Destination(destination))
		if err != nil {
			return fmt.Errorf("ошибка создания копии: %w", err)
		}

		if cli.JSON(cmd) {
			snap.Payload = nil
			return cli.PrintJSON(os.Stdout, snap)
		}

		fmt.Printf("%s Копия %s создана: %d сущностей, %s, хранится: %s\n",
			cli.Success("✓"),
			snap.ID,
			snap.Metadata.EntityCount,
			humanize.Bytes(uint64(snap.SizeBytes)),
			snap.Location)
		if destination != "" && backup.Destination(destination) != backup.DestinationLocal && snap.Location == backup.LocationLocal {
			fmt.Println(cli.Warning("Сервер недоступен, копия сохранена только локально"))
		}
		return nil
	},
}

func init() {
	CreateCmd.Flags().StringVarP(&destination, "dest", "d", "", "куда сохранить: local, remote, both (по умолчанию из настроек)")
}
