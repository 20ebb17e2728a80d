package backup

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scoutsync/cmd/client/cmd/cli"
	"scoutsync/internal/domain/backup"
)

var remoteOnly bool

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список резервных копий",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		var snaps []backup.Snapshot
		if remoteOnly {
			snaps, err = app.RemoteBackups(cmd.Context())
		} else {
			snaps, err = app.Backups().List(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("ошибка получения списка копий: %w", err)
		}

		if cli.JSON(cmd) {
			for i := range snaps {
				snaps[i].Payload = nil
			}
			return cli.PrintJSON(os.Stdout, snaps)
		}
		if len(snaps) == 0 {
			fmt.Println("Резервных копий нет")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tСоздана\tТип\tСущностей\tРазмер\tХранится\t\n")
		for _, snap := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t\n",
				snap.ID,
				humanize.Time(snap.CreatedAt),
				snap.Kind,
				snap.Metadata.EntityCount,
				humanize.Bytes(uint64(snap.SizeBytes)),
				snap.Location)
		}
		return w.Flush()
	},
}

func init() {
	ListCmd.Flags().BoolVar(&remoteOnly, "remote", false, "показать копии этого устройства на сервере")
}
