package change

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scoutsync/cmd/client/cmd/cli"
	"scoutsync/internal/domain/changelog"
)

var DeleteCmd = &cobra.Command{
	Use:   "delete TYPE ID",
	Short: "Удалить сущность",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		rec, err := app.Mutate(cmd.Context(), args[0], args[1], changelog.OpDelete, nil)
		if err != nil {
			return describe(err)
		}

		if cli.JSON(cmd) {
			return cli.PrintJSON(os.Stdout, rec)
		}
		fmt.Printf("%s удалено %s (изменение #%d)\n", cli.Success("✓"), rec.Key(), rec.ID)
		return nil
	},
}
