package sync

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scoutsync/cmd/client/cmd/cli"
)

var (
	conflictsLimit int
	showDiscarded  bool
)

// ConflictsCmd журнал разрешенных конфликтов
var ConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Разрешенные конфликты",
	Long: `Показывает, как были разрешены конфликты: победившую сторону,
обоснование и отброшенное содержимое. Записи стратегии manual помечены
как требующие проверки.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		entries, err := app.Conflicts().Audit(cmd.Context(), conflictsLimit)
		if err != nil {
			return fmt.Errorf("ошибка чтения журнала конфликтов: %w", err)
		}

		if cli.JSON(cmd) {
			return cli.PrintJSON(os.Stdout, entries)
		}
		if len(entries) == 0 {
			fmt.Println("Конфликтов не было")
			return nil
		}

		for _, e := range entries {
			review := ""
			if e.NeedsReview {
				review = " " + cli.Warning("[требует проверки]")
			}
			fmt.Printf("%s %s/%s: победил %s (%s)%s\n",
				e.ResolvedAt.Local().Format(time.DateTime),
				e.EntityType, e.EntityID, e.Winner, e.Strategy, review)
			fmt.Printf("  %s\n", cli.Muted(e.Rationale))
			if showDiscarded && len(e.DiscardedPayload) > 0 {
				fmt.Printf("  отброшено: %s\n", e.DiscardedPayload)
			}
		}
		return nil
	},
}

func init() {
	ConflictsCmd.Flags().IntVarP(&conflictsLimit, "limit", "n", 20, "число записей")
	ConflictsCmd.Flags().BoolVar(&showDiscarded, "discarded", false, "показать отброшенное содержимое")
}
