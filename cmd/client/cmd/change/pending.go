package change

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"scoutsync/cmd/client/cmd/cli"
	"scoutsync/internal/domain/changelog"
)

// PendingCmd показывает изменения, еще не подтвержденные сервером
var PendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Несинхронизированные изменения",
	Long: `Список изменений в состояниях pending и failed в порядке записи.
Для отклоненных изменений показывается причина и будет ли повтор.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		records, err := app.ChangeLog().Pending(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка чтения журнала: %w", err)
		}

		if cli.JSON(cmd) {
			return cli.PrintJSON(os.Stdout, records)
		}
		if len(records) == 0 {
			fmt.Println(cli.Success("Все изменения синхронизированы"))
			return nil
		}

		return writePending(os.Stdout, records)
	},
}

// writePending таблица изменений; Основа версия сервера, на которой сделано изменение
func writePending(out io.Writer, records []changelog.ChangeRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tСущность\tОперация\tОснова\tСостояние\tВремя\tПричина\t\n")
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\tv%d\t%s\t%s\t%s\t\n",
			rec.ID,
			rec.Key(),
			rec.Operation,
			rec.BaseVersion,
			stateLabel(rec),
			rec.LocalTimestamp.Local().Format(time.DateTime),
			rec.FailureReason)
	}
	return w.Flush()
}

// HistoryCmd история смены состояний одного изменения
var HistoryCmd = &cobra.Command{
	Use:   "history CHANGE_ID",
	Short: "История состояний изменения",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		var id int64
		if _, err := fmt.Sscan(args[0], &id); err != nil {
			return fmt.Errorf("неверный идентификатор изменения: %s", args[0])
		}

		rec, err := app.ChangeLog().Get(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("изменение #%d не найдено: %w", id, err)
		}
		transitions, err := app.ChangeLog().History(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("ошибка чтения истории: %w", err)
		}

		if cli.JSON(cmd) {
			return cli.PrintJSON(os.Stdout, map[string]interface{}{
				"change":      rec,
				"transitions": transitions,
			})
		}

		fmt.Printf("Изменение #%d: %s %s, сейчас %s\n", rec.ID, rec.Operation, rec.Key(), stateLabel(*rec))
		for _, tr := range transitions {
			fmt.Printf("  %s  %s -> %s  %s\n",
				tr.At.Local().Format(time.DateTime), tr.From, tr.To, cli.Muted(tr.Reason))
		}
		return nil
	},
}

func stateLabel(rec changelog.ChangeRecord) string {
	switch rec.SyncState {
	case changelog.StateFailed:
		if rec.Retryable {
			return cli.Warning("failed, повтор")
		}
		return cli.Failure("failed")
	case changelog.StateConfirmed:
		return cli.Success(string(rec.SyncState))
	}
	return string(rec.SyncState)
}
