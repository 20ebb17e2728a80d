package change

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scoutsync/cmd/client/cmd/cli"
	"scoutsync/internal/domain/changelog"
	"scoutsync/internal/domain/snapshot"
	"scoutsync/internal/domain/state"
)

var (
	payload     string
	payloadFile string
)

var SetCmd = &cobra.Command{
	Use:   "set TYPE ID",
	Short: "Создать или обновить сущность",
	Long: `Записывает новое содержимое сущности. Если сущности еще нет в локальной
копии, изменение записывается как создание, иначе как обновление.

Примеры:
  scoutsync change set structure base-42 --payload '{"name":"Base Scout","region":"Lazio"}'
  scoutsync change set personal_list favorites --file list.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		body, err := cli.ReadPayload(payload, payloadFile)
		if err != nil {
			return err
		}

		key := snapshot.Key{Type: args[0], ID: args[1]}
		op := changelog.OpUpdate
		if _, err := app.State().Get(cmd.Context(), key); errors.Is(err, state.ErrNotFound) {
			op = changelog.OpCreate
		} else if err != nil {
			return fmt.Errorf("ошибка чтения локальной копии: %w", err)
		}

		rec, err := app.Mutate(cmd.Context(), key.Type, key.ID, op, body)
		if err != nil {
			return describe(err)
		}

		if cli.JSON(cmd) {
			return cli.PrintJSON(os.Stdout, rec)
		}
		fmt.Printf("%s %s %s (изменение #%d, ожидает синхронизации)\n",
			cli.Success("✓"), rec.Operation, key, rec.ID)
		return nil
	},
}

func describe(err error) error {
	var verr *changelog.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("изменение отклонено: %w", err)
	}
	return err
}

func init() {
	SetCmd.Flags().StringVarP(&payload, "payload", "p", "", "содержимое сущности в JSON")
	SetCmd.Flags().StringVarP(&payloadFile, "file", "f", "", "файл с содержимым; - для stdin")
}
