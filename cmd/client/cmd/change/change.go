package change

import (
	"github.com/spf13/cobra"
)

// ChangeCmd - родительская команда для изменений справочника
var ChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Изменения сущностей",
	Long: `Создание, обновление и удаление сущностей справочника.

Изменение сразу сохраняется в журнал и видно локально. На сервер оно
попадет при следующей синхронизации.`,
}
