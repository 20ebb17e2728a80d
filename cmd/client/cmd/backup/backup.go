package backup

import (
	"github.com/spf13/cobra"
)

// BackupCmd - родительская команда для резервных копий
var BackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Резервные копии",
	Long: `Полные снимки локального состояния: сущности, предпочтения и настройки.
Копии не зависят от журнала изменений и хранятся локально, на сервере или в
обоих местах.`,
}
