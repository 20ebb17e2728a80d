// cmd/client/cmd/init.go
package cmd

import (
	"scoutsync/cmd/client/cmd/backup"
	"scoutsync/cmd/client/cmd/change"
	"scoutsync/cmd/client/cmd/sync"
)

func init() {
	// Изменения и журнал
	rootCmd.AddCommand(change.ChangeCmd)
	change.ChangeCmd.AddCommand(change.SetCmd)
	change.ChangeCmd.AddCommand(change.DeleteCmd)
	change.ChangeCmd.AddCommand(change.HistoryCmd)
	rootCmd.AddCommand(change.PendingCmd)

	// Синхронизация
	rootCmd.AddCommand(sync.SyncCmd)
	sync.SyncCmd.AddCommand(sync.StatusCmd)
	rootCmd.AddCommand(sync.ConflictsCmd)
	rootCmd.AddCommand(daemonCmd)

	// Резервные копии
	rootCmd.AddCommand(backup.BackupCmd)
	backup.BackupCmd.AddCommand(backup.CreateCmd)
	backup.BackupCmd.AddCommand(backup.ListCmd)
	backup.BackupCmd.AddCommand(backup.RestoreCmd)
	backup.BackupCmd.AddCommand(backup.ClearCmd)
}
