//go:build !unix && !windows

package lock

import "os"

// без файловых блокировок ОС защищает только мьютекс экземпляра
func tryLock(*os.File) (bool, error) { return true, nil }

func unlock(*os.File) error { return nil }
