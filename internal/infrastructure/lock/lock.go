package lock

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// FileLock межпроцессная блокировка на файле рядом с базой данных.
// Блокировку держит открытый дескриптор, поэтому ОС снимает ее
// при завершении процесса, в том числе аварийном.
type FileLock struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewFileLock создает блокировку; файл path создается при первом захвате
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Path путь к файлу блокировки
func (l *FileLock) Path() string {
	return l.path
}

// TryLock захватывает блокировку без ожидания. Возвращает false, если ее
// держит другой процесс или этот же экземпляр.
func (l *FileLock) TryLock() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return false, nil
	}

	f, err := l.open()
	if err != nil {
		return false, err
	}

	ok, err := tryLock(f)
	if err != nil || !ok {
		f.Close()
		return false, err
	}

	writeHolder(f)
	l.file = f
	return true, nil
}

// Unlock освобождает блокировку, захваченную этим экземпляром
func (l *FileLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	_ = l.file.Truncate(0)
	err := unlock(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil

	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	return nil
}

// Locked сообщает, держит ли блокировку кто-нибудь, включая этот экземпляр
func (l *FileLock) Locked() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return true, nil
	}

	f, err := l.open()
	if err != nil {
		return false, err
	}
	defer f.Close()

	ok, err := tryLock(f)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return false, unlock(f)
}

func (l *FileLock) open() (*os.File, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", l.path, err)
	}
	return f, nil
}

// writeHolder записывает владельца для диагностики
func writeHolder(f *os.File) {
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	_, _ = fmt.Fprintf(f, "pid:%d\ntime:%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
}
