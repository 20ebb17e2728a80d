package snapshot

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("snapshot not found")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrInvalidKey     = errors.New("entity type and id are required")
)

// TransportError сетевая ошибка или таймаут при обращении к удаленному хранилищу
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport проверяет, является ли ошибка транспортной
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
