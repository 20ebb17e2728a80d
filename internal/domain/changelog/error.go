package changelog

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("change record not found")
	ErrInvalidTransition = errors.New("invalid sync state transition")
)

// ValidationError некорректная мутация; повтор не поможет
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// IsValidation проверяет, является ли ошибка ошибкой валидации
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
