package state

import "errors"

var ErrNotFound = errors.New("entity not found")
