package conflict

import "errors"

var ErrUnknownStrategy = errors.New("unknown conflict strategy")
