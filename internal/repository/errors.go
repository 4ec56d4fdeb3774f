package repository

import "errors"

// ErrNotFound is returned when a meter has no stored record.
var ErrNotFound = errors.New("record not found")
