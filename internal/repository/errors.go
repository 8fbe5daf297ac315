package repository

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("room is at capacity")
	ErrDuplicate        = errors.New("duplicate entry")
	ErrVersionConflict  = errors.New("version conflict: room has been modified")
)
