package services

import "errors"

var (
	ErrRoomFull           = errors.New("room is full")
	ErrAlreadyMember      = errors.New("already a member of this room")
	ErrAlreadyReviewed    = errors.New("already reviewed this room")
	ErrInvalidState       = errors.New("operation not allowed in current room state")
	ErrNotReady           = errors.New("not every member is ready")
	ErrRoomNotFound       = errors.New("room not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidInput       = errors.New("invalid input")
)
