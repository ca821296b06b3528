package apperr

import "errors"

var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")

	// ErrAdminLeave is returned when a group admin tries to leave without
	// transferring ownership or deleting the group first.
	ErrAdminLeave = errors.New("group admin cannot leave the conversation")
)
