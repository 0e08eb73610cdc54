package domain

import "errors"

// Lifecycle failures. All are expected outcomes a caller translates for users.
var (
	ErrNotFound       = errors.New("ticket not found")
	ErrInvalidState   = errors.New("operation not allowed in current ticket status")
	ErrAlreadyClaimed = errors.New("ticket already claimed")
	ErrNotOwner       = errors.New("actor is not the ticket assignee")
)
