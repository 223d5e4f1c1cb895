package storage

import "errors"

// Sentinel errors shared by the db layers. Services translate these into
// their own domain errors before they reach a handler.
var (
	ErrNotFound        = errors.New("record not found")
	ErrNotPending      = errors.New("application is not pending")
	ErrSlotTaken       = errors.New("ownership slot is already taken")
	ErrDuplicate       = errors.New("duplicate record")
	ErrCredentialSpent = errors.New("credential is no longer active")
)
