package removals

import "errors"

var (
	ErrReasonRequired    = errors.New("a removal reason is required")
	ErrVolunteerNotFound = errors.New("volunteer not found")
	ErrSubEventNotFound  = errors.New("sub-event not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrForbidden         = errors.New("you are not allowed to remove volunteers from this sub-event")
)
