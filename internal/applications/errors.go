package applications

import "errors"

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrSubEventNotFound    = errors.New("sub-event not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrAlreadyOwner        = errors.New("you already own this event")
	ErrDuplicatePending    = errors.New("duplicate pending application")
	ErrAlreadyAssigned     = errors.New("application already approved")
	ErrSlotAlreadyFilled   = errors.New("this sub-event already has a Team Lead assigned")
	ErrAlreadyReviewed     = errors.New("application has already been reviewed")
	ErrForbidden           = errors.New("you are not allowed to review this application")
	ErrInvalidDecision     = errors.New("decision must be approve or reject")
)
