package credentials

import "errors"

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrCredentialNotFound   = errors.New("credential not found")
	ErrCredentialExpired    = errors.New("credential has expired")
	ErrCredentialUsed       = errors.New("credential has already been used")
	ErrCredentialRevoked    = errors.New("credential has been revoked")
	ErrCredentialNotYours   = errors.New("credential is bound to another student")
	ErrWrongPassword        = errors.New("incorrect credential password")
	ErrCodeTaken            = errors.New("credential code is already in use")
	ErrForbidden            = errors.New("you are not allowed to manage credentials for this event")
	ErrRedemptionInProgress = errors.New("another redemption of this credential is in progress")
)
