package engine

import "errors"

var (
	ErrCircleNotFound      = errors.New("circle not found")
	ErrUnauthenticated     = errors.New("user not authenticated")
	ErrAlreadyPending      = errors.New("join request already pending")
	ErrAlreadyMember       = errors.New("already a member of this circle")
	ErrInvalidCircleType   = errors.New("invalid circle type")
	ErrCircleNameRequired  = errors.New("circle name required")
	ErrInvalidReactionType = errors.New("invalid reaction type")
	ErrForbidden           = errors.New("operation not permitted for this user")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrNotPending          = errors.New("membership is not pending")
	ErrOwnerCannotLeave    = errors.New("circle owner cannot leave")
	ErrDuplicateEntry      = errors.New("duplicate entry for user")
)
