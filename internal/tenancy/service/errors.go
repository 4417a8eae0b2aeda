package service

import "errors"

// Domain errors returned to callers. Every rejected operation wraps one of
// these so embedders can match with errors.Is and map to their own surface.
var (
	ErrPermissionDenied     = errors.New("permission denied")
	ErrNotMember            = errors.New("user is not a member of the organization")
	ErrAlreadyMember        = errors.New("user is already a member of the organization")
	ErrAlreadyInvited       = errors.New("email already has a pending invitation")
	ErrLimitExceeded        = errors.New("limit exceeded")
	ErrInvalidState         = errors.New("invalid invitation state transition")
	ErrExpired              = errors.New("invitation has expired")
	ErrEmailMismatch        = errors.New("accepting user's email does not match the invitation")
	ErrFeatureDisabled      = errors.New("feature is disabled")
	ErrInvariantViolation   = errors.New("operation would violate an invariant")
	ErrSlugTaken            = errors.New("organization slug is already taken")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrUserNotFound         = errors.New("user not found")
)
