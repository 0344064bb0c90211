package model

import "errors"

// Lookup failures shared by every store implementation.  Handlers map
// them to 404.
var (
	ErrFacilityNotFound = errors.New("facility not found")
	ErrBusNotFound      = errors.New("bus not found")
	ErrTripNotFound     = errors.New("trip not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrUserNotFound     = errors.New("user not found")
)

// Uniqueness failures raised by the storage layer.
var (
	ErrFacilityNameTaken = errors.New("facility name already exists")
	ErrEmailExists       = errors.New("email already exists")
)

// ErrInvalidRefresh is returned for unknown, revoked or expired refresh tokens.
var ErrInvalidRefresh = errors.New("invalid refresh token")
