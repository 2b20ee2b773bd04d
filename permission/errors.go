package permission

import "errors"

var (
	// ErrInvalidPermission is returned for malformed permission strings.
	ErrInvalidPermission = errors.New("invalid permission")
	// ErrInvalidRole is returned for empty role names.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidEndpoint is returned for malformed endpoint keys.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)
