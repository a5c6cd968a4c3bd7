package device

import "errors"

var (
	// ErrNotFound indicates a device was not found
	ErrNotFound = errors.New("device not found")

	// ErrReadOnly indicates the device is marked read_only and cannot be mutated
	ErrReadOnly = errors.New("device is read-only")

	// ErrSceneNotFound indicates a scene was not found
	ErrSceneNotFound = errors.New("scene not found")

	// ErrValidation indicates a status patch failed schema validation
	ErrValidation = errors.New("validation error")
)
