package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFlagNotFound indicates no definition exists for the flag name.
	ErrFlagNotFound = errors.New("flag not found")

	// ErrValidation is the parent of all administrative input errors.
	ErrValidation = errors.New("invalid flag definition")

	// ErrInvalidFlagName indicates the flag name is empty or malformed.
	ErrInvalidFlagName = fmt.Errorf("%w: invalid flag name", ErrValidation)

	// ErrInvalidPercentage indicates a non-numeric or non-finite rollout percentage.
	ErrInvalidPercentage = fmt.Errorf("%w: percentage must be a finite number", ErrValidation)

	// ErrStoreUnavailable indicates the flag store is refusing requests.
	ErrStoreUnavailable = errors.New("flag store unavailable")
)
