package entity

import (
	"errors"
	"fmt"
)

var (
	ErrDataNotFound        = errors.New("data not found")
	ErrDuplicateKey        = errors.New("data conflicts with existing data in unique column")
	ErrInvalidData         = errors.New("invalid data")
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrIllegalTransition   = fmt.Errorf("%w: transition not allowed", ErrInvalidStatus)
	ErrStatusConflict      = errors.New("status changed concurrently")
	ErrUploadFailed        = errors.New("image upload failed")
	ErrGenerationExhausted = errors.New("tracking number generation exhausted")
)
