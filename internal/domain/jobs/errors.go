package jobs

import "errors"

var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnsupportedJobType = errors.New("unsupported job type")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrStorageFailure     = errors.New("storage failure")
	ErrJobNotCompleted    = errors.New("job not completed")
	ErrAssetMissing       = errors.New("job has no asset")
)
