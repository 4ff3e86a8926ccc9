package model

import "errors"

var (
	ErrValidation      = errors.New("validation error")
	ErrRateUnavailable = errors.New("rate unavailable")
	ErrFetchFailure    = errors.New("failed to fetch rates")
	ErrStorage         = errors.New("storage error")
)
