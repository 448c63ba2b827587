package models

import "errors"

var (
	// ErrPollNotFound means the poll does not exist, usually because it was deleted.
	ErrPollNotFound = errors.New("poll not found")
	// ErrInvalidOption means an option index is outside the poll's options.
	ErrInvalidOption = errors.New("invalid option")
	// ErrTooManyOptions means the poll already holds the maximum number of options.
	ErrTooManyOptions = errors.New("too many options")
	// ErrTitleTooLong means a poll title exceeds the configured maximum.
	ErrTitleTooLong = errors.New("title too long")
	// ErrPrematureCompletion means creation was finished before any option was added.
	ErrPrematureCompletion = errors.New("poll has no options")
	// ErrTransient means the store kept failing after its retries were exhausted.
	ErrTransient = errors.New("transient store failure")
)
