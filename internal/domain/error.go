package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidExecContext  = errors.New("invalid executor context")
	ErrQuotaExceeded       = errors.New("daily generation quota exceeded")
	ErrTooManyActiveJobs   = errors.New("too many jobs in flight for user")
	ErrPaidFeatureRequired = errors.New("feature requires a paid subscription")
	ErrRemoteNotConfigured = errors.New("remote render backend is not configured")
	ErrNotRetryable        = errors.New("entry is not in a retryable state")
	ErrEntryProcessing     = errors.New("entry is currently processing")
	ErrSweepLockHeld       = errors.New("sweep lock held by another instance")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
)
