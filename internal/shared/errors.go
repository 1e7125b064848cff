package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrImportRunning indicates another import already holds the property lock.
	ErrImportRunning = errors.New("import already running for property")
	// ErrLockNotHeld occurs when releasing a lock owned by someone else.
	ErrLockNotHeld = errors.New("lock not held")
)
