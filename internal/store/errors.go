package store

import "errors"

// Storage fault taxonomy. Every error returned by the store wraps exactly one
// of these sentinels, so callers can branch with errors.Is without parsing
// messages.
var (
	// ErrNotFound reports a load or delete of an id with no record file.
	ErrNotFound = errors.New("issue not found")

	// ErrCorruptDocument reports a record file whose content is not valid JSON.
	ErrCorruptDocument = errors.New("corrupt issue file")

	// ErrInvalidStructure reports a record file that parsed but is not a
	// keyed object (for example a bare array or string).
	ErrInvalidStructure = errors.New("invalid issue structure")

	// ErrInvalidID reports an id that is empty or unsafe as a file name.
	ErrInvalidID = errors.New("invalid issue id")

	// ErrWriteFailed reports a failed write, backup, or removal of a record.
	ErrWriteFailed = errors.New("write failed")

	// ErrLockTimeout reports that another holder outlasted the lock timeout.
	// The record is busy; retrying later is reasonable.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrLockIO reports that the lock side-car could not be created. Unlike
	// ErrLockTimeout this is a storage fault, not contention from a peer.
	ErrLockIO = errors.New("lock io")

	// ErrInvalidIndex reports an ephemeral index < 1.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrIndexOutOfRange reports an ephemeral index beyond the current listing.
	ErrIndexOutOfRange = errors.New("index out of range")
)

var faults = []error{
	ErrNotFound,
	ErrCorruptDocument,
	ErrInvalidStructure,
	ErrInvalidID,
	ErrWriteFailed,
	ErrLockTimeout,
	ErrLockIO,
	ErrInvalidIndex,
	ErrIndexOutOfRange,
}

// IsFault reports whether err belongs to the store's fault taxonomy.
func IsFault(err error) bool {
	for _, fault := range faults {
		if errors.Is(err, fault) {
			return true
		}
	}

	return false
}

// IsContention reports whether err came from lock acquisition rather than
// from the data itself. Callers that retry contention must not retry
// corruption; this is the distinction they branch on.
func IsContention(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrLockIO)
}
