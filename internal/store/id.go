package store

import "github.com/google/uuid"

// idLength is the number of characters kept from a freshly generated UUID.
// Six hex-ish characters are plenty for a local tracker and stay typeable.
const idLength = 6

// newID generates a short opaque record id.
func newID() string {
	return uuid.NewString()[:idLength]
}
