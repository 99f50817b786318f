package cli

import (
	"strconv"

	"bugit/internal/store"
)

// isIndexArg reports whether an id-or-index argument is an ephemeral index.
// Record ids always contain a letter or dash, so an all-digit argument can
// only mean a position in the current listing.
func isIndexArg(arg string) bool {
	if arg == "" {
		return false
	}

	for _, r := range arg {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// resolveIssue fetches a record by id, or by 1-based listing index when the
// argument is all digits.
func resolveIssue(st *store.Store, arg string) (store.Document, error) {
	if isIndexArg(arg) {
		index, err := strconv.Atoi(arg)
		if err != nil {
			return nil, err
		}

		return st.GetByIndex(index)
	}

	return st.Load(arg)
}
