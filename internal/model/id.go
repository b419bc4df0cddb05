package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string for use as a run identifier. ULIDs are
// unique for the process lifetime and sort in creation order.
func NewID() string {
	return ulid.Make().String()
}
