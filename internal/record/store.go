// Package record is the boundary to the external record store (a CMS-style
// page-field store). The dispatch core only needs two narrow operations:
// read a named field for a record, and write one back.
package record

import "context"

// Store is the narrow interface the field-persistence flows depend on.
type Store interface {
	// ReadField returns the value of a named field for a record, and
	// whether it was present at all.
	ReadField(ctx context.Context, recordID int, name string) (string, bool, error)

	// WriteField sets the value of a named field for a record, creating
	// it if absent.
	WriteField(ctx context.Context, recordID int, name, value string) error
}
