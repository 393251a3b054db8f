package product

import (
	"fmt"
	"strings"
)

// ValidationError lists every problem found in a submission. It never
// reaches the storage layer.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid product: " + strings.Join(e.Messages, "; ")
}

// UploadError indicates that storing one image file failed. It aborts the
// whole product write.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload image %s: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DatabaseError indicates a connection, statement or transaction failure on
// the write path.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// QueryError indicates a failed read. Readers return it alongside an empty
// result.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
