package service

import (
	"errors"
	"fmt"
)

// ErrCommit means a batch transaction failed and was rolled back; the checkpoint
// still points at the previous committed batch.
var ErrCommit = errors.New("batch commit failed")

// RecordError is a single record that could not be decoded or stored.
// It is logged and skipped; it never fails the batch.
type RecordError struct {
	Entity string
	ID     string
	Err    error
}

func (e *RecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s record: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("%s record %s: %v", e.Entity, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
