// Package apperr holds the build error taxonomy shared across quire packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnterminated    = errors.New("metadata block is missing its closing delimiter")
	ErrInvalidMetadata = errors.New("metadata block is not a valid key-value mapping")
	ErrMissingLayout   = errors.New("layout not found")
	ErrMissingChapter  = errors.New("chapter target does not exist")
	ErrOrphanDocument  = errors.New("document is not listed in the chapter order")
	ErrTemplate        = errors.New("layout execution failed")
)

// DocumentError ties a build failure to the document that caused it.
type DocumentError struct {
	ID  string
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %q: %v", e.ID, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// ForDocument wraps err with the document identifier. A nil err stays nil.
func ForDocument(id string, err error) error {
	if err == nil {
		return nil
	}
	var de *DocumentError
	if errors.As(err, &de) && de.ID == id {
		return err
	}
	return &DocumentError{ID: id, Err: err}
}
