package model

import (
	"errors"
	"fmt"
)

var (
	ErrParse             = errors.New("invalid filter")
	ErrInvalidOperation  = errors.New("invalid geometry operation")
	ErrMissingIdentifier = errors.New("missing identifier")
	ErrNotFound          = errors.New("not found")
)

// BackendError carries a search backend failure. Status is the backend's
// HTTP status when it answered, zero when it could not be reached.
type BackendError struct {
	Status int
	Msg    string
	Err    error
}

func (e *BackendError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "search backend error"
	}
}

func (e *BackendError) Unwrap() error { return e.Err }

// Client reports whether the backend rejected the request itself.
func (e *BackendError) Client() bool {
	return e.Status >= 400 && e.Status < 500
}
