package authcfg

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied is returned when the acting principal lacks the
	// privilege tier required for the operation. No further detail is exposed.
	ErrPermissionDenied = errors.New("insufficient privilege")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an invariant would be violated: duplicate
	// provider name, deletion of a referenced provider, or an unsatisfiable
	// password policy.
	ErrConflict = errors.New("conflict")

	// ErrStorage is returned when the persistence or audit layer fails.
	// Always fatal to the call; retry policy belongs to the storage layer.
	ErrStorage = errors.New("storage failure")

	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Field, e.Reason)
}

// ValidationErrors aggregates every violated field of one request. Validation
// always runs to completion so the caller sees the full set of reasons at
// once instead of fixing fields one by one.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	reasons := make([]string, len(e))
	for i, fe := range e {
		reasons[i] = fe.Error()
	}

	return strings.Join(reasons, "; ")
}

// ErrOrNil returns the aggregate as an error, or nil when no field failed.
func (e ValidationErrors) ErrOrNil() error {
	if len(e) == 0 {
		return nil
	}

	return e
}

// AsValidationErrors unwraps err into ValidationErrors if it is one.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}

	return nil, false
}
