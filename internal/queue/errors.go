package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DokushoHQ/backends/internal/domain"
)

type unrecoverableError struct {
	err error
}

func (e *unrecoverableError) Error() string { return e.err.Error() }
func (e *unrecoverableError) Unwrap() error { return e.err }

// Unrecoverable marks err so the job fails immediately without retries.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &unrecoverableError{err: err}
}

// IsUnrecoverable reports whether err was marked with Unrecoverable.
func IsUnrecoverable(err error) bool {
	var u *unrecoverableError
	return errors.As(err, &u)
}

// Decode unmarshals the job payload into T. A malformed payload never
// improves on retry, so the error is unrecoverable.
func Decode[T any](job *domain.Job) (*T, error) {
	var out T
	if err := json.Unmarshal(job.Payload, &out); err != nil {
		return nil, Unrecoverable(fmt.Errorf("decode %s payload of job %s: %w", job.Queue, job.ID, err))
	}
	return &out, nil
}
