// Package upstream carries the error type for off-schema responses from
// external collaborators (RPC node, indexer, path-finder). Transport and
// availability failures stay plain wrapped errors; an upstream.Error means
// the collaborator answered but not in the shape its contract promises.
package upstream

import "fmt"

type Error struct {
	Service string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: upstream contract violation: %s: %v", e.Service, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: upstream contract violation: %s", e.Service, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Violation wraps an off-schema upstream response.
func Violation(service, detail string, err error) *Error {
	return &Error{Service: service, Detail: detail, Err: err}
}
