package resolve

import "errors"

// ErrNoAddress is returned when a lookup succeeds but yields no address of
// an acceptable family.
var ErrNoAddress = errors.New("no address found")

// ResolutionError reports that a remote descriptor could not be turned into
// a socket address.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return "resolve " + e.Host + ": " + e.Err.Error()
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
