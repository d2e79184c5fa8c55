package wiremux

// This is a wrapper for the errors internal to wiremux.
//
// If you see this error, this means that the problem is neither a network
// error, nor an error caused by you, but the source of the error is
// wiremux itself.
type InternalError struct {
	err error
}

func (e InternalError) Error() string {
	return "wiremux: internal error: " + e.err.Error()
}

func (e InternalError) Unwrap() error {
	return e.err
}

func wrapInternalError(err error) *InternalError {
	return &InternalError{err: err}
}

// Error is sent to the peer inside an error packet. When Data is set it
// is transmitted instead of Message, so middleware can attach a
// structured rejection payload.
type Error struct {
	Message string
	Data    any
}

func (e *Error) Error() string {
	return e.Message
}
