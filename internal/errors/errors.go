package errors

import "errors"

var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidIdentity    = errors.New("invalid or unknown API key")
	ErrQuotaExceeded      = errors.New("API call limit reached")
	ErrDatabaseError      = errors.New("database error")
	ErrCacheError         = errors.New("cache error")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Error struct {
	Err     error
	Message string
	Code    string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
		Code:    "INTERNAL_ERROR",
	}
}
