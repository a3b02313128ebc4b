package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid              ErrorCode = "invalid"
	ErrorForbidden            ErrorCode = "forbidden"
	ErrorNotFound             ErrorCode = "not_found"
	ErrorConflict             ErrorCode = "conflict"
	ErrorUnauthorized         ErrorCode = "unauthorized"
	ErrorBadGateway           ErrorCode = "bad_gateway"
	ErrorAlreadyCompleted     ErrorCode = "already_completed"
	ErrorInvalidAnswer        ErrorCode = "invalid_answer"
	ErrorVerificationMismatch ErrorCode = "verification_mismatch"
	ErrorPhoneFormat          ErrorCode = "phone_format"
	ErrorStoreUnavailable     ErrorCode = "store_unavailable"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may repeat the operation unchanged.
func (e *ServiceError) Retryable() bool { return e.Code == ErrorStoreUnavailable }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewBadGatewayError(msg string, err error) error {
	return &ServiceError{Code: ErrorBadGateway, Message: msg, Err: err}
}

func NewAlreadyCompletedError(msg string) error {
	return &ServiceError{Code: ErrorAlreadyCompleted, Message: msg}
}

func NewInvalidAnswerError(msg string) error {
	return &ServiceError{Code: ErrorInvalidAnswer, Message: msg}
}

func NewVerificationMismatchError(msg string) error {
	return &ServiceError{Code: ErrorVerificationMismatch, Message: msg}
}

func NewPhoneFormatError(msg string) error { return &ServiceError{Code: ErrorPhoneFormat, Message: msg} }

// NewStoreUnavailableError wraps a backend failure. It is never retried internally.
func NewStoreUnavailableError(op string, err error) error {
	return &ServiceError{Code: ErrorStoreUnavailable, Message: op, Err: err}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasCode reports whether err is a ServiceError carrying code.
func HasCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}
