package errors

import (
	"errors"
)

// As is errors.As specialized to our Error type.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// Is re-exports errors.Is so callers only import this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// GetCode reports the code anywhere in err's chain. Plain errors
// classify as Internal; nil is OK.
func GetCode(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetMeta returns the metadata of the outermost Error in the chain, or
// nil when there is none.
func GetMeta(err error) map[string]interface{} {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Meta
	}
	return nil
}

// GetMessage returns the player-facing message, falling back to
// Error() for plain errors.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Code predicates. Each walks the chain via GetCode, so a wrapped
// NotFound still answers IsNotFound.

func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

func IsInvalidArgument(err error) bool {
	return GetCode(err) == CodeInvalidArgument
}

func IsAlreadyExists(err error) bool {
	return GetCode(err) == CodeAlreadyExists
}

func IsPermissionDenied(err error) bool {
	return GetCode(err) == CodePermissionDenied
}

func IsInternal(err error) bool {
	return GetCode(err) == CodeInternal
}

func IsUnavailable(err error) bool {
	return GetCode(err) == CodeUnavailable
}

func IsUnauthenticated(err error) bool {
	return GetCode(err) == CodeUnauthenticated
}

func IsResourceExhausted(err error) bool {
	return GetCode(err) == CodeResourceExhausted
}

func IsFailedPrecondition(err error) bool {
	return GetCode(err) == CodeFailedPrecondition
}

func IsAborted(err error) bool {
	return GetCode(err) == CodeAborted
}

func IsOutOfRange(err error) bool {
	return GetCode(err) == CodeOutOfRange
}

func IsUnimplemented(err error) bool {
	return GetCode(err) == CodeUnimplemented
}

func IsDataLoss(err error) bool {
	return GetCode(err) == CodeDataLoss
}

func IsCanceled(err error) bool {
	return GetCode(err) == CodeCanceled
}

func IsDeadlineExceeded(err error) bool {
	return GetCode(err) == CodeDeadlineExceeded
}
