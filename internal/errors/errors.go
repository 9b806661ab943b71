package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so sentinels work with
// errors.Is after Wrap.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrDocumentUnreadable  = &AppError{Code: "DOC_001", Message: "document unreadable"}
	ErrDocumentUnsupported = &AppError{Code: "DOC_002", Message: "unsupported document format"}

	ErrOCRFailed = &AppError{Code: "OCR_001", Message: "OCR engine failed"}

	ErrImageUnreadable = &AppError{Code: "IMG_001", Message: "image unreadable"}

	ErrServiceUnavailable = &AppError{Code: "LLM_002", Message: "model service unavailable"}

	ErrOutputExhausted = &AppError{Code: "OUT_001", Message: "no free output name"}
	ErrOutputWrite     = &AppError{Code: "OUT_002", Message: "failed to write output"}

	ErrPathRejected = &AppError{Code: "SEC_001", Message: "path rejected"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapAs wraps err under the code and message of a sentinel.
func WrapAs(sentinel *AppError, err error) *AppError {
	return Wrap(err, sentinel.Code, sentinel.Message)
}
