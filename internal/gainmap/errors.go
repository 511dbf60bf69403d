package gainmap

import (
	"errors"
	"fmt"
)

// Code classifies codec failures.
type Code int

const (
	CodeUnknown Code = iota
	CodeInvalidParam
	CodeInvalidOperation
	CodeUnsupportedFeature
	CodeDecode
	CodeEncode
)

func (c Code) String() string {
	switch c {
	case CodeInvalidParam:
		return "invalid_param"
	case CodeInvalidOperation:
		return "invalid_operation"
	case CodeUnsupportedFeature:
		return "unsupported_feature"
	case CodeDecode:
		return "decode_error"
	case CodeEncode:
		return "encode_error"
	default:
		return "unknown_error"
	}
}

// Error is a codec failure with a machine readable code.
type Error struct {
	Code   Code
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" && e.Err != nil {
		return e.Code.String() + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Code.String() + ": " + e.Detail + ": " + e.Err.Error()
	}
	return e.Code.String() + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

func wrap(code Code, detail string, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Code: code, Detail: detail, Err: err}
}

// ErrorCode returns the code of a codec error, or CodeUnknown.
func ErrorCode(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnknown
}

var errReleased = errorf(CodeInvalidOperation, "handle released")
