package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Error codes carried over the push channel. The string form (see
// CodeName) is what clients receive inside an error frame.
const (
	CodeInvalidRequest = 4000
	CodeAuthentication = 4010
	CodeForbidden      = 4030
	CodeNotFound       = 4040
	CodeInfrastructure = 5000
)

var (
	ErrInvalidRequest = NewCodeError(CodeInvalidRequest, "invalid request")
	ErrAuthentication = NewCodeError(CodeAuthentication, "authentication failed")
	ErrForbidden      = NewCodeError(CodeForbidden, "forbidden")
	ErrNotFound       = NewCodeError(CodeNotFound, "not found")
	ErrInfrastructure = NewCodeError(CodeInfrastructure, "infrastructure failure")
)

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	var d string
	if e.Detail == "" {
		d = detail
	} else {
		d = e.Detail + ", " + detail
	}
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

func (e *CodeError) Is(err error) bool {
	var codeErr *CodeError
	if !errors.As(err, &codeErr) {
		return false
	}
	return e.Code == codeErr.Code
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// CodeOf extracts the taxonomy code from err, or CodeInfrastructure when
// err carries no code (raw store/transport failures).
func CodeOf(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeInfrastructure
}

// CodeName is the wire name for a taxonomy code.
func CodeName(code int) string {
	switch code {
	case CodeInvalidRequest:
		return "INVALID_REQUEST"
	case CodeAuthentication:
		return "UNAUTHENTICATED"
	case CodeForbidden:
		return "FORBIDDEN"
	case CodeNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
