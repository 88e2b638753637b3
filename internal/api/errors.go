package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alumnihub/messaging/internal/types"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    lower(http.StatusText(http.StatusBadRequest)),
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    lower(http.StatusText(http.StatusNotFound)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

func NewForbiddenError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    lower(http.StatusText(http.StatusForbidden)),
	}
}

// NewDomainError maps messaging-domain errors onto API responses.
// Locked and suspended carry distinct codes so clients can render the
// right state instead of a generic failure.
func NewDomainError(err error) *ApiError {
	var valErr *types.ValidationError
	var authErr *types.AuthorizationError

	switch {
	case errors.Is(err, types.ErrMessagingLocked):
		return &ApiError{
			StatusCode: http.StatusLocked,
			Message:    err.Error(),
			Code:       "locked",
		}
	case errors.Is(err, types.ErrUserSuspended):
		return &ApiError{
			StatusCode: http.StatusForbidden,
			Message:    err.Error(),
			Code:       "suspended",
		}
	case errors.Is(err, types.ErrSelfMessage):
		return &ApiError{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
			Code:       "validation",
		}
	case errors.Is(err, types.ErrNotFound):
		return NewNotFoundError()
	case errors.As(err, &valErr):
		return &ApiError{
			StatusCode: http.StatusBadRequest,
			Message:    valErr.Error(),
			Code:       "validation",
		}
	case errors.As(err, &authErr):
		return NewForbiddenError()
	default:
		return NewInternalServerError(err)
	}
}
