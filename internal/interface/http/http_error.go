package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/chargemap/internal/domain/explorer"
	"github.com/yanqian/chargemap/internal/domain/site"
	apperrors "github.com/yanqian/chargemap/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// toHTTPError maps domain error codes onto statuses. Unknown failures keep fallbackCode
// and become 500s.
func toHTTPError(err error, fallbackCode string) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	code := apperrors.CodeOf(err)
	switch code {
	case site.CodeInvalidMetric, site.CodeInvalidArgument:
		return NewHTTPError(http.StatusBadRequest, code, apperrors.MessageOf(err), err)
	case site.CodeNotFound, explorer.CodeSessionNotFound:
		return NewHTTPError(http.StatusNotFound, code, apperrors.MessageOf(err), err)
	case site.CodeNetwork, site.CodeDecode:
		return NewHTTPError(http.StatusBadGateway, code, apperrors.MessageOf(err), err)
	case explorer.CodeSessionLimit:
		return NewHTTPError(http.StatusServiceUnavailable, code, apperrors.MessageOf(err), err)
	default:
		return NewHTTPError(http.StatusInternalServerError, fallbackCode, apperrors.MessageOf(err), err)
	}
}
