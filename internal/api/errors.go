package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alnah/go-clipscribe/internal/clip"
	"github.com/alnah/go-clipscribe/internal/transcribe"
)

// Codes for failures raised by the HTTP layer itself.
const (
	codeNotFound    = "not_found"
	codeRateLimited = "rate_limited"
	codeHTTPError   = "http_error"
	codeInternal    = "internal_error"
)

// errorDetail is the payload of every error response.
type errorDetail struct {
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
	Details string `json:"details,omitempty" msgpack:"details,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error" msgpack:"error"`
}

// ErrorHandler renders errors as {"error":{code,message,details?}}.
// Details carry the internal cause and are only included when debug is set.
func ErrorHandler(debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, detail := describe(err)
		switch {
		case !debug:
			detail.Details = ""
		case detail.Details == "":
			detail.Details = err.Error()
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = respond(c, status, errorBody{Error: detail})
	}
}

// describe maps err to a status and a client-safe detail.
func describe(err error) (int, errorDetail) {
	var ce *clip.Error
	if errors.As(err, &ce) {
		d := errorDetail{Code: string(ce.Code), Message: ce.Message}
		if ce.Err != nil {
			d.Details = ce.Err.Error()
		}
		return statusFor(ce), d
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		d := errorDetail{Code: codeHTTPError, Message: fmt.Sprint(he.Message)}
		switch he.Code {
		case http.StatusNotFound:
			d.Code = codeNotFound
		case http.StatusTooManyRequests:
			d.Code = codeRateLimited
		case http.StatusRequestEntityTooLarge:
			d.Code = string(clip.CodeFileTooLarge)
		}
		if he.Internal != nil {
			d.Details = he.Internal.Error()
		}
		return he.Code, d
	}

	return http.StatusInternalServerError, errorDetail{Code: codeInternal, Message: "an unexpected error occurred"}
}

func statusFor(e *clip.Error) int {
	switch e.Code {
	case clip.CodeFileNotFound:
		return http.StatusNotFound
	case clip.CodeInvalidTimeRange, clip.CodeInvalidStartTime, clip.CodeInvalidRequest:
		return http.StatusBadRequest
	case clip.CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case clip.CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case clip.CodeDownloadFailed, clip.CodeSearchFailed:
		return http.StatusBadGateway
	}
	if errors.Is(e, transcribe.ErrEngineNotConfigured) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// invalidRequest wraps a binding or parameter problem.
func invalidRequest(msg string, err error) error {
	return &clip.Error{Code: clip.CodeInvalidRequest, Message: msg, Err: err}
}
