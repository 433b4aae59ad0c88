package micropub

import "net/http"

// ErrorCode identifies one of the error responses defined by the Micropub
// specification. The set is closed; each code carries a fixed HTTP status and
// a fixed human-readable description.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "invalid_request"
	ErrUnauthorized      ErrorCode = "unauthorized"
	ErrInsufficientScope ErrorCode = "insufficient_scope"
	ErrForbidden         ErrorCode = "forbidden"
)

var errorStatus = map[ErrorCode]int{
	ErrInvalidRequest:    http.StatusBadRequest,
	ErrUnauthorized:      http.StatusUnauthorized,
	ErrInsufficientScope: http.StatusForbidden,
	ErrForbidden:         http.StatusForbidden,
}

var errorDescription = map[ErrorCode]string{
	ErrInvalidRequest:    "The request is missing a required parameter, or there was a problem with a value of one of the parameters",
	ErrUnauthorized:      "The request did not provide an access token",
	ErrInsufficientScope: "The provided access token does not grant sufficient scope for this request",
	ErrForbidden:         "The provided access token could not be verified",
}

// Known reports whether the code is one of the four Micropub error codes.
func (c ErrorCode) Known() bool {
	_, ok := errorStatus[c]
	return ok
}

// Status returns the HTTP status mapped to the code, or 400 for unknown codes.
func (c ErrorCode) Status() int {
	if status, ok := errorStatus[c]; ok {
		return status
	}

	return http.StatusBadRequest
}

// Description returns the fixed description text for the code.
func (c ErrorCode) Description() string {
	return errorDescription[c]
}

// ErrorBody is the wire shape of every Micropub error response.
type ErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// errorResponse renders a code as a ready-to-write response. An empty
// description falls back to the code's fixed text.
func errorResponse(code ErrorCode, description string) *Response {
	if description == "" {
		description = code.Description()
	}

	return JSON(code.Status(), ErrorBody{
		Error:       string(code),
		Description: description,
	})
}
