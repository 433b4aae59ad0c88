package micropub

import (
	"encoding/json"
	"net/http"
)

// Response is a fully-formed HTTP response. Callbacks may return one wrapped
// in Respond to bypass translation entirely; the adapter writes it verbatim.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewResponse creates an empty response with the given status.
func NewResponse(status int) *Response {
	return &Response{
		StatusCode: status,
		Header:     make(http.Header),
	}
}

// JSON creates a response whose body is the JSON encoding of v. Encoding
// failures degrade to a 500 rather than panicking; they indicate a programming
// error in the callback's returned data.
func JSON(status int, v any) *Response {
	resp := NewResponse(status)
	resp.Header.Set("Content-Type", "application/json")

	body, err := json.Marshal(v)
	if err != nil {
		resp.StatusCode = http.StatusInternalServerError
		resp.Body = []byte(`{"error":"invalid_request","error_description":"response body could not be encoded"}`)
		return resp
	}

	resp.Body = body
	return resp
}

// Write emits the response. Write failures are best-effort; by this point the
// status line may already be on the wire, so there is nothing left to do.
func (r *Response) Write(w http.ResponseWriter) {
	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}

	w.WriteHeader(r.StatusCode)

	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}
