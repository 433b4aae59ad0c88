package micropub

type resultKind int

const (
	kindNone resultKind = iota
	kindResponse
	kindError
	kindData
	kindLocation
	kindOK
)

// Result is the return value of every content callback. It is a closed sum:
//
//   - Respond(resp)  — an already-built response, passed through untranslated
//   - Fail(code)     — one of the four Micropub error codes
//   - Data(v)        — structured data (or a map carrying an "error" key)
//   - Location(url)  — success with a new location (typically HTTP 201)
//   - OK()           — basic success (typically HTTP 204 for actions)
//   - None()         — "not found", "no-op", or "not mine" depending on the
//     callback; extension hooks use it to decline a request
type Result struct {
	kind resultKind
	resp *Response
	code ErrorCode
	data any
	loc  string
}

// None returns the declining/absent result.
func None() Result {
	return Result{kind: kindNone}
}

// OK returns the basic success result.
func OK() Result {
	return Result{kind: kindOK}
}

// Respond wraps an already-built response. A nil response is None.
func Respond(resp *Response) Result {
	if resp == nil {
		return None()
	}

	return Result{kind: kindResponse, resp: resp}
}

// Fail returns an error result for one of the Micropub error codes.
func Fail(code ErrorCode) Result {
	return Result{kind: kindError, code: code}
}

// Data wraps structured data to be serialized as the JSON response body.
func Data(v any) Result {
	return Result{kind: kindData, data: v}
}

// Location returns a success result pointing at a (new) post URL.
func Location(url string) Result {
	return Result{kind: kindLocation, loc: url}
}

// IsNone reports whether the result is the declining/absent variant.
func (r Result) IsNone() bool {
	return r.kind == kindNone
}

// IsOK reports whether the result is the basic success variant.
func (r Result) IsOK() bool {
	return r.kind == kindOK
}

// LocationURL returns the location string of a Location result.
func (r Result) LocationURL() (string, bool) {
	if r.kind != kindLocation {
		return "", false
	}

	return r.loc, true
}
