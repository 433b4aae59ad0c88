package micropub

// ToResponse converts a callback result into a concrete HTTP response.
//
// Built responses pass through untouched. Error codes expand into the
// standard {error, error_description} body with their fixed status. Structured
// data serializes as JSON at defaultStatus, unless it is a map carrying an
// "error" key whose value is a known code, in which case that code's status
// wins. A location string that happens to equal a known error code is treated
// as that error; any other string serializes as a bare JSON string. None and
// OK serialize as an empty JSON object at defaultStatus.
func ToResponse(res Result, defaultStatus int) *Response {
	switch res.kind {
	case kindResponse:
		return res.resp
	case kindError:
		return errorResponse(res.code, "")
	case kindLocation:
		if ErrorCode(res.loc).Known() {
			return errorResponse(ErrorCode(res.loc), "")
		}
		return JSON(defaultStatus, res.loc)
	case kindData:
		status := defaultStatus
		if m, ok := res.data.(map[string]any); ok {
			if raw, ok := m["error"]; ok {
				if code, ok := raw.(string); ok && ErrorCode(code).Known() {
					status = ErrorCode(code).Status()
				}
			}
		}
		return JSON(status, res.data)
	default:
		return JSON(defaultStatus, map[string]any{})
	}
}
