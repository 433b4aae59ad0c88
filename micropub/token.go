package micropub

import "strings"

// AccessToken extracts the bearer token for a request. Every Authorization
// header value is scanned for a Bearer scheme (case-insensitively); if none
// carries one, the parsed body's access_token field is consulted. The body
// field is removed in either case so it never leaks into created content.
func AccessToken(req *Request) string {
	token := ""
	for _, v := range req.Header.Values("Authorization") {
		if token = bearerToken(v); token != "" {
			break
		}
	}

	bodyToken := popBodyToken(req.Body)
	if token == "" {
		token = bodyToken
	}

	return strings.TrimSpace(token)
}

// bearerToken extracts a Bearer token from an Authorization header value.
// Returns an empty string if the value is malformed or not a Bearer token.
func bearerToken(auth string) string {
	if auth == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return token
}

// popBodyToken extracts the first string access_token value from a body map
// and removes the key. Returns an empty string if not present or not a string.
func popBodyToken(body map[string]any) string {
	if body == nil {
		return ""
	}

	v, ok := body["access_token"]
	if !ok {
		return ""
	}

	delete(body, "access_token")

	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				return s
			}
		}
	}

	return ""
}
