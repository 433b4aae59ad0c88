package content

import "errors"

// ErrNotFound indicates that a content document was not found.
var ErrNotFound = errors.New("content not found")
