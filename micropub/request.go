package micropub

import (
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// QueryParam represents a single query parameter with one key mapping to
// potentially many values.
type QueryParam struct {
	Key   string
	Value []string
}

// QueryParams represents all query parameters for a URL. Bracketed keys are
// collapsed to their non-bracketed equivalents: properties[] == properties,
// so ?properties[]=a&properties=b yields one param with value [a,b].
type QueryParams struct {
	Params []QueryParam
}

// Get returns the QueryParam for key, or nil.
func (p *QueryParams) Get(key string) *QueryParam {
	for i := range p.Params {
		if p.Params[i].Key == key {
			return &p.Params[i]
		}
	}

	return nil
}

// GetFirst returns the first value for key, or the empty string.
func (p *QueryParams) GetFirst(key string) string {
	param := p.Get(key)
	if param == nil || len(param.Value) == 0 {
		return ""
	}

	return param.Value[0]
}

// Add appends values under key, creating the param if it does not exist.
func (p *QueryParams) Add(key string, value []string) {
	param := p.Get(key)
	if param == nil {
		p.Params = append(p.Params, QueryParam{key, value})
	} else {
		param.Value = append(param.Value, value...)
	}
}

// File is an uploaded file from a multipart request, keyed by its field name.
type File struct {
	Field  string
	File   multipart.File
	Header *multipart.FileHeader
}

// Request is the immutable, request-scoped view of one inbound Micropub
// request: everything the dispatch machine and the callbacks need, parsed
// once up front.
type Request struct {
	Method string
	Header http.Header
	Query  QueryParams
	Body   map[string]any
	Files  []File
	JSON   bool

	// Raw is the underlying request, available to extension callbacks that
	// need headers or context the parsed view does not carry.
	Raw *http.Request
}

// File returns the first uploaded file under the given field name, or nil.
func (req *Request) File(field string) *File {
	for i := range req.Files {
		if req.Files[i].Field == field {
			return &req.Files[i]
		}
	}

	return nil
}

// BodyString returns the first string value of a body key. List values yield
// their first string element.
func (req *Request) BodyString(key string) (string, bool) {
	return firstString(req.Body[key])
}

// CloseFiles releases all uploaded file handles.
func (req *Request) CloseFiles() {
	for _, f := range req.Files {
		if f.File != nil {
			f.File.Close()
		}
	}
}

func firstString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []any:
		if len(x) > 0 {
			if s, ok := x[0].(string); ok {
				return s, true
			}
		}
	}

	return "", false
}

// parseRequest normalizes an inbound HTTP request. Body parsing is total:
// malformed JSON or forms degrade to an empty body map, letting the missing-key
// checks downstream produce the protocol-correct 400s instead of a crash.
func parseRequest(r *http.Request, limits Limits) *Request {
	req := &Request{
		Method: r.Method,
		Header: r.Header,
		Query:  readQueryParams(r.URL.Query()),
		Body:   make(map[string]any),
		Raw:    r,
	}

	if r.Method != http.MethodPost || r.Body == nil {
		return req
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "application/json":
		req.JSON = true
		r.Body = http.MaxBytesReader(nil, r.Body, limits.MaxPayloadSize)
		if err := json.NewDecoder(r.Body).Decode(&req.Body); err != nil {
			req.Body = make(map[string]any)
		}
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, limits.MaxPayloadSize)
		if err := r.ParseMultipartForm(limits.MaxMultipartMem); err != nil {
			return req
		}
		req.Body = collapseValues(r.MultipartForm.Value)
		req.Files = extractFiles(r.MultipartForm, limits.MaxFileSize)
	default:
		r.Body = http.MaxBytesReader(nil, r.Body, limits.MaxPayloadSize)
		if err := r.ParseForm(); err != nil {
			return req
		}
		req.Body = collapseValues(r.PostForm)
	}

	return req
}

func readQueryParams(values url.Values) QueryParams {
	params := QueryParams{}
	for key, value := range values {
		key = strings.TrimSuffix(key, "[]")
		params.Add(key, value)
	}

	return params
}

// collapseValues flattens url.Values-shaped maps: single values become
// strings, repeated values become []any.
func collapseValues(values map[string][]string) map[string]any {
	out := make(map[string]any)

	for key, arr := range values {
		switch len(arr) {
		case 0:
			continue
		case 1:
			out[key] = arr[0]
		default:
			asAny := make([]any, len(arr))
			for i, v := range arr {
				asAny[i] = v
			}
			out[key] = asAny
		}
	}

	return out
}

func extractFiles(form *multipart.Form, maxFileSize int64) []File {
	var files []File

	for key, fhs := range form.File {
		for _, fh := range fhs {
			if maxFileSize > 0 && fh.Size > maxFileSize {
				continue
			}

			f, err := fh.Open()
			if err != nil {
				continue
			}

			files = append(files, File{Field: key, File: f, Header: fh})
		}
	}

	return files
}
