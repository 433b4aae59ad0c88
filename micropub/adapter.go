package micropub

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/indieinfra/inkwell/mf2"
)

// Limits bound how much of a request body the adapter is willing to parse.
type Limits struct {
	MaxPayloadSize  int64
	MaxMultipartMem int64
	MaxFileSize     int64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPayloadSize:  5 << 20,
		MaxMultipartMem: 32 << 20,
		MaxFileSize:     50 << 20,
	}
}

// Adapter implements the server side of the Micropub protocol on top of a
// caller-supplied Callbacks set. It owns authentication plumbing, request
// classification, dispatch, and result-to-response translation; it stores
// nothing and holds no per-request state, so a single Adapter is safe for
// concurrent use.
type Adapter struct {
	cb     Callbacks
	log    Logger
	limits Limits
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger substitutes the adapter's logger.
func WithLogger(l Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// WithLimits substitutes the adapter's body-size limits.
func WithLimits(l Limits) Option {
	return func(a *Adapter) { a.limits = l }
}

// New creates an Adapter around the given callback set.
func New(cb Callbacks, opts ...Option) *Adapter {
	a := &Adapter{
		cb:     cb,
		log:    log.Default(),
		limits: DefaultLimits(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

type principalKeyType struct{}

var principalKey = principalKeyType{}

// Principal returns the authenticated principal stored by VerifyToken for the
// current request, or nil.
func Principal(ctx context.Context) any {
	return ctx.Value(principalKey)
}

// WithPrincipal returns a context carrying the given principal, as the
// adapter does after verification. Integrations use it to invoke callbacks
// outside a live request, tests included.
func WithPrincipal(ctx context.Context, principal any) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// Handler returns the primary Micropub endpoint: GET queries and POST actions.
func (a *Adapter) Handler() http.Handler {
	return http.HandlerFunc(a.handleMicropub)
}

// MediaHandler returns the companion media endpoint: POST multipart uploads
// under the field name "file".
func (a *Adapter) MediaHandler() http.Handler {
	return http.HandlerFunc(a.handleMedia)
}

// authenticate runs the shared token-extraction and verification steps. It
// returns a callback-ready context on success, or nil after writing the
// response itself.
func (a *Adapter) authenticate(w http.ResponseWriter, r *http.Request, req *Request) context.Context {
	token := AccessToken(req)
	if token == "" {
		errorResponse(ErrUnauthorized, "").Write(w)
		return nil
	}

	principal, built := a.cb.VerifyToken(r.Context(), token)
	if built != nil {
		built.Write(w)
		return nil
	}

	if isFalsy(principal) {
		errorResponse(ErrForbidden, "").Write(w)
		return nil
	}

	ctx := WithPrincipal(r.Context(), principal)
	return ContextWithLogger(ctx, newRequestLogger(a.log, req))
}

func (a *Adapter) handleMicropub(w http.ResponseWriter, r *http.Request) {
	req := parseRequest(r, a.limits)
	defer req.CloseFiles()

	ctx := a.authenticate(w, r, req)
	if ctx == nil {
		return
	}

	if res := a.cb.Extension(ctx, req); !res.IsNone() {
		ToResponse(res, http.StatusOK).Write(w)
		return
	}

	switch req.Method {
	case http.MethodGet:
		a.handleGet(ctx, w, req)
	case http.MethodPost:
		a.handlePost(ctx, w, req)
	default:
		ToResponse(Fail(ErrInvalidRequest), http.StatusBadRequest).Write(w)
	}
}

func (a *Adapter) handleGet(ctx context.Context, w http.ResponseWriter, req *Request) {
	switch q := req.Query.GetFirst("q"); q {
	case "config":
		ToResponse(a.cb.QueryConfig(ctx, req.Query), http.StatusOK).Write(w)
	case "source":
		a.handleSource(ctx, w, req)
	case "syndicate-to":
		a.handleSyndicateTo(ctx, w, req)
	default:
		ToResponse(a.cb.QueryUnknown(ctx, req), http.StatusOK).Write(w)
	}
}

func (a *Adapter) handleSource(ctx context.Context, w http.ResponseWriter, req *Request) {
	// properties[] and properties collapse into one ordered list at parse
	// time; nil means the client wants the whole post.
	var properties []string
	if p := req.Query.Get("properties"); p != nil {
		properties = p.Value
	}

	url := req.Query.GetFirst("url")
	if url == "" {
		errorResponse(ErrInvalidRequest, "missing_url_parameter").Write(w)
		return
	}

	res := a.cb.QuerySource(ctx, url, properties)
	if res.IsNone() {
		res = Data(map[string]any{
			"error":             string(ErrInvalidRequest),
			"error_description": "post_with_given_url_not_found",
		})
	}

	ToResponse(res, http.StatusOK).Write(w)
}

// handleSyndicateTo answers q=syndicate-to from the same callback as q=config,
// projecting out the syndicate-to key.
func (a *Adapter) handleSyndicateTo(ctx context.Context, w http.ResponseWriter, req *Request) {
	res := a.cb.QueryConfig(ctx, req.Query)
	if res.kind == kindResponse {
		res.resp.Write(w)
		return
	}

	if m, ok := res.data.(map[string]any); ok {
		if targets, ok := m["syndicate-to"]; ok {
			JSON(http.StatusOK, map[string]any{"syndicate-to": targets}).Write(w)
			return
		}
	}

	JSON(http.StatusOK, map[string]any{}).Write(w)
}

func (a *Adapter) handlePost(ctx context.Context, w http.ResponseWriter, req *Request) {
	action, _ := req.BodyString("action")

	switch action {
	case "delete":
		url, ok := a.requireURL(w, req)
		if !ok {
			return
		}
		a.writeActionResult(w, a.cb.Delete(ctx, url))
	case "undelete":
		url, ok := a.requireURL(w, req)
		if !ok {
			return
		}
		a.writeActionResult(w, a.cb.Undelete(ctx, url))
	case "update":
		url, ok := a.requireURL(w, req)
		if !ok {
			return
		}
		a.writeActionResult(w, a.cb.Update(ctx, url, req.Body))
	case "":
		if res := a.cb.PostExtension(ctx, req); !res.IsNone() {
			ToResponse(res, http.StatusOK).Write(w)
			return
		}
		a.handleCreate(ctx, w, req)
	default:
		// Unrecognized actions are invalid unless an extension claims them.
		if res := a.cb.PostExtension(ctx, req); !res.IsNone() {
			ToResponse(res, http.StatusOK).Write(w)
			return
		}
		errorResponse(ErrInvalidRequest, fmt.Sprintf("unknown action %q", action)).Write(w)
	}
}

func (a *Adapter) handleCreate(ctx context.Context, w http.ResponseWriter, req *Request) {
	var doc mf2.Document
	if req.JSON {
		doc = mf2.FromMap(req.Body)
	} else {
		doc = NormalizeForm(req.Body)
	}

	res := a.cb.Create(ctx, doc, req.Files)
	if loc, ok := res.LocationURL(); ok && !ErrorCode(loc).Known() {
		writeCreated(w, loc)
		return
	}

	ToResponse(res, http.StatusOK).Write(w)
}

func (a *Adapter) handleMedia(w http.ResponseWriter, r *http.Request) {
	req := parseRequest(r, a.limits)
	defer req.CloseFiles()

	ctx := a.authenticate(w, r, req)
	if ctx == nil {
		return
	}

	if res := a.cb.MediaExtension(ctx, req); !res.IsNone() {
		ToResponse(res, http.StatusOK).Write(w)
		return
	}

	if req.Method != http.MethodPost {
		ToResponse(Fail(ErrInvalidRequest), http.StatusBadRequest).Write(w)
		return
	}

	if file := req.File("file"); file != nil {
		res := a.cb.Media(ctx, file)
		if loc, ok := res.LocationURL(); ok && !ErrorCode(loc).Known() {
			writeCreated(w, loc)
			return
		}

		if !res.IsNone() {
			ToResponse(res, http.StatusOK).Write(w)
			return
		}
	}

	errorResponse(ErrInvalidRequest, "a file upload under the field name \"file\" is required").Write(w)
}

// requireURL enforces the url body parameter shared by every POST action,
// answering 400 before the action callback is ever invoked.
func (a *Adapter) requireURL(w http.ResponseWriter, req *Request) (string, bool) {
	url, ok := req.BodyString("url")
	if !ok || url == "" {
		errorResponse(ErrInvalidRequest, "missing_url_parameter").Write(w)
		return "", false
	}

	return url, true
}

// writeActionResult maps action-callback results onto the wire: OK means 204,
// a non-error-code location string means 201 + Location, everything else goes
// through translation.
func (a *Adapter) writeActionResult(w http.ResponseWriter, res Result) {
	if res.IsOK() {
		NewResponse(http.StatusNoContent).Write(w)
		return
	}

	if loc, ok := res.LocationURL(); ok && !ErrorCode(loc).Known() {
		writeCreated(w, loc)
		return
	}

	ToResponse(res, http.StatusOK).Write(w)
}

func writeCreated(w http.ResponseWriter, location string) {
	resp := NewResponse(http.StatusCreated)
	resp.Header.Set("Location", location)
	resp.Write(w)
}

func isFalsy(principal any) bool {
	switch v := principal.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	default:
		return false
	}
}
