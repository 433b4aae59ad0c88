package micropub

import (
	"context"

	"github.com/indieinfra/inkwell/mf2"
)

// Callbacks is the collaborator surface of the adapter. An integration
// implements the subset it supports and embeds BaseCallbacks for the rest.
//
// VerifyToken is the one required method: BaseCallbacks deliberately does not
// provide it, so a type embedding BaseCallbacks only satisfies Callbacks once
// it supplies its own token verification.
type Callbacks interface {
	// VerifyToken authenticates a bearer token. It returns the authenticated
	// principal (an opaque value the adapter never inspects, retrievable in
	// later callbacks via Principal), or a built response to short-circuit
	// the request entirely. A nil principal with a nil response means the
	// token is invalid and the request is answered with 403 forbidden.
	VerifyToken(ctx context.Context, token string) (principal any, built *Response)

	// Extension runs after authentication and before any routing, for both
	// GET and POST. A non-None result short-circuits normal processing.
	Extension(ctx context.Context, req *Request) Result

	// QueryConfig serves q=config and feeds q=syndicate-to.
	QueryConfig(ctx context.Context, query QueryParams) Result

	// QuerySource serves q=source. properties is nil when the client asked
	// for the whole post. None means no post exists at the URL.
	QuerySource(ctx context.Context, url string, properties []string) Result

	// QueryUnknown serves GET requests whose q value is absent or
	// unrecognized.
	QueryUnknown(ctx context.Context, req *Request) Result

	// Delete handles action=delete. OK yields 204.
	Delete(ctx context.Context, url string) Result

	// Undelete handles action=undelete. OK yields 204; Location yields 201
	// with a Location header when undeletion moved the post.
	Undelete(ctx context.Context, url string) Result

	// Update handles action=update with the full parsed body. OK yields 204;
	// Location yields 201 when the update moved the post.
	Update(ctx context.Context, url string, body map[string]any) Result

	// PostExtension is offered every POST that carries no recognized action,
	// before the create path runs. It is also offered unrecognized action
	// values; if it declines those, the adapter answers 400 invalid_request
	// rather than falling through to create.
	PostExtension(ctx context.Context, req *Request) Result

	// Create handles post creation with the canonical document and any
	// uploaded files. Location yields 201 with a Location header.
	Create(ctx context.Context, doc mf2.Document, files []File) Result

	// Media handles a media-endpoint upload. Location yields 201; None falls
	// through to the adapter's 400.
	Media(ctx context.Context, file *File) Result

	// MediaExtension is the media endpoint's counterpart of Extension.
	MediaExtension(ctx context.Context, req *Request) Result
}

// BaseCallbacks supplies the fixed default behavior for every optional
// callback: extension hooks decline, queries and actions answer with an
// invalid_request "not implemented" error, and the config query returns an
// empty object.
type BaseCallbacks struct{}

// NotImplemented is the default result for callbacks an integration chose not
// to support.
func NotImplemented(op string) Result {
	return Data(map[string]any{
		"error":             string(ErrInvalidRequest),
		"error_description": op + " is not supported by this server",
	})
}

func (BaseCallbacks) Extension(context.Context, *Request) Result {
	return None()
}

func (BaseCallbacks) QueryConfig(context.Context, QueryParams) Result {
	return Data(map[string]any{})
}

func (BaseCallbacks) QuerySource(context.Context, string, []string) Result {
	return NotImplemented("the source query")
}

func (BaseCallbacks) QueryUnknown(context.Context, *Request) Result {
	return NotImplemented("this query")
}

func (BaseCallbacks) Delete(context.Context, string) Result {
	return NotImplemented("delete")
}

func (BaseCallbacks) Undelete(context.Context, string) Result {
	return NotImplemented("undelete")
}

func (BaseCallbacks) Update(context.Context, string, map[string]any) Result {
	return NotImplemented("update")
}

func (BaseCallbacks) PostExtension(context.Context, *Request) Result {
	return None()
}

func (BaseCallbacks) Create(context.Context, mf2.Document, []File) Result {
	return NotImplemented("create")
}

func (BaseCallbacks) Media(context.Context, *File) Result {
	return None()
}

func (BaseCallbacks) MediaExtension(context.Context, *Request) Result {
	return None()
}
