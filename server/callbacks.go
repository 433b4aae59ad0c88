package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/indieinfra/inkwell/config"
	"github.com/indieinfra/inkwell/mf2"
	"github.com/indieinfra/inkwell/micropub"
	"github.com/indieinfra/inkwell/store/content"
	"github.com/indieinfra/inkwell/store/media"
)

// storeCallbacks wires the protocol adapter to the configured content and
// media stores, with IndieAuth token verification and per-operation scope
// checks.
type storeCallbacks struct {
	micropub.BaseCallbacks
	cfg     *config.Config
	content content.Store
	media   media.Store
}

func newStoreCallbacks(cfg *config.Config, contentStore content.Store, mediaStore media.Store) *storeCallbacks {
	return &storeCallbacks{cfg: cfg, content: contentStore, media: mediaStore}
}

func (sc *storeCallbacks) VerifyToken(ctx context.Context, token string) (any, *micropub.Response) {
	details, err := verifyAccessToken(sc.cfg, token)
	if err != nil {
		log.Printf("error: token verification failed: %v", err)
		return nil, micropub.JSON(http.StatusBadGateway, map[string]string{
			"error":             "server_error",
			"error_description": "could not reach the token endpoint",
		})
	}

	if details == nil {
		return nil, nil
	}

	return details, nil
}

func tokenFromContext(ctx context.Context) *TokenDetails {
	details, _ := micropub.Principal(ctx).(*TokenDetails)
	return details
}

func hasScope(ctx context.Context, scope Scope) bool {
	details := tokenFromContext(ctx)
	return details != nil && details.HasScope(scope)
}

func (sc *storeCallbacks) QueryConfig(ctx context.Context, query micropub.QueryParams) micropub.Result {
	syndicateTo := sc.cfg.Micropub.SyndicateTo
	if syndicateTo == nil {
		syndicateTo = []config.SyndicationTarget{}
	}

	return micropub.Data(map[string]any{
		"media-endpoint": sc.cfg.Server.PublicUrl + "/media",
		"syndicate-to":   syndicateTo,
	})
}

func (sc *storeCallbacks) QuerySource(ctx context.Context, url string, properties []string) micropub.Result {
	doc, err := sc.content.Get(ctx, url)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return micropub.None()
		}
		return internalError(err)
	}

	if len(properties) == 0 {
		return micropub.Data(doc)
	}

	filtered := mf2.Properties{}
	for _, name := range properties {
		if values, ok := doc.Properties[name]; ok {
			filtered[name] = values
		}
	}

	return micropub.Data(map[string]any{"properties": filtered})
}

func (sc *storeCallbacks) Delete(ctx context.Context, url string) micropub.Result {
	if !hasScope(ctx, ScopeDelete) {
		return micropub.Fail(micropub.ErrInsufficientScope)
	}

	if err := sc.content.Delete(ctx, url); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return notFoundError(url)
		}
		return internalError(err)
	}

	return micropub.OK()
}

func (sc *storeCallbacks) Undelete(ctx context.Context, url string) micropub.Result {
	if !hasScope(ctx, ScopeUndelete) {
		return micropub.Fail(micropub.ErrInsufficientScope)
	}

	newURL, moved, err := sc.content.Undelete(ctx, url)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return notFoundError(url)
		}
		return internalError(err)
	}

	if moved || newURL != url {
		return micropub.Location(newURL)
	}

	return micropub.OK()
}

func (sc *storeCallbacks) Update(ctx context.Context, url string, body map[string]any) micropub.Result {
	if !hasScope(ctx, ScopeUpdate) {
		return micropub.Fail(micropub.ErrInsufficientScope)
	}

	replacements, err := getMapOfStringToSlice(body, "replace")
	if err != nil {
		return invalidRequest(err.Error())
	}

	additions, err := getMapOfStringToSlice(body, "add")
	if err != nil {
		return invalidRequest(err.Error())
	}

	deletions, err := getDeletions(body)
	if err != nil {
		return invalidRequest(err.Error())
	}

	newURL, err := sc.content.Update(ctx, url, replacements, additions, deletions)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return notFoundError(url)
		}
		return internalError(err)
	}

	if newURL != url {
		return micropub.Location(newURL)
	}

	return micropub.OK()
}

func (sc *storeCallbacks) Create(ctx context.Context, doc mf2.Document, files []micropub.File) micropub.Result {
	if !hasScope(ctx, ScopeCreate) {
		return micropub.Fail(micropub.ErrInsufficientScope)
	}

	if err := mf2.Validate(doc); err != nil {
		return invalidRequest(err.Error())
	}

	if _, ok := doc.FirstString("slug"); !ok {
		slug := mf2.GenerateSlug(doc)
		if slug == "" {
			slug = uuid.NewString()
		}
		doc.Properties["slug"] = []any{slug}
	}

	for i := range files {
		f := &files[i]
		url, err := sc.media.Upload(ctx, f.File, f.Header)
		if err != nil {
			return internalError(fmt.Errorf("failed to store %q upload: %w", f.Field, err))
		}

		doc.Properties[f.Field] = append(doc.Properties[f.Field], url)
	}

	url, err := sc.content.Create(ctx, doc)
	if err != nil {
		return internalError(err)
	}

	return micropub.Location(url)
}

func (sc *storeCallbacks) Media(ctx context.Context, file *micropub.File) micropub.Result {
	if !hasScope(ctx, ScopeMedia) {
		return micropub.Fail(micropub.ErrInsufficientScope)
	}

	url, err := sc.media.Upload(ctx, file.File, file.Header)
	if err != nil {
		return internalError(err)
	}

	return micropub.Location(url)
}

func invalidRequest(description string) micropub.Result {
	return micropub.Data(map[string]any{
		"error":             string(micropub.ErrInvalidRequest),
		"error_description": description,
	})
}

func notFoundError(url string) micropub.Result {
	return invalidRequest(fmt.Sprintf("no post exists at %q", url))
}

func internalError(err error) micropub.Result {
	log.Printf("error: %v", err)
	return micropub.Respond(micropub.JSON(http.StatusInternalServerError, map[string]string{
		"error":             "server_error",
		"error_description": "an internal error occurred while processing the request",
	}))
}

func getMapOfStringToSlice(data map[string]any, key string) (map[string][]any, error) {
	out := map[string][]any{}
	raw, ok := data[key]
	if !ok {
		return out, nil
	}

	tmp, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%q must be an object mapping property to array of values", key)
	}

	for k, v := range tmp {
		switch arr := v.(type) {
		case []any:
			out[k] = arr
		case string:
			out[k] = []any{arr}
		default:
			return nil, fmt.Errorf("%q.%q must be an array or string", key, k)
		}
	}

	return out, nil
}

func getDeletions(data map[string]any) (any, error) {
	raw, ok := data["delete"]
	if !ok {
		return nil, nil
	}

	// Could be []any (remove properties) or map (remove specific values).
	switch v := raw.(type) {
	case []any:
		return v, nil
	case map[string]any:
		out := map[string][]any{}
		for k, val := range v {
			switch arr := val.(type) {
			case []any:
				out[k] = arr
			case string:
				out[k] = []any{arr}
			default:
				return nil, fmt.Errorf("delete.%q must be string or array", k)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("delete must be array or object")
	}
}
