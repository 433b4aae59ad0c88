package micropub

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/indieinfra/inkwell/mf2"
)

type stubCallbacks struct {
	BaseCallbacks

	verifyCalled    bool
	lastToken       string
	verifyPrincipal any
	verifyBuilt     *Response

	configResult Result

	sourceCalled   bool
	lastSourceURL  string
	lastProperties []string
	sourceResult   Result

	deleteCalled bool
	lastURL      string
	deleteResult Result

	undeleteResult Result

	updateCalled bool
	lastBody     map[string]any
	updateResult Result

	createCalled bool
	lastDoc      mf2.Document
	lastFiles    []File
	createResult Result

	mediaCalled bool
	mediaResult Result

	extensionResult     Result
	postExtensionResult Result
}

func (s *stubCallbacks) VerifyToken(_ context.Context, token string) (any, *Response) {
	s.verifyCalled = true
	s.lastToken = token
	return s.verifyPrincipal, s.verifyBuilt
}

func (s *stubCallbacks) Extension(ctx context.Context, req *Request) Result {
	if s.extensionResult.IsNone() {
		return s.BaseCallbacks.Extension(ctx, req)
	}
	return s.extensionResult
}

func (s *stubCallbacks) QueryConfig(ctx context.Context, query QueryParams) Result {
	if s.configResult.IsNone() {
		return s.BaseCallbacks.QueryConfig(ctx, query)
	}
	return s.configResult
}

func (s *stubCallbacks) QuerySource(_ context.Context, url string, properties []string) Result {
	s.sourceCalled = true
	s.lastSourceURL = url
	s.lastProperties = properties
	return s.sourceResult
}

func (s *stubCallbacks) Delete(_ context.Context, url string) Result {
	s.deleteCalled = true
	s.lastURL = url
	return s.deleteResult
}

func (s *stubCallbacks) Undelete(_ context.Context, url string) Result {
	s.lastURL = url
	return s.undeleteResult
}

func (s *stubCallbacks) Update(_ context.Context, url string, body map[string]any) Result {
	s.updateCalled = true
	s.lastURL = url
	s.lastBody = body
	return s.updateResult
}

func (s *stubCallbacks) PostExtension(ctx context.Context, req *Request) Result {
	if s.postExtensionResult.IsNone() {
		return s.BaseCallbacks.PostExtension(ctx, req)
	}
	return s.postExtensionResult
}

func (s *stubCallbacks) Create(_ context.Context, doc mf2.Document, files []File) Result {
	s.createCalled = true
	s.lastDoc = doc
	s.lastFiles = files
	return s.createResult
}

func (s *stubCallbacks) Media(_ context.Context, file *File) Result {
	s.mediaCalled = true
	return s.mediaResult
}

func newStub() *stubCallbacks {
	return &stubCallbacks{verifyPrincipal: "https://example.org/"}
}

func serve(cb Callbacks, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	New(cb).Handler().ServeHTTP(rr, req)
	return rr
}

func serveMedia(cb Callbacks, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	New(cb).MediaHandler().ServeHTTP(rr, req)
	return rr
}

func withToken(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer testtoken")
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not a JSON object: %v (%q)", err, rr.Body.String())
	}
	return body
}

func TestHandler_NoToken_Unauthorized(t *testing.T) {
	cb := newStub()
	rr := serve(cb, httptest.NewRequest(http.MethodGet, "/?q=config", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	if cb.verifyCalled {
		t.Fatalf("VerifyToken should not run for a tokenless request")
	}

	body := decodeBody(t, rr)
	if body["error"] != "unauthorized" {
		t.Fatalf("expected unauthorized error body, got %v", body)
	}
}

func TestHandler_InvalidToken_Forbidden(t *testing.T) {
	cb := newStub()
	cb.verifyPrincipal = nil

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=config", nil)))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	body := decodeBody(t, rr)
	if body["error"] != "forbidden" {
		t.Fatalf("expected forbidden error body, got %v", body)
	}
}

func TestHandler_FalseVerdict_Forbidden(t *testing.T) {
	cb := newStub()
	cb.verifyPrincipal = false

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=config", nil)))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for false principal, got %d", rr.Code)
	}
}

func TestHandler_VerifyBuiltResponse_PassesThrough(t *testing.T) {
	cb := newStub()
	cb.verifyBuilt = JSON(http.StatusBadGateway, map[string]string{"error": "server_error"})

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=config", nil)))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected built response status 502, got %d", rr.Code)
	}
}

func TestHandler_BodyToken(t *testing.T) {
	cb := newStub()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("h=entry&name=Hi&access_token=bodytoken"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	serve(cb, req)

	if cb.lastToken != "bodytoken" {
		t.Fatalf("expected body token to be used, got %q", cb.lastToken)
	}

	if _, ok := cb.lastDoc.Properties["access_token"]; ok {
		t.Fatalf("access_token must not leak into the created document")
	}
}

func TestHandler_HeaderTokenWinsOverBody(t *testing.T) {
	cb := newStub()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("h=entry&name=Hi&access_token=bodytoken"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	serve(cb, withToken(req))

	if cb.lastToken != "testtoken" {
		t.Fatalf("expected header token to win, got %q", cb.lastToken)
	}
}

func TestHandler_QueryConfig(t *testing.T) {
	cb := newStub()
	cb.configResult = Data(map[string]any{"media-endpoint": "https://example.org/media"})

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=config", nil)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	body := decodeBody(t, rr)
	if body["media-endpoint"] != "https://example.org/media" {
		t.Fatalf("unexpected config body: %v", body)
	}
}

func TestHandler_QuerySyndicateTo_ProjectsConfig(t *testing.T) {
	cb := newStub()
	cb.configResult = Data(map[string]any{
		"media-endpoint": "https://example.org/media",
		"syndicate-to":   []any{map[string]any{"uid": "https://fed.example", "name": "Fediverse"}},
	})

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=syndicate-to", nil)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	body := decodeBody(t, rr)
	if _, ok := body["syndicate-to"]; !ok {
		t.Fatalf("expected syndicate-to key, got %v", body)
	}
	if _, ok := body["media-endpoint"]; ok {
		t.Fatalf("media-endpoint must not appear in a syndicate-to response")
	}
}

func TestHandler_QuerySyndicateTo_EmptyWithoutTargets(t *testing.T) {
	cb := newStub()
	cb.configResult = Data(map[string]any{"media-endpoint": "https://example.org/media"})

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=syndicate-to", nil)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	if strings.TrimSpace(rr.Body.String()) != "{}" {
		t.Fatalf("expected empty object, got %q", rr.Body.String())
	}
}

func TestHandler_QuerySource_WholePost(t *testing.T) {
	cb := newStub()
	cb.sourceResult = Data(map[string]any{"type": []string{"h-entry"}})

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=source&url=https://example.org/post", nil)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	if cb.lastSourceURL != "https://example.org/post" {
		t.Fatalf("unexpected url: %q", cb.lastSourceURL)
	}

	if cb.lastProperties != nil {
		t.Fatalf("expected nil properties for a whole-post query, got %v", cb.lastProperties)
	}
}

func TestHandler_QuerySource_SingleProperty(t *testing.T) {
	cb := newStub()
	cb.sourceResult = Data(map[string]any{})

	serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=source&url=https://example.org/post&properties=name", nil)))

	if len(cb.lastProperties) != 1 || cb.lastProperties[0] != "name" {
		t.Fatalf("expected [name], got %v", cb.lastProperties)
	}
}

func TestHandler_QuerySource_MultipleProperties(t *testing.T) {
	cb := newStub()
	cb.sourceResult = Data(map[string]any{})

	serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=source&url=https://example.org/post&properties[]=name&properties[]=url", nil)))

	if len(cb.lastProperties) != 2 || cb.lastProperties[0] != "name" || cb.lastProperties[1] != "url" {
		t.Fatalf("expected [name url], got %v", cb.lastProperties)
	}
}

func TestHandler_QuerySource_MissingURL(t *testing.T) {
	cb := newStub()

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=source", nil)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	if cb.sourceCalled {
		t.Fatalf("QuerySource must not be invoked without a url parameter")
	}
}

func TestHandler_QuerySource_NotFound(t *testing.T) {
	cb := newStub()
	cb.sourceResult = None()

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=source&url=https://example.org/missing", nil)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	body := decodeBody(t, rr)
	if body["error_description"] != "post_with_given_url_not_found" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHandler_Delete_NoContent(t *testing.T) {
	cb := newStub()
	cb.deleteResult = OK()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("action=delete&url=https://example.org/post"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	if rr.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rr.Body.String())
	}

	if cb.lastURL != "https://example.org/post" {
		t.Fatalf("unexpected url: %q", cb.lastURL)
	}
}

func TestHandler_Delete_MissingURL(t *testing.T) {
	cb := newStub()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("action=delete"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	if cb.deleteCalled {
		t.Fatalf("Delete must not be invoked without a url parameter")
	}
}

func TestHandler_Delete_InsufficientScope(t *testing.T) {
	cb := newStub()
	cb.deleteResult = Fail(ErrInsufficientScope)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("action=delete&url=https://example.org/post"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	body := decodeBody(t, rr)
	if body["error"] != "insufficient_scope" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHandler_Undelete_NewLocation(t *testing.T) {
	cb := newStub()
	cb.undeleteResult = Location("https://example.org/restored")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("action=undelete&url=https://example.org/post"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	if loc := rr.Header().Get("Location"); loc != "https://example.org/restored" {
		t.Fatalf("unexpected Location header: %q", loc)
	}
}

func TestHandler_Update_PassesBody(t *testing.T) {
	cb := newStub()
	cb.updateResult = OK()

	payload := map[string]any{
		"action":  "update",
		"url":     "https://example.org/post",
		"replace": map[string]any{"content": []any{"Edited"}},
	}
	b, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	if !cb.updateCalled {
		t.Fatalf("expected Update to be invoked")
	}

	if _, ok := cb.lastBody["replace"]; !ok {
		t.Fatalf("expected replace key in update body, got %v", cb.lastBody)
	}
}

func TestHandler_Create_FormNormalization(t *testing.T) {
	cb := newStub()
	cb.createResult = Location("https://example.org/new-post")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("h=entry&content=Hello&category[]=a&category[]=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	if loc := rr.Header().Get("Location"); loc != "https://example.org/new-post" {
		t.Fatalf("unexpected Location header: %q", loc)
	}

	doc := cb.lastDoc
	if len(doc.Type) != 1 || doc.Type[0] != "h-entry" {
		t.Fatalf("unexpected type: %v", doc.Type)
	}

	content := doc.Properties["content"]
	if len(content) != 1 || content[0] != "Hello" {
		t.Fatalf("unexpected content: %v", content)
	}

	category := doc.Properties["category"]
	if len(category) != 2 || category[0] != "a" || category[1] != "b" {
		t.Fatalf("unexpected category: %v", category)
	}
}

func TestHandler_Create_JSONDocument(t *testing.T) {
	cb := newStub()
	cb.createResult = Location("https://example.org/new-post")

	payload := map[string]any{
		"type":       []any{"h-entry"},
		"properties": map[string]any{"name": []any{"Hello World"}},
	}
	b, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	if name, _ := cb.lastDoc.FirstString("name"); name != "Hello World" {
		t.Fatalf("unexpected name: %q", name)
	}
}

func TestHandler_Create_ScopeErrorString(t *testing.T) {
	cb := newStub()
	cb.createResult = Location("insufficient_scope")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("h=entry&name=Hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for error-code location, got %d", rr.Code)
	}

	body := decodeBody(t, rr)
	if body["error"] != "insufficient_scope" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHandler_UnknownAction(t *testing.T) {
	cb := newStub()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("action=bogus&url=https://example.org/post"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", rr.Code)
	}

	if cb.createCalled {
		t.Fatalf("Create must not run for an unknown action")
	}
}

func TestHandler_UnknownAction_ClaimedByExtension(t *testing.T) {
	cb := newStub()
	cb.postExtensionResult = Respond(JSON(http.StatusAccepted, map[string]string{"status": "queued"}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("action=annotate&url=https://example.org/post"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected extension response, got %d", rr.Code)
	}
}

func TestHandler_Extension_ShortCircuits(t *testing.T) {
	cb := newStub()
	cb.extensionResult = Respond(JSON(http.StatusTeapot, map[string]string{"note": "intercepted"}))

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodGet, "/?q=source&url=https://example.org/post", nil)))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected extension response, got %d", rr.Code)
	}

	if cb.sourceCalled {
		t.Fatalf("QuerySource must not run when the extension claims the request")
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	cb := newStub()

	rr := serve(cb, withToken(httptest.NewRequest(http.MethodPut, "/", nil)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for PUT, got %d", rr.Code)
	}
}

func multipartUpload(t *testing.T, field, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to build multipart body: %v", err)
	}
	if _, err := fw.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("failed to write file part: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestMediaHandler_Upload(t *testing.T) {
	cb := newStub()
	cb.mediaResult = Location("https://media.example.org/cat.jpg")

	body, contentType := multipartUpload(t, "file", "cat.jpg")
	req := httptest.NewRequest(http.MethodPost, "/media", body)
	req.Header.Set("Content-Type", contentType)
	rr := serveMedia(cb, withToken(req))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	if loc := rr.Header().Get("Location"); loc != "https://media.example.org/cat.jpg" {
		t.Fatalf("unexpected Location header: %q", loc)
	}
}

func TestMediaHandler_MissingFile(t *testing.T) {
	cb := newStub()

	body, contentType := multipartUpload(t, "photo", "cat.jpg")
	req := httptest.NewRequest(http.MethodPost, "/media", body)
	req.Header.Set("Content-Type", contentType)
	rr := serveMedia(cb, withToken(req))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	if cb.mediaCalled {
		t.Fatalf("Media must not run without a file field")
	}
}

func TestMediaHandler_NoToken(t *testing.T) {
	cb := newStub()

	body, contentType := multipartUpload(t, "file", "cat.jpg")
	req := httptest.NewRequest(http.MethodPost, "/media", body)
	req.Header.Set("Content-Type", contentType)
	rr := serveMedia(cb, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHandler_CreateWithAttachedFiles(t *testing.T) {
	cb := newStub()
	cb.createResult = Location("https://example.org/new-post")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("h", "entry")
	mw.WriteField("name", "With photo")
	fw, _ := mw.CreateFormFile("photo", "pic.jpg")
	fw.Write([]byte("jpeg bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := serve(cb, withToken(req))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	if len(cb.lastFiles) != 1 || cb.lastFiles[0].Field != "photo" {
		t.Fatalf("expected one photo upload, got %v", cb.lastFiles)
	}
}
