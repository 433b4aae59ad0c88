package micropub

import (
	"net/http"
	"testing"
)

func TestAccessToken_HeaderBearer(t *testing.T) {
	req := &Request{Header: http.Header{}, Body: map[string]any{}}
	req.Header.Set("Authorization", "Bearer abc123")

	if got := AccessToken(req); got != "abc123" {
		t.Fatalf("expected abc123, got %q", got)
	}
}

func TestAccessToken_SchemeIsCaseInsensitive(t *testing.T) {
	req := &Request{Header: http.Header{}, Body: map[string]any{}}
	req.Header.Set("Authorization", "bearer abc123")

	if got := AccessToken(req); got != "abc123" {
		t.Fatalf("expected abc123, got %q", got)
	}
}

func TestAccessToken_NonBearerIgnored(t *testing.T) {
	req := &Request{Header: http.Header{}, Body: map[string]any{}}
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	if got := AccessToken(req); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestAccessToken_BodyFallback(t *testing.T) {
	req := &Request{Header: http.Header{}, Body: map[string]any{"access_token": "bodytoken"}}

	if got := AccessToken(req); got != "bodytoken" {
		t.Fatalf("expected bodytoken, got %q", got)
	}

	if _, ok := req.Body["access_token"]; ok {
		t.Fatalf("body token must be removed after extraction")
	}
}

func TestAccessToken_HeaderWins_BodyStillPopped(t *testing.T) {
	req := &Request{Header: http.Header{}, Body: map[string]any{"access_token": "bodytoken"}}
	req.Header.Set("Authorization", "Bearer headertoken")

	if got := AccessToken(req); got != "headertoken" {
		t.Fatalf("expected headertoken, got %q", got)
	}

	if _, ok := req.Body["access_token"]; ok {
		t.Fatalf("body token must be removed even when the header wins")
	}
}

func TestAccessToken_BodyListValue(t *testing.T) {
	req := &Request{Header: http.Header{}, Body: map[string]any{"access_token": []any{"first", "second"}}}

	if got := AccessToken(req); got != "first" {
		t.Fatalf("expected first, got %q", got)
	}
}
