package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staticTokens string

func (s staticTokens) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:        srv.URL,
		RefreshToken:   "refresh-123",
		RequestTimeout: 5 * time.Second,
	})
	c.SetTokenSource(staticTokens("tok-abc"))
	return c
}

func TestRefreshAccessToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/sessions" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if body["refreshToken"] != "refresh-123" {
			t.Errorf("refreshToken = %q", body["refreshToken"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "tok-new",
			"expiresIn":   3600,
			"mqtt": map[string]string{
				"endpoint": "ssl://broker:8883",
				"username": "u",
				"password": "p",
			},
		})
	})

	grant, err := c.RefreshAccessToken(context.Background())
	if err != nil {
		t.Fatalf("RefreshAccessToken() error = %v", err)
	}
	if grant.AccessToken != "tok-new" {
		t.Errorf("AccessToken = %q", grant.AccessToken)
	}
	if grant.Endpoint != "ssl://broker:8883" {
		t.Errorf("Endpoint = %q", grant.Endpoint)
	}
	if grant.ExpiresAt.IsZero() {
		t.Error("ExpiresAt should be derived from expiresIn")
	}
}

func TestRefreshAccessToken_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad refresh token", http.StatusUnauthorized)
	})

	_, err := c.RefreshAccessToken(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Errorf("RefreshAccessToken() error = %v, want ErrAuth", err)
	}
}

func TestSetPlayerState(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.SetPlayerState(context.Background(), "fam-1", "box-7",
		map[string]any{"playback": "paused"})
	if err != nil {
		t.Fatalf("SetPlayerState() error = %v", err)
	}

	if gotAuth != "Bearer tok-abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/v2/families/fam-1/players/box-7/state" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["playback"] != "paused" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestSetPlayerState_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such player", http.StatusNotFound)
	})

	err := c.SetPlayerState(context.Background(), "fam-1", "missing", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SetPlayerState() error = %v, want ErrNotFound", err)
	}
}

func TestSetPlayerState_Unavailable(t *testing.T) {
	c := NewClient(Config{
		BaseURL:        "http://127.0.0.1:1", // nothing listens here
		RefreshToken:   "r",
		RequestTimeout: 500 * time.Millisecond,
	})
	c.SetTokenSource(staticTokens("tok"))

	err := c.SetPlayerState(context.Background(), "fam-1", "box-1", nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("SetPlayerState() error = %v, want ErrUnavailable", err)
	}
}
