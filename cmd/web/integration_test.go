package main

// Integration tests spin up the full HTTP server with an in-memory database
// and exercise a typical client flow: sign up, build a playlist, stream a
// track and report the play. These tests use httptest to avoid network
// dependencies.

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"K-Tunes/pkg/cache"
	"K-Tunes/pkg/db"
	"K-Tunes/pkg/handlers"
	"K-Tunes/pkg/track"
)

// session carries the cookies issued at signup plus the CSRF token value.
type session struct {
	cookies []*http.Cookie
	csrf    string
}

// do sends a request with the session attached and returns the response.
func (s *session) do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
	} else {
		req, err = http.NewRequest(method, url, nil)
	}
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	if s.csrf != "" && method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", s.csrf)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// TestIntegrationPlaybackFlow exercises signup, playlist building, streaming
// and play reporting end-to-end with a real database.
func TestIntegrationPlaybackFlow(t *testing.T) {
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	app := &handlers.Application{DB: database, SignKey: []byte("integration-key"), Tracks: cache.New(time.Minute)}
	srv := httptest.NewServer(routes(app))
	defer srv.Close()

	// First account becomes the admin.
	resp, err := http.Post(srv.URL+"/api/signup", "application/json",
		strings.NewReader(`{"username":"admin","password":"correct horse"}`))
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup failed: %v %d", err, resp.StatusCode)
	}
	admin := &session{cookies: resp.Cookies()}
	for _, c := range admin.cookies {
		if c.Name == "csrf_token" {
			admin.csrf = c.Value
		}
	}
	resp.Body.Close()

	// Admin adds two tracks to the catalog.
	for _, body := range []string{
		`{"id":"t1","title":"One","artist":"A","url":"http://cdn/1.mp3"}`,
		`{"id":"t2","title":"Two","artist":"B","url":"http://cdn/2.mp3"}`,
	} {
		resp = admin.do(t, http.MethodPost, srv.URL+"/api/tracks", body)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create track status %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	// Build a playlist and check its ordering survives the round trip.
	resp = admin.do(t, http.MethodPost, srv.URL+"/api/playlists", `{"name":"Mix"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create playlist status %d", resp.StatusCode)
	}
	var p db.Playlist
	json.NewDecoder(resp.Body).Decode(&p)
	resp.Body.Close()

	for _, id := range []string{"t1", "t2"} {
		resp = admin.do(t, http.MethodPost, srv.URL+"/api/playlists/"+p.ID+"/tracks", `{"track_id":"`+id+`"}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add to playlist status %d", resp.StatusCode)
		}
		resp.Body.Close()
	}
	resp = admin.do(t, http.MethodGet, srv.URL+"/api/playlists/"+p.ID+"/tracks", "")
	var ts []track.Track
	json.NewDecoder(resp.Body).Decode(&ts)
	resp.Body.Close()
	if len(ts) != 2 || ts[0].ID != "t1" {
		t.Fatalf("unexpected playlist tracks: %+v", ts)
	}

	// Streaming redirects to the audio resource.
	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err = client.Get(srv.URL + "/api/tracks/t1/stream")
	if err != nil || resp.StatusCode != http.StatusFound {
		t.Fatalf("stream status %v %d", err, resp.StatusCode)
	}
	resp.Body.Close()

	// An anonymous client reports the play; it lands in the database.
	resp, err = http.Post(srv.URL+"/api/plays", "application/json",
		strings.NewReader(`{"track_id":"t1","user_id":"anonymous"}`))
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("report play status %v %d", err, resp.StatusCode)
	}
	resp.Body.Close()

	n, err := database.PlayCount(context.Background(), "t1")
	if err != nil || n != 1 {
		t.Fatalf("play not stored: %v %d", err, n)
	}
}
