package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"K-Tunes/pkg/cache"
	"K-Tunes/pkg/db"
	"K-Tunes/pkg/handlers"
	"K-Tunes/pkg/track"
)

// newTestApp returns an Application backed by an in-memory database.
func newTestApp(t *testing.T) *handlers.Application {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return &handlers.Application{
		DB:      d,
		SignKey: []byte("test-signing-key"),
		Tracks:  cache.New(time.Minute),
	}
}

// signup creates an account through the API and returns the cookies needed
// for authenticated requests. The first signup per database is the admin.
func signup(t *testing.T, app *handlers.Application, username string) []*http.Cookie {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":"correct horse"}`, username)
	req := httptest.NewRequest(http.MethodPost, "/api/signup", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	app.Signup(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup status %d: %s", rr.Code, rr.Body.String())
	}
	return rr.Result().Cookies()
}

// authedRequest builds a request carrying the session cookies and, for
// mutating methods, the CSRF header.
func authedRequest(method, target string, body string, cookies []*http.Cookie) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
		if c.Name == "csrf_token" {
			req.Header.Set("X-CSRF-Token", c.Value)
		}
	}
	return req
}

func seedTrack(t *testing.T, app *handlers.Application, id, title string) {
	t.Helper()
	_, err := app.DB.CreateTrack(context.Background(), track.Track{ID: id, Title: title, Artist: "Artist", URL: "http://cdn/" + id + ".mp3"})
	if err != nil {
		t.Fatal(err)
	}
}

func TestHomeHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	app := &handlers.Application{}
	app.Home(rr, req)
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["service"] != "k-tunes" {
		t.Errorf("unexpected body: %v", body)
	}
}

// TestSignupAndLogin exercises account creation, duplicate rejection and the
// password check.
func TestSignupAndLogin(t *testing.T) {
	app := newTestApp(t)
	signup(t, app, "alice")

	// Duplicate username is rejected.
	req := httptest.NewRequest(http.MethodPost, "/api/signup", bytes.NewBufferString(`{"username":"alice","password":"correct horse"}`))
	rr := httptest.NewRecorder()
	app.Signup(rr, req)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate signup status %d", rr.Code)
	}

	// Correct password logs in.
	req = httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString(`{"username":"alice","password":"correct horse"}`))
	rr = httptest.NewRecorder()
	app.Login(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("login status %d: %s", rr.Code, rr.Body.String())
	}

	// Wrong password is a 401.
	req = httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString(`{"username":"alice","password":"wrong"}`))
	rr = httptest.NewRecorder()
	app.Login(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad password status %d", rr.Code)
	}
}

// TestTracksListAndCache verifies the catalog listing and that the cache is
// invalidated when an admin mutates the catalog.
func TestTracksListAndCache(t *testing.T) {
	app := newTestApp(t)
	admin := signup(t, app, "admin")
	seedTrack(t, app, "t1", "First")

	rr := httptest.NewRecorder()
	app.TracksJSON(rr, httptest.NewRequest(http.MethodGet, "/api/tracks", nil))
	var ts []track.Track
	if err := json.Unmarshal(rr.Body.Bytes(), &ts); err != nil {
		t.Fatal(err)
	}
	if len(ts) != 1 || ts[0].ID != "t1" {
		t.Fatalf("unexpected tracks: %+v", ts)
	}

	// Create a second track through the admin endpoint; the cached listing
	// must not be served afterwards.
	body := `{"id":"t2","title":"Second","artist":"Artist","url":"http://cdn/t2.mp3"}`
	rr = httptest.NewRecorder()
	app.CreateTrack(rr, authedRequest(http.MethodPost, "/api/tracks", body, admin))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create track status %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	app.TracksJSON(rr, httptest.NewRequest(http.MethodGet, "/api/tracks", nil))
	ts = nil
	json.Unmarshal(rr.Body.Bytes(), &ts)
	if len(ts) != 2 {
		t.Fatalf("expected 2 tracks after create, got %d", len(ts))
	}
}

// TestCreateTrackRequiresAdmin verifies non-admin accounts cannot mutate the
// catalog.
func TestCreateTrackRequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	signup(t, app, "admin")
	user := signup(t, app, "bob")

	body := `{"title":"X","artist":"Y","url":"http://cdn/x.mp3"}`
	rr := httptest.NewRecorder()
	app.CreateTrack(rr, authedRequest(http.MethodPost, "/api/tracks", body, user))
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	app.CreateTrack(rr, httptest.NewRequest(http.MethodPost, "/api/tracks", bytes.NewBufferString(body)))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 got %d", rr.Code)
	}
}

// TestStreamRedirect verifies the stream endpoint redirects to the track URL.
func TestStreamRedirect(t *testing.T) {
	app := newTestApp(t)
	seedTrack(t, app, "t1", "First")

	rr := httptest.NewRecorder()
	app.TrackByID(rr, httptest.NewRequest(http.MethodGet, "/api/tracks/t1/stream", nil))
	if rr.Code != http.StatusFound {
		t.Fatalf("status %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "http://cdn/t1.mp3" {
		t.Errorf("redirect to %s", loc)
	}

	rr = httptest.NewRecorder()
	app.TrackByID(rr, httptest.NewRequest(http.MethodGet, "/api/tracks/missing/stream", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing track status %d", rr.Code)
	}
}

// TestPlaylistFlow exercises creation, membership, reorder and ownership.
func TestPlaylistFlow(t *testing.T) {
	app := newTestApp(t)
	alice := signup(t, app, "alice")
	bob := signup(t, app, "bob")
	for i := 1; i <= 3; i++ {
		seedTrack(t, app, fmt.Sprintf("t%d", i), fmt.Sprintf("Song %d", i))
	}

	rr := httptest.NewRecorder()
	app.Playlists(rr, authedRequest(http.MethodPost, "/api/playlists", `{"name":"Mix"}`, alice))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create playlist status %d: %s", rr.Code, rr.Body.String())
	}
	var p db.Playlist
	json.Unmarshal(rr.Body.Bytes(), &p)

	for _, id := range []string{"t1", "t2", "t3"} {
		rr = httptest.NewRecorder()
		app.PlaylistByID(rr, authedRequest(http.MethodPost, "/api/playlists/"+p.ID+"/tracks", fmt.Sprintf(`{"track_id":%q}`, id), alice))
		if rr.Code != http.StatusCreated {
			t.Fatalf("add track status %d", rr.Code)
		}
	}

	rr = httptest.NewRecorder()
	app.PlaylistByID(rr, authedRequest(http.MethodPost, "/api/playlists/"+p.ID+"/reorder", `{"from":0,"to":2}`, alice))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("reorder status %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	app.PlaylistByID(rr, authedRequest(http.MethodGet, "/api/playlists/"+p.ID+"/tracks", "", alice))
	var ts []track.Track
	json.Unmarshal(rr.Body.Bytes(), &ts)
	if len(ts) != 3 || ts[0].ID != "t2" || ts[2].ID != "t1" {
		t.Fatalf("unexpected order: %+v", ts)
	}

	// Bob cannot touch Alice's playlist.
	rr = httptest.NewRecorder()
	app.PlaylistByID(rr, authedRequest(http.MethodGet, "/api/playlists/"+p.ID+"/tracks", "", bob))
	if rr.Code != http.StatusForbidden {
		t.Errorf("ownership check status %d", rr.Code)
	}
}

// TestFavoritesFlow exercises saving, listing and removing favorites.
func TestFavoritesFlow(t *testing.T) {
	app := newTestApp(t)
	alice := signup(t, app, "alice")
	seedTrack(t, app, "t1", "First")

	rr := httptest.NewRecorder()
	app.Favorites(rr, authedRequest(http.MethodPost, "/api/favorites", `{"track_id":"t1"}`, alice))
	if rr.Code != http.StatusCreated {
		t.Fatalf("add favorite status %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	app.Favorites(rr, authedRequest(http.MethodGet, "/api/favorites", "", alice))
	var favs []track.Track
	json.Unmarshal(rr.Body.Bytes(), &favs)
	if len(favs) != 1 || favs[0].ID != "t1" {
		t.Fatalf("unexpected favorites: %+v", favs)
	}

	rr = httptest.NewRecorder()
	app.DeleteFavorite(rr, authedRequest(http.MethodDelete, "/api/favorites/t1", "", alice))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete favorite status %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	app.DeleteFavorite(rr, authedRequest(http.MethodDelete, "/api/favorites/t1", "", alice))
	if rr.Code != http.StatusNotFound {
		t.Errorf("double delete status %d", rr.Code)
	}
}

// TestCSRFRequired verifies state-changing requests without the CSRF header
// are rejected even with a valid session.
func TestCSRFRequired(t *testing.T) {
	app := newTestApp(t)
	alice := signup(t, app, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/playlists", bytes.NewBufferString(`{"name":"Mix"}`))
	for _, c := range alice {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	app.Playlists(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 without csrf header, got %d", rr.Code)
	}
}

// TestAddPlayAndInsights verifies anonymous play reporting and the summary
// endpoint.
func TestAddPlayAndInsights(t *testing.T) {
	app := newTestApp(t)
	seedTrack(t, app, "t1", "First")

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		app.AddPlay(rr, httptest.NewRequest(http.MethodPost, "/api/plays", bytes.NewBufferString(`{"track_id":"t1","user_id":""}`)))
		if rr.Code != http.StatusCreated {
			t.Fatalf("add play status %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr := httptest.NewRecorder()
	app.InsightsTracksJSON(rr, httptest.NewRequest(http.MethodGet, "/api/insights/tracks", nil))
	var res []db.TrackCount
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].TrackID != "t1" || res[0].Count != 2 {
		t.Fatalf("unexpected insights: %+v", res)
	}

	rr = httptest.NewRecorder()
	app.AddPlay(rr, httptest.NewRequest(http.MethodPost, "/api/plays", bytes.NewBufferString(`{"user_id":"u"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing track_id status %d", rr.Code)
	}
}

// TestSecurityHeaders verifies the middleware sets the defensive headers.
func TestSecurityHeaders(t *testing.T) {
	h := handlers.SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if csp := rr.Header().Get("Content-Security-Policy"); csp == "" {
		t.Error("missing content security policy")
	}
}
