// Package handlers contains the HTTP handlers for the K-Tunes server. The
// server exposes a JSON API consumed by the playback clients: the track
// catalog, playlists, favorites and play reporting. State changing requests
// require a signed session cookie plus a CSRF token; catalog reads and play
// reporting are open so anonymous listeners can stream.
package handlers

import (
	"net/http"

	"K-Tunes/pkg/cache"
	"K-Tunes/pkg/db"
	"K-Tunes/pkg/music"
)

// Application holds the dependencies shared by all handlers. A single value
// is constructed at startup and its methods are registered on the mux.
type Application struct {
	// DB is the persistence layer. Handlers respond with 500 when it is nil.
	DB *db.DB
	// Music is the external catalog used by the admin import flow. It may be
	// nil when no provider credentials are configured.
	Music music.Service
	// SignKey is the HMAC key used to sign session cookies.
	SignKey []byte
	// Tracks caches catalog listings so browsing does not hit the database on
	// every request. Admin catalog mutations invalidate it.
	Tracks *cache.Cache
}

// Home describes the API for anyone hitting the root with a browser.
func (app *Application) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "k-tunes",
		"tracks":  "/api/tracks",
		"plays":   "/api/plays",
	})
}

// Healthz reports liveness for load balancers.
func (app *Application) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
