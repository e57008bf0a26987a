// Command web initializes the K-Tunes server and starts it. Configuration is
// provided via environment variables for the signing key, database location
// and optional Spotify import credentials. The server exposes the JSON API
// consumed by playback clients plus Prometheus metrics.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"K-Tunes/pkg/cache"
	"K-Tunes/pkg/db"
	"K-Tunes/pkg/handlers"
	"K-Tunes/pkg/music"
	"K-Tunes/pkg/spotify"
)

// routes registers every endpoint on a fresh mux wrapped with the security
// header and metrics middleware. It is a separate function so tests can spin
// up the complete server without going through main.
func routes(app *handlers.Application) http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, handlers.Metrics(pattern, h))
	}

	handle("/", app.Home)
	handle("/healthz", app.Healthz)
	handle("/api/signup", app.Signup)
	handle("/api/login", app.Login)
	handle("/api/logout", app.Logout)
	handle("/api/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			app.CreateTrack(w, r)
		} else {
			app.TracksJSON(w, r)
		}
	})
	handle("/api/tracks/", app.TrackByID)
	handle("/api/import/search", app.ImportSearch)
	handle("/api/playlists", app.Playlists)
	handle("/api/playlists/", app.PlaylistByID)
	handle("/api/favorites", app.Favorites)
	handle("/api/favorites/", app.DeleteFavorite)
	handle("/api/plays", app.AddPlay)
	handle("/api/insights/tracks", app.InsightsTracksJSON)
	mux.Handle("/metrics", promhttp.Handler())

	return handlers.SecurityHeaders(mux)
}

// main configures application dependencies and starts the HTTP server.
func main() {
	log.SetFormatter(&log.JSONFormatter{})

	signingKey := os.Getenv("SIGNING_KEY")
	if signingKey == "" {
		log.Fatal("SIGNING_KEY must be set")
	}

	// DATABASE_PATH allows the SQLite file to be customised. It defaults to
	// a file named ktunes.db in the working directory.
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "ktunes.db"
	}
	database, err := db.New(dbPath)
	if err != nil {
		log.WithError(err).Fatal("db init")
	}
	defer database.Close()

	// The Spotify import provider is optional: without credentials the admin
	// import endpoint responds 503 and everything else works normally.
	var importService music.Service
	clientID := os.Getenv("SPOTIFY_CLIENT_ID")
	clientSecret := os.Getenv("SPOTIFY_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		sc, err := spotify.NewClient(clientID, clientSecret)
		if err != nil {
			log.WithError(err).Fatal("spotify client init")
		}
		importService = sc
	} else {
		log.Info("no import provider configured")
	}

	app := &handlers.Application{
		DB:      database,
		Music:   importService,
		SignKey: []byte(signingKey),
		Tracks:  cache.New(5 * time.Minute),
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":4000"
	}
	log.WithField("addr", addr).Info("starting server")
	if err := http.ListenAndServe(addr, routes(app)); err != nil {
		log.WithError(err).Fatal("http server")
	}
}
