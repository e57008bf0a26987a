// Package handlers groups HTTP handlers for K-Tunes. This file covers the
// track catalog: public listing and search, the stream endpoint and the admin
// mutations that maintain the catalog, including import search against the
// configured external provider.
package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"K-Tunes/pkg/track"
)

// TracksJSON returns the catalog, optionally filtered by the q parameter.
// Results are cached per query so repeated browsing does not hit the
// database.
func (app *Application) TracksJSON(w http.ResponseWriter, r *http.Request) {
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	q := r.URL.Query().Get("q")
	key := "tracks:" + q
	if app.Tracks != nil {
		if v, ok := app.Tracks.Get(key); ok {
			respondJSON(w, http.StatusOK, v)
			return
		}
	}
	ts, err := app.DB.ListTracks(r.Context(), q)
	if err != nil {
		log.WithError(err).Error("list tracks")
		http.Error(w, "failed to load tracks", http.StatusInternalServerError)
		return
	}
	if ts == nil {
		ts = []track.Track{}
	}
	if app.Tracks != nil {
		app.Tracks.Set(key, ts)
	}
	respondJSON(w, http.StatusOK, ts)
}

// trackID extracts the track identifier from a /api/tracks/{id}[/suffix]
// request path.
func trackID(r *http.Request, suffix string) string {
	id := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	id = strings.TrimSuffix(id, suffix)
	return strings.Trim(id, "/")
}

// TrackByID serves /api/tracks/{id}: GET returns the descriptor, DELETE
// removes the track from the catalog (admin only). The /stream suffix
// redirects to the audio resource.
func (app *Application) TrackByID(w http.ResponseWriter, r *http.Request) {
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	if strings.HasSuffix(r.URL.Path, "/stream") {
		app.streamTrack(w, r)
		return
	}
	id := trackID(r, "")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		t, err := app.DB.GetTrack(r.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "track not found")
			return
		}
		if err != nil {
			http.Error(w, "failed to load track", http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, t)
	case http.MethodDelete:
		if _, ok := app.requireAdmin(w, r); !ok {
			return
		}
		if err := app.DB.DeleteTrack(r.Context(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				respondJSONError(w, http.StatusNotFound, "track not found")
				return
			}
			http.Error(w, "failed to delete track", http.StatusInternalServerError)
			return
		}
		app.invalidateTracks()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// streamTrack redirects the client to the track's audio resource. The
// indirection keeps resource locations out of cached catalog listings and
// gives the server one place to count streams later.
func (app *Application) streamTrack(w http.ResponseWriter, r *http.Request) {
	id := trackID(r, "/stream")
	t, err := app.DB.GetTrack(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		respondJSONError(w, http.StatusNotFound, "track not found")
		return
	}
	if err != nil {
		http.Error(w, "failed to load track", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, t.URL, http.StatusFound)
}

// CreateTrack adds a catalog entry from a JSON descriptor. Admin only.
func (app *Application) CreateTrack(w http.ResponseWriter, r *http.Request) {
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	if _, ok := app.requireAdmin(w, r); !ok {
		return
	}
	var t track.Track
	if err := decodeJSON(r, &t); err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if t.Title == "" || t.Artist == "" || t.URL == "" {
		respondJSONError(w, http.StatusBadRequest, "title, artist and url are required")
		return
	}
	id, err := app.DB.CreateTrack(r.Context(), t)
	if err != nil {
		log.WithError(err).Error("create track")
		http.Error(w, "failed to create track", http.StatusInternalServerError)
		return
	}
	app.invalidateTracks()
	t.ID = id
	respondJSON(w, http.StatusCreated, t)
}

// ImportSearch queries the configured external catalog so an admin can pick
// metadata for tracks being added. Results are descriptors without a stream
// URL; the admin attaches the audio resource when creating the track.
func (app *Application) ImportSearch(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.requireAdmin(w, r); !ok {
		return
	}
	if app.Music == nil {
		http.Error(w, "no import provider configured", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		respondJSONError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	ts, err := app.Music.SearchTrack(r.Context(), q)
	if err != nil {
		if err.Error() == "no tracks found" {
			respondJSON(w, http.StatusOK, []track.Track{})
			return
		}
		log.WithError(err).Error("import search")
		http.Error(w, "import search failed", http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, ts)
}

// invalidateTracks drops cached catalog listings after a mutation.
func (app *Application) invalidateTracks() {
	if app.Tracks != nil {
		app.Tracks.InvalidateAll()
	}
}
