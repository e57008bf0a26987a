// Package handlers groups HTTP handlers for K-Tunes. This file manages
// playlists: creation, listing, deletion, track membership and ordering.
// Every endpoint requires an authenticated session and enforces ownership of
// the playlist being touched.
package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"K-Tunes/pkg/db"
	"K-Tunes/pkg/track"
)

// Playlists serves /api/playlists: GET lists the caller's playlists, POST
// creates one from a JSON name payload.
func (app *Application) Playlists(w http.ResponseWriter, r *http.Request) {
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		ps, err := app.DB.ListPlaylists(r.Context(), userID)
		if err != nil {
			log.WithError(err).Error("list playlists")
			http.Error(w, "failed to load playlists", http.StatusInternalServerError)
			return
		}
		if ps == nil {
			ps = []db.Playlist{}
		}
		respondJSON(w, http.StatusOK, ps)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Name == "" {
			respondJSONError(w, http.StatusBadRequest, "name is required")
			return
		}
		id, err := app.DB.CreatePlaylist(r.Context(), userID, req.Name)
		if err != nil {
			http.Error(w, "failed to create playlist", http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusCreated, db.Playlist{ID: id, Name: req.Name})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ownedPlaylist loads a playlist and verifies the caller owns it, writing
// the appropriate error response otherwise.
func (app *Application) ownedPlaylist(w http.ResponseWriter, r *http.Request, id, userID string) (db.Playlist, bool) {
	p, err := app.DB.GetPlaylist(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		respondJSONError(w, http.StatusNotFound, "playlist not found")
		return db.Playlist{}, false
	}
	if err != nil {
		http.Error(w, "failed to load playlist", http.StatusInternalServerError)
		return db.Playlist{}, false
	}
	if p.UserID != userID {
		respondJSONError(w, http.StatusForbidden, "not your playlist")
		return db.Playlist{}, false
	}
	return p, true
}

// PlaylistByID dispatches /api/playlists/{id} and its sub-resources:
//
//	GET    /api/playlists/{id}/tracks       list tracks in order
//	POST   /api/playlists/{id}/tracks       append a track
//	POST   /api/playlists/{id}/reorder      move a track between positions
//	DELETE /api/playlists/{id}/tracks/{tid} remove a track
//	DELETE /api/playlists/{id}              delete the playlist
func (app *Application) PlaylistByID(w http.ResponseWriter, r *http.Request) {
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/playlists/"), "/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	p, ok := app.ownedPlaylist(w, r, parts[0], userID)
	if !ok {
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := app.DB.DeletePlaylist(r.Context(), p.ID); err != nil {
			http.Error(w, "failed to delete playlist", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 2 && parts[1] == "tracks" && r.Method == http.MethodGet:
		ts, err := app.DB.PlaylistTracks(r.Context(), p.ID)
		if err != nil {
			http.Error(w, "failed to load playlist tracks", http.StatusInternalServerError)
			return
		}
		if ts == nil {
			ts = []track.Track{}
		}
		respondJSON(w, http.StatusOK, ts)
	case len(parts) == 2 && parts[1] == "tracks" && r.Method == http.MethodPost:
		var req struct {
			TrackID string `json:"track_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.TrackID == "" {
			respondJSONError(w, http.StatusBadRequest, "track_id is required")
			return
		}
		if _, err := app.DB.GetTrack(r.Context(), req.TrackID); errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "track not found")
			return
		}
		if err := app.DB.AddTrackToPlaylist(r.Context(), p.ID, req.TrackID); err != nil {
			http.Error(w, "failed to add track", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	case len(parts) == 2 && parts[1] == "reorder" && r.Method == http.MethodPost:
		var req struct {
			From int `json:"from"`
			To   int `json:"to"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := app.DB.MovePlaylistTrack(r.Context(), p.ID, req.From, req.To); err != nil {
			respondJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 3 && parts[1] == "tracks" && r.Method == http.MethodDelete:
		if err := app.DB.RemovePlaylistTrack(r.Context(), p.ID, parts[2]); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				respondJSONError(w, http.StatusNotFound, "track not in playlist")
				return
			}
			http.Error(w, "failed to remove track", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
