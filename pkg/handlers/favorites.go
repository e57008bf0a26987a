// Package handlers groups HTTP handlers for K-Tunes. This file focuses on
// endpoints that manage user favorites via the JSON API.
package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"K-Tunes/pkg/track"
)

// Favorites serves /api/favorites: GET lists the caller's favorite tracks,
// POST saves one from a JSON track_id payload.
func (app *Application) Favorites(w http.ResponseWriter, r *http.Request) {
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
		favs, err := app.DB.ListFavorites(r.Context(), userID)
		if err != nil {
			log.WithError(err).Error("list favorites")
			http.Error(w, "failed to load favorites", http.StatusInternalServerError)
			return
		}
		if favs == nil {
			favs = []track.Track{}
		}
		respondJSON(w, http.StatusOK, favs)
	case http.MethodPost:
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
		if err := app.DB.AddFavorite(r.Context(), userID, req.TrackID); err != nil {
			http.Error(w, "failed to save favorite", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// DeleteFavorite removes /api/favorites/{trackID} from the caller's list. A
// missing favorite produces 404 so clients can reconcile their state.
func (app *Application) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	trackID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/favorites/"), "/")
	if trackID == "" {
		http.NotFound(w, r)
		return
	}
	if err := app.DB.DeleteFavorite(r.Context(), userID, trackID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "favorite not found")
			return
		}
		http.Error(w, "failed to delete favorite", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
