// Package handlers provides HTTP handlers for K-Tunes. This file contains
// the play reporting endpoint used by playback clients and the listening
// insights built on top of the recorded events.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// AddPlay records a play event posted by a playback client. The endpoint is
// intentionally unauthenticated: anonymous listeners report plays too, and a
// lost event only skews statistics, so there is nothing worth protecting.
func (app *Application) AddPlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	var req struct {
		TrackID string `json:"track_id"`
		UserID  string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TrackID == "" {
		respondJSONError(w, http.StatusBadRequest, "track_id is required")
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}
	if err := app.DB.RecordPlay(r.Context(), req.TrackID, req.UserID, time.Now()); err != nil {
		log.WithError(err).Error("record play")
		http.Error(w, "failed to record play", http.StatusInternalServerError)
		return
	}
	playsRecorded.Inc()
	w.WriteHeader(http.StatusCreated)
}

// InsightsTracksJSON returns the most played tracks for a configurable period
// controlled by the 'days' query parameter, defaulting to the last week.
func (app *Application) InsightsTracksJSON(w http.ResponseWriter, r *http.Request) {
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)
	res, err := app.DB.TopTracksSince(r.Context(), since, 50)
	if err != nil {
		http.Error(w, "failed to load insights", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
