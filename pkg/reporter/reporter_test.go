package reporter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestReportSendsPayload verifies the play event reaches the server with the
// track and user identifiers.
func TestReportSendsPayload(t *testing.T) {
	var got playEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/plays" {
			t.Errorf("path = %s, want /api/plays", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	rep := &HTTP{BaseURL: srv.URL}
	rep.Report("t1", "u1")

	if got.TrackID != "t1" || got.UserID != "u1" {
		t.Errorf("payload = %+v, want track t1 user u1", got)
	}
}

// TestReportAnonymous verifies an empty user is reported with the explicit
// anonymous marker.
func TestReportAnonymous(t *testing.T) {
	var got playEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	rep := &HTTP{BaseURL: srv.URL}
	rep.Report("t1", "")

	if got.UserID != "anonymous" {
		t.Errorf("user_id = %q, want anonymous", got.UserID)
	}
}

// TestReportFailureIsSwallowed verifies server errors and unreachable hosts
// neither panic nor surface to the caller.
func TestReportFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	rep := &HTTP{BaseURL: srv.URL}
	rep.Report("t1", "u1")

	srv.Close()
	rep.Report("t1", "u1") // connection refused, still no panic
}
