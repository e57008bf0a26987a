// Package reporter records play events with the K-Tunes backend. The call is
// strictly fire-and-forget: a play is reported at most once per playback
// start, failures are logged and dropped, and nothing here ever blocks or
// disturbs playback state.
package reporter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Reporter notifies the backend that a track started playing. userID may be
// empty for anonymous listeners.
type Reporter interface {
	Report(trackID, userID string)
}

// HTTP posts play events to the server's /api/plays endpoint.
type HTTP struct {
	// BaseURL is the server root, e.g. http://localhost:4000.
	BaseURL string
	// Client is used for requests; a 10 second timeout client is used when
	// nil, so the zero value is ready for basic use.
	Client *http.Client
}

var _ Reporter = (*HTTP)(nil)

// playEvent is the wire payload accepted by the plays endpoint. UserID is
// always present; anonymous listeners are reported with the explicit
// "anonymous" marker.
type playEvent struct {
	TrackID string `json:"track_id"`
	UserID  string `json:"user_id"`
}

// Report sends the play event. The response body is ignored; a non-2xx
// status or transport failure is logged and discarded without retrying, as
// play-count accuracy is best effort.
func (h *HTTP) Report(trackID, userID string) {
	if userID == "" {
		userID = "anonymous"
	}
	body, err := json.Marshal(playEvent{TrackID: trackID, UserID: userID})
	if err != nil {
		log.WithError(err).Warn("encode play event")
		return
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Post(h.BaseURL+"/api/plays", "application/json", bytes.NewReader(body))
	if err != nil {
		log.WithError(err).WithField("track_id", trackID).Warn("report play")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithFields(log.Fields{"track_id": trackID, "status": resp.Status}).Warn("report play rejected")
	}
}

// Nop discards all play events. Useful when no server is configured.
type Nop struct{}

// Report does nothing.
func (Nop) Report(trackID, userID string) {}
