// Package track defines the descriptor for a playable audio item. A Track is
// created when catalog, playlist or favorites data is fetched and is treated
// as immutable by the playback core: the queue and controller only wrap it in
// positional state, they never modify its fields.
package track

// Track identifies a playable media resource and its display metadata. The
// Duration field is advisory only; the authoritative duration comes from the
// media binding once the resource has loaded.
type Track struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album,omitempty"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration,omitempty"`
	CoverURL string  `json:"cover_url,omitempty"`
}
