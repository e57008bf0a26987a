// Package spotify wraps the official Spotify client library for the admin
// catalog import flow. It authenticates using the client credentials flow and
// converts search results into track descriptors so the rest of the
// application never sees Spotify types. Errors are returned directly from the
// underlying client so callers can inspect them if needed.
//
// The wrapped library does not provide context support so cancellation is
// checked explicitly before each call.
package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2/clientcredentials"

	"K-Tunes/pkg/music"
	"K-Tunes/pkg/track"
)

// searcher defines the subset of the spotify.Client used by this package.
// It allows the concrete client to be replaced in tests.
type searcher interface {
	Search(query string, t spotify.SearchType) (*spotify.SearchResult, error)
}

// Client wraps the official Spotify client providing catalog search in
// descriptor form.
type Client struct {
	client searcher
}

// Compile-time interface check ensuring Client satisfies the generic
// music.Service interface used by the rest of the application.
var _ music.Service = (*Client)(nil)

// NewClient authenticates using the client credentials flow and returns a
// Client ready for API calls. clientID and clientSecret are obtained from the
// Spotify developer dashboard.
func NewClient(clientID, clientSecret string) (*Client, error) {
	// The client credentials OAuth2 flow yields an application token which
	// allows searching the catalog without a user login.
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotify.TokenURL,
	}

	token, err := config.Token(context.Background())
	if err != nil {
		return nil, err
	}

	c := spotify.Authenticator{}.NewClient(token)
	return &Client{client: &c}, nil
}

// SearchTrack implements music.Service by querying the Spotify API for the
// supplied track name and returning matching items as descriptors. A "no
// tracks found" error is returned when the result set is empty.
func (c *Client) SearchTrack(ctx context.Context, query string) ([]track.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results, err := c.client.Search(query, spotify.SearchTypeTrack)
	if err != nil {
		return nil, err
	}

	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		// Indicate to callers that nothing matched the query.
		return nil, fmt.Errorf("no tracks found")
	}
	tracks := make([]track.Track, len(results.Tracks.Tracks))
	for i, ft := range results.Tracks.Tracks {
		tracks[i] = toDescriptor(ft)
	}
	return tracks, nil
}

// toDescriptor converts a Spotify track into the application's descriptor
// form. The URL is left empty: imported tracks get their stream URL when the
// admin attaches the audio resource.
func toDescriptor(ft spotify.FullTrack) track.Track {
	t := track.Track{
		ID:       string(ft.ID),
		Title:    ft.Name,
		Album:    ft.Album.Name,
		Duration: float64(ft.Duration) / 1000,
	}
	if len(ft.Artists) > 0 {
		t.Artist = ft.Artists[0].Name
	}
	if len(ft.Album.Images) > 0 {
		t.CoverURL = ft.Album.Images[0].URL
	}
	return t
}
