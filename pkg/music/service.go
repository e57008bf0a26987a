// Package music defines the generic interface for external music catalogs.
// Implementations can wrap Spotify or any other provider. By depending on
// this package the rest of the application can remain agnostic about the
// underlying platform; results are always expressed as track descriptors.
package music

import (
	"context"

	"K-Tunes/pkg/track"
)

// Service exposes catalog search against an external provider. It is used by
// the admin import flow to find metadata for tracks being added to the local
// catalog.
type Service interface {
	// SearchTrack returns tracks matching the query string. The context is
	// used for request cancellation and timeout propagation. An error is
	// returned when the service encounters a failure or no tracks are found.
	SearchTrack(ctx context.Context, query string) ([]track.Track, error)
}
