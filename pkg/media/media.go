// Package media owns the single underlying audio resource used for playback.
// A Binding translates imperative transport commands into resource state and
// surfaces the resource's native events upward through an Events set. The
// playback controller is the sole caller of a binding's mutating operations.
//
// Two implementations are provided: Player renders audio through the beep
// speaker, and Fake is an in-memory double for tests.
package media

import (
	"errors"
	"time"
)

// ErrNoTrack is returned by transport commands issued before a resource has
// been loaded.
var ErrNoTrack = errors.New("no track loaded")

// Events carries the callbacks a binding invokes as the underlying resource
// changes state. Nil callbacks are skipped. Callbacks may be invoked from a
// background goroutine; handlers must do their own locking.
type Events struct {
	// OnLoadStart fires when a new resource begins loading.
	OnLoadStart func(url string)
	// OnReady fires once the resource is decoded and its duration is known.
	OnReady func(url string, duration time.Duration)
	// OnPosition fires periodically with the playback position while the
	// resource is playing. Positions are monotonically non-decreasing for a
	// given resource between seeks.
	OnPosition func(pos time.Duration)
	// OnEnded fires when the resource plays to completion. It never fires
	// for a resource that was paused or unloaded.
	OnEnded func()
	// OnError fires when playback fails asynchronously.
	OnError func(msg string)
}

// Binding is the handle to the one playable audio resource.
type Binding interface {
	// SetEvents installs the event callbacks. Must be called before Load.
	SetEvents(ev Events)

	// Load prepares the resource at url for playback. Loading the URL that
	// is already current is a no-op so the playing track is not restarted.
	// A new Load supersedes any in-flight one.
	Load(url string) error

	// Play starts or resumes playback. Resuming after Pause continues from
	// the paused position rather than restarting.
	Play() error

	// Pause halts playback, preserving the current position for a later
	// Play.
	Pause()

	// Seek moves the position, clamped to [0, duration].
	Seek(pos time.Duration) error

	// SetVolume applies an output level on a 0-100 scale. A level above
	// zero un-mutes as a side effect.
	SetVolume(level int)

	// SetMuted silences output without touching the remembered volume
	// level.
	SetMuted(muted bool)

	// Position returns the current playback position.
	Position() time.Duration

	// Duration returns the total duration of the loaded resource, or zero
	// when nothing is loaded.
	Duration() time.Duration

	// Close releases the resource and stops playback.
	Close() error
}
