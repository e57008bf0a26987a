// Package player implements the playback controller: the single integration
// point between UI commands, the play queue and the media binding. The
// controller owns the binding and the queue exclusively; UI layers read
// snapshots and issue commands, they never touch either directly.
//
// The controller is a small state machine (Idle, Loading, Playing, Paused)
// with an orthogonal error surface. Commands never panic and never leak
// binding failures: every failure is captured into the error string and the
// transport is forced to a consistent non-playing state. A generation counter
// makes the last command win: completions of superseded loads are discarded,
// so a slow load of one track can never clobber a newer one.
package player

import (
	"errors"
	"sync"
	"time"

	"K-Tunes/pkg/media"
	"K-Tunes/pkg/queue"
	"K-Tunes/pkg/reporter"
	"K-Tunes/pkg/track"
)

// ErrIndexOutOfRange is returned when a queue index does not exist.
var ErrIndexOutOfRange = errors.New("index out of range")

// State is the controller's transport state.
type State int

const (
	// StateIdle means no current track is selected.
	StateIdle State = iota
	// StateLoading means a track is selected but the resource is not ready.
	StateLoading
	// StatePlaying means audio is being rendered.
	StatePlaying
	// StatePaused means a current track exists but playback is halted.
	StatePaused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Snapshot is the read-only view of playback state handed to UIs.
type Snapshot struct {
	State      State
	Track      *track.Track
	Queue      []track.Track
	QueueIndex int
	Position   time.Duration
	Duration   time.Duration
	Volume     int
	Muted      bool
	Repeat     bool
	Shuffle    bool
	Err        string
}

// Controller drives playback. Create one with New and share it across the UI.
type Controller struct {
	mu      sync.Mutex
	binding media.Binding
	queue   *queue.Queue
	rep     reporter.Reporter
	userID  string

	state    State
	current  *track.Track
	repeat   bool
	volume   int
	muted    bool
	errMsg   string
	position time.Duration
	duration time.Duration
	gen      uint64
}

// New returns a controller bound to the given media binding. Play events are
// sent to rep; pass reporter.Nop{} when no server is configured.
func New(b media.Binding, rep reporter.Reporter) *Controller {
	c := &Controller{
		binding: b,
		queue:   queue.New(),
		rep:     rep,
		state:   StateIdle,
		volume:  100,
	}
	b.SetEvents(media.Events{
		OnPosition: c.handlePosition,
		OnReady:    c.handleReady,
		OnEnded:    c.handleEnded,
		OnError:    c.handleError,
	})
	return c
}

// SetUser associates subsequent play reports with a user identity. An empty
// ID reports plays as anonymous.
func (c *Controller) SetUser(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

// PlayTrack starts playback of t. When newQueue is non-nil the whole queue is
// replaced by it, as when the user plays from a fresh playlist; otherwise t
// is located in (or appended to) the existing queue. On success the play is
// reported to the backend exactly once, without blocking.
func (c *Controller) PlayTrack(t track.Track, newQueue []track.Track) error {
	c.mu.Lock()
	if newQueue != nil {
		c.queue.Replace(newQueue, t.ID)
	} else if i := c.queue.IndexOf(t.ID); i >= 0 {
		c.queue.JumpTo(i)
	} else {
		c.queue.Enqueue(t)
		c.queue.JumpTo(c.queue.Len() - 1)
	}
	gen := c.beginLoadLocked()
	c.mu.Unlock()
	return c.start(t, gen)
}

// beginLoadLocked marks the controller as loading a new target and returns
// the generation that guards the load's completion. Callers must hold c.mu.
func (c *Controller) beginLoadLocked() uint64 {
	c.gen++
	c.state = StateLoading
	c.errMsg = ""
	c.position = 0
	return c.gen
}

// start loads and plays t. It runs without the controller lock so a newer
// command can supersede a slow load; a stale completion is detected by the
// generation check and discarded.
func (c *Controller) start(t track.Track, gen uint64) error {
	err := c.binding.Load(t.URL)

	c.mu.Lock()
	if gen != c.gen {
		// A newer command took over while we were loading; do not start
		// audio for the abandoned target.
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err == nil {
		err = c.binding.Play()
	}

	c.mu.Lock()
	if gen != c.gen {
		// Superseded between the load check and Play returning. The
		// newer command owns the transport now; silence whatever this
		// Play started.
		if err == nil {
			c.binding.Pause()
		}
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.errMsg = err.Error()
		if c.current != nil {
			c.state = StatePaused
		} else {
			c.state = StateIdle
		}
		c.mu.Unlock()
		return err
	}
	tt := t
	c.current = &tt
	c.state = StatePlaying
	c.errMsg = ""
	if d := c.binding.Duration(); d > 0 {
		c.duration = d
	}
	rep, user := c.rep, c.userID
	c.mu.Unlock()

	if rep != nil {
		go rep.Report(t.ID, user)
	}
	return nil
}

// TogglePlayPause pauses a playing track or resumes a paused one. Resume
// continues from the paused position. With no current track this is a no-op.
func (c *Controller) TogglePlayPause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePlaying:
		c.binding.Pause()
		c.state = StatePaused
	case StatePaused:
		if c.current == nil {
			return nil
		}
		if err := c.binding.Play(); err != nil {
			c.errMsg = err.Error()
			return err
		}
		c.state = StatePlaying
		c.errMsg = ""
	}
	return nil
}

// NextTrack advances the queue under the current shuffle flag and plays the
// selected track. On an empty queue it is a no-op.
func (c *Controller) NextTrack() error {
	c.mu.Lock()
	t, ok := c.queue.Next()
	if !ok {
		c.mu.Unlock()
		return nil
	}
	gen := c.beginLoadLocked()
	c.mu.Unlock()
	return c.start(t, gen)
}

// PreviousTrack steps the queue back and plays the selected track. On an
// empty queue it is a no-op.
func (c *Controller) PreviousTrack() error {
	c.mu.Lock()
	t, ok := c.queue.Previous()
	if !ok {
		c.mu.Unlock()
		return nil
	}
	gen := c.beginLoadLocked()
	c.mu.Unlock()
	return c.start(t, gen)
}

// Seek moves the playback position of the current track.
func (c *Controller) Seek(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	if err := c.binding.Seek(pos); err != nil {
		c.errMsg = err.Error()
		return err
	}
	c.position = pos
	c.errMsg = ""
	return nil
}

// SetVolume applies a 0-100 output level. A level above zero un-mutes.
func (c *Controller) SetVolume(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	c.volume = level
	if level > 0 {
		c.muted = false
	}
	c.binding.SetVolume(level)
}

// ToggleMute flips the muted flag. The remembered volume level is untouched,
// so un-muting restores the previous level.
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = !c.muted
	c.binding.SetMuted(c.muted)
	return c.muted
}

// ToggleRepeat flips repeat-one mode. It only affects what happens when the
// current track ends.
func (c *Controller) ToggleRepeat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repeat = !c.repeat
	return c.repeat
}

// ToggleShuffle flips shuffled selection for future next/previous decisions.
// The currently loaded resource is unaffected.
func (c *Controller) ToggleShuffle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	on := !c.queue.Shuffle()
	c.queue.SetShuffle(on)
	return on
}

// ClosePlayer stops playback, clears the queue and the current track, and
// returns the controller to Idle. Any in-flight load is abandoned.
func (c *Controller) ClosePlayer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.binding.Pause()
	c.queue.Clear()
	c.current = nil
	c.state = StateIdle
	c.errMsg = ""
	c.position = 0
	c.duration = 0
}

// RemoveFromQueue deletes the track at index i. Removing a track other than
// the current one leaves playback alone. When the current track itself is
// removed, playback of it stops: the controller goes Idle if the queue is now
// empty, otherwise it plays the track that shifted into the removed slot.
func (c *Controller) RemoveFromQueue(i int) error {
	c.mu.Lock()
	removedCurrent, ok := c.queue.RemoveAt(i)
	if !ok {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}
	if !removedCurrent {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	if c.queue.IsEmpty() {
		c.binding.Pause()
		c.current = nil
		c.state = StateIdle
		c.position = 0
		c.duration = 0
		c.mu.Unlock()
		return nil
	}
	t, _ := c.queue.Current()
	gen := c.beginLoadLocked()
	c.mu.Unlock()
	return c.start(t, gen)
}

// Snapshot returns a copy of the observable playback state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	var tr *track.Track
	if c.current != nil {
		cp := *c.current
		tr = &cp
	}
	return Snapshot{
		State:      c.state,
		Track:      tr,
		Queue:      c.queue.Tracks(),
		QueueIndex: c.queue.CurrentIndex(),
		Position:   c.position,
		Duration:   c.duration,
		Volume:     c.volume,
		Muted:      c.muted,
		Repeat:     c.repeat,
		Shuffle:    c.queue.Shuffle(),
		Err:        c.errMsg,
	}
}

// State returns the current transport state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns a copy of the current track, or nil when none is selected.
func (c *Controller) Current() *track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

// Err returns the current error surface, empty when the last command
// succeeded.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// handlePosition records transport time updates from the binding.
func (c *Controller) handlePosition(pos time.Duration) {
	c.mu.Lock()
	c.position = pos
	c.mu.Unlock()
}

// handleReady records the authoritative duration once the resource loads.
// Events for a resource that is no longer the controller's target are
// ignored.
func (c *Controller) handleReady(url string, dur time.Duration) {
	c.mu.Lock()
	if c.current == nil || c.current.URL == url {
		c.duration = dur
	}
	c.mu.Unlock()
}

// handleEnded reacts to the resource playing to completion: with repeat on
// the same track restarts from the beginning, otherwise the queue advances as
// if NextTrack had been called.
func (c *Controller) handleEnded() {
	c.mu.Lock()
	if c.state != StatePlaying {
		c.mu.Unlock()
		return
	}
	if c.repeat {
		c.position = 0
		if err := c.binding.Seek(0); err != nil {
			c.errMsg = err.Error()
			c.state = StatePaused
			c.mu.Unlock()
			return
		}
		if err := c.binding.Play(); err != nil {
			c.errMsg = err.Error()
			c.state = StatePaused
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.NextTrack()
}

// handleError captures asynchronous binding failures into the error surface
// and forces the transport out of the playing state. The current track is
// kept so the user can retry.
func (c *Controller) handleError(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	if c.state == StatePlaying || c.state == StateLoading {
		if c.current != nil {
			c.state = StatePaused
		} else {
			c.state = StateIdle
		}
	}
	c.mu.Unlock()
}
