package media

import (
	"sync"
	"time"
)

// Fake is an in-memory Binding for tests. It records the commands it
// receives and lets tests drive the resource's events directly: advance the
// position, signal the end of the track or inject failures. The recorded
// pause position behaves like the real binding's, so resume-at-position
// behaviour can be asserted without an audio device.
type Fake struct {
	mu     sync.Mutex
	events Events

	url      string
	playing  bool
	position time.Duration
	duration time.Duration
	level    int
	muted    bool

	loadCalls []string
	playCalls int
	seekCalls []time.Duration
	loadSeq   uint64

	// LoadHook, when set, runs during Load without the lock held. Tests
	// use it to stall a load and exercise superseded-load handling.
	LoadHook func(url string)
	// PlayErr, when set, is returned by the next Play call.
	PlayErr error
	// LoadErr, when set, is returned by the next Load call.
	LoadErr error
	// TrackDuration is assigned to each successfully loaded resource.
	TrackDuration time.Duration
}

var _ Binding = (*Fake)(nil)

// NewFake returns a Fake binding with a three minute default track duration.
func NewFake() *Fake {
	return &Fake{level: 100, TrackDuration: 3 * time.Minute}
}

// SetEvents installs the event callbacks.
func (f *Fake) SetEvents(ev Events) {
	f.mu.Lock()
	f.events = ev
	f.mu.Unlock()
}

// Load records the call and installs the URL as the loaded resource. Loading
// the current URL is a no-op, mirroring the real binding.
func (f *Fake) Load(url string) error {
	f.mu.Lock()
	if url == f.url {
		f.mu.Unlock()
		return nil
	}
	f.loadCalls = append(f.loadCalls, url)
	f.loadSeq++
	seq := f.loadSeq
	hook := f.LoadHook
	ev := f.events
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if ev.OnLoadStart != nil {
		ev.OnLoadStart(url)
	}

	f.mu.Lock()
	if seq != f.loadSeq {
		// A newer Load superseded this one while the hook stalled it.
		f.mu.Unlock()
		return nil
	}
	if f.LoadErr != nil {
		err := f.LoadErr
		f.LoadErr = nil
		f.mu.Unlock()
		if ev.OnError != nil {
			ev.OnError(err.Error())
		}
		return err
	}
	f.url = url
	f.playing = false
	f.position = 0
	f.duration = f.TrackDuration
	dur := f.duration
	f.mu.Unlock()

	if ev.OnReady != nil {
		ev.OnReady(url, dur)
	}
	return nil
}

// Play starts or resumes playback from the current position.
func (f *Fake) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PlayErr != nil {
		err := f.PlayErr
		f.PlayErr = nil
		return err
	}
	if f.url == "" {
		return ErrNoTrack
	}
	f.playing = true
	f.playCalls++
	return nil
}

// Pause halts playback, keeping the position.
func (f *Fake) Pause() {
	f.mu.Lock()
	f.playing = false
	f.mu.Unlock()
}

// Seek moves the position, clamped to the track bounds.
func (f *Fake) Seek(pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.url == "" {
		return ErrNoTrack
	}
	if pos < 0 {
		pos = 0
	}
	if pos > f.duration {
		pos = f.duration
	}
	f.position = pos
	f.seekCalls = append(f.seekCalls, pos)
	return nil
}

// SetVolume applies a 0-100 level, un-muting when above zero.
func (f *Fake) SetVolume(level int) {
	f.mu.Lock()
	f.level = clampLevel(level)
	if f.level > 0 {
		f.muted = false
	}
	f.mu.Unlock()
}

// SetMuted silences output without clearing the level.
func (f *Fake) SetMuted(muted bool) {
	f.mu.Lock()
	f.muted = muted
	f.mu.Unlock()
}

// Position returns the simulated playback position.
func (f *Fake) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

// Duration returns the simulated track duration.
func (f *Fake) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

// Close drops the loaded resource.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.url = ""
	f.playing = false
	f.position = 0
	f.duration = 0
	f.mu.Unlock()
	return nil
}

// Advance moves the position forward as if d of audio had played, emitting a
// position event.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.position += d
	if f.position > f.duration {
		f.position = f.duration
	}
	pos := f.position
	ev := f.events
	f.mu.Unlock()
	if ev.OnPosition != nil {
		ev.OnPosition(pos)
	}
}

// SimulateEnded signals that the loaded resource played to completion.
func (f *Fake) SimulateEnded() {
	f.mu.Lock()
	f.playing = false
	f.position = f.duration
	ev := f.events
	f.mu.Unlock()
	if ev.OnEnded != nil {
		ev.OnEnded()
	}
}

// SimulateError emits an asynchronous playback error.
func (f *Fake) SimulateError(msg string) {
	f.mu.Lock()
	f.playing = false
	ev := f.events
	f.mu.Unlock()
	if ev.OnError != nil {
		ev.OnError(msg)
	}
}

// Playing reports whether the fake is currently playing.
func (f *Fake) Playing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

// Muted reports the muted flag.
func (f *Fake) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

// Level returns the applied 0-100 volume level.
func (f *Fake) Level() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// LoadCalls returns the URLs passed to Load, in order.
func (f *Fake) LoadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.loadCalls))
	copy(out, f.loadCalls)
	return out
}

// PlayCalls returns how many times Play succeeded or was attempted.
func (f *Fake) PlayCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playCalls
}

// SeekCalls returns the positions passed to Seek, in order.
func (f *Fake) SeekCalls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.seekCalls))
	copy(out, f.seekCalls)
	return out
}

// LoadedURL returns the currently loaded resource URL.
func (f *Fake) LoadedURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}
