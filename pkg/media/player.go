package media

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

// The speaker is a process-wide singleton; initialise it once at a fixed rate
// and resample tracks to it.
const speakerRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	return speakerErr
}

// Player is the beep-backed Binding. It downloads or opens the media
// resource, decodes it as MP3 and renders it through the speaker. All
// commands are safe for use by a single controller; stale completions from
// superseded loads are discarded via a generation counter.
type Player struct {
	mu     sync.Mutex
	events Events

	url      string
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume

	level    int
	muted    bool
	started  bool
	pausedAt time.Duration
	gen      uint64

	client *http.Client
}

var _ Binding = (*Player)(nil)

// NewPlayer returns a Player at full volume with nothing loaded.
func NewPlayer() *Player {
	return &Player{
		level:  100,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetEvents installs the event callbacks.
func (p *Player) SetEvents(ev Events) {
	p.mu.Lock()
	p.events = ev
	p.mu.Unlock()
}

// Load fetches and decodes the resource at url. Loading the URL that is
// already current is a no-op. A Load issued while another is in flight wins:
// the older load's result is discarded when it completes.
func (p *Player) Load(url string) error {
	p.mu.Lock()
	if url == p.url && p.streamer != nil {
		p.mu.Unlock()
		return nil
	}
	p.gen++
	gen := p.gen
	p.stopLocked()
	p.url = url
	ev := p.events
	p.mu.Unlock()

	if ev.OnLoadStart != nil {
		ev.OnLoadStart(url)
	}

	data, err := p.fetch(url)
	var streamer beep.StreamSeekCloser
	var format beep.Format
	if err == nil {
		streamer, format, err = mp3.Decode(nopCloser{bytes.NewReader(data)})
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		if streamer != nil {
			streamer.Close()
		}
		return nil
	}
	if err != nil {
		p.url = ""
		p.mu.Unlock()
		if ev.OnError != nil {
			ev.OnError(err.Error())
		}
		return err
	}
	p.streamer = streamer
	p.format = format
	p.started = false
	p.pausedAt = 0
	dur := format.SampleRate.D(streamer.Len())
	p.mu.Unlock()

	if ev.OnReady != nil {
		ev.OnReady(url, dur)
	}
	return nil
}

// Play starts playback of the loaded resource, or resumes it after a Pause.
// Resume is position-preserving: if the backend rewound the stream while
// paused the recorded pause position is restored first.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return ErrNoTrack
	}

	if p.started && p.ctrl != nil {
		speaker.Lock()
		var err error
		if cur := p.format.SampleRate.D(p.streamer.Position()); cur < p.pausedAt {
			err = p.streamer.Seek(p.format.SampleRate.N(p.pausedAt))
		}
		if err == nil {
			p.ctrl.Paused = false
		}
		speaker.Unlock()
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		return nil
	}

	if err := initSpeaker(); err != nil {
		return fmt.Errorf("audio device: %w", err)
	}

	resampled := beep.Resample(4, p.format.SampleRate, speakerRate, p.streamer)
	p.ctrl = &beep.Ctrl{Streamer: resampled}
	p.volume = &effects.Volume{
		Streamer: p.ctrl,
		Base:     2,
		Volume:   gainExponent(p.level),
		Silent:   p.muted || p.level == 0,
	}
	p.started = true

	gen := p.gen
	speaker.Play(beep.Seq(p.volume, beep.Callback(func() {
		// Runs inside the speaker loop; hand off so the handler can
		// take p.mu without deadlocking.
		go p.finished(gen)
	})))
	go p.monitor(gen)
	return nil
}

// finished surfaces the ended event unless a newer load or stop has
// superseded the resource that drained. The mixer has already removed the
// drained Seq, so the chain is marked consumed and the stream rewound: the
// next Play must re-submit through speaker.Play, not un-pause a graph
// nothing pulls from anymore.
func (p *Player) finished(gen uint64) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.ctrl = nil
	p.volume = nil
	p.pausedAt = 0
	if p.streamer != nil {
		speaker.Lock()
		p.streamer.Seek(0)
		speaker.Unlock()
	}
	ev := p.events
	p.mu.Unlock()
	if ev.OnEnded != nil {
		ev.OnEnded()
	}
}

// monitor emits periodic position updates while the resource is playing. It
// exits when the resource is superseded.
func (p *Player) monitor(gen uint64) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		p.mu.Lock()
		if gen != p.gen || p.ctrl == nil {
			p.mu.Unlock()
			return
		}
		speaker.Lock()
		paused := p.ctrl.Paused
		pos := p.format.SampleRate.D(p.streamer.Position())
		speaker.Unlock()
		ev := p.events
		p.mu.Unlock()
		if !paused && ev.OnPosition != nil {
			ev.OnPosition(pos)
		}
	}
}

// Pause halts playback and records the position so a later Play resumes
// where the listener left off.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = true
	p.pausedAt = p.format.SampleRate.D(p.streamer.Position())
	speaker.Unlock()
}

// Seek moves the playback position, clamped to the resource bounds.
func (p *Player) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamer == nil {
		return ErrNoTrack
	}
	if pos < 0 {
		pos = 0
	}
	if max := p.format.SampleRate.D(p.streamer.Len()); pos > max {
		pos = max
	}
	speaker.Lock()
	err := p.streamer.Seek(p.format.SampleRate.N(pos))
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	p.pausedAt = pos
	return nil
}

// SetVolume applies a 0-100 output level. Any level above zero un-mutes.
func (p *Player) SetVolume(level int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = clampLevel(level)
	if p.level > 0 {
		p.muted = false
	}
	p.applyVolumeLocked()
}

// SetMuted silences output while keeping the remembered level.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
	p.applyVolumeLocked()
}

func (p *Player) applyVolumeLocked() {
	if p.volume == nil {
		return
	}
	speaker.Lock()
	p.volume.Volume = gainExponent(p.level)
	p.volume.Silent = p.muted || p.level == 0
	speaker.Unlock()
}

// Position returns the current playback position.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := p.streamer.Position()
	speaker.Unlock()
	return p.format.SampleRate.D(pos)
}

// Duration returns the total duration of the loaded resource.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamer == nil {
		return 0
	}
	return p.format.SampleRate.D(p.streamer.Len())
}

// Close stops playback and releases the loaded resource.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.stopLocked()
	p.url = ""
	return nil
}

// stopLocked tears down the current resource. Callers must hold p.mu.
func (p *Player) stopLocked() {
	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = true
		speaker.Unlock()
	}
	if p.streamer != nil {
		p.streamer.Close()
		p.streamer = nil
	}
	p.ctrl = nil
	p.volume = nil
	p.started = false
	p.pausedAt = 0
}

// fetch reads the resource bytes from an HTTP URL or the local filesystem.
func (p *Player) fetch(url string) ([]byte, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		resp, err := p.client.Get(url)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(url)
}

// nopCloser adapts a bytes.Reader to the io.ReadCloser the decoder expects.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
