// Package queue implements the play queue used by the playback controller.
// A Queue holds an ordered list of track descriptors together with the index
// of the current track and a shuffle flag, and decides which track comes
// next or previous. The queue is logically circular: advancing past the last
// track wraps to the first and stepping back from the first wraps to the
// last. The controller owns the queue exclusively; readers only ever see
// copies returned by Tracks.
package queue

import (
	"math/rand"
	"time"

	"K-Tunes/pkg/track"
)

// Queue is an ordered sequence of tracks with a current position. The zero
// value is not usable; call New.
type Queue struct {
	tracks  []track.Track
	current int // -1 when no track is selected
	shuffle bool
	rng     *rand.Rand
}

// New returns an empty queue with no current track.
func New() *Queue {
	return &Queue{
		current: -1,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int { return len(q.tracks) }

// IsEmpty reports whether the queue has no tracks.
func (q *Queue) IsEmpty() bool { return len(q.tracks) == 0 }

// Tracks returns a copy of the queued tracks in playback order.
func (q *Queue) Tracks() []track.Track {
	out := make([]track.Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// Current returns the track at the current index. The second return value is
// false when the queue is empty or no track has been selected yet.
func (q *Queue) Current() (track.Track, bool) {
	if q.current < 0 || q.current >= len(q.tracks) {
		return track.Track{}, false
	}
	return q.tracks[q.current], true
}

// CurrentIndex returns the current position, or -1 when none is selected.
func (q *Queue) CurrentIndex() int { return q.current }

// SetShuffle enables or disables shuffled selection for future Next and
// Previous calls. It has no effect on the current track.
func (q *Queue) SetShuffle(on bool) { q.shuffle = on }

// Shuffle reports whether shuffled selection is enabled.
func (q *Queue) Shuffle() bool { return q.shuffle }

// IndexOf returns the position of the track with the given ID, or -1.
func (q *Queue) IndexOf(id string) int {
	for i, t := range q.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether a track with the given ID is queued.
func (q *Queue) Contains(id string) bool { return q.IndexOf(id) >= 0 }

// Next advances the current index and returns the new current track. Without
// shuffle the queue is circular: (current+1) mod len. With shuffle a uniformly
// random index is chosen; when more than one track is queued the pick is
// resampled until it differs from the current index so the same track is not
// repeated back to back. On an empty queue Next is a no-op and returns false.
func (q *Queue) Next() (track.Track, bool) {
	if len(q.tracks) == 0 {
		return track.Track{}, false
	}
	q.current = q.pick(q.current + 1)
	return q.tracks[q.current], true
}

// Previous steps the current index back and returns the new current track.
// It mirrors Next: shuffle picks a random distinct index, otherwise the index
// wraps from 0 to len-1. On an empty queue Previous is a no-op.
func (q *Queue) Previous() (track.Track, bool) {
	if len(q.tracks) == 0 {
		return track.Track{}, false
	}
	prev := q.current - 1
	if prev < 0 {
		prev = len(q.tracks) - 1
	}
	q.current = q.pick(prev)
	return q.tracks[q.current], true
}

// pick resolves the target index for Next/Previous, applying shuffle when
// enabled. sequential is the index to use in order mode and is assumed to be
// within [0, len) after wrapping by the caller, except for Next which passes
// current+1 and relies on the modulo here.
func (q *Queue) pick(sequential int) int {
	n := len(q.tracks)
	if !q.shuffle {
		return ((sequential % n) + n) % n
	}
	if n == 1 {
		return 0
	}
	for {
		i := q.rng.Intn(n)
		if i != q.current {
			return i
		}
	}
}

// JumpTo selects the track at index i as current. It returns false when the
// index is out of range.
func (q *Queue) JumpTo(i int) bool {
	if i < 0 || i >= len(q.tracks) {
		return false
	}
	q.current = i
	return true
}

// Enqueue appends a track to the end of the queue. Adding a track whose ID is
// already queued is a no-op, so Enqueue is idempotent.
func (q *Queue) Enqueue(t track.Track) {
	if q.Contains(t.ID) {
		return
	}
	q.tracks = append(q.tracks, t)
}

// RemoveAt deletes the track at index i. When the removed index is before the
// current one the current index is decremented so it keeps pointing at the
// same logical track. Removing the current track itself is reported through
// removedCurrent; the caller decides how playback proceeds. After such a
// removal the current index points at the element that shifted into the
// removed slot, clamped to the new bounds, or -1 when the queue is empty.
func (q *Queue) RemoveAt(i int) (removedCurrent bool, ok bool) {
	if i < 0 || i >= len(q.tracks) {
		return false, false
	}
	removedCurrent = i == q.current
	q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)
	switch {
	case len(q.tracks) == 0:
		q.current = -1
	case i < q.current:
		q.current--
	case removedCurrent && q.current >= len(q.tracks):
		q.current = len(q.tracks) - 1
	}
	return removedCurrent, true
}

// Replace swaps the whole queue for a new list, as when playback starts from
// a fresh playlist. The current index is set to the position of startID, or 0
// when the ID is not present. An empty list clears the queue.
func (q *Queue) Replace(tracks []track.Track, startID string) {
	q.tracks = make([]track.Track, len(tracks))
	copy(q.tracks, tracks)
	if len(q.tracks) == 0 {
		q.current = -1
		return
	}
	q.current = 0
	if i := q.IndexOf(startID); i >= 0 {
		q.current = i
	}
}

// Clear empties the queue and resets the current index.
func (q *Queue) Clear() {
	q.tracks = nil
	q.current = -1
}
