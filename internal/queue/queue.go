// Package queue orders the tracks the file source visualizes.
package queue

import "math/rand"

// RepeatMode controls what happens when a track ends.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

// Next cycles off → all → one → off.
func (r RepeatMode) Next() RepeatMode {
	switch r {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

func (r RepeatMode) String() string {
	switch r {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// Icon returns a status-line indicator, empty when repeat is off.
func (r RepeatMode) Icon() string {
	switch r {
	case RepeatAll:
		return "[repeat]"
	case RepeatOne:
		return "[repeat 1]"
	default:
		return ""
	}
}

// Queue is an ordered list of track paths. It is only used from the
// host's update loop.
type Queue struct {
	paths    []string
	order    []int // play position -> index into paths
	pos      int
	repeat   RepeatMode
	shuffled bool
	rng      *rand.Rand
}

// New returns a queue positioned on the first path. rng is used for
// shuffling and may be nil until Shuffle is called.
func New(paths []string, rng *rand.Rand) *Queue {
	q := &Queue{paths: paths, rng: rng}
	q.resetOrder()
	return q
}

func (q *Queue) resetOrder() {
	q.order = make([]int, len(q.paths))
	for i := range q.order {
		q.order[i] = i
	}
}

// Len returns the number of tracks.
func (q *Queue) Len() int { return len(q.paths) }

// Position returns the zero-based play position.
func (q *Queue) Position() int { return q.pos }

// Current returns the path at the play position, or "" when empty.
func (q *Queue) Current() string {
	if q.pos < 0 || q.pos >= len(q.order) {
		return ""
	}
	return q.paths[q.order[q.pos]]
}

// Repeat returns the repeat mode.
func (q *Queue) Repeat() RepeatMode { return q.repeat }

// CycleRepeat advances the repeat mode and returns it.
func (q *Queue) CycleRepeat() RepeatMode {
	q.repeat = q.repeat.Next()
	return q.repeat
}

// Shuffled reports whether the play order is shuffled.
func (q *Queue) Shuffled() bool { return q.shuffled }

// ToggleShuffle shuffles the tracks after the current one, or restores
// the unshuffled order keeping the current track current.
func (q *Queue) ToggleShuffle() bool {
	if len(q.order) == 0 {
		return q.shuffled
	}
	cur := q.order[q.pos]
	if q.shuffled {
		q.resetOrder()
		q.pos = cur
		q.shuffled = false
		return false
	}
	// Current track goes first, the rest are permuted behind it.
	rest := make([]int, 0, len(q.paths)-1)
	for i := range q.paths {
		if i != cur {
			rest = append(rest, i)
		}
	}
	if q.rng != nil {
		q.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	}
	q.order = append([]int{cur}, rest...)
	q.pos = 0
	q.shuffled = true
	return true
}

// Finished moves on after the current track ended naturally. It returns
// false when playback should stop.
func (q *Queue) Finished() bool {
	switch q.repeat {
	case RepeatOne:
		return len(q.order) > 0
	case RepeatAll:
		if len(q.order) == 0 {
			return false
		}
		q.pos = (q.pos + 1) % len(q.order)
		return true
	}
	return q.Advance()
}

// Advance moves to the next track. It returns false at the end.
func (q *Queue) Advance() bool {
	if q.pos+1 >= len(q.order) {
		if q.repeat == RepeatAll && len(q.order) > 0 {
			q.pos = 0
			return true
		}
		return false
	}
	q.pos++
	return true
}

// Previous moves back one track. It returns false at the start.
func (q *Queue) Previous() bool {
	if q.pos <= 0 {
		return false
	}
	q.pos--
	return true
}

// Peek returns up to n paths after the current one.
func (q *Queue) Peek(n int) []string {
	var out []string
	for i := q.pos + 1; i < len(q.order) && len(out) < n; i++ {
		out = append(out, q.paths[q.order[i]])
	}
	return out
}
