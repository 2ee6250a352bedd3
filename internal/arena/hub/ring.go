package hub

import "github.com/louisbranch/nightfall/internal/arena/event"

// ring is a bounded buffer of the most recent events for one session,
// ordered by sequence. Old events are evicted as new ones arrive; evicted
// history is only reachable through the journal.
type ring struct {
	buf   []event.Event
	start int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]event.Event, capacity)}
}

func (r *ring) push(evt event.Event) {
	if len(r.buf) == 0 {
		return
	}
	idx := (r.start + r.count) % len(r.buf)
	if r.count == len(r.buf) {
		r.buf[r.start] = evt
		r.start = (r.start + 1) % len(r.buf)
		return
	}
	r.buf[idx] = evt
	r.count++
}

// oldestSeq returns the lowest buffered sequence, 0 when empty.
func (r *ring) oldestSeq() uint64 {
	if r.count == 0 {
		return 0
	}
	return r.buf[r.start].Seq
}

// since returns buffered events with sequence greater than seq, in order.
func (r *ring) since(seq uint64) []event.Event {
	out := make([]event.Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		evt := r.buf[(r.start+i)%len(r.buf)]
		if evt.Seq > seq {
			out = append(out, evt)
		}
	}
	return out
}
