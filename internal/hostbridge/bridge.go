package hostbridge

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/ipcril/internal/logging"
	"github.com/danmuck/ipcril/internal/ril"
	"github.com/rs/zerolog"
)

const DefaultEventCapacity = 256

type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
)

// Completion tracks one host request from mint to result.
type Completion struct {
	Token       ril.Token `json:"token"`
	Kind        string    `json:"kind"`
	State       State     `json:"state"`
	Errno       string    `json:"errno,omitempty"`
	Payload     any       `json:"payload,omitempty"`
	QueuedAt    time.Time `json:"queued_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Event is one unsolicited notification. Seq increases by one per event.
type Event struct {
	Seq     uint64    `json:"seq"`
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Bridge is a ril.Host that keeps results in memory for a pull-based client.
// The engine calls Complete and Unsolicited with its lock held, so neither
// calls back into the engine.
type Bridge struct {
	mu        sync.RWMutex
	nextToken ril.Token
	outbox    map[ril.Token]Completion

	events   []Event
	eventCap int
	eventSeq uint64

	now func() time.Time
	log zerolog.Logger
}

func New(eventCapacity int) *Bridge {
	if eventCapacity <= 0 {
		eventCapacity = DefaultEventCapacity
	}
	return &Bridge{
		outbox:   make(map[ril.Token]Completion),
		eventCap: eventCapacity,
		now:      time.Now,
		log:      logging.Component("hostbridge"),
	}
}

// Mint hands out the next token and records it as pending.
func (b *Bridge) Mint(kind string) ril.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextToken++
	if b.nextToken == ril.NoToken {
		b.nextToken++
	}
	t := b.nextToken
	b.outbox[t] = Completion{Token: t, Kind: kind, State: StatePending, QueuedAt: b.now()}
	return t
}

// Complete records the result for a tracked token. Tokens the bridge never
// minted, or that were removed, are dropped.
func (b *Bridge) Complete(t ril.Token, errno ril.Errno, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item, ok := b.outbox[t]
	if !ok {
		b.log.Debug().Uint64("token", uint64(t)).Stringer("errno", errno).Msg("completion for untracked token dropped")
		return
	}
	item.State = StateCompleted
	item.Errno = errno.String()
	item.Payload = payload
	item.CompletedAt = b.now()
	b.outbox[t] = item
	b.log.Debug().Uint64("token", uint64(t)).Str("kind", item.Kind).Stringer("errno", errno).Msg("request completed")
}

func (b *Bridge) Unsolicited(event ril.Unsolicited, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eventSeq++
	b.events = append(b.events, Event{Seq: b.eventSeq, Event: event.String(), Payload: payload, At: b.now()})
	if over := len(b.events) - b.eventCap; over > 0 {
		b.events = append(b.events[:0:0], b.events[over:]...)
	}
}

func (b *Bridge) Get(t ril.Token) (Completion, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	item, ok := b.outbox[t]
	return item, ok
}

func (b *Bridge) Remove(t ril.Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.outbox, t)
}

// List returns every tracked request ordered by token.
func (b *Bridge) List() []Completion {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Completion, 0, len(b.outbox))
	for _, item := range b.outbox {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Token < out[j].Token
	})
	return out
}

// EventsSince returns retained events with Seq greater than since.
func (b *Bridge) EventsSince(since uint64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, 0, len(b.events))
	for _, ev := range b.events {
		if ev.Seq > since {
			out = append(out, ev)
		}
	}
	return out
}

// Prune drops completed requests older than maxAge and returns how many went.
func (b *Bridge) Prune(maxAge time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := b.now().Add(-maxAge)
	n := 0
	for t, item := range b.outbox {
		if item.State == StateCompleted && item.CompletedAt.Before(cutoff) {
			delete(b.outbox, t)
			n++
		}
	}
	return n
}
