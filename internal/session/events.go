package session

import "sync"

type EventKind string

const (
	EventSignedIn        EventKind = "signed_in"
	EventSignedOut       EventKind = "signed_out"
	EventExpired         EventKind = "expired"
	EventTokensRefreshed EventKind = "tokens_refreshed"
	EventProfileUpdated  EventKind = "profile_updated"
	EventBootstrapped    EventKind = "bootstrapped"
)

// Event is published after every session mutation. Cleared is set when tokens and user were wiped,
// which is the routing layer's cue to navigate to the unauthenticated entry point.
type Event struct {
	Kind    EventKind
	State   State
	Cleared bool
	Reason  string
}

type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; a full subscriber misses the event.
func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
