package idp

import (
	"sync"

	"github.com/dgellow/authfront/internal/log"
)

// EventKind names an auth-state change
type EventKind string

const (
	EventSignedIn         EventKind = "SIGNED_IN"
	EventSignedOut        EventKind = "SIGNED_OUT"
	EventPasswordRecovery EventKind = "PASSWORD_RECOVERY"
)

// Event is delivered to subscribers of the browser it concerns
type Event struct {
	Kind    EventKind
	Session *Session
}

const subscriptionBuffer = 8

// Hub fans auth-state events out to the subscribers of each browser
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription receives the events of one browser until Unsubscribe
type Subscription struct {
	C <-chan Event

	ch    chan Event
	hub   *Hub
	owner string
	once  sync.Once
}

// Subscribe registers for the events of owner
func (h *Hub) Subscribe(owner string) *Subscription {
	ch := make(chan Event, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, owner: owner}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[owner] == nil {
		h.subs[owner] = make(map[*Subscription]struct{})
	}
	h.subs[owner][sub] = struct{}{}
	return sub
}

// Unsubscribe stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()

		if set := s.hub.subs[s.owner]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.owner)
			}
		}
		close(s.ch)
	})
}

// Publish delivers ev to every current subscriber of owner without
// blocking. Events for a full subscriber are dropped.
func (h *Hub) Publish(owner string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[owner] {
		select {
		case sub.ch <- ev:
		default:
			log.LogWarnWithFields("idp", "Dropping auth event for slow subscriber", map[string]any{
				"event": string(ev.Kind),
			})
		}
	}
}

// Drain returns the events already queued on s without waiting
func (s *Subscription) Drain() []Event {
	var events []Event
	for {
		select {
		case ev, ok := <-s.ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}
