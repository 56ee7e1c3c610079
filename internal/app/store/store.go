// Package store holds the last published call snapshot and fans it out to
// subscribers such as a UI or the headless client's logger.
package store

import (
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/media"
	"github.com/rs/zerolog/log"
)

// Snapshot is an immutable view of the call. Session is nil when not in a call.
type Snapshot struct {
	Session   *domain.CallSession
	Streams   map[domain.UserID][]media.TrackStats
	Signaling string
}

type Store struct {
	mu     sync.Mutex
	last   Snapshot
	nextID int
	subs   map[int]chan Snapshot
}

func New() *Store {
	return &Store{subs: make(map[int]chan Snapshot)}
}

// Publish records s and offers it to every subscriber without blocking.
// A slow subscriber loses its oldest pending snapshot.
func (s *Store) Publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = snap
	for id, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
			log.Warn().Str("module", "store").Int("sub", id).Msg("snapshot dropped")
		}
	}
}

func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Subscribe returns a channel primed with the current snapshot and a cancel func.
func (s *Store) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.last
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}
