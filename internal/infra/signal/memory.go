package signal

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemorySignal fans confirmations out to subscribers in the same process.
type MemorySignal struct {
	mu     sync.Mutex
	nextID int
	subs   map[uuid.UUID]map[int]chan uuid.UUID
}

// NewMemorySignal creates an in-process signal.
func NewMemorySignal() *MemorySignal {
	return &MemorySignal{subs: make(map[uuid.UUID]map[int]chan uuid.UUID)}
}

// Subscribe registers a buffered channel for the parking.
func (s *MemorySignal) Subscribe(_ context.Context, parkingID uuid.UUID) (<-chan uuid.UUID, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan uuid.UUID, 1)
	id := s.nextID
	s.nextID++

	if s.subs[parkingID] == nil {
		s.subs[parkingID] = make(map[int]chan uuid.UUID)
	}
	s.subs[parkingID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			delete(s.subs[parkingID], id)
			if len(s.subs[parkingID]) == 0 {
				delete(s.subs, parkingID)
			}
		})
	}

	return ch, cancel, nil
}

// Publish delivers the occupation id to every subscriber of the parking without blocking.
func (s *MemorySignal) Publish(_ context.Context, parkingID, occupationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs[parkingID] {
		select {
		case ch <- occupationID:
		default:
		}
	}

	return nil
}
