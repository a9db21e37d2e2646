package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/repository"
)

type seatKey struct{ trip, seat string }

// SeatLocks implements repository.SeatLockStore in memory.
type SeatLocks struct {
	mu    sync.Mutex
	locks map[seatKey]model.SeatLock
}

// NewSeatLocks returns an empty lease table.
func NewSeatLocks() *SeatLocks {
	return &SeatLocks{locks: map[seatKey]model.SeatLock{}}
}

func (s *SeatLocks) Acquire(_ context.Context, lock model.SeatLock) (model.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := seatKey{lock.TripID, lock.SeatID}
	if cur, ok := s.locks[k]; ok && cur.ActiveAt(lock.LockedAt) && cur.HolderID != lock.HolderID {
		return cur, repository.ErrLocked
	}
	s.locks[k] = lock
	return lock, nil
}

func (s *SeatLocks) Release(_ context.Context, tripID, seatID, holderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := seatKey{tripID, seatID}
	if cur, ok := s.locks[k]; ok && cur.HolderID == holderID {
		delete(s.locks, k)
		return true, nil
	}
	return false, nil
}

func (s *SeatLocks) ReleaseAny(_ context.Context, tripID, seatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := seatKey{tripID, seatID}
	_, ok := s.locks[k]
	delete(s.locks, k)
	return ok, nil
}

func (s *SeatLocks) FindActive(_ context.Context, tripID, seatID string, now time.Time) (*model.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.locks[seatKey{tripID, seatID}]
	if !ok || !cur.ActiveAt(now) {
		return nil, nil
	}
	return &cur, nil
}

func (s *SeatLocks) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, l := range s.locks {
		if !l.ActiveAt(now) {
			delete(s.locks, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows, expired ones included.
func (s *SeatLocks) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
