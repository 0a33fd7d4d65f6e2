// README: In-memory ride store for local runs and tests; same conditional-update contract as PGStore.
package ride

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridebook/internal/types"
)

type MemStore struct {
	mu    sync.RWMutex
	rides map[types.ID]Ride
}

func NewMemStore() *MemStore {
	return &MemStore{rides: map[types.ID]Ride{}}
}

func (s *MemStore) Create(_ context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides[r.ID] = clone(*r)
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := clone(r)
	return &c, nil
}

func (s *MemStore) List(_ context.Context, f Filter) ([]Ride, error) {
	out := s.collect(f.Match)
	sortBySchedule(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemStore) ListAcceptedByDriver(_ context.Context, driverID types.ID) ([]Ride, error) {
	out := s.collect(func(r Ride) bool { return r.Status == StatusAccepted && r.AssignedTo(driverID) })
	sortBySchedule(out)
	return out, nil
}

func (s *MemStore) ListCompletedBefore(_ context.Context, before time.Time) ([]Ride, error) {
	out := s.collect(func(r Ride) bool {
		return r.Status == StatusCompleted && r.CompletedAt != nil && r.CompletedAt.Before(before)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	return out, nil
}

func (s *MemStore) UpdateIf(_ context.Context, r *Ride, expect Status, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rides[r.ID]
	if !ok || cur.Status != expect || cur.StatusVersion != version {
		return false, nil
	}
	r.StatusVersion = version + 1
	s.rides[r.ID] = clone(*r)
	return true, nil
}

func (s *MemStore) Delete(_ context.Context, id types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rides[id]; !ok {
		return false, nil
	}
	delete(s.rides, id)
	return true, nil
}

func (s *MemStore) DeleteMany(_ context.Context, ids []types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.rides, id)
	}
	return nil
}

func (s *MemStore) collect(keep func(Ride) bool) []Ride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Ride
	for _, r := range s.rides {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	return out
}

func sortBySchedule(rs []Ride) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time.String() < b.Time.String()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// clone copies the pointer fields so callers cannot mutate stored state.
func clone(r Ride) Ride {
	c := r
	c.DriverID = clonePtr(r.DriverID)
	c.Driver = clonePtr(r.Driver)
	c.PreviousDriverID = clonePtr(r.PreviousDriverID)
	c.Flight = clonePtr(r.Flight)
	c.CancellationFee = clonePtr(r.CancellationFee)
	c.RecalculatedPrice = clonePtr(r.RecalculatedPrice)
	c.PreviousDate = clonePtr(r.PreviousDate)
	c.PreviousTime = clonePtr(r.PreviousTime)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
