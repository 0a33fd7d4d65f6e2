// README: Shared fixtures for ride service tests (fixed clock, seeded drivers, intent recorder).
package ride

import (
	"context"
	"sync"
	"testing"
	"time"

	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/notify"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/types"
)

// Monday 2026-03-02 09:00 UTC.
var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type intentRecorder struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (r *intentRecorder) Dispatch(_ context.Context, intents ...notify.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intents...)
}

// Take returns and clears everything recorded so far.
func (r *intentRecorder) Take() []notify.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.intents
	r.intents = nil
	return out
}

type fixture struct {
	svc     *Service
	store   *MemStore
	drivers *driver.MemStore
	clock   *testClock
	sent    *intentRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   NewMemStore(),
		drivers: driver.NewMemStore(),
		clock:   &testClock{t: testNow},
		sent:    &intentRecorder{},
	}
	seed := []driver.Driver{
		{ID: "d-sedan", Name: "Sam Sedan", Email: "sam@example.com", Active: true,
			Vehicles: []driver.Vehicle{{Class: driver.ClassSedan, Label: "Toyota Camry"}}},
		{ID: "d-suv", Name: "Sue Suv", Email: "sue@example.com", Active: true,
			Vehicles: []driver.Vehicle{{Class: driver.ClassSUV, Label: "Honda Pilot"}}},
		{ID: "d-xl", Name: "Xavier Xl", Email: "xavier@example.com", Active: true,
			Vehicles: []driver.Vehicle{{Class: driver.ClassXLSUV, Label: "Chevy Suburban"}, {Class: driver.ClassSedan, Label: "Honda Accord"}}},
		{ID: "d-none", Name: "Nora None", Active: true},
		{ID: "d-off", Name: "Otto Off", Active: false,
			Vehicles: []driver.Vehicle{{Class: driver.ClassXLSUV}}},
	}
	for i := range seed {
		if err := f.drivers.Upsert(context.Background(), &seed[i]); err != nil {
			t.Fatalf("seed driver: %v", err)
		}
	}
	pricer := pricing.NewService(pricing.NewStaticStore(pricing.DefaultRateTable(2025, 2028)))
	f.svc = NewService(f.store, f.drivers, pricer, f.sent, Options{
		Location: time.UTC,
		Clock:    f.clock.Now,
	})
	return f
}

func (f *fixture) create(t *testing.T, date, at, pickup, dest, vehicle string) *Ride {
	t.Helper()
	r, err := f.svc.Create(context.Background(), CreateCommand{
		CustomerName:  "Casey Customer",
		CustomerEmail: "casey@example.com",
		CustomerPhone: "+15555550100",
		Pickup:        pickup,
		Destination:   dest,
		Date:          date,
		Time:          at,
		Passengers:    2,
		VehicleType:   vehicle,
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	f.sent.Take()
	return r
}

func (f *fixture) accept(t *testing.T, rideID types.ID, driverID types.ID) *Ride {
	t.Helper()
	r, err := f.svc.Accept(context.Background(), AcceptCommand{RideID: rideID, DriverID: driverID, Actor: DriverActor(driverID)})
	if err != nil {
		t.Fatalf("accept %s by %s: %v", rideID, driverID, err)
	}
	f.sent.Take()
	return r
}

func findIntent(intents []notify.Intent, audience notify.Audience, kind notify.Kind) (notify.Intent, bool) {
	for _, in := range intents {
		if in.Audience == audience && in.Kind == kind {
			return in, true
		}
	}
	return notify.Intent{}, false
}

func hasAudience(intents []notify.Intent, audience notify.Audience) bool {
	for _, in := range intents {
		if in.Audience == audience {
			return true
		}
	}
	return false
}
