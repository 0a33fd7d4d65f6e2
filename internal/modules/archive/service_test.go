// README: Rollup tests (month boundary, idempotency, merge by ride id, single-flight, retroactive commission).
package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

var la, _ = time.LoadLocation("America/Los_Angeles")

type fixture struct {
	svc     *Service
	rides   *ride.MemStore
	ledger  *MemStore
	guard   *MemGuard
	drivers *driver.MemStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rides:   ride.NewMemStore(),
		ledger:  NewMemStore(),
		guard:   NewMemGuard(),
		drivers: driver.NewMemStore(),
	}
	ctx := context.Background()
	for _, d := range []driver.Driver{
		{ID: "d1", Name: "Dana One", Active: true, ServiceFeePercent: decimal.NewFromInt(15)},
		{ID: "d2", Name: "Eli Two", Active: true, ServiceFeePercent: decimal.NewFromInt(20)},
	} {
		if err := f.drivers.Upsert(ctx, &d); err != nil {
			t.Fatalf("seed driver: %v", err)
		}
	}
	f.svc = NewService(f.rides, f.ledger, f.guard, f.drivers, Options{Location: la})
	return f
}

func (f *fixture) completed(t *testing.T, id, driverID string, price int64, at time.Time) {
	t.Helper()
	did := types.ID(driverID)
	r := ride.Ride{
		ID:          types.ID(id),
		Date:        civil.DateOf(at.In(la)),
		Time:        civil.Time{Hour: 10},
		Status:      ride.StatusCompleted,
		Confirmed:   true,
		DriverID:    &did,
		Driver:      &ride.DriverSnapshot{Name: "snapshot " + driverID},
		CompletedAt: &at,
		Price:       pricing.Quote{TotalPrice: types.USD(price)},
	}
	if err := f.rides.Create(context.Background(), &r); err != nil {
		t.Fatalf("create ride: %v", err)
	}
}

func TestRun_ArchivesOnlyEarlierMonths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completed(t, "feb-1", "d1", 100, time.Date(2026, 2, 10, 18, 0, 0, 0, la))
	f.completed(t, "feb-2", "d1", 50, time.Date(2026, 2, 28, 23, 30, 0, 0, la))
	f.completed(t, "jan-1", "d2", 80, time.Date(2026, 1, 5, 9, 0, 0, 0, la))
	// Just after midnight local on March 1 belongs to March.
	f.completed(t, "mar-1", "d1", 70, time.Date(2026, 3, 1, 0, 30, 0, 0, la))

	rep, err := f.svc.Run(ctx, time.Date(2026, 3, 2, 8, 0, 0, 0, la))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Skipped || rep.Scanned != 3 || rep.Inserted != 3 || rep.Entries != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(rep.Months) != 2 || rep.Months[0] != "2026-01" || rep.Months[1] != "2026-02" {
		t.Fatalf("months = %v", rep.Months)
	}

	for _, id := range []types.ID{"feb-1", "feb-2", "jan-1"} {
		if _, err := f.rides.Get(ctx, id); !errors.Is(err, ride.ErrNotFound) {
			t.Errorf("ride %s still live: %v", id, err)
		}
	}
	if _, err := f.rides.Get(ctx, "mar-1"); err != nil {
		t.Errorf("current-month ride should stay live: %v", err)
	}

	feb, _ := f.ledger.Month(ctx, "2026-02")
	if len(feb) != 1 || feb[0].DriverID != "d1" || len(feb[0].Rides) != 2 {
		t.Fatalf("feb entries = %+v", feb)
	}
	if got := feb[0].Income().Amount; !got.Equal(decimal.NewFromInt(150)) {
		t.Errorf("feb income = %s", got)
	}
}

func TestRun_SecondRunSameMonthIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, la)
	f.completed(t, "feb-1", "d1", 100, time.Date(2026, 2, 10, 18, 0, 0, 0, la))
	if _, err := f.svc.Run(ctx, now); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// A late completion of a February ride appears after the run; it waits for next month.
	f.completed(t, "feb-late", "d1", 40, time.Date(2026, 2, 27, 12, 0, 0, 0, la))
	rep, err := f.svc.Run(ctx, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !rep.Skipped {
		t.Fatalf("expected skipped report, got %+v", rep)
	}
	if _, err := f.rides.Get(ctx, "feb-late"); err != nil {
		t.Errorf("skipped run must not touch rides: %v", err)
	}

	rep, err = f.svc.Run(ctx, time.Date(2026, 4, 1, 1, 0, 0, 0, la))
	if err != nil {
		t.Fatalf("april run: %v", err)
	}
	if rep.Skipped || rep.Inserted != 1 {
		t.Fatalf("april report %+v", rep)
	}
	feb, _ := f.ledger.Month(ctx, "2026-02")
	if len(feb) != 1 || len(feb[0].Rides) != 2 {
		t.Fatalf("february entry should merge, got %+v", feb)
	}
}

func TestRun_MergesByRideID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 10, 18, 0, 0, 0, la)
	f.completed(t, "feb-1", "d1", 100, at)

	// Simulate an interrupted earlier run that appended but never deleted.
	r, _ := f.rides.Get(ctx, "feb-1")
	if _, err := f.ledger.Append(ctx, []ArchivedRide{toArchived(*r, la)}); err != nil {
		t.Fatalf("pre-append: %v", err)
	}

	rep, err := f.svc.Run(ctx, time.Date(2026, 3, 2, 8, 0, 0, 0, la))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Scanned != 1 || rep.Inserted != 0 {
		t.Fatalf("report %+v", rep)
	}
	if _, err := f.rides.Get(ctx, "feb-1"); !errors.Is(err, ride.ErrNotFound) {
		t.Errorf("ride should be removed after merge: %v", err)
	}
	feb, _ := f.ledger.Month(ctx, "2026-02")
	if len(feb) != 1 || len(feb[0].Rides) != 1 {
		t.Fatalf("duplicate archive rows: %+v", feb)
	}
}

func TestRun_UsesRecalculatedPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 10, 18, 0, 0, 0, la)
	did := types.ID("d1")
	re := pricing.Quote{TotalPrice: types.USD(125)}
	r := ride.Ride{
		ID: "resched", Status: ride.StatusCompleted, DriverID: &did, CompletedAt: &at,
		Price: pricing.Quote{TotalPrice: types.USD(100)}, RecalculatedPrice: &re,
	}
	if err := f.rides.Create(ctx, &r); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Run(ctx, time.Date(2026, 3, 2, 8, 0, 0, 0, la)); err != nil {
		t.Fatal(err)
	}
	feb, _ := f.ledger.Month(ctx, "2026-02")
	if got := feb[0].Income().Amount; !got.Equal(decimal.NewFromInt(125)) {
		t.Errorf("income = %s, want recalculated 125", got)
	}
}

type blockingRides struct {
	*ride.MemStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRides) ListCompletedBefore(ctx context.Context, before time.Time) ([]ride.Ride, error) {
	close(b.entered)
	<-b.release
	return b.MemStore.ListCompletedBefore(ctx, before)
}

func TestRun_SingleFlight(t *testing.T) {
	br := &blockingRides{MemStore: ride.NewMemStore(), entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(br, NewMemStore(), NewMemGuard(), driver.NewMemStore(), Options{Location: la})
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, la)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = svc.Run(context.Background(), now)
	}()
	<-br.entered

	if _, err := svc.Run(context.Background(), now); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("overlapping run: got %v, want ErrAlreadyRunning", err)
	}
	close(br.release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first run: %v", firstErr)
	}
}

func TestRun_LockHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	release, ok, _ := f.guard.Acquire(context.Background(), time.Minute)
	if !ok {
		t.Fatal("expected to acquire lock")
	}
	defer release()
	if _, err := f.svc.Run(context.Background(), time.Now()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("got %v, want ErrAlreadyRunning", err)
	}
}

func TestSummary_CommissionUsesCurrentFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completed(t, "feb-1", "d1", 100, time.Date(2026, 2, 10, 18, 0, 0, 0, la))
	f.completed(t, "feb-2", "d1", 100, time.Date(2026, 2, 11, 18, 0, 0, 0, la))
	f.completed(t, "feb-3", "d2", 50, time.Date(2026, 2, 12, 18, 0, 0, 0, la))
	f.completed(t, "feb-4", "gone", 40, time.Date(2026, 2, 13, 18, 0, 0, 0, la))
	if _, err := f.svc.Run(ctx, time.Date(2026, 3, 2, 8, 0, 0, 0, la)); err != nil {
		t.Fatal(err)
	}

	sum, err := f.svc.Summary(ctx, "2026-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Drivers) != 3 {
		t.Fatalf("drivers = %+v", sum.Drivers)
	}
	byID := map[types.ID]DriverSummary{}
	for _, d := range sum.Drivers {
		byID[d.DriverID] = d
	}
	if d := byID["d1"]; d.Rides != 2 || !d.Commission.Amount.Equal(decimal.NewFromInt(30)) || !d.Payout.Amount.Equal(decimal.NewFromInt(170)) {
		t.Errorf("d1 summary %+v", d)
	}
	if d := byID["d2"]; !d.Commission.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("d2 commission %s", d.Commission.Amount)
	}
	// Unknown drivers fall back to the default fee and the archived snapshot name.
	if d := byID["gone"]; !d.Commission.Amount.Equal(decimal.NewFromInt(6)) || d.DriverName != "snapshot gone" {
		t.Errorf("gone summary %+v", d)
	}

	if err := f.drivers.SetServiceFee(ctx, "d1", decimal.NewFromInt(10)); err != nil {
		t.Fatal(err)
	}
	sum, _ = f.svc.Summary(ctx, "2026-02")
	for _, d := range sum.Drivers {
		if d.DriverID == "d1" && !d.Commission.Amount.Equal(decimal.NewFromInt(20)) {
			t.Errorf("commission after fee change = %s, want 20", d.Commission.Amount)
		}
	}
}

func TestSummary_RejectsBadMonth(t *testing.T) {
	f := newFixture(t)
	for _, m := range []string{"", "2026-2", "2026-13", "march"} {
		if _, err := f.svc.Summary(context.Background(), m); !errors.Is(err, ErrBadMonth) {
			t.Errorf("Summary(%q) = %v, want ErrBadMonth", m, err)
		}
	}
}
