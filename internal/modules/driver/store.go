// README: Driver and day-off stores (PostgreSQL and in-memory).
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ridebook/internal/types"
)

type Store interface {
	Get(ctx context.Context, id types.ID) (*Driver, error)
	List(ctx context.Context) ([]Driver, error)
	Upsert(ctx context.Context, d *Driver) error
	SetServiceFee(ctx context.Context, id types.ID, pct decimal.Decimal) error
	// DayOffs returns entries for driverID and for the AllDrivers sentinel.
	DayOffs(ctx context.Context, driverID types.ID) ([]DayOff, error)
	ListDayOffs(ctx context.Context) ([]DayOff, error)
	AddDayOff(ctx context.Context, d *DayOff) error
	DeleteDayOff(ctx context.Context, id types.ID) (bool, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const driverColumns = `id, name, email, phone, push_token, vehicles, service_fee_percent::text, active`

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var vehicles []byte
	var fee string
	if err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.PushToken, &vehicles, &fee, &d.Active); err != nil {
		return nil, err
	}
	if len(vehicles) > 0 {
		if err := json.Unmarshal(vehicles, &d.Vehicles); err != nil {
			return nil, err
		}
	}
	pct, err := decimal.NewFromString(fee)
	if err != nil {
		return nil, err
	}
	d.ServiceFeePercent = pct
	return &d, nil
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	d, err := scanDriver(s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *PGStore) List(ctx context.Context) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PGStore) Upsert(ctx context.Context, d *Driver) error {
	vehicles, err := json.Marshal(d.Vehicles)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO drivers (id, name, email, phone, push_token, vehicles, service_fee_percent, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			push_token = EXCLUDED.push_token,
			vehicles = EXCLUDED.vehicles,
			service_fee_percent = EXCLUDED.service_fee_percent,
			active = EXCLUDED.active`,
		string(d.ID), d.Name, d.Email, d.Phone, d.PushToken, vehicles, d.FeePercent().String(), d.Active,
	)
	return err
}

func (s *PGStore) SetServiceFee(ctx context.Context, id types.ID, pct decimal.Decimal) error {
	tag, err := s.db.Exec(ctx, `UPDATE drivers SET service_fee_percent = $1::numeric WHERE id = $2`, pct.String(), string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DayOffs(ctx context.Context, driverID types.ID) ([]DayOff, error) {
	return s.queryDayOffs(ctx, `SELECT id, driver_id, day::text FROM day_offs WHERE driver_id = $1 OR driver_id = $2 ORDER BY day`,
		string(driverID), string(AllDrivers))
}

func (s *PGStore) ListDayOffs(ctx context.Context) ([]DayOff, error) {
	return s.queryDayOffs(ctx, `SELECT id, driver_id, day::text FROM day_offs ORDER BY day, driver_id`)
}

func (s *PGStore) queryDayOffs(ctx context.Context, sql string, args ...any) ([]DayOff, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DayOff
	for rows.Next() {
		var d DayOff
		var day string
		if err := rows.Scan(&d.ID, &d.DriverID, &day); err != nil {
			return nil, err
		}
		if d.Date, err = civil.ParseDate(day); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PGStore) AddDayOff(ctx context.Context, d *DayOff) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO day_offs (id, driver_id, day) VALUES ($1, $2, $3::date)
		ON CONFLICT (driver_id, day) DO NOTHING`,
		string(d.ID), string(d.DriverID), d.Date.String(),
	)
	return err
}

func (s *PGStore) DeleteDayOff(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM day_offs WHERE id = $1`, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MemStore keeps drivers in process memory; used for local runs and tests.
type MemStore struct {
	mu      sync.RWMutex
	drivers map[types.ID]Driver
	dayOffs map[types.ID]DayOff
}

func NewMemStore() *MemStore {
	return &MemStore{drivers: map[types.ID]Driver{}, dayOffs: map[types.ID]DayOff{}}
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	d.Vehicles = append([]Vehicle(nil), d.Vehicles...)
	return &d, nil
}

func (s *MemStore) List(_ context.Context) ([]Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		if d.Active {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemStore) Upsert(_ context.Context, d *Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *d
	c.ServiceFeePercent = d.FeePercent()
	c.Vehicles = append([]Vehicle(nil), d.Vehicles...)
	s.drivers[d.ID] = c
	return nil
}

func (s *MemStore) SetServiceFee(_ context.Context, id types.ID, pct decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return ErrNotFound
	}
	d.ServiceFeePercent = pct
	s.drivers[id] = d
	return nil
}

func (s *MemStore) DayOffs(_ context.Context, driverID types.ID) ([]DayOff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DayOff
	for _, d := range s.dayOffs {
		if d.AppliesTo(driverID) {
			out = append(out, d)
		}
	}
	sortDayOffs(out)
	return out, nil
}

func (s *MemStore) ListDayOffs(_ context.Context) ([]DayOff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DayOff, 0, len(s.dayOffs))
	for _, d := range s.dayOffs {
		out = append(out, d)
	}
	sortDayOffs(out)
	return out, nil
}

func (s *MemStore) AddDayOff(_ context.Context, d *DayOff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.dayOffs {
		if existing.DriverID == d.DriverID && existing.Date == d.Date {
			return nil
		}
	}
	s.dayOffs[d.ID] = *d
	return nil
}

func (s *MemStore) DeleteDayOff(_ context.Context, id types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dayOffs[id]; !ok {
		return false, nil
	}
	delete(s.dayOffs, id)
	return true, nil
}

func sortDayOffs(ds []DayOff) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].Date != ds[j].Date {
			return ds[i].Date.Before(ds[j].Date)
		}
		return ds[i].DriverID < ds[j].DriverID
	})
}
