// README: Archive ledger stores (PostgreSQL and in-memory). Appends merge by ride id.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ridebook/internal/types"
)

type Store interface {
	// Append inserts rides not yet in the ledger and returns how many were new.
	Append(ctx context.Context, rides []ArchivedRide) (int, error)
	Month(ctx context.Context, monthKey string) ([]Entry, error)
	Months(ctx context.Context) ([]string, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, rides []ArchivedRide) (int, error) {
	if len(rides) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, r := range rides {
		doc, err := json.Marshal(r.Ride)
		if err != nil {
			return 0, fmt.Errorf("encode ride %s: %w", r.RideID, err)
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO archive_rides (ride_id, month_key, driver_id, income, currency, completed_at, ride)
			VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
			ON CONFLICT (ride_id) DO NOTHING`,
			string(r.RideID), r.MonthKey, string(r.DriverID), r.Income.Amount.String(), r.Income.Currency,
			r.CompletedAt, doc,
		)
		if err != nil {
			return 0, fmt.Errorf("archive ride %s: %w", r.RideID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *PGStore) Month(ctx context.Context, monthKey string) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ride_id, month_key, driver_id, income::text, currency, completed_at, ride
		FROM archive_rides WHERE month_key = $1
		ORDER BY driver_id, completed_at`, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedRide
	for rows.Next() {
		var (
			r            ArchivedRide
			id, driverID string
			income       string
			doc          []byte
		)
		if err := rows.Scan(&id, &r.MonthKey, &driverID, &income, &r.Income.Currency, &r.CompletedAt, &doc); err != nil {
			return nil, err
		}
		amt, err := decimal.NewFromString(income)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(doc, &r.Ride); err != nil {
			return nil, err
		}
		r.RideID, r.DriverID = types.ID(id), types.ID(driverID)
		r.Income.Amount = amt
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return group(out), nil
}

func (s *PGStore) Months(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT month_key FROM archive_rides ORDER BY month_key DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

type MemStore struct {
	mu    sync.RWMutex
	rides map[types.ID]ArchivedRide
}

func NewMemStore() *MemStore {
	return &MemStore{rides: map[types.ID]ArchivedRide{}}
}

func (s *MemStore) Append(_ context.Context, rides []ArchivedRide) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, r := range rides {
		if _, ok := s.rides[r.RideID]; ok {
			continue
		}
		s.rides[r.RideID] = r
		inserted++
	}
	return inserted, nil
}

func (s *MemStore) Month(_ context.Context, monthKey string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ArchivedRide
	for _, r := range s.rides {
		if r.MonthKey == monthKey {
			out = append(out, r)
		}
	}
	return group(out), nil
}

func (s *MemStore) Months(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, r := range s.rides {
		if !seen[r.MonthKey] {
			seen[r.MonthKey] = true
			out = append(out, r.MonthKey)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// group buckets rides by (month, driver), ordered by driver then completion time.
func group(rides []ArchivedRide) []Entry {
	sort.Slice(rides, func(i, j int) bool {
		a, b := rides[i], rides[j]
		if a.MonthKey != b.MonthKey {
			return a.MonthKey < b.MonthKey
		}
		if a.DriverID != b.DriverID {
			return a.DriverID < b.DriverID
		}
		return a.CompletedAt.Before(b.CompletedAt)
	})
	var out []Entry
	for _, r := range rides {
		n := len(out)
		if n == 0 || out[n-1].MonthKey != r.MonthKey || out[n-1].DriverID != r.DriverID {
			out = append(out, Entry{MonthKey: r.MonthKey, DriverID: r.DriverID})
			n++
		}
		out[n-1].Rides = append(out[n-1].Rides, r)
	}
	return out
}
