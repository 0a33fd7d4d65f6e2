// README: Rate table stores (PostgreSQL JSONB rows and a static table).
package pricing

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	LoadRates(ctx context.Context) (RateTable, error)
	SaveRate(ctx context.Context, r Rate) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) LoadRates(ctx context.Context) (RateTable, error) {
	rows, err := s.db.Query(ctx, `SELECT destination, base_prices, fees FROM rates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := RateTable{}
	for rows.Next() {
		var r Rate
		var base, fees []byte
		if err := rows.Scan(&r.Destination, &base, &fees); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(base, &r.BasePrices); err != nil {
			return nil, err
		}
		if len(fees) > 0 {
			if err := json.Unmarshal(fees, &r.Fees); err != nil {
				return nil, err
			}
		}
		table[NormalizeDestination(r.Destination)] = r
	}
	return table, rows.Err()
}

func (s *PGStore) SaveRate(ctx context.Context, r Rate) error {
	base, err := json.Marshal(r.BasePrices)
	if err != nil {
		return err
	}
	fees, err := json.Marshal(r.Fees)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO rates (destination, base_prices, fees) VALUES ($1, $2, $3)
		ON CONFLICT (destination) DO UPDATE SET base_prices = EXCLUDED.base_prices, fees = EXCLUDED.fees`,
		NormalizeDestination(r.Destination), base, fees,
	)
	return err
}

// StaticStore serves a table held in memory.
type StaticStore struct {
	mu    sync.RWMutex
	table RateTable
}

func NewStaticStore(table RateTable) *StaticStore {
	s := &StaticStore{table: RateTable{}}
	for k, r := range table {
		s.table[k] = r
	}
	return s
}

func (s *StaticStore) LoadRates(context.Context) (RateTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(RateTable, len(s.table))
	for k, r := range s.table {
		out[k] = r
	}
	return out, nil
}

func (s *StaticStore) SaveRate(_ context.Context, r Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[NormalizeDestination(r.Destination)] = r
	return nil
}
