// README: Durable in-app notification records (PostgreSQL and in-memory).
package notify

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/internal/types"
)

type RecordStore interface {
	Append(ctx context.Context, r *Record) error
	ListForDriver(ctx context.Context, driverID types.ID, limit int) ([]Record, error)
	ListForAdmin(ctx context.Context, limit int) ([]Record, error)
}

type PGRecordStore struct {
	db *pgxpool.Pool
}

func NewPGRecordStore(db *pgxpool.Pool) *PGRecordStore {
	return &PGRecordStore{db: db}
}

func (s *PGRecordStore) Append(ctx context.Context, r *Record) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return err
	}
	return s.db.QueryRow(ctx, `
		INSERT INTO notifications (audience, kind, ride_id, driver_id, exclude_driver_id, subject, body, payload, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9)
		RETURNING id`,
		string(r.Audience), string(r.Kind), string(r.RideID), string(r.DriverID), string(r.Exclude),
		r.Subject, r.Body, payload, r.CreatedAt,
	).Scan(&r.ID)
}

func (s *PGRecordStore) ListForDriver(ctx context.Context, driverID types.ID, limit int) ([]Record, error) {
	return s.query(ctx, `
		SELECT id, audience, kind, ride_id, COALESCE(driver_id, ''), COALESCE(exclude_driver_id, ''),
		       subject, body, payload, created_at
		FROM notifications
		WHERE (audience = 'drivers' AND (exclude_driver_id IS NULL OR exclude_driver_id <> $1))
		   OR (audience = 'driver' AND driver_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, string(driverID), limit)
}

func (s *PGRecordStore) ListForAdmin(ctx context.Context, limit int) ([]Record, error) {
	return s.query(ctx, `
		SELECT id, audience, kind, ride_id, COALESCE(driver_id, ''), COALESCE(exclude_driver_id, ''),
		       subject, body, payload, created_at
		FROM notifications
		WHERE audience = 'admin'
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
}

func (s *PGRecordStore) query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var audience, kind, rideID, driverID, exclude string
		var payload []byte
		if err := rows.Scan(&r.ID, &audience, &kind, &rideID, &driverID, &exclude,
			&r.Subject, &r.Body, &payload, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Audience = Audience(audience)
		r.Kind = Kind(kind)
		r.RideID = types.ID(rideID)
		r.DriverID = types.ID(driverID)
		r.Exclude = types.ID(exclude)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &r.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MemRecordStore keeps records in memory for tests and the memory store mode.
type MemRecordStore struct {
	mu   sync.RWMutex
	seq  int64
	recs []Record
}

func NewMemRecordStore() *MemRecordStore {
	return &MemRecordStore{}
}

func (s *MemRecordStore) Append(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	r.ID = s.seq
	s.recs = append(s.recs, *r)
	return nil
}

func (s *MemRecordStore) ListForDriver(_ context.Context, driverID types.ID, limit int) ([]Record, error) {
	return s.filter(limit, func(r Record) bool { return r.VisibleTo(driverID) }), nil
}

func (s *MemRecordStore) ListForAdmin(_ context.Context, limit int) ([]Record, error) {
	return s.filter(limit, func(r Record) bool { return r.Audience == AudienceAdmin }), nil
}

// All returns every record in insertion order.
func (s *MemRecordStore) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.recs...)
}

func (s *MemRecordStore) filter(limit int, keep func(Record) bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.recs {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
