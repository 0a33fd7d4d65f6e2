// README: Ride storage interface and its PostgreSQL implementation with conditional updates.
package ride

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/types"
)

type Store interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	List(ctx context.Context, f Filter) ([]Ride, error)
	ListAcceptedByDriver(ctx context.Context, driverID types.ID) ([]Ride, error)
	ListCompletedBefore(ctx context.Context, before time.Time) ([]Ride, error)
	// UpdateIf writes r only if the stored ride still has status expect and the given
	// version. It reports false when another writer got there first.
	UpdateIf(ctx context.Context, r *Ride, expect Status, version int) (bool, error)
	Delete(ctx context.Context, id types.ID) (bool, error)
	DeleteMany(ctx context.Context, ids []types.ID) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const rideColumns = `
	id, customer_name, customer_email, customer_phone, pickup, destination,
	ride_date::text, ride_time::text, passengers, vehicle_class, flight, meet_at_baggage_claim, notes,
	driver_id, driver_snapshot, previous_driver_id, previous_driver_name, was_given_up, given_up_at,
	status, status_version, confirmed, confirmed_at, accepted_at, completed_at, cancelled_at,
	cancelled_by, cancellation_fee::text, cancel_token, survey_token,
	price, recalculated_price, previous_date::text, previous_time::text, rescheduled_at,
	created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, r *Ride) error {
	enc, err := encode(r)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO rides (
			id, customer_name, customer_email, customer_phone, pickup, destination,
			ride_date, ride_time, passengers, vehicle_class, flight, meet_at_baggage_claim, notes,
			driver_id, driver_snapshot, previous_driver_id, previous_driver_name, was_given_up, given_up_at,
			status, status_version, confirmed, confirmed_at, accepted_at, completed_at, cancelled_at,
			cancelled_by, cancellation_fee, cancel_token, survey_token,
			price, recalculated_price, previous_date, previous_time, rescheduled_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7::date, $8::time, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26,
			$27, $28::numeric, $29, $30,
			$31, $32, $33::date, $34::time, $35,
			$36, $37
		)`,
		string(r.ID), r.CustomerName, r.CustomerEmail, r.CustomerPhone, r.Pickup, r.Destination,
		r.Date.String(), r.Time.String(), r.Passengers, string(r.VehicleClass), enc.flight, r.MeetAtBaggageClaim, r.Notes,
		idPtr(r.DriverID), enc.snapshot, idPtr(r.PreviousDriverID), r.PreviousDriverName, r.WasGivenUp, r.GivenUpAt,
		string(r.Status), r.StatusVersion, r.Confirmed, r.ConfirmedAt, r.AcceptedAt, r.CompletedAt, r.CancelledAt,
		r.CancelledBy, enc.fee, r.CancelToken, r.SurveyToken,
		enc.price, enc.recalculated, enc.prevDate, enc.prevTime, r.RescheduledAt,
		r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	r, err := scanRide(s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]Ride, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(f.Status) > 0 {
		ss := make([]string, len(f.Status))
		for i, st := range f.Status {
			ss[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(ss)+")")
	}
	if f.DriverID != "" {
		where = append(where, "driver_id = "+arg(string(f.DriverID)))
	}
	if f.From != nil {
		where = append(where, "ride_date >= "+arg(f.From.String())+"::date")
	}
	if f.To != nil {
		where = append(where, "ride_date <= "+arg(f.To.String())+"::date")
	}
	q := `SELECT ` + rideColumns + ` FROM rides`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ride_date, ride_time, created_at"
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}
	return s.query(ctx, q, args...)
}

func (s *PGStore) ListAcceptedByDriver(ctx context.Context, driverID types.ID) ([]Ride, error) {
	return s.query(ctx, `SELECT `+rideColumns+` FROM rides
		WHERE status = 'accepted' AND driver_id = $1
		ORDER BY ride_date, ride_time`, string(driverID))
}

func (s *PGStore) ListCompletedBefore(ctx context.Context, before time.Time) ([]Ride, error) {
	return s.query(ctx, `SELECT `+rideColumns+` FROM rides
		WHERE status = 'completed' AND completed_at < $1
		ORDER BY completed_at`, before)
}

func (s *PGStore) UpdateIf(ctx context.Context, r *Ride, expect Status, version int) (bool, error) {
	enc, err := encode(r)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE rides SET
			ride_date = $1::date, ride_time = $2::time,
			driver_id = $3, driver_snapshot = $4,
			previous_driver_id = $5, previous_driver_name = $6, was_given_up = $7, given_up_at = $8,
			status = $9, status_version = status_version + 1,
			confirmed = $10, confirmed_at = $11, accepted_at = $12, completed_at = $13, cancelled_at = $14,
			cancelled_by = $15, cancellation_fee = $16::numeric, survey_token = $17,
			recalculated_price = $18, previous_date = $19::date, previous_time = $20::time, rescheduled_at = $21,
			updated_at = $22
		WHERE id = $23 AND status = $24 AND status_version = $25`,
		r.Date.String(), r.Time.String(),
		idPtr(r.DriverID), enc.snapshot,
		idPtr(r.PreviousDriverID), r.PreviousDriverName, r.WasGivenUp, r.GivenUpAt,
		string(r.Status),
		r.Confirmed, r.ConfirmedAt, r.AcceptedAt, r.CompletedAt, r.CancelledAt,
		r.CancelledBy, enc.fee, r.SurveyToken,
		enc.recalculated, enc.prevDate, enc.prevTime, r.RescheduledAt,
		r.UpdatedAt,
		string(r.ID), string(expect), version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	r.StatusVersion = version + 1
	return true, nil
}

func (s *PGStore) Delete(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM rides WHERE id = $1`, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) DeleteMany(ctx context.Context, ids []types.ID) error {
	if len(ids) == 0 {
		return nil
	}
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = string(id)
	}
	_, err := s.db.Exec(ctx, `DELETE FROM rides WHERE id = ANY($1)`, ss)
	return err
}

func (s *PGStore) query(ctx context.Context, sql string, args ...any) ([]Ride, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// encoded holds the encoded forms of the ride's composite columns.
type encoded struct {
	flight, snapshot, price, recalculated []byte
	fee, prevDate, prevTime               *string
}

func encode(r *Ride) (encoded, error) {
	var out encoded
	var err error
	if out.flight, err = jsonOrNil(r.Flight); err != nil {
		return out, err
	}
	if out.snapshot, err = jsonOrNil(r.Driver); err != nil {
		return out, err
	}
	if out.price, err = json.Marshal(r.Price); err != nil {
		return out, err
	}
	if out.recalculated, err = jsonOrNil(r.RecalculatedPrice); err != nil {
		return out, err
	}
	if r.CancellationFee != nil {
		v := r.CancellationFee.Amount.String()
		out.fee = &v
	}
	if r.PreviousDate != nil {
		v := r.PreviousDate.String()
		out.prevDate = &v
	}
	if r.PreviousTime != nil {
		v := r.PreviousTime.String()
		out.prevTime = &v
	}
	return out, nil
}

func jsonOrNil[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var id, vehicle, status string
	var date, clock string
	var driverID, prevDriverID, fee, prevDate, prevTime *string
	var flight, snapshot, price, recalculated []byte

	err := row.Scan(
		&id, &r.CustomerName, &r.CustomerEmail, &r.CustomerPhone, &r.Pickup, &r.Destination,
		&date, &clock, &r.Passengers, &vehicle, &flight, &r.MeetAtBaggageClaim, &r.Notes,
		&driverID, &snapshot, &prevDriverID, &r.PreviousDriverName, &r.WasGivenUp, &r.GivenUpAt,
		&status, &r.StatusVersion, &r.Confirmed, &r.ConfirmedAt, &r.AcceptedAt, &r.CompletedAt, &r.CancelledAt,
		&r.CancelledBy, &fee, &r.CancelToken, &r.SurveyToken,
		&price, &recalculated, &prevDate, &prevTime, &r.RescheduledAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.ID = types.ID(id)
	r.VehicleClass = driver.VehicleClass(vehicle)
	if r.Status, err = ParseStatus(status); err != nil {
		return nil, err
	}
	if r.Date, err = civil.ParseDate(date); err != nil {
		return nil, err
	}
	if r.Time, err = civil.ParseTime(clock); err != nil {
		return nil, err
	}
	r.DriverID = toIDPtr(driverID)
	r.PreviousDriverID = toIDPtr(prevDriverID)
	if fee != nil {
		amt, err := decimal.NewFromString(*fee)
		if err != nil {
			return nil, err
		}
		r.CancellationFee = &types.Money{Amount: amt, Currency: types.DefaultCurrency}
	}
	if prevDate != nil {
		d, err := civil.ParseDate(*prevDate)
		if err != nil {
			return nil, err
		}
		r.PreviousDate = &d
	}
	if prevTime != nil {
		t, err := civil.ParseTime(*prevTime)
		if err != nil {
			return nil, err
		}
		r.PreviousTime = &t
	}
	if len(flight) > 0 {
		r.Flight = &FlightInfo{}
		if err := json.Unmarshal(flight, r.Flight); err != nil {
			return nil, err
		}
	}
	if len(snapshot) > 0 {
		r.Driver = &DriverSnapshot{}
		if err := json.Unmarshal(snapshot, r.Driver); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(price, &r.Price); err != nil {
		return nil, err
	}
	if len(recalculated) > 0 {
		r.RecalculatedPrice = &pricing.Quote{}
		if err := json.Unmarshal(recalculated, r.RecalculatedPrice); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}
