// README: Driver service exposes the read API used by dispatch plus admin day-off and fee updates.
package driver

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"ridebook/internal/types"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Driver, error) {
	return s.store.List(ctx)
}

func (s *Service) Register(ctx context.Context, d Driver) (*Driver, error) {
	if d.ID == "" || d.Name == "" {
		return nil, fmt.Errorf("%w: id and name are required", ErrBadRequest)
	}
	for _, v := range d.Vehicles {
		if !v.Class.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVehicle, v.Class)
		}
	}
	if d.ServiceFeePercent.IsZero() {
		d.ServiceFeePercent = DefaultServiceFeePercent
	}
	if err := s.store.Upsert(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) DayOffs(ctx context.Context, driverID types.ID) ([]DayOff, error) {
	return s.store.DayOffs(ctx, driverID)
}

func (s *Service) ListDayOffs(ctx context.Context) ([]DayOff, error) {
	return s.store.ListDayOffs(ctx)
}

// AddDayOff blocks a calendar date for one driver, or for everyone when driverID is AllDrivers.
func (s *Service) AddDayOff(ctx context.Context, driverID types.ID, date civil.Date) (*DayOff, error) {
	if !date.IsValid() {
		return nil, fmt.Errorf("%w: invalid date", ErrBadRequest)
	}
	if driverID == "" {
		return nil, fmt.Errorf("%w: driver_id is required", ErrBadRequest)
	}
	if driverID != AllDrivers {
		if _, err := s.store.Get(ctx, driverID); err != nil {
			return nil, err
		}
	}
	d := &DayOff{ID: types.NewID(), DriverID: driverID, Date: date}
	if err := s.store.AddDayOff(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) DeleteDayOff(ctx context.Context, id types.ID) (bool, error) {
	return s.store.DeleteDayOff(ctx, id)
}

// SetServiceFee changes the commission rate. Archived commission is derived from the
// current rate, so this also changes historical figures.
func (s *Service) SetServiceFee(ctx context.Context, id types.ID, pct decimal.Decimal) error {
	if pct.LessThanOrEqual(decimal.Zero) || pct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: service fee must be in (0, 100]", ErrBadRequest)
	}
	return s.store.SetServiceFee(ctx, id, pct)
}
