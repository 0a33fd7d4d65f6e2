// README: Ride service loads rides, applies pure transitions, persists them with a guarded update and dispatches notifications.
package ride

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ridebook/internal/logging"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/eligibility"
	"ridebook/internal/modules/notify"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/types"
)

// Drivers is the driver/day-off read API the engine consumes.
type Drivers interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	DayOffs(ctx context.Context, driverID types.ID) ([]driver.DayOff, error)
}

type Pricer interface {
	Quote(ctx context.Context, in pricing.Input) (pricing.Quote, error)
}

// Notifier receives intents after a transition has been committed.
type Notifier interface {
	Dispatch(ctx context.Context, intents ...notify.Intent)
}

type Options struct {
	Location *time.Location
	Quiet    QuietHours
	Clock    types.Clock
	Logger   *slog.Logger
}

type Service struct {
	store    Store
	drivers  Drivers
	pricing  Pricer
	notifier Notifier
	quiet    QuietHours
	loc      *time.Location
	now      types.Clock
	log      *slog.Logger
	validate *validator.Validate
}

func NewService(store Store, drivers Drivers, pricer Pricer, notifier Notifier, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = types.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{
		store:    store,
		drivers:  drivers,
		pricing:  pricer,
		notifier: notifier,
		quiet:    opts.Quiet,
		loc:      opts.Location,
		now:      opts.Clock,
		log:      opts.Logger,
		validate: v,
	}
}

type CreateCommand struct {
	CustomerName       string      `json:"customer_name" validate:"required,max=120"`
	CustomerEmail      string      `json:"customer_email" validate:"required,email"`
	CustomerPhone      string      `json:"customer_phone" validate:"required,min=7,max=32"`
	Pickup             string      `json:"pickup" validate:"required,max=300"`
	Destination        string      `json:"destination" validate:"required,max=300"`
	Date               string      `json:"date" validate:"required"`
	Time               string      `json:"time" validate:"required"`
	Passengers         int         `json:"passengers" validate:"min=1,max=14"`
	VehicleType        string      `json:"vehicle_type" validate:"required"`
	Flight             *FlightInfo `json:"flight"`
	MeetAtBaggageClaim bool        `json:"meet_at_baggage_claim"`
	Notes              string      `json:"notes" validate:"max=1000"`
}

type AcceptCommand struct {
	RideID   types.ID
	DriverID types.ID
	Actor    Actor
}

type GiveUpCommand struct {
	RideID types.ID
	Actor  Actor
}

type ConfirmCommand struct {
	RideID types.ID
	Actor  Actor
}

type CompleteCommand struct {
	RideID types.ID
	Actor  Actor
}

type RescheduleCommand struct {
	RideID types.ID `json:"-"`
	Date   string   `json:"date" validate:"required"`
	Time   string   `json:"time" validate:"required"`
	Actor  Actor    `json:"-"`
}

type CancelCommand struct {
	RideID types.ID
	Actor  Actor
}

type CustomerCancelCommand struct {
	RideID types.ID
	Token  string
}

type DeleteCommand struct {
	RideID types.ID
	Actor  Actor
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, validationError(err)
	}
	date, at, err := s.parseSchedule(cmd.Date, cmd.Time)
	if err != nil {
		return nil, err
	}
	class, err := driver.ParseVehicleClass(cmd.VehicleType)
	if err != nil {
		return nil, invalid("vehicle_type", err.Error())
	}
	quote, err := s.quote(ctx, cmd.Destination, class, date, at, cmd.MeetAtBaggageClaim)
	if err != nil {
		return nil, err
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &Ride{
		ID:                 types.NewID(),
		CustomerName:       strings.TrimSpace(cmd.CustomerName),
		CustomerEmail:      strings.TrimSpace(cmd.CustomerEmail),
		CustomerPhone:      strings.TrimSpace(cmd.CustomerPhone),
		Pickup:             strings.TrimSpace(cmd.Pickup),
		Destination:        strings.TrimSpace(cmd.Destination),
		Date:               date,
		Time:               at,
		Passengers:         cmd.Passengers,
		VehicleClass:       class,
		Flight:             cmd.Flight,
		MeetAtBaggageClaim: cmd.MeetAtBaggageClaim,
		Notes:              strings.TrimSpace(cmd.Notes),
		Status:             StatusPending,
		StatusVersion:      0,
		CancelToken:        token,
		Price:              quote,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	quiet := s.quiet.Active(now, s.loc)
	s.dispatch(ctx, created(*r, quiet))
	logging.Action(s.log, "ride.create").Info("ride created",
		"ride_id", r.ID, "destination", r.Destination, "vehicle", r.VehicleClass, "quiet_hours", quiet)
	return r, nil
}

// Accept assigns a pending ride to a driver. Drivers accept for themselves; admins may
// assign any driver. Losing the guarded update to a concurrent writer yields ErrConflict.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Ride, error) {
	if cmd.RideID == "" || cmd.DriverID == "" {
		return nil, ErrBadRequest
	}
	if !cmd.Actor.IsAdmin() && cmd.Actor.ID != cmd.DriverID {
		return nil, ErrForbidden
	}
	r, err := s.get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, ErrConflict
	}
	d, err := s.driver(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	decision, err := s.evaluate(ctx, *r, *d)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &DeniedError{Reason: decision.Reason}
	}
	next, intents, err := accept(*r, *d, s.now())
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, r, next, intents, "ride.accept")
}

func (s *Service) GiveUp(ctx context.Context, cmd GiveUpCommand) (*Ride, error) {
	r, err := s.get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	next, intents, err := giveUp(*r, cmd.Actor, s.now())
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, r, next, intents, "ride.give_up")
}

func (s *Service) ConfirmPickup(ctx context.Context, cmd ConfirmCommand) (*Ride, error) {
	r, err := s.get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	next, intents, err := confirmPickup(*r, cmd.Actor, s.now(), s.loc)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, r, next, intents, "ride.confirm")
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Ride, error) {
	r, err := s.get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	next, intents, err := complete(*r, cmd.Actor, s.now(), uuid.NewString())
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, r, next, intents, "ride.complete")
}

// Reschedule moves an accepted ride and reprices it for the new date and time. The
// original price is kept; the new quote goes to RecalculatedPrice.
func (s *Service) Reschedule(ctx context.Context, cmd RescheduleCommand) (*Ride, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, validationError(err)
	}
	date, at, err := s.parseSchedule(cmd.Date, cmd.Time)
	if err != nil {
		return nil, err
	}
	r, err := s.get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusAccepted {
		return nil, ErrInvalidState
	}
	quote, err := s.quote(ctx, r.Destination, r.VehicleClass, date, at, r.MeetAtBaggageClaim)
	if err != nil {
		return nil, err
	}
	next, intents, err := reschedule(*r, cmd.Actor, date, at, quote, s.now())
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, r, next, intents, "ride.reschedule")
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Ride, error) {
	r, err := s.get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	next, intents, err := cancel(*r, cmd.Actor, s.now())
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, r, next, intents, "ride.cancel")
}

func (s *Service) CancelByCustomer(ctx context.Context, cmd CustomerCancelCommand) (*Ride, error) {
	if cmd.RideID == "" || cmd.Token == "" {
		return nil, ErrBadRequest
	}
	r, err := s.get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	next, intents, err := cancelByCustomer(*r, cmd.Token, s.now(), s.loc)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, r, next, intents, "ride.cancel_by_customer")
}

// Delete hard-removes a ride in any status.
func (s *Service) Delete(ctx context.Context, cmd DeleteCommand) error {
	r, err := s.get(ctx, cmd.RideID)
	if err != nil {
		return err
	}
	intents, err := deleted(*r, cmd.Actor)
	if err != nil {
		return err
	}
	ok, err := s.store.Delete(ctx, r.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ride %s: %w", r.ID, ErrNotFound)
	}
	s.dispatch(ctx, intents)
	logging.Action(s.log, "ride.delete").Info("ride deleted", "ride_id", r.ID, "status", r.Status, "actor", cmd.Actor.ID)
	return nil
}

// CheckEligibility is the read-only form of the accept guard.
func (s *Service) CheckEligibility(ctx context.Context, rideID, driverID types.ID) (eligibility.Decision, error) {
	r, err := s.get(ctx, rideID)
	if err != nil {
		return eligibility.Decision{}, err
	}
	d, err := s.driver(ctx, driverID)
	if err != nil {
		return eligibility.Decision{}, err
	}
	if r.Status != StatusPending {
		return eligibility.Deny("This ride is not available."), nil
	}
	return s.evaluate(ctx, *r, *d)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.get(ctx, id)
}

// ListAvailable returns pending rides from today on, for the driver dashboard.
func (s *Service) ListAvailable(ctx context.Context) ([]Ride, error) {
	today := civil.DateOf(s.now().In(s.loc))
	return s.store.List(ctx, Filter{Status: []Status{StatusPending}, From: &today})
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID) ([]Ride, error) {
	return s.store.List(ctx, Filter{DriverID: driverID})
}

func (s *Service) List(ctx context.Context, f Filter) ([]Ride, error) {
	return s.store.List(ctx, f)
}

func (s *Service) get(ctx context.Context, id types.ID) (*Ride, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	r, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("ride %s: %w", id, ErrNotFound)
	}
	return r, err
}

func (s *Service) driver(ctx context.Context, id types.ID) (*driver.Driver, error) {
	d, err := s.drivers.Get(ctx, id)
	if errors.Is(err, driver.ErrNotFound) {
		return nil, fmt.Errorf("driver %s: %w", id, ErrNotFound)
	}
	return d, err
}

func (s *Service) evaluate(ctx context.Context, r Ride, d driver.Driver) (eligibility.Decision, error) {
	if !d.Active {
		return eligibility.Deny("This driver account is not active."), nil
	}
	dayOffs, err := s.drivers.DayOffs(ctx, d.ID)
	if err != nil {
		return eligibility.Decision{}, err
	}
	accepted, err := s.store.ListAcceptedByDriver(ctx, d.ID)
	if err != nil {
		return eligibility.Decision{}, err
	}
	bookings := make([]eligibility.Booking, 0, len(accepted))
	for _, a := range accepted {
		bookings = append(bookings, eligibility.Booking{
			RideID: a.ID, Date: a.Date, Time: a.Time, Pickup: a.Pickup, Destination: a.Destination,
		})
	}
	c := eligibility.Candidate{
		RideID:       r.ID,
		Date:         r.Date,
		Time:         r.Time,
		Pickup:       r.Pickup,
		Destination:  r.Destination,
		VehicleClass: r.VehicleClass,
	}
	return eligibility.Check(c, d, dayOffs, bookings), nil
}

// commit persists next only if the stored ride is still at prev's status and version,
// then hands the intents to the notifier.
func (s *Service) commit(ctx context.Context, prev *Ride, next Ride, intents []notify.Intent, action string) (*Ride, error) {
	if !CanTransition(prev.Status, next.Status) {
		return nil, fmt.Errorf("ride %s %s -> %s: %w", prev.ID, prev.Status, next.Status, ErrInvalidState)
	}
	ok, err := s.store.UpdateIf(ctx, &next, prev.Status, prev.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.dispatch(ctx, intents)
	logging.Action(s.log, action).Info("ride transition",
		"ride_id", next.ID, "from", prev.Status, "to", next.Status, "version", next.StatusVersion)
	return &next, nil
}

func (s *Service) dispatch(ctx context.Context, intents []notify.Intent) {
	if s.notifier == nil || len(intents) == 0 {
		return
	}
	s.notifier.Dispatch(ctx, intents...)
}

func (s *Service) quote(ctx context.Context, dest string, class driver.VehicleClass, date civil.Date, at civil.Time, baggage bool) (pricing.Quote, error) {
	q, err := s.pricing.Quote(ctx, pricing.Input{
		Destination:        dest,
		VehicleClass:       class,
		Date:               date,
		Time:               at,
		MeetAtBaggageClaim: baggage,
	})
	if errors.Is(err, pricing.ErrNoRate) {
		return pricing.Quote{}, invalid("destination", "no rate is configured for this destination and vehicle")
	}
	return q, err
}

// parseSchedule reads a ride date and time and requires them to be in the future.
func (s *Service) parseSchedule(dateStr, timeStr string) (civil.Date, civil.Time, error) {
	date, err := types.ParseDate(dateStr)
	if err != nil {
		return civil.Date{}, civil.Time{}, invalid("date", "must be YYYY-MM-DD")
	}
	at, err := types.ParseClockTime(timeStr)
	if err != nil {
		return civil.Date{}, civil.Time{}, invalid("time", "must be HH:MM")
	}
	if !types.At(date, at, s.loc).After(s.now()) {
		return civil.Date{}, civil.Time{}, invalid("date", "must be in the future")
	}
	return date, at, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid("request", err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

// newToken returns 32 hex characters for customer self-service cancellation.
func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
