// README: Dispatcher resolves intents to recipients, writes in-app records and fans out to sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ridebook/internal/modules/driver"
	"ridebook/internal/types"
)

// Directory is the read side of the driver roster.
type Directory interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	List(ctx context.Context) ([]driver.Driver, error)
}

// Sink delivers a rendered message over one channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

type Dispatcher struct {
	records RecordStore
	dir     Directory
	admins  []Recipient
	sinks   []Sink
	log     *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewDispatcher(records RecordStore, dir Directory, log *slog.Logger, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{records: records, dir: dir, sinks: sinks, log: log, now: time.Now}
}

// WithAdmins sets the staff contacts the admin audience resolves to.
func (d *Dispatcher) WithAdmins(emails, phones []string) *Dispatcher {
	d.admins = d.admins[:0]
	n := len(emails)
	if len(phones) > n {
		n = len(phones)
	}
	for i := 0; i < n; i++ {
		var r Recipient
		r.ID = types.ID(fmt.Sprintf("admin-%d", i))
		if i < len(emails) {
			r.Email = emails[i]
		}
		if i < len(phones) {
			r.Phone = phones[i]
		}
		d.admins = append(d.admins, r)
	}
	return d
}

// Dispatch delivers intents in the background. It never blocks the caller and never
// reports an error: the state change that produced the intents is already committed.
func (d *Dispatcher) Dispatch(ctx context.Context, intents ...Intent) {
	if d == nil || len(intents) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for _, in := range intents {
			if err := d.Deliver(ctx, in); err != nil {
				d.log.Warn("notification delivery failed",
					"kind", in.Kind, "audience", in.Audience, "ride_id", in.RideID, "error", err)
			}
		}
	}()
}

// Wait blocks until all background deliveries started so far have finished.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

// Deliver records one intent and, unless it is record-only, sends it on every sink.
// Sink failures are joined; one failing channel does not stop the others.
func (d *Dispatcher) Deliver(ctx context.Context, in Intent) error {
	subject, body := Render(in)
	var errs []error

	if d.records != nil {
		rec := &Record{
			Audience:  in.Audience,
			Kind:      in.Kind,
			RideID:    in.RideID,
			DriverID:  in.DriverID,
			Exclude:   in.Exclude,
			Subject:   subject,
			Body:      body,
			Payload:   in.Payload,
			CreatedAt: d.now(),
		}
		if err := d.records.Append(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("record: %w", err))
		}
	}
	if in.RecordOnly || len(d.sinks) == 0 {
		return errors.Join(errs...)
	}

	recipients, err := d.resolve(ctx, in)
	if err != nil {
		errs = append(errs, fmt.Errorf("resolve %s: %w", in.Audience, err))
		return errors.Join(errs...)
	}
	msg := Message{Intent: in, Recipients: recipients, Subject: subject, Body: body}
	for _, s := range d.sinks {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) resolve(ctx context.Context, in Intent) ([]Recipient, error) {
	switch in.Audience {
	case AudienceDrivers:
		if d.dir == nil {
			return nil, nil
		}
		list, err := d.dir.List(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Recipient, 0, len(list))
		for _, dr := range list {
			if !dr.Active || dr.ID == in.Exclude {
				continue
			}
			out = append(out, driverRecipient(dr))
		}
		return out, nil
	case AudienceDriver:
		if d.dir == nil || in.DriverID == "" {
			return nil, nil
		}
		dr, err := d.dir.Get(ctx, in.DriverID)
		if err != nil {
			return nil, err
		}
		return []Recipient{driverRecipient(*dr)}, nil
	case AudienceCustomer:
		if in.Customer == nil {
			return nil, nil
		}
		return []Recipient{{Name: in.Customer.Name, Email: in.Customer.Email, Phone: in.Customer.Phone}}, nil
	case AudienceAdmin:
		return d.admins, nil
	}
	return nil, fmt.Errorf("unknown audience %q", in.Audience)
}

func driverRecipient(dr driver.Driver) Recipient {
	return Recipient{ID: dr.ID, Name: dr.Name, Email: dr.Email, Phone: dr.Phone, PushToken: dr.PushToken}
}
