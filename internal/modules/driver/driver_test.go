// README: Driver module tests (vehicle hierarchy, day-off scoping, fee updates).
package driver

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func TestVehicleClassCovers(t *testing.T) {
	cases := []struct {
		have, need VehicleClass
		want       bool
	}{
		{ClassSedan, ClassSedan, true},
		{ClassSedan, ClassSUV, false},
		{ClassSedan, ClassXLSUV, false},
		{ClassSUV, ClassSedan, true},
		{ClassSUV, ClassSUV, true},
		{ClassSUV, ClassXLSUV, false},
		{ClassXLSUV, ClassSedan, true},
		{ClassXLSUV, ClassSUV, true},
		{ClassXLSUV, ClassXLSUV, true},
		{VehicleClass("van"), ClassSedan, false},
	}
	for _, tc := range cases {
		if got := tc.have.Covers(tc.need); got != tc.want {
			t.Errorf("%s.Covers(%s) = %v, want %v", tc.have, tc.need, got, tc.want)
		}
	}
}

func TestParseVehicleClass(t *testing.T) {
	cases := map[string]VehicleClass{
		"Sedan":  ClassSedan,
		" suv ":  ClassSUV,
		"XL SUV": ClassXLSUV,
		"XL_SUV": ClassXLSUV,
		"xl-suv": ClassXLSUV,
	}
	for in, want := range cases {
		got, err := ParseVehicleClass(in)
		if err != nil || got != want {
			t.Errorf("ParseVehicleClass(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseVehicleClass("minivan"); !errors.Is(err, ErrUnknownVehicle) {
		t.Errorf("expected ErrUnknownVehicle, got %v", err)
	}
}

func TestBestVehicleFor(t *testing.T) {
	d := Driver{Vehicles: []Vehicle{
		{Class: ClassXLSUV, Label: "Suburban"},
		{Class: ClassSedan, Label: "Camry"},
	}}
	v, ok := d.BestVehicleFor(ClassSedan)
	if !ok || v.Label != "Camry" {
		t.Errorf("expected Camry for sedan ride, got %+v", v)
	}
	v, ok = d.BestVehicleFor(ClassSUV)
	if !ok || v.Label != "Suburban" {
		t.Errorf("expected Suburban for SUV ride, got %+v", v)
	}
	if _, ok := (Driver{}).BestVehicleFor(ClassSedan); ok {
		t.Error("driver without vehicles should have no match")
	}
}

func TestDayOffsIncludeAllSentinel(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemStore())
	if _, err := svc.Register(ctx, Driver{ID: "d1", Name: "Ann", Active: true}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, Driver{ID: "d2", Name: "Bob", Active: true}); err != nil {
		t.Fatalf("register: %v", err)
	}
	day := civil.Date{Year: 2026, Month: 12, Day: 25}
	if _, err := svc.AddDayOff(ctx, AllDrivers, day); err != nil {
		t.Fatalf("add all: %v", err)
	}
	if _, err := svc.AddDayOff(ctx, "d2", day.AddDays(1)); err != nil {
		t.Fatalf("add d2: %v", err)
	}

	d1, _ := svc.DayOffs(ctx, "d1")
	if len(d1) != 1 || d1[0].Date != day {
		t.Errorf("d1 day offs = %+v", d1)
	}
	d2, _ := svc.DayOffs(ctx, "d2")
	if len(d2) != 2 {
		t.Errorf("d2 day offs = %+v", d2)
	}
	if _, err := svc.AddDayOff(ctx, "ghost", day); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown driver: expected ErrNotFound, got %v", err)
	}
}

func TestRegisterDefaultsServiceFee(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemStore())
	d, err := svc.Register(ctx, Driver{ID: "d1", Name: "Ann"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !d.ServiceFeePercent.Equal(decimal.NewFromInt(15)) {
		t.Errorf("default fee = %s", d.ServiceFeePercent)
	}
	if err := svc.SetServiceFee(ctx, "d1", decimal.NewFromInt(20)); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	got, _ := svc.Get(ctx, "d1")
	if !got.ServiceFeePercent.Equal(decimal.NewFromInt(20)) {
		t.Errorf("fee after update = %s", got.ServiceFeePercent)
	}
	if err := svc.SetServiceFee(ctx, "d1", decimal.NewFromInt(120)); !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest for 120%%, got %v", err)
	}
	if err := svc.SetServiceFee(ctx, "ghost", decimal.NewFromInt(10)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
