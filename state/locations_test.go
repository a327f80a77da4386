package state

import (
	"math"
	"testing"
)

func TestLocationGlobalFromMAVLink_AltWarmupGate(t *testing.T) {
	loc := LocationGlobalFromMAVLink(473977420, 85455940, 0)
	if loc.Alt != nil {
		t.Errorf("Alt = %v, want nil before a non-zero raw alt is observed", *loc.Alt)
	}
	if math.Abs(loc.Lat-47.3977420) > 1e-7 {
		t.Errorf("Lat = %v, want 47.3977420", loc.Lat)
	}
	if math.Abs(loc.Lon-8.5455940) > 1e-7 {
		t.Errorf("Lon = %v, want 8.5455940", loc.Lon)
	}
}

func TestLocationGlobalFromMAVLink_AltAccepted(t *testing.T) {
	loc := LocationGlobalFromMAVLink(473977420, 85455940, 488000)
	if loc.Alt == nil {
		t.Fatal("Alt should be set once a non-zero raw alt is observed")
	}
	if math.Abs(*loc.Alt-488.0) > 1e-3 {
		t.Errorf("Alt = %v, want 488.0", *loc.Alt)
	}
}

func TestLocationGlobal_Distance(t *testing.T) {
	// Zurich HB to Zurich airport, roughly 10km apart.
	zurichHB := LocationGlobal{Lat: 47.3779, Lon: 8.5403}
	zurichAirport := LocationGlobal{Lat: 47.4647, Lon: 8.5492}

	d := zurichHB.Distance(zurichAirport)
	if d < 9000 || d > 11000 {
		t.Errorf("Distance() = %v, want roughly 10000m", d)
	}

	if d := zurichHB.Distance(zurichHB); d != 0 {
		t.Errorf("Distance() to self = %v, want 0", d)
	}
}

func TestLocationLocal_Distance(t *testing.T) {
	a := LocationLocal{North: 0, East: 0, Down: 0}
	b := LocationLocal{North: 3, East: 4, Down: 0}

	if d := a.Distance(b); d != 5 {
		t.Errorf("Distance() = %v, want 5 (3-4-5 triangle)", d)
	}

	c := LocationLocal{North: 1, East: 2, Down: 2}
	if d := a.Distance(c); d != 3 {
		t.Errorf("Distance() = %v, want 3", d)
	}
}
