package modecode

import (
	"testing"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
)

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		name        string
		vehicleType ardupilotmega.MAV_TYPE
		want        Category
	}{
		{"quadrotor is copter", ardupilotmega.MAV_TYPE_QUADROTOR, CategoryCopter},
		{"fixed wing is plane", ardupilotmega.MAV_TYPE_FIXED_WING, CategoryPlane},
		{"vtol tiltrotor is plane", ardupilotmega.MAV_TYPE_VTOL_TILTROTOR, CategoryPlane},
		{"ground rover is rover", ardupilotmega.MAV_TYPE_GROUND_ROVER, CategoryRover},
		{"surface boat is rover", ardupilotmega.MAV_TYPE_SURFACE_BOAT, CategoryRover},
		{"unrecognized type defaults to copter", ardupilotmega.MAV_TYPE_GENERIC, CategoryCopter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryFor(tt.vehicleType); got != tt.want {
				t.Errorf("CategoryFor(%v) = %v, want %v", tt.vehicleType, got, tt.want)
			}
		})
	}
}

func TestModeName(t *testing.T) {
	tests := []struct {
		name       string
		category   Category
		customMode uint32
		want       string
	}{
		{"copter STABILIZE", CategoryCopter, 0, "STABILIZE"},
		{"copter GUIDED", CategoryCopter, 4, "GUIDED"},
		{"plane FBWA", CategoryPlane, 5, "FBWA"},
		{"rover HOLD", CategoryRover, 4, "HOLD"},
		{"unrecognized custom_mode", CategoryCopter, 9999, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModeName(tt.category, tt.customMode); got != tt.want {
				t.Errorf("ModeName(%v, %d) = %q, want %q", tt.category, tt.customMode, got, tt.want)
			}
		})
	}
}

func TestModeID_RoundTrip(t *testing.T) {
	for _, cat := range []Category{CategoryCopter, CategoryPlane, CategoryRover} {
		for custom, name := range map[Category]map[uint32]string{
			CategoryCopter: copterModes,
			CategoryPlane:  planeModes,
			CategoryRover:  roverModes,
		}[cat] {
			id, ok := ModeID(cat, name)
			if !ok {
				t.Errorf("ModeID(%v, %q) not found", cat, name)
				continue
			}
			if id != custom {
				t.Errorf("ModeID(%v, %q) = %d, want %d", cat, name, id, custom)
			}
		}
	}
}

func TestModeID_Unknown(t *testing.T) {
	if _, ok := ModeID(CategoryCopter, "NOT_A_REAL_MODE"); ok {
		t.Error("ModeID should return ok=false for an unrecognized name")
	}
}
