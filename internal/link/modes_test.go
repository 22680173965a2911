package link

import "testing"

func TestModeRoundTrip(t *testing.T) {
	for _, class := range []VehicleClass{ClassPlane, ClassCopter, ClassRover} {
		for num, name := range modeTable(class) {
			got, ok := ModeNumber(class, name)
			if !ok || got != num {
				t.Fatalf("class %d: ModeNumber(%s)=%d,%v want %d", class, name, got, ok, num)
			}
		}
	}
}

func TestModeName_Unknown(t *testing.T) {
	if got := ModeName(ClassPlane, 99); got != "MODE(99)" {
		t.Fatalf("ModeName=%q", got)
	}
	if _, ok := ModeNumber(ClassCopter, "MANUAL"); ok {
		t.Fatalf("copter has no MANUAL mode")
	}
}
