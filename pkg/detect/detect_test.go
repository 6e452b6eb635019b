package detect

import "testing"

func TestDistanceFromBox(t *testing.T) {
	tests := []struct {
		name   string
		y1, y2 float64
		frameH float64
		expect Distance
	}{
		{name: "tall box is near", y1: 0, y2: 300, frameH: 480, expect: DistanceNear},
		{name: "medium box", y1: 100, y2: 280, frameH: 480, expect: DistanceMedium},
		{name: "small box is far", y1: 200, y2: 260, frameH: 480, expect: DistanceFar},
		{name: "zero frame height", y1: 0, y2: 100, frameH: 0, expect: DistanceFar},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceFromBox(tc.y1, tc.y2, tc.frameH)
			if got != tc.expect {
				t.Errorf("got %s, want %s", got, tc.expect)
			}
		})
	}
}

func TestPositionFromBox(t *testing.T) {
	tests := []struct {
		name   string
		x1, x2 float64
		frameW float64
		expect Position
	}{
		{name: "left third", x1: 0, x2: 100, frameW: 640, expect: PositionLeft},
		{name: "center", x1: 270, x2: 370, frameW: 640, expect: PositionCenter},
		{name: "right third", x1: 500, x2: 620, frameW: 640, expect: PositionRight},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := PositionFromBox(tc.x1, tc.x2, tc.frameW)
			if got != tc.expect {
				t.Errorf("got %s, want %s", got, tc.expect)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	if got := Categorize("person"); got != CategoryPerson {
		t.Errorf("person: got %s", got)
	}
	if got := Categorize("truck"); got != CategoryVehicle {
		t.Errorf("truck: got %s", got)
	}
	if got := Categorize("dog"); got != CategoryAnimal {
		t.Errorf("dog: got %s", got)
	}
	if got := Categorize("chair"); got != CategoryObject {
		t.Errorf("chair: got %s", got)
	}
}

func TestSortByPriority(t *testing.T) {
	dets := []Detection{
		{Label: "chair", Distance: DistanceFar},
		{Label: "cup", Distance: DistanceNear},
		{Label: "car", Distance: DistanceFar, Dangerous: true},
		{Label: "knife", Distance: DistanceNear, Dangerous: true},
	}

	SortByPriority(dets)

	want := []string{"knife", "car", "cup", "chair"}
	for i, label := range want {
		if dets[i].Label != label {
			t.Errorf("position %d: got %s, want %s", i, dets[i].Label, label)
		}
	}
}

func TestSortByPriorityStable(t *testing.T) {
	dets := []Detection{
		{Label: "a", Distance: DistanceMedium},
		{Label: "b", Distance: DistanceMedium},
		{Label: "c", Distance: DistanceMedium},
	}

	SortByPriority(dets)

	for i, label := range []string{"a", "b", "c"} {
		if dets[i].Label != label {
			t.Errorf("equal-key order not preserved: position %d got %s", i, dets[i].Label)
		}
	}
}

func TestHasPerson(t *testing.T) {
	if HasPerson([]Detection{{Label: "chair", Category: CategoryObject}}) {
		t.Error("expected no person")
	}
	if !HasPerson([]Detection{{Label: "person", Category: CategoryPerson}}) {
		t.Error("expected person")
	}
}
