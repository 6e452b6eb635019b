// Package detect provides object detection for the perception loop.
//
// Detections carry the enriched metadata the narration layer needs:
// coarse distance, horizontal position, a hazard flag, and an explicit
// category tag so downstream code never matches on label strings.
package detect

import "sort"

// Distance is a coarse depth estimate derived from box size.
type Distance string

const (
	DistanceNear   Distance = "near"
	DistanceMedium Distance = "medium"
	DistanceFar    Distance = "far"
)

// Position is the horizontal location of a detection in the frame.
type Position string

const (
	PositionLeft   Position = "left"
	PositionCenter Position = "center"
	PositionRight  Position = "right"
)

// Category tags a detection with a semantic class group.
// Set by the detector integration layer so callers never have to
// substring-match labels.
type Category string

const (
	CategoryPerson  Category = "person"
	CategoryVehicle Category = "vehicle"
	CategoryAnimal  Category = "animal"
	CategoryObject  Category = "object"
)

// Detection is one recognized object instance in a frame.
type Detection struct {
	Label      string     `json:"label"`
	Box        [4]float64 `json:"box"` // x1, y1, x2, y2 in pixels
	Confidence float64    `json:"confidence"`
	Distance   Distance   `json:"distance"`
	Position   Position   `json:"position"`
	Dangerous  bool       `json:"is_dangerous"`
	Category   Category   `json:"category"`
}

// Detector is the interface for object detection backends.
type Detector interface {
	// Detect finds objects in a JPEG-encoded frame.
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources.
	Close() error
}

// HasPerson reports whether any detection is a person.
func HasPerson(dets []Detection) bool {
	for _, d := range dets {
		if d.Category == CategoryPerson {
			return true
		}
	}
	return false
}

// SortByPriority stable-sorts detections dangerous-first, then near-first.
// The order is deterministic for a given input, which the fallback
// narration depends on.
func SortByPriority(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		if dets[i].Dangerous != dets[j].Dangerous {
			return dets[i].Dangerous
		}
		in := dets[i].Distance == DistanceNear
		jn := dets[j].Distance == DistanceNear
		if in != jn {
			return in
		}
		return false
	})
}

// DistanceFromBox estimates distance from the box height relative to the
// frame height. Tall boxes are close.
func DistanceFromBox(y1, y2, frameH float64) Distance {
	if frameH <= 0 {
		return DistanceFar
	}
	ratio := (y2 - y1) / frameH
	switch {
	case ratio > 0.5:
		return DistanceNear
	case ratio > 0.25:
		return DistanceMedium
	default:
		return DistanceFar
	}
}

// PositionFromBox maps the box center to left/center/right thirds.
func PositionFromBox(x1, x2, frameW float64) Position {
	if frameW <= 0 {
		return PositionCenter
	}
	cx := (x1 + x2) / 2
	switch {
	case cx < frameW/3:
		return PositionLeft
	case cx > 2*frameW/3:
		return PositionRight
	default:
		return PositionCenter
	}
}
