package arbor

import "math"

// DefaultRotateThreshold is the minimum per-update angle change, in radians
// (about 3 degrees), once a rotation has been recognized.
const DefaultRotateThreshold = 0.05

// Mouse-simulated rotation: Ctrl+right-drag rotates around a fixed point this
// far left of where the button went down.
const (
	mouseRotateOffset  = 50.0
	mouseRotateFixedID = 1000
	mouseRotateLiveID  = 1001
)

// AngleBetween returns the angle of the vector from p1 to p2, in radians.
func AngleBetween(p1, p2 Vec2) float64 {
	return math.Atan2(p2.Y-p1.Y, p2.X-p1.X)
}

// NormalizeAngleDiff maps an angle difference into [-π, π]. Values already in
// range, including ±π, are returned unchanged.
func NormalizeAngleDiff(d float64) float64 {
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// RotateRecognizer recognizes two-finger rotation, and the same motion
// simulated with Ctrl+right-drag.
//
// The first two contacts are tracked in arrival order. Each update measures
// the angle of the line between them against the angle at the previous
// emission and accumulates the normalized difference. A change of direction
// re-emits Began without clearing the accumulated rotation. When one finger
// lifts the instance stops rotating and ends once the last tracked finger
// lifts. A finger landing after such a lift ends the old instance and pairs
// with the remaining finger in a new one.
type RotateRecognizer struct {
	threshold float64

	points []TouchPoint // at most two, arrival order
	mouse  bool

	initialAngle float64
	accumulated  float64
	direction    RotationDirection
	recognized   bool
	lifted       bool // a tracked finger lifted while another stayed down
	center       Vec2
	origin       gestureOrigin
}

// NewRotateRecognizer returns a recognizer with the given minimum angle
// threshold in radians. Non-positive values select DefaultRotateThreshold.
func NewRotateRecognizer(threshold float64) *RotateRecognizer {
	if threshold <= 0 {
		threshold = DefaultRotateThreshold
	}
	return &RotateRecognizer{threshold: threshold}
}

func (r *RotateRecognizer) Name() string             { return "Rotate Recognizer" }
func (r *RotateRecognizer) GestureType() GestureType { return GestureRotate }

// IsActive reports whether any contact (real or simulated) is tracked.
func (r *RotateRecognizer) IsActive() bool {
	return len(r.points) > 0
}

// Rotation returns the accumulated rotation of the current instance.
func (r *RotateRecognizer) Rotation() float64 {
	return r.accumulated
}

// Reset discards all per-gesture state.
func (r *RotateRecognizer) Reset() {
	r.points = r.points[:0]
	r.mouse = false
	r.initialAngle = 0
	r.accumulated = 0
	r.direction = RotationNone
	r.recognized = false
	r.lifted = false
	r.center = Vec2{}
	r.origin = gestureOrigin{}
}

// Update advances the state machine with ev.
func (r *RotateRecognizer) Update(ev InputEvent) (GestureInfo, bool) {
	switch ev.Type {
	case InputTouchBegin:
		if r.mouse || len(r.points) >= 2 {
			return GestureInfo{}, false
		}
		if r.indexOf(ev.TouchID) >= 0 {
			return GestureInfo{}, false
		}
		p := TouchPoint{ID: ev.TouchID, Position: Vec2{ev.X, ev.Y}, Timestamp: ev.Timestamp}
		if r.lifted {
			return r.reland(ev, p)
		}
		if len(r.points) == 0 {
			r.origin = originOf(ev)
		}
		r.points = append(r.points, p)
		if len(r.points) == 2 {
			r.startTracking()
		}
		return GestureInfo{}, false

	case InputTouchUpdate:
		i := r.indexOf(ev.TouchID)
		if r.mouse || i < 0 {
			return GestureInfo{}, false
		}
		r.points[i].Position = Vec2{ev.X, ev.Y}
		r.points[i].Timestamp = ev.Timestamp
		return r.rotate(ev.Timestamp)

	case InputTouchEnd:
		i := r.indexOf(ev.TouchID)
		if r.mouse || i < 0 {
			return GestureInfo{}, false
		}
		r.points[i].Position = Vec2{ev.X, ev.Y}
		if len(r.points) == 2 {
			r.center = midpoint(r.points[0].Position, r.points[1].Position)
		}
		r.points = append(r.points[:i], r.points[i+1:]...)
		if len(r.points) > 0 {
			r.lifted = true
			return GestureInfo{}, false
		}
		return r.finish(GestureEnded, ev.Timestamp)

	case InputTouchCancel:
		if r.mouse || len(r.points) == 0 {
			return GestureInfo{}, false
		}
		return r.finish(GestureCancelled, ev.Timestamp)

	case InputMousePress:
		if ev.Button != MouseButtonRight || !ev.Modifiers.Has(ModCtrl) || len(r.points) > 0 {
			return GestureInfo{}, false
		}
		r.mouse = true
		r.origin = originOf(ev)
		r.points = append(r.points,
			TouchPoint{ID: mouseRotateFixedID, Position: Vec2{ev.X - mouseRotateOffset, ev.Y}, Timestamp: ev.Timestamp},
			TouchPoint{ID: mouseRotateLiveID, Position: Vec2{ev.X, ev.Y}, Timestamp: ev.Timestamp},
		)
		r.startTracking()
		return GestureInfo{}, false

	case InputMouseMove:
		if !r.mouse {
			return GestureInfo{}, false
		}
		r.points[1].Position = Vec2{ev.X, ev.Y}
		r.points[1].Timestamp = ev.Timestamp
		return r.rotate(ev.Timestamp)

	case InputMouseRelease:
		if !r.mouse || ev.Button != MouseButtonRight {
			return GestureInfo{}, false
		}
		return r.finish(GestureEnded, ev.Timestamp)
	}
	return GestureInfo{}, false
}

func (r *RotateRecognizer) indexOf(id uint64) int {
	for i := range r.points {
		if r.points[i].ID == id {
			return i
		}
	}
	return -1
}

// reland starts a new instance from the finger left down after a lift and
// the new contact p. A recognized old instance is ended first.
func (r *RotateRecognizer) reland(ev InputEvent, p TouchPoint) (GestureInfo, bool) {
	kept := r.points[0]
	g, ok := r.finish(GestureEnded, ev.Timestamp)
	r.origin = originOf(ev)
	r.points = append(r.points, kept, p)
	r.startTracking()
	return g, ok
}

// startTracking snapshots the reference angle once two points are known.
func (r *RotateRecognizer) startTracking() {
	p1, p2 := r.points[0].Position, r.points[1].Position
	r.initialAngle = AngleBetween(p1, p2)
	r.center = midpoint(p1, p2)
}

func (r *RotateRecognizer) rotate(ts uint64) (GestureInfo, bool) {
	if len(r.points) != 2 {
		return GestureInfo{}, false
	}
	p1, p2 := r.points[0].Position, r.points[1].Position
	r.center = midpoint(p1, p2)
	current := AngleBetween(p1, p2)
	diff := NormalizeAngleDiff(current - r.initialAngle)
	if math.Abs(diff) < r.threshold && r.recognized {
		return GestureInfo{}, false
	}

	r.accumulated += diff
	dir := RotationClockwise
	if diff > 0 {
		dir = RotationCounterClockwise
	}
	state := GestureChanged
	if !r.recognized || dir != r.direction {
		state = GestureBegan
	}
	r.recognized = true
	r.direction = dir
	r.initialAngle = current

	g := r.origin.info(GestureRotate, state, ts)
	g.Position = r.center
	g.Rotation = r.accumulated
	g.RotationDirection = dir
	g.TouchCount = 2
	return g, true
}

// finish emits the terminal event for a recognized instance and resets.
func (r *RotateRecognizer) finish(state GestureState, ts uint64) (GestureInfo, bool) {
	recognized := r.recognized
	g := r.origin.info(GestureRotate, state, ts)
	g.Position = r.center
	g.Rotation = r.accumulated
	g.RotationDirection = r.direction
	r.Reset()
	return g, recognized
}
