package arbor

import (
	"math"
	"time"
)

// Pinch and long press defaults.
const (
	DefaultPinchMinDistance    = 20.0
	DefaultPinchMinScaleChange = 0.05

	DefaultLongPressSlop     = 15.0
	DefaultLongPressTime     = 500 * time.Millisecond
	DefaultLongPressFeedback = 100 * time.Millisecond
)

// PinchRecognizer recognizes two-finger scaling. Scale is the current finger
// spread over the spread when the second finger went down. Events fire when
// the scale has moved by at least the minimum change since the last event.
// Lifting either finger ends the instance.
type PinchRecognizer struct {
	minDistance    float64
	minScaleChange float64

	points          []TouchPoint
	initialDistance float64
	lastScale       float64
	recognized      bool
	center          Vec2
	origin          gestureOrigin
}

// NewPinchRecognizer returns a pinch recognizer with default thresholds.
func NewPinchRecognizer() *PinchRecognizer {
	return &PinchRecognizer{minDistance: DefaultPinchMinDistance, minScaleChange: DefaultPinchMinScaleChange, lastScale: 1}
}

func (r *PinchRecognizer) Name() string             { return "Pinch Recognizer" }
func (r *PinchRecognizer) GestureType() GestureType { return GesturePinch }
func (r *PinchRecognizer) IsActive() bool           { return len(r.points) > 0 }

func (r *PinchRecognizer) Reset() {
	r.points = r.points[:0]
	r.initialDistance = 0
	r.lastScale = 1
	r.recognized = false
	r.center = Vec2{}
	r.origin = gestureOrigin{}
}

func (r *PinchRecognizer) indexOf(id uint64) int {
	for i := range r.points {
		if r.points[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *PinchRecognizer) Update(ev InputEvent) (GestureInfo, bool) {
	switch ev.Type {
	case InputTouchBegin:
		if len(r.points) >= 2 || r.indexOf(ev.TouchID) >= 0 {
			return GestureInfo{}, false
		}
		if len(r.points) == 0 {
			r.origin = originOf(ev)
		}
		r.points = append(r.points, TouchPoint{ID: ev.TouchID, Position: Vec2{ev.X, ev.Y}, Timestamp: ev.Timestamp})
		if len(r.points) == 2 {
			r.initialDistance = distance(r.points[0].Position, r.points[1].Position)
			r.center = midpoint(r.points[0].Position, r.points[1].Position)
			r.lastScale = 1
		}
	case InputTouchUpdate:
		i := r.indexOf(ev.TouchID)
		if i < 0 {
			return GestureInfo{}, false
		}
		r.points[i].Position = Vec2{ev.X, ev.Y}
		if len(r.points) == 2 {
			return r.scale(ev.Timestamp)
		}
	case InputTouchEnd:
		i := r.indexOf(ev.TouchID)
		if i < 0 {
			return GestureInfo{}, false
		}
		r.points = append(r.points[:i], r.points[i+1:]...)
		if r.recognized {
			return r.finish(GestureEnded, ev.Timestamp)
		}
		if len(r.points) == 0 {
			r.Reset()
		}
	case InputTouchCancel:
		if len(r.points) > 0 {
			return r.finish(GestureCancelled, ev.Timestamp)
		}
	}
	return GestureInfo{}, false
}

func (r *PinchRecognizer) scale(ts uint64) (GestureInfo, bool) {
	p1, p2 := r.points[0].Position, r.points[1].Position
	d := distance(p1, p2)
	r.center = midpoint(p1, p2)
	if r.initialDistance < r.minDistance || d < r.minDistance {
		return GestureInfo{}, false
	}
	scale := d / r.initialDistance
	if math.Abs(scale-r.lastScale) < r.minScaleChange {
		return GestureInfo{}, false
	}
	state := GestureChanged
	if !r.recognized {
		state = GestureBegan
		r.recognized = true
	}
	r.lastScale = scale

	g := r.origin.info(GesturePinch, state, ts)
	g.Position = r.center
	g.Scale = scale
	g.Pinch = pinchPattern(scale)
	g.TouchCount = 2
	return g, true
}

func (r *PinchRecognizer) finish(state GestureState, ts uint64) (GestureInfo, bool) {
	recognized := r.recognized
	g := r.origin.info(GesturePinch, state, ts)
	g.Position = r.center
	g.Scale = r.lastScale
	g.Pinch = pinchPattern(r.lastScale)
	r.Reset()
	return g, recognized
}

func pinchPattern(scale float64) PinchPattern {
	switch {
	case scale > 1:
		return PinchOut
	case scale < 1:
		return PinchIn
	default:
		return PinchNone
	}
}

// --- LongPressRecognizer ---

// LongPressRecognizer recognizes a press held within a small radius. Time is
// taken from event timestamps, so Idle events must keep arriving while the
// press is held. After Began, Changed events repeat at the feedback interval
// until release.
type LongPressRecognizer struct {
	slop     float64
	hold     uint64
	feedback uint64

	ptr          singlePointer
	recognized   bool
	lastFeedback uint64
}

// NewLongPressRecognizer returns a long press recognizer with default timing.
func NewLongPressRecognizer() *LongPressRecognizer {
	return &LongPressRecognizer{
		slop:     DefaultLongPressSlop,
		hold:     uint64(DefaultLongPressTime.Milliseconds()),
		feedback: uint64(DefaultLongPressFeedback.Milliseconds()),
	}
}

func (r *LongPressRecognizer) Name() string             { return "Long Press Recognizer" }
func (r *LongPressRecognizer) GestureType() GestureType { return GestureLongPress }
func (r *LongPressRecognizer) IsActive() bool           { return r.ptr.active }

func (r *LongPressRecognizer) Reset() {
	r.ptr.reset()
	r.recognized = false
	r.lastFeedback = 0
}

func (r *LongPressRecognizer) Update(ev InputEvent) (GestureInfo, bool) {
	if ev.Type == InputIdle {
		if !r.ptr.active {
			return GestureInfo{}, false
		}
		return r.check(ev.Timestamp)
	}
	switch r.ptr.classify(ev) {
	case phaseDown:
		r.recognized = false
		r.lastFeedback = 0
	case phaseMove:
		if r.ptr.travelled() > r.slop {
			if r.recognized {
				return r.finish(GestureCancelled, ev.Timestamp)
			}
			r.Reset()
			return GestureInfo{}, false
		}
		return r.check(ev.Timestamp)
	case phaseUp:
		return r.finish(GestureEnded, ev.Timestamp)
	case phaseAbort:
		return r.finish(GestureCancelled, ev.Timestamp)
	}
	return GestureInfo{}, false
}

func (r *LongPressRecognizer) check(ts uint64) (GestureInfo, bool) {
	held := elapsedMillis(r.ptr.startTS, ts)
	if held < r.hold {
		return GestureInfo{}, false
	}
	state := GestureBegan
	if r.recognized {
		if elapsedMillis(r.lastFeedback, ts) < r.feedback {
			return GestureInfo{}, false
		}
		state = GestureChanged
	}
	r.recognized = true
	r.lastFeedback = ts
	return r.info(state, ts), true
}

func (r *LongPressRecognizer) info(state GestureState, ts uint64) GestureInfo {
	g := r.ptr.origin.info(GestureLongPress, state, ts)
	g.Position = r.ptr.last
	g.StartPosition = r.ptr.start
	g.PressDuration = time.Duration(elapsedMillis(r.ptr.startTS, ts)) * time.Millisecond
	g.TouchCount = 1
	return g
}

func (r *LongPressRecognizer) finish(state GestureState, ts uint64) (GestureInfo, bool) {
	recognized := r.recognized
	g := r.info(state, ts)
	r.Reset()
	return g, recognized
}
