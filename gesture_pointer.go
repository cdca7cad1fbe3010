package arbor

import (
	"math"
	"time"
)

// Tap and swipe defaults.
const (
	DefaultTapSlop          = 10.0
	DefaultTapTimeout       = 300 * time.Millisecond
	DefaultSwipeMinDistance = 50.0
	DefaultSwipeMaxDuration = 500 * time.Millisecond
)

// pointerPhase classifies an event relative to a tracked single pointer.
type pointerPhase uint8

const (
	phaseIgnore pointerPhase = iota
	phaseDown
	phaseMove
	phaseUp
	phaseAbort // cancel, or a second finger arrived
)

// singlePointer follows one primary contact: the left mouse button or the
// first finger down. Tap, swipe and long press build on it.
type singlePointer struct {
	active  bool
	mouse   bool
	touchID uint64
	start   Vec2
	last    Vec2
	startTS uint64
	origin  gestureOrigin
}

// classify updates the tracked position and reports how ev relates to the
// tracked pointer.
func (p *singlePointer) classify(ev InputEvent) pointerPhase {
	pos := Vec2{ev.X, ev.Y}
	switch ev.Type {
	case InputMousePress:
		if ev.Button != MouseButtonLeft || p.active {
			return phaseIgnore
		}
		*p = singlePointer{active: true, mouse: true, start: pos, last: pos, startTS: ev.Timestamp, origin: originOf(ev)}
		return phaseDown
	case InputTouchBegin:
		if p.active {
			if !p.mouse {
				return phaseAbort
			}
			return phaseIgnore
		}
		*p = singlePointer{active: true, touchID: ev.TouchID, start: pos, last: pos, startTS: ev.Timestamp, origin: originOf(ev)}
		return phaseDown
	case InputMouseMove:
		if !p.active || !p.mouse {
			return phaseIgnore
		}
		p.last = pos
		return phaseMove
	case InputTouchUpdate:
		if !p.active || p.mouse || ev.TouchID != p.touchID {
			return phaseIgnore
		}
		p.last = pos
		return phaseMove
	case InputMouseRelease:
		if !p.active || !p.mouse || ev.Button != MouseButtonLeft {
			return phaseIgnore
		}
		p.last = pos
		return phaseUp
	case InputTouchEnd:
		if !p.active || p.mouse || ev.TouchID != p.touchID {
			return phaseIgnore
		}
		p.last = pos
		return phaseUp
	case InputTouchCancel:
		if !p.active || p.mouse {
			return phaseIgnore
		}
		return phaseAbort
	}
	return phaseIgnore
}

func (p *singlePointer) travelled() float64 {
	return distance(p.start, p.last)
}

func (p *singlePointer) reset() {
	*p = singlePointer{}
}

// --- TapRecognizer ---

// TapRecognizer emits a single Ended event when a press is released close to
// where it started within the timeout.
type TapRecognizer struct {
	slop    float64
	timeout uint64
	ptr     singlePointer
}

// NewTapRecognizer returns a tap recognizer with default slop and timeout.
func NewTapRecognizer() *TapRecognizer {
	return &TapRecognizer{slop: DefaultTapSlop, timeout: uint64(DefaultTapTimeout.Milliseconds())}
}

func (r *TapRecognizer) Name() string             { return "Tap Recognizer" }
func (r *TapRecognizer) GestureType() GestureType { return GestureTap }
func (r *TapRecognizer) IsActive() bool           { return r.ptr.active }
func (r *TapRecognizer) Reset()                   { r.ptr.reset() }

func (r *TapRecognizer) Update(ev InputEvent) (GestureInfo, bool) {
	switch r.ptr.classify(ev) {
	case phaseMove:
		if r.ptr.travelled() > r.slop {
			r.ptr.reset()
		}
	case phaseAbort:
		r.ptr.reset()
	case phaseUp:
		p := r.ptr
		r.ptr.reset()
		if p.travelled() > r.slop || elapsedMillis(p.startTS, ev.Timestamp) > r.timeout {
			return GestureInfo{}, false
		}
		g := p.origin.info(GestureTap, GestureEnded, ev.Timestamp)
		g.Position = p.last
		g.StartPosition = p.start
		g.TouchCount = 1
		return g, true
	}
	return GestureInfo{}, false
}

// --- SwipeRecognizer ---

// SwipeRecognizer emits a single Ended event for a fast, long enough drag,
// classified by its dominant axis.
type SwipeRecognizer struct {
	minDistance float64
	maxDuration uint64
	ptr         singlePointer
}

// NewSwipeRecognizer returns a swipe recognizer with default thresholds.
func NewSwipeRecognizer() *SwipeRecognizer {
	return &SwipeRecognizer{minDistance: DefaultSwipeMinDistance, maxDuration: uint64(DefaultSwipeMaxDuration.Milliseconds())}
}

func (r *SwipeRecognizer) Name() string             { return "Swipe Recognizer" }
func (r *SwipeRecognizer) GestureType() GestureType { return GestureSwipe }
func (r *SwipeRecognizer) IsActive() bool           { return r.ptr.active }
func (r *SwipeRecognizer) Reset()                   { r.ptr.reset() }

func (r *SwipeRecognizer) Update(ev InputEvent) (GestureInfo, bool) {
	switch r.ptr.classify(ev) {
	case phaseAbort:
		r.ptr.reset()
	case phaseUp:
		p := r.ptr
		r.ptr.reset()
		elapsed := elapsedMillis(p.startTS, ev.Timestamp)
		if p.travelled() < r.minDistance || elapsed > r.maxDuration {
			return GestureInfo{}, false
		}
		delta := Vec2{X: p.last.X - p.start.X, Y: p.last.Y - p.start.Y}
		g := p.origin.info(GestureSwipe, GestureEnded, ev.Timestamp)
		g.Position = p.last
		g.StartPosition = p.start
		g.Delta = delta
		if elapsed > 0 {
			secs := float64(elapsed) / 1000
			g.Velocity = Vec2{X: delta.X / secs, Y: delta.Y / secs}
		}
		g.Swipe = swipeDirection(delta)
		g.TouchCount = 1
		return g, true
	}
	return GestureInfo{}, false
}

func swipeDirection(d Vec2) SwipeDirection {
	if math.Abs(d.X) >= math.Abs(d.Y) {
		if d.X < 0 {
			return SwipeLeft
		}
		return SwipeRight
	}
	if d.Y < 0 {
		return SwipeUp
	}
	return SwipeDown
}
