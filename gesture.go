package arbor

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// GestureType identifies a recognized gesture.
type GestureType uint8

const (
	GestureTap       GestureType = iota // single tap or click
	GestureSwipe                        // fast directional flick
	GesturePinch                        // two-finger spread / squeeze
	GestureRotate                       // two-finger twist or Ctrl+right-drag
	GestureLongPress                    // press held in place
)

func (t GestureType) String() string {
	switch t {
	case GestureTap:
		return "Tap"
	case GestureSwipe:
		return "Swipe"
	case GesturePinch:
		return "Pinch"
	case GestureRotate:
		return "Rotate"
	case GestureLongPress:
		return "LongPress"
	default:
		return "Unknown"
	}
}

// GestureState is the phase of a gesture instance.
type GestureState uint8

const (
	GestureBegan     GestureState = iota // first event of an instance
	GestureChanged                       // ongoing update
	GestureEnded                         // graceful end
	GestureCancelled                     // aborted
)

func (s GestureState) String() string {
	switch s {
	case GestureBegan:
		return "Began"
	case GestureChanged:
		return "Changed"
	case GestureEnded:
		return "Ended"
	case GestureCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// SwipeDirection is the dominant axis direction of a swipe.
type SwipeDirection uint8

const (
	SwipeNone SwipeDirection = iota
	SwipeLeft
	SwipeRight
	SwipeUp
	SwipeDown
)

func (d SwipeDirection) String() string {
	switch d {
	case SwipeLeft:
		return "Left"
	case SwipeRight:
		return "Right"
	case SwipeUp:
		return "Up"
	case SwipeDown:
		return "Down"
	default:
		return "None"
	}
}

// RotationDirection is the sense of a rotate gesture's latest delta.
type RotationDirection uint8

const (
	RotationNone             RotationDirection = iota
	RotationClockwise                          // negative angle delta
	RotationCounterClockwise                   // positive angle delta
)

// PinchPattern tells spreading from squeezing.
type PinchPattern uint8

const (
	PinchNone PinchPattern = iota
	PinchOut               // fingers moving apart
	PinchIn                // fingers moving together
)

// TouchPoint is one tracked contact.
type TouchPoint struct {
	ID        uint64
	Position  Vec2
	Timestamp uint64
}

// GestureInfo is an immutable gesture event. Fields not relevant to Type are
// zero.
type GestureInfo struct {
	Type      GestureType
	State     GestureState
	Instance  uuid.UUID // same for every event of one gesture instance
	Timestamp uint64

	Position      Vec2
	StartPosition Vec2
	Delta         Vec2
	Velocity      Vec2

	Scale             float64
	Rotation          float64 // accumulated radians
	RotationDirection RotationDirection
	Pinch             PinchPattern
	Swipe             SwipeDirection
	TouchCount        int
	PressDuration     time.Duration

	Target       NodeID
	HasTarget    bool
	Modifiers    KeyModifiers
	SourceDevice string
}

// GestureRecognizer is a per-gesture state machine over raw input. Update
// returns ok=true when the event produced a gesture event. Recognizers ignore
// events that do not concern them.
type GestureRecognizer interface {
	Name() string
	GestureType() GestureType
	Update(ev InputEvent) (GestureInfo, bool)
	Reset()
	IsActive() bool
}

// gestureOrigin holds the context captured when an instance starts and copied
// into every event it emits.
type gestureOrigin struct {
	instance     uuid.UUID
	target       NodeID
	hasTarget    bool
	modifiers    KeyModifiers
	sourceDevice string
}

func originOf(ev InputEvent) gestureOrigin {
	return gestureOrigin{
		instance:     uuid.New(),
		target:       ev.Target,
		hasTarget:    ev.HasTarget,
		modifiers:    ev.Modifiers,
		sourceDevice: ev.SourceDevice,
	}
}

func (o gestureOrigin) info(typ GestureType, state GestureState, ts uint64) GestureInfo {
	return GestureInfo{
		Type:         typ,
		State:        state,
		Instance:     o.instance,
		Timestamp:    ts,
		Target:       o.target,
		HasTarget:    o.hasTarget,
		Modifiers:    o.modifiers,
		SourceDevice: o.sourceDevice,
	}
}

func distance(a, b Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func midpoint(a, b Vec2) Vec2 {
	return Vec2{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// elapsedMillis returns end-start, or 0 when timestamps run backwards.
func elapsedMillis(start, end uint64) uint64 {
	if end < start {
		return 0
	}
	return end - start
}

// --- GestureManager ---

// GestureManager fans every raw event out to all registered recognizers in
// registration order and collects what they emit, in the same order.
// Recognizers never see each other's output. GestureManager is not safe for
// concurrent use.
type GestureManager struct {
	recognizers []GestureRecognizer
}

// NewGestureManager returns a manager with no recognizers.
func NewGestureManager() *GestureManager {
	return &GestureManager{}
}

// Register appends a recognizer.
func (m *GestureManager) Register(r GestureRecognizer) {
	if r == nil {
		panic("arbor: nil gesture recognizer")
	}
	m.recognizers = append(m.recognizers, r)
}

// RegisterDefaultRecognizers registers tap, swipe, pinch, rotate and long
// press recognizers with default thresholds.
func (m *GestureManager) RegisterDefaultRecognizers() {
	m.Register(NewTapRecognizer())
	m.Register(NewSwipeRecognizer())
	m.Register(NewPinchRecognizer())
	m.Register(NewRotateRecognizer(DefaultRotateThreshold))
	m.Register(NewLongPressRecognizer())
}

// Recognizers returns the registered recognizers in order.
func (m *GestureManager) Recognizers() []GestureRecognizer {
	return m.recognizers
}

// ProcessEvent feeds ev to every recognizer and returns the emitted gestures
// in registration order.
func (m *GestureManager) ProcessEvent(ev InputEvent) []GestureInfo {
	var out []GestureInfo
	for _, r := range m.recognizers {
		if g, ok := r.Update(ev); ok {
			out = append(out, g)
		}
	}
	return out
}

// Reset discards the in-flight state of every recognizer.
func (m *GestureManager) Reset() {
	for _, r := range m.recognizers {
		r.Reset()
	}
}

// ActiveCount returns how many recognizers are tracking a gesture.
func (m *GestureManager) ActiveCount() int {
	n := 0
	for _, r := range m.recognizers {
		if r.IsActive() {
			n++
		}
	}
	return n
}
