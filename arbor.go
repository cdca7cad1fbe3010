package arbor

import (
	"errors"
	"sync"
)

// Vec2 is a 2D vector used for pointer positions, offsets and deltas.
type Vec2 struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in screen space. The coordinate system has
// its origin at the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Vec2 {
	return Vec2{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// MouseButton identifies a mouse button.
type MouseButton uint8

const (
	MouseButtonLeft   MouseButton = iota // primary (left) mouse button
	MouseButtonRight                     // secondary (right) mouse button
	MouseButtonMiddle                    // middle mouse button (scroll wheel click)
	MouseButtonOther                     // any extra button
)

func (b MouseButton) String() string {
	switch b {
	case MouseButtonLeft:
		return "left"
	case MouseButtonRight:
		return "right"
	case MouseButtonMiddle:
		return "middle"
	default:
		return "other"
	}
}

// KeyModifiers is a bitmask of keyboard modifier keys.
// Values can be combined with bitwise OR (e.g. ModShift | ModCtrl).
type KeyModifiers uint8

const (
	ModShift    KeyModifiers = 1 << iota // Shift key
	ModCtrl                              // Control key
	ModAlt                               // Alt / Option key
	ModSuper                             // Super / Windows / Command key
	ModMeta                              // Meta key
	ModHyper                             // Hyper key
	ModCapsLock                          // Caps Lock engaged
	ModNumLock                           // Num Lock engaged
)

// Has reports whether every modifier in m is set.
func (k KeyModifiers) Has(m KeyModifiers) bool {
	return k&m == m
}

// chord strips lock-state bits so shortcut matching is not affected by
// Caps Lock or Num Lock.
func (k KeyModifiers) chord() KeyModifiers {
	return k &^ (ModCapsLock | ModNumLock)
}

// Errors returned by arbor operations. Call sites wrap these with context, so
// compare with errors.Is.
var (
	ErrNodeNotFound      = errors.New("arbor: node not found")
	ErrParentNotFound    = errors.New("arbor: parent node not found")
	ErrRootRemoval       = errors.New("arbor: the root node cannot be removed")
	ErrCycle             = errors.New("arbor: reparenting would create a cycle")
	ErrWorkspaceNotFound = errors.New("arbor: workspace not found")
	ErrDefaultWorkspace  = errors.New("arbor: the default workspace cannot be removed")
	ErrWindowNotFound    = errors.New("arbor: window not found")
	ErrEffectsDisabled   = errors.New("arbor: effects are disabled")
	ErrInvalidState      = errors.New("arbor: invalid system state for this operation")
	ErrCompositorInit    = errors.New("arbor: compositor initialization failed")
	ErrAlreadyRunning    = errors.New("arbor: window manager is already running")
)

// --- Callback registry ---

type callbackEntry[T any] struct {
	id uint32
	fn T
}

// callbackList is an ordered, mutex-guarded list of callbacks. Snapshot
// returns a copy so callers can invoke callbacks without holding the lock.
type callbackList[T any] struct {
	mu      sync.Mutex
	entries []callbackEntry[T]
	nextID  uint32
}

func (l *callbackList[T]) add(fn T) CallbackHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, callbackEntry[T]{id: id, fn: fn})
	return CallbackHandle{id: id, remove: l.remove}
}

func (l *callbackList[T]) remove(id uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].id == id {
			copy(l.entries[i:], l.entries[i+1:])
			l.entries[len(l.entries)-1] = callbackEntry[T]{}
			l.entries = l.entries[:len(l.entries)-1]
			return
		}
	}
}

func (l *callbackList[T]) snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.fn
	}
	return out
}

func (l *callbackList[T]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// CallbackHandle allows removing a registered callback.
type CallbackHandle struct {
	id     uint32
	remove func(uint32)
}

// Remove unregisters this callback so it no longer fires.
// Calling Remove more than once, or on a zero handle, is a no-op.
func (h CallbackHandle) Remove() {
	if h.remove == nil {
		return
	}
	h.remove(h.id)
}
