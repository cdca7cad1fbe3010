package arbor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// InputEventType identifies a kind of raw input event.
type InputEventType uint8

const (
	InputKeyPress     InputEventType = iota // key pressed (or auto-repeated, see InputEvent.Repeat)
	InputKeyRelease                         // key released
	InputMouseMove                          // pointer moved
	InputMousePress                         // mouse button pressed
	InputMouseRelease                       // mouse button released
	InputMouseWheel                         // wheel scrolled by (DX, DY)
	InputTouchBegin                         // finger down
	InputTouchUpdate                        // finger moved
	InputTouchEnd                           // finger lifted
	InputTouchCancel                        // contact cancelled by the system
	InputIdle                               // no input; carries the current time only
)

func (t InputEventType) String() string {
	switch t {
	case InputKeyPress:
		return "KeyPress"
	case InputKeyRelease:
		return "KeyRelease"
	case InputMouseMove:
		return "MouseMove"
	case InputMousePress:
		return "MousePress"
	case InputMouseRelease:
		return "MouseRelease"
	case InputMouseWheel:
		return "MouseWheel"
	case InputTouchBegin:
		return "TouchBegin"
	case InputTouchUpdate:
		return "TouchUpdate"
	case InputTouchEnd:
		return "TouchEnd"
	case InputTouchCancel:
		return "TouchCancel"
	case InputIdle:
		return "Idle"
	default:
		return "Unknown"
	}
}

// InputEvent is a raw input event. A single flat struct is used for every
// kind; fields that do not apply to Type are zero.
type InputEvent struct {
	Type      InputEventType
	Timestamp uint64 // milliseconds, monotonic per source

	X, Y     float64
	DX, DY   float64
	TouchID  uint64
	Pressure float64

	Button    MouseButton
	Key       ebiten.Key
	Modifiers KeyModifiers
	Repeat    bool // synthesized key repeat

	Target       NodeID
	HasTarget    bool
	SourceDevice string
}

// isPointer reports whether the event carries a screen position.
func (e InputEvent) isPointer() bool {
	switch e.Type {
	case InputMouseMove, InputMousePress, InputMouseRelease, InputMouseWheel,
		InputTouchBegin, InputTouchUpdate, InputTouchEnd:
		return true
	}
	return false
}

// WithTarget returns a copy of e targeted at id.
func (e InputEvent) WithTarget(id NodeID) InputEvent {
	e.Target, e.HasTarget = id, true
	return e
}

// WithModifiers returns a copy of e with the given modifier state.
func (e InputEvent) WithModifiers(m KeyModifiers) InputEvent {
	e.Modifiers = m
	return e
}

// --- Constructors ---

// TouchBegin returns a finger-down event.
func TouchBegin(id uint64, x, y, pressure float64, ts uint64) InputEvent {
	return InputEvent{Type: InputTouchBegin, TouchID: id, X: x, Y: y, Pressure: pressure, Timestamp: ts}
}

// TouchUpdate returns a finger-move event.
func TouchUpdate(id uint64, x, y, dx, dy, pressure float64, ts uint64) InputEvent {
	return InputEvent{Type: InputTouchUpdate, TouchID: id, X: x, Y: y, DX: dx, DY: dy, Pressure: pressure, Timestamp: ts}
}

// TouchEnd returns a finger-up event.
func TouchEnd(id uint64, x, y float64, ts uint64) InputEvent {
	return InputEvent{Type: InputTouchEnd, TouchID: id, X: x, Y: y, Timestamp: ts}
}

// TouchCancel returns a cancelled-contact event.
func TouchCancel(id uint64, ts uint64) InputEvent {
	return InputEvent{Type: InputTouchCancel, TouchID: id, Timestamp: ts}
}

// MousePress returns a button-down event.
func MousePress(button MouseButton, x, y float64, mods KeyModifiers, ts uint64) InputEvent {
	return InputEvent{Type: InputMousePress, Button: button, X: x, Y: y, Modifiers: mods, Timestamp: ts}
}

// MouseMove returns a pointer-move event.
func MouseMove(x, y, dx, dy float64, mods KeyModifiers, ts uint64) InputEvent {
	return InputEvent{Type: InputMouseMove, X: x, Y: y, DX: dx, DY: dy, Modifiers: mods, Timestamp: ts}
}

// MouseRelease returns a button-up event.
func MouseRelease(button MouseButton, x, y float64, mods KeyModifiers, ts uint64) InputEvent {
	return InputEvent{Type: InputMouseRelease, Button: button, X: x, Y: y, Modifiers: mods, Timestamp: ts}
}

// MouseWheel returns a scroll event with the wheel offsets in DX, DY.
func MouseWheel(x, y, dx, dy float64, mods KeyModifiers, ts uint64) InputEvent {
	return InputEvent{Type: InputMouseWheel, X: x, Y: y, DX: dx, DY: dy, Modifiers: mods, Timestamp: ts}
}

// KeyPress returns a key-down event.
func KeyPress(key ebiten.Key, mods KeyModifiers, ts uint64) InputEvent {
	return InputEvent{Type: InputKeyPress, Key: key, Modifiers: mods, Timestamp: ts}
}

// KeyRelease returns a key-up event.
func KeyRelease(key ebiten.Key, mods KeyModifiers, ts uint64) InputEvent {
	return InputEvent{Type: InputKeyRelease, Key: key, Modifiers: mods, Timestamp: ts}
}

// Idle returns a time-only event used to drive timers (long press, key
// repeat).
func Idle(ts uint64) InputEvent {
	return InputEvent{Type: InputIdle, Timestamp: ts}
}

// --- Shortcuts ---

// Shortcut is a key chord. Lock modifiers (Caps Lock, Num Lock) are ignored
// when matching.
type Shortcut struct {
	Key       ebiten.Key
	Modifiers KeyModifiers
}

func (s Shortcut) String() string {
	out := ""
	for _, m := range []struct {
		bit  KeyModifiers
		name string
	}{{ModCtrl, "Ctrl"}, {ModAlt, "Alt"}, {ModShift, "Shift"}, {ModSuper, "Super"}, {ModMeta, "Meta"}, {ModHyper, "Hyper"}} {
		if s.Modifiers.Has(m.bit) {
			out += m.name + "+"
		}
	}
	return out + s.Key.String()
}

// ShortcutAction runs when its chord is pressed. Returning true consumes the
// key event so input handlers do not see it.
type ShortcutAction func() bool

type shortcutEntry struct {
	description string
	action      ShortcutAction
}

// ShortcutInfo describes a registered shortcut.
type ShortcutInfo struct {
	Shortcut    Shortcut
	Description string
}

// InputHandler receives dispatched input events in registration order.
// Returning false stops delivery to later handlers.
type InputHandler func(InputEvent) bool

// TargetResolver maps a screen position to the node under it.
type TargetResolver func(x, y float64) (NodeID, bool)

// Key repeat defaults.
const (
	DefaultRepeatDelay    = 500 * time.Millisecond
	DefaultRepeatInterval = 30 * time.Millisecond
)

type heldKey struct {
	mods       KeyModifiers
	pressedAt  uint64
	lastRepeat uint64
}

// InputManager queues raw input, tracks key and modifier state, matches
// shortcuts, assigns targets and dispatches events to handlers. It is safe
// for concurrent use; shortcut actions, handlers and the resolver are called
// without the manager's lock held.
type InputManager struct {
	mu        sync.Mutex
	queue     []InputEvent
	shortcuts map[Shortcut]shortcutEntry
	held      map[ebiten.Key]*heldKey
	modifiers KeyModifiers
	pointer   Vec2
	focus     NodeID
	hasFocus  bool
	resolver  TargetResolver

	repeatDelay    uint64
	repeatInterval uint64

	handlers callbackList[InputHandler]
}

// NewInputManager creates an input manager with default key repeat timing.
func NewInputManager() *InputManager {
	return &InputManager{
		shortcuts:      make(map[Shortcut]shortcutEntry),
		held:           make(map[ebiten.Key]*heldKey),
		repeatDelay:    uint64(DefaultRepeatDelay.Milliseconds()),
		repeatInterval: uint64(DefaultRepeatInterval.Milliseconds()),
	}
}

// SetKeyRepeat configures auto-repeat. A zero delay disables it.
func (m *InputManager) SetKeyRepeat(delay, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeatDelay = uint64(delay.Milliseconds())
	m.repeatInterval = uint64(max(interval, time.Millisecond).Milliseconds())
}

// SetTargetResolver installs the hit test used for pointer events that arrive
// without a target.
func (m *InputManager) SetTargetResolver(r TargetResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolver = r
}

// Push enqueues a raw event for the next ProcessEvents call.
func (m *InputManager) Push(ev InputEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, ev)
}

// Pending returns the number of queued events.
func (m *InputManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// AddHandler registers a handler that sees every dispatched event.
func (m *InputManager) AddHandler(fn InputHandler) CallbackHandle {
	if fn == nil {
		panic("arbor: nil input handler")
	}
	return m.handlers.add(fn)
}

// RegisterShortcut binds a chord to an action, replacing any previous binding.
func (m *InputManager) RegisterShortcut(s Shortcut, description string, action ShortcutAction) {
	if action == nil {
		panic("arbor: nil shortcut action")
	}
	s.Modifiers = s.Modifiers.chord()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortcuts[s] = shortcutEntry{description: description, action: action}
}

// UnregisterShortcut removes a binding. It reports whether one existed.
func (m *InputManager) UnregisterShortcut(s Shortcut) bool {
	s.Modifiers = s.Modifiers.chord()
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.shortcuts[s]
	delete(m.shortcuts, s)
	return ok
}

// Shortcuts lists registered shortcuts sorted by their string form.
func (m *InputManager) Shortcuts() []ShortcutInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ShortcutInfo, 0, len(m.shortcuts))
	for s, e := range m.shortcuts {
		out = append(out, ShortcutInfo{Shortcut: s, Description: e.description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Shortcut.String() < out[j].Shortcut.String() })
	return out
}

// SetFocus directs key events without a target to id.
func (m *InputManager) SetFocus(id NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focus, m.hasFocus = id, true
}

// ClearFocus removes the focused node.
func (m *InputManager) ClearFocus() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasFocus = false
}

// ClearFocusIf removes the focus only when it is id.
func (m *InputManager) ClearFocusIf(id NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasFocus && m.focus == id {
		m.hasFocus = false
	}
}

// Focus returns the focused node.
func (m *InputManager) Focus() (NodeID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focus, m.hasFocus
}

// Modifiers returns the modifier state seen on the last event.
func (m *InputManager) Modifiers() KeyModifiers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modifiers
}

// PointerPosition returns the last known pointer position.
func (m *InputManager) PointerPosition() Vec2 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pointer
}

// IsKeyPressed reports whether key is currently held.
func (m *InputManager) IsKeyPressed(key ebiten.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}

// ProcessEvents drains the queue and dispatches every event in FIFO order.
// It returns the number of events dispatched, synthesized repeats included.
func (m *InputManager) ProcessEvents() int {
	m.mu.Lock()
	events := m.queue
	m.queue = nil
	m.mu.Unlock()

	n := 0
	for _, ev := range events {
		n += m.Dispatch(ev)
	}
	return n
}

// Dispatch runs one event through target resolution, state tracking,
// shortcut matching and the handler chain. Idle events may synthesize key
// repeats, which are dispatched right after. It returns the number of events
// dispatched.
func (m *InputManager) Dispatch(ev InputEvent) int {
	m.mu.Lock()
	resolver := m.resolver
	m.mu.Unlock()
	if !ev.HasTarget && ev.isPointer() && resolver != nil {
		ev.Target, ev.HasTarget = resolver(ev.X, ev.Y)
	}

	m.mu.Lock()
	action := m.track(&ev)
	var repeats []InputEvent
	if ev.Type == InputIdle {
		repeats = m.repeatsDue(ev.Timestamp)
	}
	m.mu.Unlock()

	if action == nil || !action() {
		for _, h := range m.handlers.snapshot() {
			if !h(ev) {
				break
			}
		}
	}
	n := 1
	for _, r := range repeats {
		n += m.Dispatch(r)
	}
	return n
}

// track updates key, modifier, pointer and focus state for ev and returns
// the shortcut action it triggers, if any. Called with m.mu held.
func (m *InputManager) track(ev *InputEvent) ShortcutAction {
	switch ev.Type {
	case InputKeyPress:
		m.modifiers = ev.Modifiers
		if !ev.Repeat {
			if _, down := m.held[ev.Key]; !down {
				m.held[ev.Key] = &heldKey{mods: ev.Modifiers, pressedAt: ev.Timestamp, lastRepeat: ev.Timestamp}
			}
		}
		if !ev.HasTarget && m.hasFocus {
			ev.Target, ev.HasTarget = m.focus, true
		}
		if e, ok := m.shortcuts[Shortcut{Key: ev.Key, Modifiers: ev.Modifiers.chord()}]; ok {
			return e.action
		}
	case InputKeyRelease:
		m.modifiers = ev.Modifiers
		delete(m.held, ev.Key)
		if !ev.HasTarget && m.hasFocus {
			ev.Target, ev.HasTarget = m.focus, true
		}
	case InputMouseMove, InputMousePress, InputMouseRelease, InputMouseWheel:
		m.modifiers = ev.Modifiers
		m.pointer = Vec2{X: ev.X, Y: ev.Y}
	}
	return nil
}

// repeatsDue returns synthesized KeyPress events for held keys whose repeat
// timer has elapsed at now. Called with m.mu held.
func (m *InputManager) repeatsDue(now uint64) []InputEvent {
	if m.repeatDelay == 0 || len(m.held) == 0 {
		return nil
	}
	var out []InputEvent
	for key, h := range m.held {
		if now < h.pressedAt+m.repeatDelay {
			continue
		}
		next := h.pressedAt + m.repeatDelay
		if h.lastRepeat >= next {
			next = h.lastRepeat + m.repeatInterval
		}
		if now < next {
			continue
		}
		h.lastRepeat = now
		ev := KeyPress(key, h.mods, now)
		ev.Repeat = true
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (m *InputManager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("InputManager{queued: %d, held: %d, shortcuts: %d}", len(m.queue), len(m.held), len(m.shortcuts))
}
