package arbor

import "fmt"

// EventType identifies a window manager event.
type EventType uint8

const (
	EventWindowCreated          EventType = iota // a compositor window got a scene node
	EventWindowDestroyed                         // a window node was removed
	EventWindowFocused                           // a window became active
	EventWindowMoved                             // layout moved a window
	EventWindowResized                           // layout resized a window
	EventWindowStateChanged                      // minimized, maximized, snapped or restored
	EventWindowWorkspaceChanged                  // a window moved to another workspace
	EventWorkspaceCreated
	EventWorkspaceRemoved
	EventWorkspaceSwitched
	EventLayoutChanged      // a workspace changed layout type
	EventEffectStarted      // an effect was applied
	EventGestureRecognized  // a recognizer emitted a gesture
	EventDisplayConfigChanged
	EventPowerModeChanged
	EventSystemStateChanged
)

var eventNames = [...]string{
	"WindowCreated", "WindowDestroyed", "WindowFocused", "WindowMoved", "WindowResized",
	"WindowStateChanged", "WindowWorkspaceChanged", "WorkspaceCreated", "WorkspaceRemoved",
	"WorkspaceSwitched", "LayoutChanged", "EffectStarted", "GestureRecognized",
	"DisplayConfigChanged", "PowerModeChanged", "SystemStateChanged",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("EventType(%d)", t)
}

// WindowState is the presentation state of a managed window.
type WindowState uint8

const (
	WindowNormal WindowState = iota
	WindowMinimized
	WindowMaximized
	WindowSnapped
	WindowFullscreen
)

func (s WindowState) String() string {
	switch s {
	case WindowNormal:
		return "Normal"
	case WindowMinimized:
		return "Minimized"
	case WindowMaximized:
		return "Maximized"
	case WindowSnapped:
		return "Snapped"
	case WindowFullscreen:
		return "Fullscreen"
	default:
		return fmt.Sprintf("WindowState(%d)", s)
	}
}

// SystemState is the lifecycle phase of a WindowManager.
type SystemState uint8

const (
	StateStarting SystemState = iota
	StateRunning
	StateSuspending
	StateResuming
	StateShuttingDown
)

func (s SystemState) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateSuspending:
		return "Suspending"
	case StateResuming:
		return "Resuming"
	case StateShuttingDown:
		return "ShuttingDown"
	default:
		return fmt.Sprintf("SystemState(%d)", s)
	}
}

// Event is a window manager notification. Only the fields relevant to Type
// are set.
type Event struct {
	Type      EventType
	Timestamp uint64 // milliseconds since the manager was created

	Node        NodeID
	Window      uint64
	Rect        Rect
	WindowState WindowState

	Workspace         int
	PreviousWorkspace int
	Layout            LayoutType

	Effect   EffectType
	EffectID uint64

	Gesture     GestureInfo
	PowerSaving bool
	State       SystemState
}

// EventListener receives window manager events in registration order.
// Returning false stops delivery of that event to later listeners.
type EventListener func(Event) bool
