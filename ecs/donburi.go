package ecs

import (
	"sync"

	"github.com/phanxgames/arbor"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
)

// WindowEventType carries every arbor event into the world.
var WindowEventType = events.NewEventType[arbor.Event]()

// GestureEventType carries recognized gestures into the world.
var GestureEventType = events.NewEventType[arbor.GestureInfo]()

// WindowData is the component attached to each window entity.
type WindowData struct {
	Node      arbor.NodeID
	Window    uint64
	Workspace int
	Rect      arbor.Rect
	State     arbor.WindowState
	Focused   bool
}

// Window is the component type of WindowData.
var Window = donburi.NewComponentType[WindowData]()

var windowQuery = donburi.NewQuery(filter.Contains(Window))

// Bridge mirrors window manager events into a Donburi world. The listener
// may be called from any goroutine; the world itself is only touched while
// the bridge's lock is held.
type Bridge struct {
	mu       sync.Mutex
	world    donburi.World
	entities map[arbor.NodeID]donburi.Entity
}

// NewBridge creates a bridge for world.
func NewBridge(world donburi.World) *Bridge {
	return &Bridge{world: world, entities: make(map[arbor.NodeID]donburi.Entity)}
}

// Listener returns the event listener to register with a WindowManager. It
// never stops delivery to later listeners.
func (b *Bridge) Listener() arbor.EventListener {
	return func(ev arbor.Event) bool {
		b.Apply(ev)
		return true
	}
}

// Entity returns the entity of a window node.
func (b *Bridge) Entity(node arbor.NodeID) (donburi.Entity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entities[node]
	return e, ok
}

// Window returns a copy of a window's component.
func (b *Bridge) Window(node arbor.NodeID) (WindowData, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entry(node)
	if !ok {
		return WindowData{}, false
	}
	return *Window.Get(entry), true
}

// Count returns the number of window entities.
func (b *Bridge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return windowQuery.Count(b.world)
}

// Apply updates the mirrored state for ev and publishes it.
func (b *Bridge) Apply(ev arbor.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Type {
	case arbor.EventWindowCreated:
		e := b.world.Create(Window)
		Window.SetValue(b.world.Entry(e), WindowData{
			Node:      ev.Node,
			Window:    ev.Window,
			Workspace: ev.Workspace,
			Rect:      ev.Rect,
		})
		b.entities[ev.Node] = e
	case arbor.EventWindowDestroyed:
		if e, ok := b.entities[ev.Node]; ok {
			b.world.Remove(e)
			delete(b.entities, ev.Node)
		}
	case arbor.EventWindowMoved, arbor.EventWindowResized:
		b.update(ev.Node, func(w *WindowData) { w.Rect = ev.Rect })
	case arbor.EventWindowStateChanged:
		b.update(ev.Node, func(w *WindowData) {
			w.State = ev.WindowState
			if ev.WindowState == arbor.WindowMinimized {
				w.Focused = false
			}
		})
	case arbor.EventWindowWorkspaceChanged:
		b.update(ev.Node, func(w *WindowData) { w.Workspace = ev.Workspace })
	case arbor.EventWindowFocused:
		windowQuery.Each(b.world, func(entry *donburi.Entry) {
			w := Window.Get(entry)
			w.Focused = w.Node == ev.Node
		})
	case arbor.EventWorkspaceRemoved:
		windowQuery.Each(b.world, func(entry *donburi.Entry) {
			if w := Window.Get(entry); w.Workspace == ev.Workspace {
				w.Workspace = arbor.DefaultWorkspaceID
			}
		})
	case arbor.EventGestureRecognized:
		GestureEventType.Publish(b.world, ev.Gesture)
	}
	WindowEventType.Publish(b.world, ev)
}

func (b *Bridge) entry(node arbor.NodeID) (*donburi.Entry, bool) {
	e, ok := b.entities[node]
	if !ok || !b.world.Valid(e) {
		return nil, false
	}
	return b.world.Entry(e), true
}

func (b *Bridge) update(node arbor.NodeID, fn func(*WindowData)) {
	if entry, ok := b.entry(node); ok {
		fn(Window.Get(entry))
	}
}
