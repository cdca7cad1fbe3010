package arbor

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"
)

// CompositorEventType identifies a compositor notification.
type CompositorEventType uint8

const (
	CompositorWindowCreated   CompositorEventType = iota // a client window appeared
	CompositorWindowDestroyed                            // a client window went away
	CompositorWindowFocused                              // the compositor focused a window
	CompositorDisplayChanged                             // output geometry changed
)

func (t CompositorEventType) String() string {
	switch t {
	case CompositorWindowCreated:
		return "WindowCreated"
	case CompositorWindowDestroyed:
		return "WindowDestroyed"
	case CompositorWindowFocused:
		return "WindowFocused"
	case CompositorDisplayChanged:
		return "DisplayChanged"
	default:
		return fmt.Sprintf("CompositorEventType(%d)", t)
	}
}

// CompositorEvent is a notification from the compositor. Window is the
// compositor's own window id. Title and Rect are set for WindowCreated; Rect
// is the new output area for DisplayChanged.
type CompositorEvent struct {
	Type   CompositorEventType
	Window uint64
	Title  string
	Rect   Rect
}

// CompositorHandler receives compositor events. Returning false stops
// delivery to later handlers.
type CompositorHandler func(CompositorEvent) bool

// RenderItem is one visible node handed to the compositor each frame, in
// draw order.
type RenderItem struct {
	Node      NodeID
	Type      NodeType
	Name      string
	Window    uint64
	HasWindow bool
	Bounds    BoundingBox
	Opacity   float64
	Layer     int
	Focused   bool
}

// Compositor presents frames and reports client window lifecycle. Handlers
// are invoked without any compositor lock held, so they may call back into
// the compositor.
type Compositor interface {
	Initialize() error
	RenderFrame(items []RenderItem) error
	FPS() float64
	Stop()
	AddEventHandler(fn CompositorHandler) CallbackHandle
}

// --- FPS ---

const fpsWindow = 60

// fpsCounter measures frame rate over the last fpsWindow frame times.
type fpsCounter struct {
	frames []time.Time
}

func (c *fpsCounter) add(t time.Time) {
	if len(c.frames) >= fpsWindow {
		copy(c.frames, c.frames[1:])
		c.frames = c.frames[:len(c.frames)-1]
	}
	c.frames = append(c.frames, t)
}

func (c *fpsCounter) fps() float64 {
	if len(c.frames) < 2 {
		return 0
	}
	span := c.frames[len(c.frames)-1].Sub(c.frames[0]).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(len(c.frames)-1) / span
}

// --- HeadlessCompositor ---

// HeadlessWindow is a client window held by a HeadlessCompositor.
type HeadlessWindow struct {
	ID      uint64
	Title   string
	Rect    Rect
	Focused bool
}

// HeadlessCompositor keeps client windows in memory and records frames
// instead of drawing them. It backs tests and the headless command.
type HeadlessCompositor struct {
	mu       sync.Mutex
	display  Rect
	windows  map[uint64]*HeadlessWindow
	nextID   uint64
	active   uint64
	running  bool
	initErr  error
	frames   uint64
	last     []RenderItem
	fps      fpsCounter
	now      func() time.Time
	handlers callbackList[CompositorHandler]
}

// NewHeadlessCompositor returns a compositor with one output covering
// display.
func NewHeadlessCompositor(display Rect) *HeadlessCompositor {
	return &HeadlessCompositor{
		display: display,
		windows: make(map[uint64]*HeadlessWindow),
		now:     time.Now,
	}
}

// FailInitialize makes the next Initialize return err.
func (c *HeadlessCompositor) FailInitialize(err error) {
	c.mu.Lock()
	c.initErr = err
	c.mu.Unlock()
}

func (c *HeadlessCompositor) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initErr != nil {
		return fmt.Errorf("%w: %w", ErrCompositorInit, c.initErr)
	}
	c.running = true
	return nil
}

// Running reports whether the compositor is initialized and not stopped.
func (c *HeadlessCompositor) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *HeadlessCompositor) RenderFrame(items []RenderItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return fmt.Errorf("arbor: render on stopped compositor: %w", ErrInvalidState)
	}
	c.frames++
	c.last = append(c.last[:0], items...)
	c.fps.add(c.now())
	return nil
}

func (c *HeadlessCompositor) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps.fps()
}

func (c *HeadlessCompositor) Stop() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *HeadlessCompositor) AddEventHandler(fn CompositorHandler) CallbackHandle {
	if fn == nil {
		panic("arbor: nil compositor handler")
	}
	return c.handlers.add(fn)
}

// FrameCount returns the number of frames rendered.
func (c *HeadlessCompositor) FrameCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// LastFrame returns a copy of the items of the most recent frame.
func (c *HeadlessCompositor) LastFrame() []RenderItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.last)
}

// CreateWindow adds a client window and announces it.
func (c *HeadlessCompositor) CreateWindow(title string, rect Rect) uint64 {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.windows[id] = &HeadlessWindow{ID: id, Title: title, Rect: rect}
	c.mu.Unlock()

	c.emit(CompositorEvent{Type: CompositorWindowCreated, Window: id, Title: title, Rect: rect})
	return id
}

// DestroyWindow removes a client window. If it was focused, the window with
// the highest id left is focused next.
func (c *HeadlessCompositor) DestroyWindow(id uint64) bool {
	c.mu.Lock()
	if _, ok := c.windows[id]; !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.windows, id)
	var next uint64
	if c.active == id {
		c.active = 0
		for wid := range c.windows {
			next = max(next, wid)
		}
	}
	c.mu.Unlock()

	c.emit(CompositorEvent{Type: CompositorWindowDestroyed, Window: id})
	if next != 0 {
		c.FocusWindow(next)
	}
	return true
}

// FocusWindow focuses a client window and announces it.
func (c *HeadlessCompositor) FocusWindow(id uint64) bool {
	c.mu.Lock()
	w, ok := c.windows[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if prev, ok := c.windows[c.active]; ok {
		prev.Focused = false
	}
	w.Focused = true
	c.active = id
	c.mu.Unlock()

	c.emit(CompositorEvent{Type: CompositorWindowFocused, Window: id})
	return true
}

// SetDisplay changes the output area and announces it.
func (c *HeadlessCompositor) SetDisplay(r Rect) {
	c.mu.Lock()
	c.display = r
	c.mu.Unlock()
	c.emit(CompositorEvent{Type: CompositorDisplayChanged, Rect: r})
}

// Display returns the output area.
func (c *HeadlessCompositor) Display() Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display
}

// Windows returns copies of the client windows ordered by id.
func (c *HeadlessCompositor) Windows() []HeadlessWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]HeadlessWindow, 0, len(c.windows))
	for _, w := range c.windows {
		out = append(out, *w)
	}
	slices.SortFunc(out, func(a, b HeadlessWindow) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (c *HeadlessCompositor) emit(ev CompositorEvent) {
	emitCompositorEvent(&c.handlers, ev)
}

func emitCompositorEvent(l *callbackList[CompositorHandler], ev CompositorEvent) {
	for _, fn := range l.snapshot() {
		if !fn(ev) {
			return
		}
	}
}
