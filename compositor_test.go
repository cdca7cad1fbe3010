package arbor

import (
	"errors"
	"testing"
	"time"
)

func TestFPSCounter(t *testing.T) {
	var c fpsCounter
	if c.fps() != 0 {
		t.Errorf("empty fps = %v, want 0", c.fps())
	}
	start := time.Unix(0, 0)
	for i := 0; i < 100; i++ {
		c.add(start.Add(time.Duration(i) * 20 * time.Millisecond))
	}
	if len(c.frames) != fpsWindow {
		t.Errorf("window = %d, want %d", len(c.frames), fpsWindow)
	}
	assertNearTol(t, "fps", c.fps(), 50, 1e-6)
}

func TestHeadlessInitFailure(t *testing.T) {
	c := NewHeadlessCompositor(testArea)
	boom := errors.New("no display")
	c.FailInitialize(boom)
	err := c.Initialize()
	if !errors.Is(err, ErrCompositorInit) || !errors.Is(err, boom) {
		t.Errorf("Initialize err = %v", err)
	}
	if err := c.RenderFrame(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("RenderFrame before init err = %v", err)
	}
}

func TestHeadlessRenderFrame(t *testing.T) {
	c := NewHeadlessCompositor(testArea)
	clock := time.Unix(0, 0)
	c.now = func() time.Time {
		clock = clock.Add(10 * time.Millisecond)
		return clock
	}
	if err := c.Initialize(); err != nil {
		t.Fatal(err)
	}
	items := []RenderItem{{Node: 1}, {Node: 2}}
	for i := 0; i < 3; i++ {
		if err := c.RenderFrame(items); err != nil {
			t.Fatal(err)
		}
	}
	items[0].Node = 9
	if c.FrameCount() != 3 {
		t.Errorf("FrameCount = %d, want 3", c.FrameCount())
	}
	if last := c.LastFrame(); len(last) != 2 || last[0].Node != 1 {
		t.Errorf("LastFrame = %+v", last)
	}
	assertNearTol(t, "fps", c.FPS(), 100, 1e-6)

	c.Stop()
	if c.Running() {
		t.Error("Running after Stop")
	}
}

func TestHeadlessWindowEvents(t *testing.T) {
	c := NewHeadlessCompositor(testArea)
	var got []CompositorEvent
	c.AddEventHandler(func(ev CompositorEvent) bool {
		got = append(got, ev)
		return true
	})

	a := c.CreateWindow("a", Rect{0, 0, 10, 10})
	b := c.CreateWindow("b", Rect{0, 0, 10, 10})
	c.FocusWindow(a)
	c.DestroyWindow(a)

	want := []CompositorEventType{
		CompositorWindowCreated, CompositorWindowCreated,
		CompositorWindowFocused, CompositorWindowDestroyed, CompositorWindowFocused,
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v", got)
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i].Type, want[i])
		}
	}
	if got[0].Title != "a" || got[4].Window != b {
		t.Errorf("payloads = %+v", got)
	}
	if c.DestroyWindow(a) {
		t.Error("second DestroyWindow should fail")
	}
	if ws := c.Windows(); len(ws) != 1 || !ws[0].Focused {
		t.Errorf("Windows = %+v", ws)
	}
}

func TestHeadlessHandlerStopAndRemove(t *testing.T) {
	c := NewHeadlessCompositor(testArea)
	var calls []string
	h1 := c.AddEventHandler(func(CompositorEvent) bool {
		calls = append(calls, "first")
		return false
	})
	c.AddEventHandler(func(CompositorEvent) bool {
		calls = append(calls, "second")
		return true
	})
	c.SetDisplay(Rect{0, 0, 800, 600})
	if len(calls) != 1 {
		t.Errorf("calls = %v, want [first]", calls)
	}
	h1.Remove()
	c.SetDisplay(Rect{0, 0, 1024, 768})
	if len(calls) != 2 || calls[1] != "second" {
		t.Errorf("calls = %v", calls)
	}
	if c.Display().Width != 1024 {
		t.Errorf("Display = %+v", c.Display())
	}
}

func TestHeadlessHandlerMayReenter(t *testing.T) {
	c := NewHeadlessCompositor(testArea)
	c.AddEventHandler(func(ev CompositorEvent) bool {
		if ev.Type == CompositorWindowCreated {
			c.FocusWindow(ev.Window)
		}
		return true
	})
	id := c.CreateWindow("x", Rect{})
	if ws := c.Windows(); len(ws) != 1 || ws[0].ID != id || !ws[0].Focused {
		t.Errorf("Windows = %+v", ws)
	}
}
