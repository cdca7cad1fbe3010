package arbor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/thejerf/suture/v4"
)

// --- Helpers ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newTestManager builds and initializes a manager that is shut down when the
// test ends.
func newTestManager(t *testing.T, cfg Config, opts ...Option) *WindowManager {
	t.Helper()
	wm, err := NewWindowManager(cfg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := wm.Initialize(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(wm.Shutdown)
	return wm
}

func quietConfig() Config {
	c := DefaultConfig()
	c.Effects = false
	return c
}

func headless(t *testing.T, wm *WindowManager) *HeadlessCompositor {
	t.Helper()
	c, ok := wm.Compositor().(*HeadlessCompositor)
	if !ok {
		t.Fatalf("compositor is %T", wm.Compositor())
	}
	return c
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func record(wm *WindowManager) *eventLog {
	l := &eventLog{}
	wm.AddEventListener(func(ev Event) bool {
		l.mu.Lock()
		l.events = append(l.events, ev)
		l.mu.Unlock()
		return true
	})
	return l
}

func (l *eventLog) ofType(typ EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (l *eventLog) indexOf(typ EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, ev := range l.events {
		if ev.Type == typ {
			return i
		}
	}
	return -1
}

// openWindow creates a compositor window and returns its node.
func openWindow(t *testing.T, wm *WindowManager, title string) NodeID {
	t.Helper()
	id := headless(t, wm).CreateWindow(title, Rect{X: 100, Y: 100, Width: 400, Height: 300})
	node, ok := wm.WindowNode(id)
	if !ok {
		t.Fatalf("window %d has no node", id)
	}
	return node
}

func visible(wm *WindowManager, node NodeID) bool {
	var v bool
	wm.ViewScene(func(g *SceneGraph) {
		v = g.IsEffectivelyVisible(node)
	})
	return v
}

func pressChord(wm *WindowManager, key ebiten.Key, mods KeyModifiers) {
	ts := wm.Now()
	wm.PushInput(KeyPress(key, mods, ts))
	wm.PushInput(KeyRelease(key, mods, ts))
	wm.Tick()
}

func assertRect(t *testing.T, name string, got, want Rect) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %+v, want %+v", name, got, want)
	}
}

// --- Construction & lifecycle ---

func TestNewWindowManagerRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UpdateRate = 0
	if _, err := NewWindowManager(cfg); err == nil {
		t.Error("expected config error")
	}
}

func TestInitializeCompositorFailure(t *testing.T) {
	c := NewHeadlessCompositor(Rect{Width: 800, Height: 600})
	c.FailInitialize(errors.New("no display"))
	wm, err := NewWindowManager(DefaultConfig(), WithCompositor(c))
	if err != nil {
		t.Fatal(err)
	}
	err = wm.Initialize()
	if !errors.Is(err, ErrCompositorInit) {
		t.Fatalf("err = %v, want ErrCompositorInit", err)
	}
	if wm.State() != StateStarting {
		t.Errorf("state = %s, want Starting", wm.State())
	}
}

func TestInitializeTwice(t *testing.T) {
	wm := newTestManager(t, DefaultConfig())
	if wm.State() != StateRunning {
		t.Fatalf("state = %s", wm.State())
	}
	if err := wm.Initialize(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Initialize = %v", err)
	}
}

func TestSuspendResume(t *testing.T) {
	wm := newTestManager(t, DefaultConfig())
	log := record(wm)
	c := headless(t, wm)

	wm.Tick()
	frames := c.FrameCount()
	if err := wm.Suspend(); err != nil {
		t.Fatal(err)
	}
	wm.Tick()
	if c.FrameCount() != frames {
		t.Error("Tick rendered while suspended")
	}
	if err := wm.Suspend(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double Suspend = %v", err)
	}
	if err := wm.Resume(); err != nil {
		t.Fatal(err)
	}
	wm.Tick()
	if c.FrameCount() != frames+1 {
		t.Errorf("frames = %d, want %d", c.FrameCount(), frames+1)
	}

	var states []SystemState
	for _, ev := range log.ofType(EventSystemStateChanged) {
		states = append(states, ev.State)
	}
	want := []SystemState{StateSuspending, StateResuming, StateRunning}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %s, want %s", i, states[i], want[i])
		}
	}
}

func TestShutdownIdempotent(t *testing.T) {
	wm := newTestManager(t, DefaultConfig())
	log := record(wm)
	wm.Shutdown()
	wm.Shutdown()
	if n := len(log.ofType(EventSystemStateChanged)); n != 1 {
		t.Errorf("state events = %d, want 1", n)
	}
	if headless(t, wm).Running() {
		t.Error("compositor still running")
	}
	if _, err := wm.CreateWorkspace("late"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("CreateWorkspace after shutdown = %v", err)
	}
}

// --- Main loop ---

func TestServeRequiresInitialize(t *testing.T) {
	wm, err := NewWindowManager(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := wm.Serve(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Serve before Initialize = %v", err)
	}
}

func TestServeContextCancel(t *testing.T) {
	wm := newTestManager(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- wm.Serve(ctx) }()

	waitFor(t, func() bool { return headless(t, wm).FrameCount() > 0 })
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestRunStopsOnShutdown(t *testing.T) {
	wm := newTestManager(t, DefaultConfig())
	done := make(chan error, 1)
	go func() { done <- wm.Run() }()

	waitFor(t, func() bool { return headless(t, wm).FrameCount() > 0 })
	if err := wm.Serve(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("concurrent Serve = %v", err)
	}
	wm.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if err := wm.Serve(context.Background()); !errors.Is(err, ErrInvalidState) && !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve after shutdown = %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- Events ---

func TestListenerStopAndRemove(t *testing.T) {
	wm := newTestManager(t, DefaultConfig())
	var first, second int
	h := wm.AddEventListener(func(Event) bool { first++; return false })
	wm.AddEventListener(func(Event) bool { second++; return true })

	wm.SetPowerSavingMode(true)
	if first != 1 || second != 0 {
		t.Errorf("first/second = %d/%d, want 1/0", first, second)
	}
	h.Remove()
	wm.SetPowerSavingMode(false)
	if first != 1 || second != 1 {
		t.Errorf("after remove first/second = %d/%d, want 1/1", first, second)
	}
}

func TestEventTimestamps(t *testing.T) {
	clock := newFakeClock()
	wm := newTestManager(t, DefaultConfig(), withClock(clock.Now))
	log := record(wm)
	clock.Advance(1500 * time.Millisecond)
	if _, err := wm.CreateWorkspace("dev"); err != nil {
		t.Fatal(err)
	}
	evs := log.ofType(EventWorkspaceCreated)
	if len(evs) != 1 || evs[0].Timestamp != 1500 {
		t.Errorf("events = %+v", evs)
	}
}

// --- Windows ---

func TestCompositorWindowLifecycle(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	log := record(wm)
	c := headless(t, wm)

	id := c.CreateWindow("editor", Rect{X: 100, Y: 100, Width: 400, Height: 300})
	node, ok := wm.WindowNode(id)
	if !ok || wm.WindowCount() != 1 {
		t.Fatalf("node %v ok=%v count=%d", node, ok, wm.WindowCount())
	}
	if back, _ := wm.NodeWindow(node); back != id {
		t.Errorf("NodeWindow = %d, want %d", back, id)
	}
	wm.ViewScene(func(g *SceneGraph) {
		n, ok := g.Node(node)
		if !ok || n.Type != NodeWindow || n.Name != "editor" {
			t.Errorf("node = %+v", n)
		}
	})
	if created, focused := log.indexOf(EventWindowCreated), log.indexOf(EventWindowFocused); created < 0 || focused < created {
		t.Errorf("created at %d, focused at %d", created, focused)
	}
	if f, ok := wm.Input().Focus(); !ok || f != node {
		t.Errorf("focus = %v %v", f, ok)
	}
	w, _ := wm.LayoutWindow(node)
	assertRect(t, "tiled rect", w.Rect, Rect{0, 0, 1920, 1080})

	c.DestroyWindow(id)
	if wm.WindowCount() != 0 {
		t.Errorf("count = %d", wm.WindowCount())
	}
	wm.ViewScene(func(g *SceneGraph) {
		if g.Contains(node) {
			t.Error("node survived window destruction")
		}
	})
	if _, ok := wm.Input().Focus(); ok {
		t.Error("focus survived window destruction")
	}
	if evs := log.ofType(EventWindowDestroyed); len(evs) != 1 || evs[0].Window != id {
		t.Errorf("destroyed events = %+v", evs)
	}
}

func TestWindowsTileAndRender(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	a := openWindow(t, wm, "a")
	b := openWindow(t, wm, "b")
	wm.Tick()

	wa, _ := wm.LayoutWindow(a)
	wb, _ := wm.LayoutWindow(b)
	assertRect(t, "a", wa.Rect, Rect{0, 0, 960, 1080})
	assertRect(t, "b", wb.Rect, Rect{960, 0, 960, 1080})

	wm.ViewScene(func(g *SceneGraph) {
		gb, _ := g.GlobalBounds(b)
		assertRect(t, "b bounds", gb.Rect(), wb.Rect)
	})

	items := headless(t, wm).LastFrame()
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[1].Node != b || !items[1].Focused || !items[1].HasWindow {
		t.Errorf("top item = %+v", items[1])
	}
	if items[0].Focused {
		t.Error("unfocused window rendered as focused")
	}
}

func TestClickFocusesWindow(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	a := openWindow(t, wm, "a")
	b := openWindow(t, wm, "b")
	wm.Tick()

	wm.PushInput(MousePress(MouseButtonLeft, 100, 100, 0, wm.Now()))
	wm.PushInput(MouseRelease(MouseButtonLeft, 100, 100, 0, wm.Now()))
	wm.Tick()

	if active, _ := wm.ActiveWindow(); active != a {
		t.Errorf("active = %d, want %d", active, a)
	}
	items := headless(t, wm).LastFrame()
	if len(items) != 2 || items[1].Node != a || items[0].Node != b {
		t.Errorf("draw order = %+v", items)
	}
}

func TestMinimizeAndRestoreOnFocus(t *testing.T) {
	clock := newFakeClock()
	wm := newTestManager(t, DefaultConfig(), withClock(clock.Now))
	log := record(wm)
	node := openWindow(t, wm, "a")

	if err := wm.MinimizeWindow(node); err != nil {
		t.Fatal(err)
	}
	if !visible(wm, node) {
		t.Error("window hidden before the minimize effect ran")
	}
	for range 5 {
		clock.Advance(100 * time.Millisecond)
		wm.Tick()
	}
	if visible(wm, node) {
		t.Error("window visible after minimize effect")
	}
	if _, ok := wm.Input().Focus(); ok {
		t.Error("minimized window kept focus")
	}

	if err := wm.FocusWindow(node); err != nil {
		t.Fatal(err)
	}
	w, _ := wm.LayoutWindow(node)
	if w.Minimized || !visible(wm, node) {
		t.Errorf("restored window = %+v visible=%v", w, visible(wm, node))
	}
	states := log.ofType(EventWindowStateChanged)
	if len(states) != 2 || states[0].WindowState != WindowMinimized || states[1].WindowState != WindowNormal {
		t.Errorf("state events = %+v", states)
	}
}

func TestMinimizeSurvivesPowerSaving(t *testing.T) {
	clock := newFakeClock()
	wm := newTestManager(t, DefaultConfig(), withClock(clock.Now))
	node := openWindow(t, wm, "a")

	if err := wm.MinimizeWindow(node); err != nil {
		t.Fatal(err)
	}
	clock.Advance(50 * time.Millisecond)
	wm.Tick()
	wm.SetPowerSavingMode(true)
	for range 5 {
		clock.Advance(100 * time.Millisecond)
		wm.Tick()
	}
	w, _ := wm.LayoutWindow(node)
	if !w.Minimized || visible(wm, node) {
		t.Errorf("minimized=%v visible=%v, want hidden", w.Minimized, visible(wm, node))
	}
}

func TestMinimizeSurvivesEffectEviction(t *testing.T) {
	clock := newFakeClock()
	wm := newTestManager(t, DefaultConfig(), withClock(clock.Now))
	node := openWindow(t, wm, "a")

	if err := wm.MinimizeWindow(node); err != nil {
		t.Fatal(err)
	}
	for range DefaultEffectLimit + 8 {
		if _, err := wm.ApplyEffect(EffectFadeIn); err != nil {
			t.Fatal(err)
		}
	}
	for range 5 {
		clock.Advance(100 * time.Millisecond)
		wm.Tick()
	}
	if visible(wm, node) {
		t.Error("minimized window visible after its effect was evicted")
	}
	wm.ViewScene(func(g *SceneGraph) {
		n, _ := g.Node(node)
		if n.Properties.Opacity != 1 {
			t.Errorf("opacity = %v, want 1", n.Properties.Opacity)
		}
	})
}

func TestSnapDisabled(t *testing.T) {
	cfg := quietConfig()
	cfg.WindowSnapping = false
	wm := newTestManager(t, cfg)
	node := openWindow(t, wm, "a")
	if err := wm.SnapWindow(node, SnapLeft); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SnapWindow = %v", err)
	}
}

func TestDisplayChangeRelayouts(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	log := record(wm)
	node := openWindow(t, wm, "a")

	headless(t, wm).SetDisplay(Rect{Width: 1280, Height: 720})
	w, _ := wm.LayoutWindow(node)
	assertRect(t, "rect", w.Rect, Rect{0, 0, 1280, 720})
	if evs := log.ofType(EventDisplayConfigChanged); len(evs) != 1 {
		t.Errorf("display events = %d", len(evs))
	}
}

// --- Shortcuts ---

func TestAltTabCyclesWindows(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	a := openWindow(t, wm, "a")
	b := openWindow(t, wm, "b")
	if active, _ := wm.ActiveWindow(); active != b {
		t.Fatalf("active = %d, want %d", active, b)
	}
	pressChord(wm, ebiten.KeyTab, ModAlt)
	if active, _ := wm.ActiveWindow(); active != a {
		t.Errorf("after Alt+Tab active = %d, want %d", active, a)
	}
	pressChord(wm, ebiten.KeyTab, ModAlt)
	if active, _ := wm.ActiveWindow(); active != b {
		t.Errorf("after second Alt+Tab active = %d, want %d", active, b)
	}
}

func TestSuperDShowsDesktop(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	a := openWindow(t, wm, "a")
	b := openWindow(t, wm, "b")
	pressChord(wm, ebiten.KeyD, ModSuper)

	if visible(wm, a) || visible(wm, b) {
		t.Error("windows still visible")
	}
	for _, item := range headless(t, wm).LastFrame() {
		if item.HasWindow {
			t.Errorf("rendered hidden window %+v", item)
		}
	}
}

func TestSuperArrowsSnapAndMaximize(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	node := openWindow(t, wm, "a")

	pressChord(wm, ebiten.KeyArrowLeft, ModSuper)
	w, _ := wm.LayoutWindow(node)
	assertRect(t, "snapped left", w.Rect, Rect{0, 0, 960, 1080})
	if !w.Floating {
		t.Error("snapped window not floating")
	}

	pressChord(wm, ebiten.KeyArrowRight, ModSuper)
	w, _ = wm.LayoutWindow(node)
	assertRect(t, "snapped right", w.Rect, Rect{960, 0, 960, 1080})

	pressChord(wm, ebiten.KeyArrowUp, ModSuper)
	w, _ = wm.LayoutWindow(node)
	assertRect(t, "maximized", w.Rect, Rect{0, 0, 1920, 1080})

	pressChord(wm, ebiten.KeyArrowDown, ModSuper)
	w, _ = wm.LayoutWindow(node)
	if w.Floating || w.Maximized {
		t.Errorf("restored window = %+v", w)
	}
}

// --- Gestures ---

func TestRotateGestureReachesListeners(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	log := record(wm)
	node := openWindow(t, wm, "a")
	wm.Tick()

	ts := wm.Now()
	wm.PushInput(MousePress(MouseButtonRight, 200, 200, ModCtrl, ts))
	wm.PushInput(MouseMove(220, 220, 20, 20, ModCtrl, ts+10))
	wm.PushInput(MouseMove(210, 240, -10, 20, ModCtrl, ts+20))
	wm.PushInput(MouseRelease(MouseButtonRight, 210, 240, ModCtrl, ts+30))
	wm.Tick()

	var rotations []GestureInfo
	for _, ev := range log.ofType(EventGestureRecognized) {
		if ev.Gesture.Type == GestureRotate {
			rotations = append(rotations, ev.Gesture)
			if ev.Node != node {
				t.Errorf("gesture node = %d, want %d", ev.Node, node)
			}
		}
	}
	if len(rotations) < 2 {
		t.Fatalf("rotate events = %d", len(rotations))
	}
	if rotations[0].State != GestureBegan || rotations[len(rotations)-1].State != GestureEnded {
		t.Errorf("states = %s .. %s", rotations[0].State, rotations[len(rotations)-1].State)
	}
	for _, g := range rotations {
		if g.Instance != rotations[0].Instance {
			t.Error("rotation instance changed mid-gesture")
		}
	}
}

func TestGesturesDisabled(t *testing.T) {
	cfg := quietConfig()
	cfg.Gestures = false
	wm := newTestManager(t, cfg)
	log := record(wm)
	ts := wm.Now()
	wm.PushInput(MousePress(MouseButtonLeft, 10, 10, 0, ts))
	wm.PushInput(MouseRelease(MouseButtonLeft, 10, 10, 0, ts+20))
	wm.Tick()
	if n := len(log.ofType(EventGestureRecognized)); n != 0 {
		t.Errorf("gesture events = %d, want 0", n)
	}
}

// --- Workspaces ---

func TestCreateAndSwitchWorkspace(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	log := record(wm)
	a := openWindow(t, wm, "a")

	id, err := wm.CreateWorkspace("dev")
	if err != nil || id != 1 {
		t.Fatalf("CreateWorkspace = %d, %v", id, err)
	}
	if err := wm.SwitchWorkspace(id); err != nil {
		t.Fatal(err)
	}
	if created, switched := log.indexOf(EventWorkspaceCreated), log.indexOf(EventWorkspaceSwitched); created < 0 || switched < created {
		t.Errorf("created at %d, switched at %d", created, switched)
	}
	sw := log.ofType(EventWorkspaceSwitched)
	if sw[0].Workspace != 1 || sw[0].PreviousWorkspace != 0 {
		t.Errorf("switch event = %+v", sw[0])
	}
	if visible(wm, a) {
		t.Error("window of the previous workspace still visible")
	}
	if _, ok := wm.Input().Focus(); ok {
		t.Error("focus kept across workspaces")
	}

	b := openWindow(t, wm, "b")
	if w, _ := wm.LayoutWindow(b); w.Workspace != 1 {
		t.Errorf("new window on workspace %d", w.Workspace)
	}
	if err := wm.SwitchWorkspace(DefaultWorkspaceID); err != nil {
		t.Fatal(err)
	}
	if !visible(wm, a) || visible(wm, b) {
		t.Errorf("visible a=%v b=%v", visible(wm, a), visible(wm, b))
	}
	if f, _ := wm.Input().Focus(); f != a {
		t.Errorf("focus = %d, want %d", f, a)
	}
	if err := wm.SwitchWorkspace(42); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Errorf("switch to unknown = %v", err)
	}
}

func TestMoveWindowToWorkspace(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	log := record(wm)
	node := openWindow(t, wm, "a")
	ws, _ := wm.CreateWorkspace("dev")

	if err := wm.MoveWindowToWorkspace(node, ws); err != nil {
		t.Fatal(err)
	}
	if visible(wm, node) {
		t.Error("moved window visible on the current workspace")
	}
	evs := log.ofType(EventWindowWorkspaceChanged)
	if len(evs) != 1 || evs[0].Workspace != ws || evs[0].PreviousWorkspace != 0 {
		t.Errorf("events = %+v", evs)
	}
}

func TestRemoveWorkspace(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	if err := wm.RemoveWorkspace(DefaultWorkspaceID); !errors.Is(err, ErrDefaultWorkspace) {
		t.Errorf("remove default = %v", err)
	}
	ws, _ := wm.CreateWorkspace("dev")
	if err := wm.SwitchWorkspace(ws); err != nil {
		t.Fatal(err)
	}
	node := openWindow(t, wm, "a")
	if err := wm.RemoveWorkspace(ws); err != nil {
		t.Fatal(err)
	}
	if wm.CurrentWorkspace() != DefaultWorkspaceID {
		t.Errorf("current = %d", wm.CurrentWorkspace())
	}
	if w, _ := wm.LayoutWindow(node); w.Workspace != DefaultWorkspaceID {
		t.Errorf("window on workspace %d", w.Workspace)
	}
	if !visible(wm, node) {
		t.Error("moved window hidden")
	}
}

func TestAutoWorkspaceRemovesEmptied(t *testing.T) {
	for _, auto := range []bool{true, false} {
		cfg := quietConfig()
		cfg.AutoWorkspace = auto
		wm := newTestManager(t, cfg)
		log := record(wm)
		ws, _ := wm.CreateWorkspace("dev")
		node := openWindow(t, wm, "a")
		if err := wm.MoveWindowToWorkspace(node, ws); err != nil {
			t.Fatal(err)
		}
		window, _ := wm.NodeWindow(node)
		headless(t, wm).DestroyWindow(window)

		removed := len(log.ofType(EventWorkspaceRemoved)) == 1
		if removed != auto || (len(wm.Workspaces()) == 1) != auto {
			t.Errorf("auto=%v: removed=%v workspaces=%d", auto, removed, len(wm.Workspaces()))
		}
	}
}

func TestSetLayoutType(t *testing.T) {
	wm := newTestManager(t, quietConfig())
	log := record(wm)
	a := openWindow(t, wm, "a")
	openWindow(t, wm, "b")
	if err := wm.SetLayoutType(LayoutMaximized); err != nil {
		t.Fatal(err)
	}
	w, _ := wm.LayoutWindow(a)
	assertRect(t, "maximized layout", w.Rect, Rect{0, 0, 1920, 1080})
	if evs := log.ofType(EventLayoutChanged); len(evs) != 1 || evs[0].Layout != LayoutMaximized {
		t.Errorf("events = %+v", evs)
	}
}

// --- Power & effects ---

func TestPowerSavingMode(t *testing.T) {
	wm := newTestManager(t, DefaultConfig())
	log := record(wm)

	wm.SetPowerSavingMode(true)
	if wm.UpdateRate() != 30 || wm.EffectsEnabled() || !wm.PowerSaving() {
		t.Errorf("rate=%d effects=%v", wm.UpdateRate(), wm.EffectsEnabled())
	}
	if _, err := wm.ApplyEffect(EffectFadeIn); !errors.Is(err, ErrEffectsDisabled) {
		t.Errorf("ApplyEffect = %v", err)
	}
	if !wm.Config().PowerSaving {
		t.Error("Config does not reflect power saving")
	}

	wm.SetPowerSavingMode(false)
	if wm.UpdateRate() != 60 || !wm.EffectsEnabled() {
		t.Errorf("restored rate=%d effects=%v", wm.UpdateRate(), wm.EffectsEnabled())
	}
	evs := log.ofType(EventPowerModeChanged)
	if len(evs) != 2 || !evs[0].PowerSaving || evs[1].PowerSaving {
		t.Errorf("events = %+v", evs)
	}
}

func TestPerformanceModeKeepsEffectsOff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerformanceMode = true
	wm := newTestManager(t, cfg)
	if wm.EffectsEnabled() {
		t.Error("effects on in performance mode")
	}
	wm.SetPowerSavingMode(true)
	wm.SetPowerSavingMode(false)
	if wm.EffectsEnabled() {
		t.Error("leaving power saving re-enabled effects")
	}
}

func TestApplyEffectEmits(t *testing.T) {
	wm := newTestManager(t, DefaultConfig())
	log := record(wm)
	node := openWindow(t, wm, "a")
	id, err := wm.ApplyEffect(EffectScaleIn, EffectTarget(node))
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, ev := range log.ofType(EventEffectStarted) {
		if ev.EffectID == id {
			found = ev.Effect == EffectScaleIn && ev.Node == node
		}
	}
	if !found {
		t.Error("no EffectStarted for the applied effect")
	}
}
