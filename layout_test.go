package arbor

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

var testArea = Rect{0, 0, 1920, 1080}

func newTestLayout(t *testing.T, layout LayoutType, n int) (*LayoutManager, []NodeID) {
	t.Helper()
	m := NewLayoutManager(testArea, layout)
	ids := make([]NodeID, n)
	for i := range ids {
		ids[i] = NodeID(i + 1)
		if err := m.AddWindow(ids[i], DefaultWorkspaceID, Rect{10, 10, 100, 100}); err != nil {
			t.Fatalf("AddWindow: %v", err)
		}
	}
	return m, ids
}

func rectOf(t *testing.T, m *LayoutManager, id NodeID) Rect {
	t.Helper()
	w, ok := m.Window(id)
	if !ok {
		t.Fatalf("window %d missing", id)
	}
	return w.Rect
}

// --- LayoutType ---

func TestParseLayoutType(t *testing.T) {
	for i, name := range layoutNames {
		got, err := ParseLayoutType(name)
		if err != nil || got != LayoutType(i) {
			t.Errorf("ParseLayoutType(%q) = %v, %v", name, got, err)
		}
	}
	if got, _ := ParseLayoutType(" Grid "); got != LayoutGrid {
		t.Errorf("ParseLayoutType(Grid) = %v, want grid", got)
	}
	if _, err := ParseLayoutType("spiral"); err == nil {
		t.Error("ParseLayoutType(spiral) should fail")
	}
}

func TestLayoutTypeYAML(t *testing.T) {
	var v struct {
		Layout LayoutType `yaml:"layout"`
	}
	if err := yaml.Unmarshal([]byte("layout: cascade\n"), &v); err != nil {
		t.Fatal(err)
	}
	if v.Layout != LayoutCascade {
		t.Errorf("Layout = %v, want cascade", v.Layout)
	}
	if err := yaml.Unmarshal([]byte("layout: spiral\n"), &v); err == nil {
		t.Error("unknown layout should fail to decode")
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "layout: cascade\n" {
		t.Errorf("Marshal = %q", out)
	}
}

// --- Workspaces ---

func TestDefaultWorkspace(t *testing.T) {
	m := NewLayoutManager(testArea, LayoutTiling)
	ws, ok := m.Workspace(DefaultWorkspaceID)
	if !ok || ws.Name != "Default" || ws.Rect != testArea || ws.Layout != LayoutTiling {
		t.Errorf("default workspace = %+v", ws)
	}
	if _, err := m.RemoveWorkspace(DefaultWorkspaceID); !errors.Is(err, ErrDefaultWorkspace) {
		t.Errorf("RemoveWorkspace(0) err = %v, want ErrDefaultWorkspace", err)
	}
}

func TestRemoveWorkspaceMovesWindows(t *testing.T) {
	m := NewLayoutManager(testArea, LayoutTiling)
	ws := m.CreateWorkspace("code")
	if err := m.AddWindow(7, ws, Rect{}); err != nil {
		t.Fatal(err)
	}
	if err := m.SwitchWorkspace(ws); err != nil {
		t.Fatal(err)
	}
	moved, err := m.RemoveWorkspace(ws)
	if err != nil {
		t.Fatal(err)
	}
	if len(moved) != 1 || moved[0] != 7 {
		t.Errorf("moved = %v, want [7]", moved)
	}
	if w, _ := m.Window(7); w.Workspace != DefaultWorkspaceID {
		t.Errorf("window workspace = %d, want 0", w.Workspace)
	}
	if m.CurrentWorkspace() != DefaultWorkspaceID {
		t.Errorf("current = %d, want 0", m.CurrentWorkspace())
	}
	if _, err := m.RemoveWorkspace(ws); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Errorf("second remove err = %v", err)
	}
}

func TestWorkspacesOrdered(t *testing.T) {
	m := NewLayoutManager(testArea, LayoutTiling)
	m.CreateWorkspace("a")
	m.CreateWorkspace("b")
	all := m.Workspaces()
	if len(all) != 3 || all[0].ID != 0 || all[1].Name != "a" || all[2].Name != "b" {
		t.Errorf("Workspaces = %+v", all)
	}
	if err := m.SwitchWorkspace(99); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Errorf("SwitchWorkspace(99) err = %v", err)
	}
}

func TestMoveWindow(t *testing.T) {
	m, ids := newTestLayout(t, LayoutTiling, 2)
	ws := m.CreateWorkspace("other")
	from, err := m.MoveWindow(ids[1], ws)
	if err != nil || from != DefaultWorkspaceID {
		t.Fatalf("MoveWindow = %d, %v", from, err)
	}
	def, _ := m.Workspace(DefaultWorkspaceID)
	if len(def.Windows) != 1 || def.Active != ids[0] {
		t.Errorf("default after move = %+v", def)
	}
	if _, err := m.MoveWindow(99, ws); !errors.Is(err, ErrWindowNotFound) {
		t.Errorf("MoveWindow(99) err = %v", err)
	}
}

func TestRemoveWindowActiveFallsBack(t *testing.T) {
	m, ids := newTestLayout(t, LayoutTiling, 3)
	if err := m.SetActiveWindow(ids[1]); err != nil {
		t.Fatal(err)
	}
	m.RemoveWindow(ids[1])
	if a, ok := m.ActiveWindow(DefaultWorkspaceID); !ok || a != ids[2] {
		t.Errorf("active = %d, %v, want %d", a, ok, ids[2])
	}
}

func TestCycleActive(t *testing.T) {
	m, ids := newTestLayout(t, LayoutTiling, 3)
	// last added is active
	for _, want := range []NodeID{ids[0], ids[1], ids[2], ids[0]} {
		got, ok := m.CycleActive(DefaultWorkspaceID)
		if !ok || got != want {
			t.Errorf("CycleActive = %d, want %d", got, want)
		}
	}
}

// --- Engines ---

func TestTilingHorizontal(t *testing.T) {
	m, ids := newTestLayout(t, LayoutTiling, 3)
	changes, err := m.UpdateLayout(DefaultWorkspaceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 3 {
		t.Errorf("changes = %d, want 3", len(changes))
	}
	want := []Rect{{0, 0, 640, 1080}, {640, 0, 640, 1080}, {1280, 0, 640, 1080}}
	for i, id := range ids {
		if got := rectOf(t, m, id); got != want[i] {
			t.Errorf("window %d = %+v, want %+v", i, got, want[i])
		}
	}
}

func TestTilingRemainderToLast(t *testing.T) {
	m := NewLayoutManager(Rect{0, 0, 100, 50}, LayoutTiling)
	for id := NodeID(1); id <= 3; id++ {
		_ = m.AddWindow(id, 0, Rect{})
	}
	_, _ = m.UpdateLayout(0)
	if got := rectOf(t, m, 3); got != (Rect{66, 0, 34, 50}) {
		t.Errorf("last = %+v", got)
	}
}

func TestTilingVertical(t *testing.T) {
	m := NewLayoutManager(Rect{0, 0, 600, 900}, LayoutTiling)
	_ = m.AddWindow(1, 0, Rect{})
	_ = m.AddWindow(2, 0, Rect{})
	_, _ = m.UpdateLayout(0)
	if got := rectOf(t, m, 2); got != (Rect{0, 450, 600, 450}) {
		t.Errorf("second = %+v", got)
	}
}

func TestSplitLayoutsIgnoreAspect(t *testing.T) {
	m, ids := newTestLayout(t, LayoutVerticalSplit, 2)
	_, _ = m.UpdateLayout(DefaultWorkspaceID)
	if got := rectOf(t, m, ids[1]); got != (Rect{0, 540, 1920, 540}) {
		t.Errorf("vsplit second = %+v", got)
	}

	m = NewLayoutManager(Rect{0, 0, 600, 900}, LayoutHorizontalSplit)
	_ = m.AddWindow(1, 0, Rect{})
	_ = m.AddWindow(2, 0, Rect{})
	_, _ = m.UpdateLayout(0)
	if got := rectOf(t, m, 2); got != (Rect{300, 0, 300, 900}) {
		t.Errorf("hsplit second = %+v", got)
	}
}

func TestTilingSkipsFloatingAndMinimized(t *testing.T) {
	m, ids := newTestLayout(t, LayoutTiling, 3)
	_ = m.SetFloating(ids[0], true)
	_ = m.SetMinimized(ids[1], true)
	_, _ = m.UpdateLayout(DefaultWorkspaceID)
	if got := rectOf(t, m, ids[0]); got != (Rect{10, 10, 100, 100}) {
		t.Errorf("floating moved to %+v", got)
	}
	if got := rectOf(t, m, ids[1]); got != (Rect{10, 10, 100, 100}) {
		t.Errorf("minimized moved to %+v", got)
	}
	if got := rectOf(t, m, ids[2]); got != testArea {
		t.Errorf("sole tiled window = %+v, want full area", got)
	}
}

func TestGrid(t *testing.T) {
	m, ids := newTestLayout(t, LayoutGrid, 5)
	_, _ = m.UpdateLayout(DefaultWorkspaceID)
	// 5 windows: 3 columns, 2 rows
	if got := rectOf(t, m, ids[0]); got != (Rect{0, 0, 640, 540}) {
		t.Errorf("first = %+v", got)
	}
	if got := rectOf(t, m, ids[4]); got != (Rect{640, 540, 640, 540}) {
		t.Errorf("fifth = %+v", got)
	}
}

func TestMaximizedAndCascade(t *testing.T) {
	m, ids := newTestLayout(t, LayoutMaximized, 2)
	_, _ = m.UpdateLayout(DefaultWorkspaceID)
	for _, id := range ids {
		if got := rectOf(t, m, id); got != testArea {
			t.Errorf("maximized = %+v", got)
		}
	}
	_ = m.SetLayoutType(DefaultWorkspaceID, LayoutCascade)
	_, _ = m.UpdateLayout(DefaultWorkspaceID)
	if got := rectOf(t, m, ids[1]); got != (Rect{30, 30, 1280, 720}) {
		t.Errorf("cascade second = %+v", got)
	}
}

func TestCascadeWraps(t *testing.T) {
	e := cascadeEngine{offset: 30}
	out := e.Arrange(Rect{0, 0, 300, 300}, make([]Rect, 5))
	// 100px slack: offsets 0, 30, 60, 90, then back to 0
	if out[4].X != 0 || out[3].X != 90 {
		t.Errorf("cascade = %+v", out)
	}
}

func TestFloatingLayoutKeepsRects(t *testing.T) {
	m, _ := newTestLayout(t, LayoutFloating, 2)
	changes, _ := m.UpdateLayout(DefaultWorkspaceID)
	if len(changes) != 0 {
		t.Errorf("floating layout changed %d windows", len(changes))
	}
}

func TestUpdateLayoutReportsOnlyChanges(t *testing.T) {
	m, _ := newTestLayout(t, LayoutTiling, 2)
	_, _ = m.UpdateLayout(DefaultWorkspaceID)
	changes, _ := m.UpdateLayout(DefaultWorkspaceID)
	if len(changes) != 0 {
		t.Errorf("second pass changes = %d, want 0", len(changes))
	}
	_ = m.ResizeWorkspace(DefaultWorkspaceID, Rect{0, 0, 1920, 1200})
	changes, _ = m.UpdateLayout(DefaultWorkspaceID)
	if len(changes) != 2 || changes[0].Moved || !changes[0].Resized {
		t.Errorf("after resize = %+v", changes)
	}
}

// --- Snapping ---

func TestSnapRect(t *testing.T) {
	a := Rect{0, 0, 1001, 800}
	if got := SnapRect(a, SnapLeft); got != (Rect{0, 0, 500, 800}) {
		t.Errorf("left = %+v", got)
	}
	if got := SnapRect(a, SnapRight); got != (Rect{500, 0, 501, 800}) {
		t.Errorf("right = %+v", got)
	}
	if got := SnapRect(a, SnapBottomRight); got != (Rect{500, 400, 501, 400}) {
		t.Errorf("bottom right = %+v", got)
	}
}

func TestSnapMaximizeRestore(t *testing.T) {
	m, ids := newTestLayout(t, LayoutTiling, 2)
	if err := m.Snap(ids[0], SnapRight); err != nil {
		t.Fatal(err)
	}
	_, _ = m.UpdateLayout(DefaultWorkspaceID)
	if got := rectOf(t, m, ids[0]); got != (Rect{960, 0, 960, 1080}) {
		t.Errorf("snapped = %+v", got)
	}
	if got := rectOf(t, m, ids[1]); got != testArea {
		t.Errorf("other tiled = %+v", got)
	}

	_ = m.Maximize(ids[0])
	_, _ = m.UpdateLayout(DefaultWorkspaceID)
	if got := rectOf(t, m, ids[0]); got != testArea {
		t.Errorf("maximized = %+v", got)
	}

	_ = m.Restore(ids[0])
	_, _ = m.UpdateLayout(DefaultWorkspaceID)
	if got := rectOf(t, m, ids[0]); got != (Rect{0, 0, 960, 1080}) {
		t.Errorf("restored = %+v", got)
	}
}

func TestMinimizeAll(t *testing.T) {
	m, ids := newTestLayout(t, LayoutTiling, 3)
	_ = m.SetMinimized(ids[0], true)
	changed := m.MinimizeAll(DefaultWorkspaceID)
	if len(changed) != 2 {
		t.Errorf("changed = %v, want 2 ids", changed)
	}
	if errors.Is(m.Snap(99, SnapLeft), ErrWindowNotFound) == false {
		t.Error("Snap(99) should report ErrWindowNotFound")
	}
}
