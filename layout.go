package arbor

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// LayoutType selects how a workspace arranges its windows.
type LayoutType uint8

const (
	LayoutFloating  LayoutType = iota // windows keep the rect they were given
	LayoutTiling                      // split along the longer axis
	LayoutGrid                        // ceil(sqrt(n)) columns
	LayoutMaximized                   // every window fills the workspace
	LayoutCascade                     // overlapping, offset diagonally
	LayoutHorizontalSplit             // side by side columns
	LayoutVerticalSplit               // stacked rows
)

var layoutNames = [...]string{"floating", "tiling", "grid", "maximized", "cascade", "hsplit", "vsplit"}

func (t LayoutType) String() string {
	if int(t) < len(layoutNames) {
		return layoutNames[t]
	}
	return fmt.Sprintf("LayoutType(%d)", t)
}

// ParseLayoutType converts a layout name (case-insensitive) to a LayoutType.
func ParseLayoutType(s string) (LayoutType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range layoutNames {
		if n == s {
			return LayoutType(i), nil
		}
	}
	return 0, fmt.Errorf("arbor: unknown layout %q", s)
}

// MarshalYAML writes the layout by name.
func (t LayoutType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML reads a layout name.
func (t *LayoutType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseLayoutType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// SnapEdge is a screen region a window can be snapped to.
type SnapEdge uint8

const (
	SnapLeft SnapEdge = iota
	SnapRight
	SnapTop
	SnapBottom
	SnapTopLeft
	SnapTopRight
	SnapBottomLeft
	SnapBottomRight
)

// SnapRect returns the part of area that edge covers: halves for the four
// sides, quarters for the corners.
func SnapRect(area Rect, edge SnapEdge) Rect {
	hw := math.Floor(area.Width / 2)
	hh := math.Floor(area.Height / 2)
	switch edge {
	case SnapLeft:
		return Rect{area.X, area.Y, hw, area.Height}
	case SnapRight:
		return Rect{area.X + hw, area.Y, area.Width - hw, area.Height}
	case SnapTop:
		return Rect{area.X, area.Y, area.Width, hh}
	case SnapBottom:
		return Rect{area.X, area.Y + hh, area.Width, area.Height - hh}
	case SnapTopLeft:
		return Rect{area.X, area.Y, hw, hh}
	case SnapTopRight:
		return Rect{area.X + hw, area.Y, area.Width - hw, hh}
	case SnapBottomLeft:
		return Rect{area.X, area.Y + hh, hw, area.Height - hh}
	default:
		return Rect{area.X + hw, area.Y + hh, area.Width - hw, area.Height - hh}
	}
}

// LayoutWindow is the layout manager's view of a window.
type LayoutWindow struct {
	ID         NodeID
	Workspace  int
	Rect       Rect
	Floating   bool // keeps its own rect under every layout
	Fullscreen bool // covers the workspace
	Maximized  bool // covers the workspace
	Minimized  bool // hidden; not arranged
}

func (w *LayoutWindow) tiled() bool {
	return !w.Floating && !w.Fullscreen && !w.Maximized && !w.Minimized
}

// Workspace is a virtual desktop holding an ordered list of windows.
type Workspace struct {
	ID        int
	Name      string
	Rect      Rect
	Layout    LayoutType
	Windows   []NodeID
	Active    NodeID
	HasActive bool
}

func (ws *Workspace) addWindow(id NodeID) {
	if !slices.Contains(ws.Windows, id) {
		ws.Windows = append(ws.Windows, id)
	}
}

func (ws *Workspace) removeWindow(id NodeID) bool {
	i := slices.Index(ws.Windows, id)
	if i < 0 {
		return false
	}
	ws.Windows = slices.Delete(ws.Windows, i, i+1)
	if ws.HasActive && ws.Active == id {
		ws.HasActive = len(ws.Windows) > 0
		ws.Active = 0
		if ws.HasActive {
			ws.Active = ws.Windows[len(ws.Windows)-1]
		}
	}
	return true
}

func (ws *Workspace) clone() Workspace {
	c := *ws
	c.Windows = slices.Clone(ws.Windows)
	return c
}

// LayoutChange reports a window whose rect an UpdateLayout pass changed.
type LayoutChange struct {
	Window  NodeID
	Old     Rect
	New     Rect
	Moved   bool
	Resized bool
}

// LayoutEngine computes rects for the tiled windows of a workspace. current
// holds their present rects in workspace order; the result must have the same
// length.
type LayoutEngine interface {
	Type() LayoutType
	Arrange(area Rect, current []Rect) []Rect
}

// DefaultWorkspaceID is the workspace that always exists.
const DefaultWorkspaceID = 0

// LayoutManager owns workspaces, per-window layout state and the layout
// engines. LayoutManager is not safe for concurrent use.
type LayoutManager struct {
	workspaces map[int]*Workspace
	windows    map[NodeID]*LayoutWindow
	engines    map[LayoutType]LayoutEngine
	current    int
	nextID     int
	area       Rect
	defLayout  LayoutType
}

// NewLayoutManager creates a manager with the "Default" workspace covering
// area and using layout.
func NewLayoutManager(area Rect, layout LayoutType) *LayoutManager {
	m := &LayoutManager{
		workspaces: make(map[int]*Workspace),
		windows:    make(map[NodeID]*LayoutWindow),
		engines:    make(map[LayoutType]LayoutEngine),
		area:       area,
		defLayout:  layout,
		nextID:     DefaultWorkspaceID + 1,
	}
	for _, e := range []LayoutEngine{floatingEngine{}, tilingEngine{}, gridEngine{}, maximizedEngine{}, cascadeEngine{offset: 30}, splitEngine{horizontal: true}, splitEngine{}} {
		m.engines[e.Type()] = e
	}
	m.workspaces[DefaultWorkspaceID] = &Workspace{ID: DefaultWorkspaceID, Name: "Default", Rect: area, Layout: layout}
	return m
}

// RegisterEngine installs or replaces the engine for its layout type.
func (m *LayoutManager) RegisterEngine(e LayoutEngine) {
	if e == nil {
		panic("arbor: nil layout engine")
	}
	m.engines[e.Type()] = e
}

// --- Workspaces ---

// CreateWorkspace adds a workspace with the manager's display area and default
// layout and returns its id.
func (m *LayoutManager) CreateWorkspace(name string) int {
	id := m.nextID
	m.nextID++
	m.workspaces[id] = &Workspace{ID: id, Name: name, Rect: m.area, Layout: m.defLayout}
	return id
}

// RemoveWorkspace deletes a workspace. Its windows move to the default
// workspace, which is also selected if the removed one was current. The ids of
// moved windows are returned.
func (m *LayoutManager) RemoveWorkspace(id int) ([]NodeID, error) {
	if id == DefaultWorkspaceID {
		return nil, ErrDefaultWorkspace
	}
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("arbor: remove workspace %d: %w", id, ErrWorkspaceNotFound)
	}
	def := m.workspaces[DefaultWorkspaceID]
	moved := slices.Clone(ws.Windows)
	for _, w := range moved {
		def.addWindow(w)
		m.windows[w].Workspace = DefaultWorkspaceID
	}
	delete(m.workspaces, id)
	if m.current == id {
		m.current = DefaultWorkspaceID
	}
	return moved, nil
}

// Workspace returns a copy of the workspace.
func (m *LayoutManager) Workspace(id int) (Workspace, bool) {
	ws, ok := m.workspaces[id]
	if !ok {
		return Workspace{}, false
	}
	return ws.clone(), true
}

// Workspaces returns copies of all workspaces ordered by id.
func (m *LayoutManager) Workspaces() []Workspace {
	out := make([]Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		out = append(out, ws.clone())
	}
	slices.SortFunc(out, func(a, b Workspace) int { return a.ID - b.ID })
	return out
}

// CurrentWorkspace returns the selected workspace id.
func (m *LayoutManager) CurrentWorkspace() int {
	return m.current
}

// SwitchWorkspace selects a workspace.
func (m *LayoutManager) SwitchWorkspace(id int) error {
	if _, ok := m.workspaces[id]; !ok {
		return fmt.Errorf("arbor: switch to workspace %d: %w", id, ErrWorkspaceNotFound)
	}
	m.current = id
	return nil
}

// SetLayoutType changes a workspace's layout. Call UpdateLayout to apply it.
func (m *LayoutManager) SetLayoutType(id int, t LayoutType) error {
	ws, ok := m.workspaces[id]
	if !ok {
		return fmt.Errorf("arbor: set layout of workspace %d: %w", id, ErrWorkspaceNotFound)
	}
	if _, ok := m.engines[t]; !ok {
		return fmt.Errorf("arbor: no engine for layout %s", t)
	}
	ws.Layout = t
	return nil
}

// ResizeWorkspace sets a workspace's area after a display change.
func (m *LayoutManager) ResizeWorkspace(id int, area Rect) error {
	ws, ok := m.workspaces[id]
	if !ok {
		return fmt.Errorf("arbor: resize workspace %d: %w", id, ErrWorkspaceNotFound)
	}
	ws.Rect = area
	return nil
}

// SetDisplayArea resizes every workspace and sets the area used for new ones.
func (m *LayoutManager) SetDisplayArea(area Rect) {
	m.area = area
	for _, ws := range m.workspaces {
		ws.Rect = area
	}
}

// --- Windows ---

// AddWindow places a window on a workspace and makes it the active window
// there.
func (m *LayoutManager) AddWindow(id NodeID, workspace int, rect Rect) error {
	ws, ok := m.workspaces[workspace]
	if !ok {
		return fmt.Errorf("arbor: add window %d: %w", id, ErrWorkspaceNotFound)
	}
	if old, ok := m.windows[id]; ok {
		m.workspaces[old.Workspace].removeWindow(id)
	}
	m.windows[id] = &LayoutWindow{ID: id, Workspace: workspace, Rect: rect}
	ws.addWindow(id)
	ws.Active, ws.HasActive = id, true
	return nil
}

// RemoveWindow forgets a window and returns the workspace it was on.
func (m *LayoutManager) RemoveWindow(id NodeID) (int, bool) {
	w, ok := m.windows[id]
	if !ok {
		return 0, false
	}
	if ws, ok := m.workspaces[w.Workspace]; ok {
		ws.removeWindow(id)
	}
	delete(m.windows, id)
	return w.Workspace, true
}

// Window returns a copy of a window's layout state.
func (m *LayoutManager) Window(id NodeID) (LayoutWindow, bool) {
	w, ok := m.windows[id]
	if !ok {
		return LayoutWindow{}, false
	}
	return *w, true
}

// WindowCount returns the number of managed windows.
func (m *LayoutManager) WindowCount() int {
	return len(m.windows)
}

// MoveWindow transfers a window to another workspace and returns the
// workspace it left.
func (m *LayoutManager) MoveWindow(id NodeID, workspace int) (int, error) {
	w, ok := m.windows[id]
	if !ok {
		return 0, fmt.Errorf("arbor: move window %d: %w", id, ErrWindowNotFound)
	}
	dst, ok := m.workspaces[workspace]
	if !ok {
		return 0, fmt.Errorf("arbor: move window %d: %w", id, ErrWorkspaceNotFound)
	}
	from := w.Workspace
	if from == workspace {
		return from, nil
	}
	m.workspaces[from].removeWindow(id)
	dst.addWindow(id)
	w.Workspace = workspace
	return from, nil
}

func (m *LayoutManager) window(id NodeID) (*LayoutWindow, error) {
	w, ok := m.windows[id]
	if !ok {
		return nil, fmt.Errorf("arbor: window %d: %w", id, ErrWindowNotFound)
	}
	return w, nil
}

// SetActiveWindow makes id the active window of its workspace.
func (m *LayoutManager) SetActiveWindow(id NodeID) error {
	w, err := m.window(id)
	if err != nil {
		return err
	}
	ws := m.workspaces[w.Workspace]
	ws.Active, ws.HasActive = id, true
	return nil
}

// ActiveWindow returns the active window of a workspace.
func (m *LayoutManager) ActiveWindow(workspace int) (NodeID, bool) {
	ws, ok := m.workspaces[workspace]
	if !ok || !ws.HasActive {
		return 0, false
	}
	return ws.Active, true
}

// CycleActive advances the active window of a workspace to the next window in
// order, wrapping around, and returns it.
func (m *LayoutManager) CycleActive(workspace int) (NodeID, bool) {
	ws, ok := m.workspaces[workspace]
	if !ok || len(ws.Windows) == 0 {
		return 0, false
	}
	next := 0
	if ws.HasActive {
		if i := slices.Index(ws.Windows, ws.Active); i >= 0 {
			next = (i + 1) % len(ws.Windows)
		}
	}
	id := ws.Windows[next]
	ws.Active, ws.HasActive = id, true
	return id, true
}

// SetWindowRect sets a window's rect. Tiled windows get overwritten on the
// next UpdateLayout.
func (m *LayoutManager) SetWindowRect(id NodeID, r Rect) error {
	w, err := m.window(id)
	if err != nil {
		return err
	}
	w.Rect = r
	return nil
}

// SetFloating takes a window out of (or back into) the tiled set.
func (m *LayoutManager) SetFloating(id NodeID, floating bool) error {
	w, err := m.window(id)
	if err != nil {
		return err
	}
	w.Floating = floating
	return nil
}

// SetFullscreen toggles fullscreen for a window.
func (m *LayoutManager) SetFullscreen(id NodeID, fullscreen bool) error {
	w, err := m.window(id)
	if err != nil {
		return err
	}
	w.Fullscreen = fullscreen
	return nil
}

// SetMinimized toggles minimized for a window.
func (m *LayoutManager) SetMinimized(id NodeID, minimized bool) error {
	w, err := m.window(id)
	if err != nil {
		return err
	}
	w.Minimized = minimized
	return nil
}

// MinimizeAll minimizes every window of a workspace and returns the ids that
// changed state.
func (m *LayoutManager) MinimizeAll(workspace int) []NodeID {
	ws, ok := m.workspaces[workspace]
	if !ok {
		return nil
	}
	var changed []NodeID
	for _, id := range ws.Windows {
		if w := m.windows[id]; !w.Minimized {
			w.Minimized = true
			changed = append(changed, id)
		}
	}
	return changed
}

// Snap floats a window into the region of its workspace named by edge.
func (m *LayoutManager) Snap(id NodeID, edge SnapEdge) error {
	w, err := m.window(id)
	if err != nil {
		return err
	}
	w.Floating = true
	w.Maximized = false
	w.Minimized = false
	w.Rect = SnapRect(m.workspaces[w.Workspace].Rect, edge)
	return nil
}

// Maximize makes a window cover its workspace.
func (m *LayoutManager) Maximize(id NodeID) error {
	w, err := m.window(id)
	if err != nil {
		return err
	}
	w.Maximized = true
	w.Minimized = false
	return nil
}

// Restore clears floating, maximized, fullscreen and minimized so the window
// is tiled again.
func (m *LayoutManager) Restore(id NodeID) error {
	w, err := m.window(id)
	if err != nil {
		return err
	}
	w.Floating, w.Maximized, w.Fullscreen, w.Minimized = false, false, false, false
	return nil
}

// --- Arrangement ---

// UpdateLayout recomputes the rects of a workspace's windows and returns the
// ones that changed. Minimized windows keep their rect; fullscreen and
// maximized windows cover the workspace; floating windows are left alone; the
// rest go through the workspace's engine in window order.
func (m *LayoutManager) UpdateLayout(workspace int) ([]LayoutChange, error) {
	ws, ok := m.workspaces[workspace]
	if !ok {
		return nil, fmt.Errorf("arbor: update layout of workspace %d: %w", workspace, ErrWorkspaceNotFound)
	}
	engine, ok := m.engines[ws.Layout]
	if !ok {
		return nil, fmt.Errorf("arbor: no engine for layout %s", ws.Layout)
	}

	var changes []LayoutChange
	apply := func(w *LayoutWindow, r Rect) {
		old := w.Rect
		moved := old.X != r.X || old.Y != r.Y
		resized := old.Width != r.Width || old.Height != r.Height
		if !moved && !resized {
			return
		}
		w.Rect = r
		changes = append(changes, LayoutChange{Window: w.ID, Old: old, New: r, Moved: moved, Resized: resized})
	}

	var tiled []*LayoutWindow
	var current []Rect
	for _, id := range ws.Windows {
		w := m.windows[id]
		switch {
		case w.Minimized, w.Floating && !w.Fullscreen && !w.Maximized:
		case w.Fullscreen, w.Maximized:
			apply(w, ws.Rect)
		default:
			tiled = append(tiled, w)
			current = append(current, w.Rect)
		}
	}
	if len(tiled) == 0 {
		return changes, nil
	}
	rects := engine.Arrange(ws.Rect, current)
	if len(rects) != len(tiled) {
		return changes, fmt.Errorf("arbor: %s engine returned %d rects for %d windows", ws.Layout, len(rects), len(tiled))
	}
	for i, w := range tiled {
		apply(w, rects[i])
	}
	return changes, nil
}

// --- Engines ---

type floatingEngine struct{}

func (floatingEngine) Type() LayoutType { return LayoutFloating }

func (floatingEngine) Arrange(_ Rect, current []Rect) []Rect {
	return slices.Clone(current)
}

// tilingEngine splits the area into equal strips along its longer axis. The
// last strip takes whatever integer division left over.
type tilingEngine struct{}

func (tilingEngine) Type() LayoutType { return LayoutTiling }

func (tilingEngine) Arrange(area Rect, current []Rect) []Rect {
	return split(area, len(current), area.Width >= area.Height)
}

// splitEngine always splits along one axis regardless of the area's shape.
type splitEngine struct {
	horizontal bool
}

func (e splitEngine) Type() LayoutType {
	if e.horizontal {
		return LayoutHorizontalSplit
	}
	return LayoutVerticalSplit
}

func (e splitEngine) Arrange(area Rect, current []Rect) []Rect {
	return split(area, len(current), e.horizontal)
}

// split divides area into n equal strips, as columns when horizontal and as
// rows otherwise. The last strip takes the remainder.
func split(area Rect, n int, horizontal bool) []Rect {
	out := make([]Rect, n)
	if horizontal {
		w := math.Floor(area.Width / float64(n))
		for i := range out {
			x := float64(i) * w
			width := w
			if i == n-1 {
				width = area.Width - x
			}
			out[i] = Rect{area.X + x, area.Y, width, area.Height}
		}
		return out
	}
	h := math.Floor(area.Height / float64(n))
	for i := range out {
		y := float64(i) * h
		height := h
		if i == n-1 {
			height = area.Height - y
		}
		out[i] = Rect{area.X, area.Y + y, area.Width, height}
	}
	return out
}

type gridEngine struct{}

func (gridEngine) Type() LayoutType { return LayoutGrid }

func (gridEngine) Arrange(area Rect, current []Rect) []Rect {
	n := len(current)
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := int(math.Ceil(float64(n) / float64(cols)))
	cw := math.Floor(area.Width / float64(cols))
	ch := math.Floor(area.Height / float64(rows))
	out := make([]Rect, n)
	for i := range out {
		col, row := i%cols, i/cols
		x, y := float64(col)*cw, float64(row)*ch
		w, h := cw, ch
		if col == cols-1 {
			w = area.Width - x
		}
		if row == rows-1 {
			h = area.Height - y
		}
		out[i] = Rect{area.X + x, area.Y + y, w, h}
	}
	return out
}

type maximizedEngine struct{}

func (maximizedEngine) Type() LayoutType { return LayoutMaximized }

func (maximizedEngine) Arrange(area Rect, current []Rect) []Rect {
	out := make([]Rect, len(current))
	for i := range out {
		out[i] = area
	}
	return out
}

// cascadeEngine stacks windows at two thirds of the area, each offset down
// and right from the previous one, wrapping back to the corner when the next
// step would leave the area.
type cascadeEngine struct {
	offset float64
}

func (cascadeEngine) Type() LayoutType { return LayoutCascade }

func (e cascadeEngine) Arrange(area Rect, current []Rect) []Rect {
	w := math.Floor(area.Width * 2 / 3)
	h := math.Floor(area.Height * 2 / 3)
	steps := 1
	if e.offset > 0 {
		steps = int(math.Min(area.Width-w, area.Height-h)/e.offset) + 1
	}
	out := make([]Rect, len(current))
	for i := range out {
		off := float64(i%steps) * e.offset
		out[i] = Rect{area.X + off, area.Y + off, w, h}
	}
	return out
}
