package arbor

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
)

// --- Compositor wiring ---

func (wm *WindowManager) handleCompositorEvent(ev CompositorEvent) bool {
	switch ev.Type {
	case CompositorWindowCreated:
		if _, err := wm.adoptWindow(ev.Window, ev.Title, ev.Rect); err != nil {
			wm.logger().Warn().Err(err).Uint64("window", ev.Window).Msg("window not adopted")
		}
	case CompositorWindowDestroyed:
		wm.releaseWindow(ev.Window)
	case CompositorWindowFocused:
		if node, ok := wm.WindowNode(ev.Window); ok {
			if err := wm.FocusWindow(node); err != nil {
				wm.logger().Warn().Err(err).Uint64("window", ev.Window).Msg("focus skipped")
			}
		}
	case CompositorDisplayChanged:
		wm.layoutMu.Lock()
		wm.layout.SetDisplayArea(ev.Rect)
		wm.layoutMu.Unlock()
		if err := wm.relayout(wm.CurrentWorkspace()); err != nil {
			wm.logger().Warn().Err(err).Msg("relayout after display change skipped")
		}
		wm.logger().Info().Float64("width", ev.Rect.Width).Float64("height", ev.Rect.Height).Msg("display changed")
		wm.emit(Event{Type: EventDisplayConfigChanged, Rect: ev.Rect})
	}
	return true
}

// adoptWindow gives a compositor window a scene node on the current
// workspace.
func (wm *WindowManager) adoptWindow(window uint64, title string, rect Rect) (NodeID, error) {
	if title == "" {
		title = fmt.Sprintf("window_%d", window)
	}
	wm.sceneMu.Lock()
	node, err := wm.scene.CreateNode(RootID, NodeWindow, title)
	if err == nil {
		err = placeWindow(wm.scene, node, rect, 1, Vec2{})
	}
	wm.sceneMu.Unlock()
	if err != nil {
		return 0, err
	}

	wm.mu.Lock()
	wm.windowToNode[window] = node
	wm.nodeToWindow[node] = window
	wm.mu.Unlock()

	ws := wm.CurrentWorkspace()
	wm.layoutMu.Lock()
	err = wm.layout.AddWindow(node, ws, rect)
	wm.layoutMu.Unlock()
	if err != nil {
		return node, err
	}

	wm.logger().Debug().Uint64("window", window).Uint64("node", uint64(node)).Str("title", title).Msg("window created")
	wm.emit(Event{Type: EventWindowCreated, Node: node, Window: window, Rect: rect, Workspace: ws})

	if err := wm.relayout(ws); err != nil {
		wm.logger().Warn().Err(err).Msg("relayout after create skipped")
	}
	if err := wm.FocusWindow(node); err != nil {
		return node, err
	}
	wm.effectsMu.Lock()
	enabled := wm.effects.Enabled()
	wm.effectsMu.Unlock()
	if enabled {
		if _, err := wm.ApplyEffect(EffectFadeIn, EffectTarget(node)); err != nil {
			wm.logger().Debug().Err(err).Msg("fade in skipped")
		}
	}
	return node, nil
}

// releaseWindow drops the scene node and layout state of a compositor
// window.
func (wm *WindowManager) releaseWindow(window uint64) {
	wm.mu.Lock()
	node, ok := wm.windowToNode[window]
	if ok {
		delete(wm.windowToNode, window)
		delete(wm.nodeToWindow, node)
	}
	wm.mu.Unlock()
	if !ok {
		return
	}

	wm.effectsMu.Lock()
	wm.effects.CancelTarget(node)
	wm.effectsMu.Unlock()

	wm.layoutMu.Lock()
	ws, _ := wm.layout.RemoveWindow(node)
	emptied := false
	if w, ok := wm.layout.Workspace(ws); ok {
		emptied = len(w.Windows) == 0 && ws != DefaultWorkspaceID && ws != wm.layout.CurrentWorkspace()
	}
	wm.layoutMu.Unlock()

	wm.sceneMu.Lock()
	err := wm.scene.RemoveNode(node)
	wm.sceneMu.Unlock()
	if err != nil {
		wm.logger().Warn().Err(err).Uint64("node", uint64(node)).Msg("window node removal failed")
	}
	wm.input.ClearFocusIf(node)

	wm.logger().Debug().Uint64("window", window).Uint64("node", uint64(node)).Msg("window destroyed")
	wm.emit(Event{Type: EventWindowDestroyed, Node: node, Window: window, Workspace: ws})

	if err := wm.relayout(ws); err != nil {
		wm.logger().Warn().Err(err).Msg("relayout after destroy skipped")
	}
	if emptied && wm.cfg.AutoWorkspace {
		if err := wm.RemoveWorkspace(ws); err != nil {
			wm.logger().Debug().Err(err).Int("workspace", ws).Msg("empty workspace kept")
		}
	}
}

// placeWindow positions a window node at rect. Scale shrinks the window
// about its center and offset shifts it.
func placeWindow(g *SceneGraph, node NodeID, rect Rect, scale float64, offset Vec2) error {
	n, ok := g.Node(node)
	if !ok {
		return fmt.Errorf("place window %d: %w", node, ErrNodeNotFound)
	}
	t := n.Transform
	t.Position = mgl64.Vec3{
		rect.X + rect.Width*(1-scale)/2 + offset.X,
		rect.Y + rect.Height*(1-scale)/2 + offset.Y,
		t.Position[2],
	}
	t.Scale = mgl64.Vec3{scale, scale, 1}
	if err := g.SetTransform(node, t); err != nil {
		return err
	}
	return g.SetBounds(node, SizeBox(rect.Width, rect.Height))
}

// relayout runs the layout engine of a workspace and writes the changes to
// the scene.
func (wm *WindowManager) relayout(ws int) error {
	wm.layoutMu.Lock()
	changes, err := wm.layout.UpdateLayout(ws)
	wm.layoutMu.Unlock()
	wm.applyChanges(changes)
	return err
}

func (wm *WindowManager) applyChanges(changes []LayoutChange) {
	if len(changes) == 0 {
		return
	}
	wm.sceneMu.Lock()
	for _, c := range changes {
		if err := placeWindow(wm.scene, c.Window, c.New, 1, Vec2{}); err != nil {
			wm.logger().Warn().Err(err).Msg("layout change not applied")
		}
	}
	wm.sceneMu.Unlock()
	for _, c := range changes {
		if c.Moved {
			wm.emit(Event{Type: EventWindowMoved, Node: c.Window, Rect: c.New})
		}
		if c.Resized {
			wm.emit(Event{Type: EventWindowResized, Node: c.Window, Rect: c.New})
		}
	}
}

// applySamples writes effect samples into window nodes. A finished or
// cancelled effect leaves the node at full opacity, visible only when the
// layout shows it on the current workspace. A completed hiding effect also
// leaves it hidden.
func (wm *WindowManager) applySamples(samples []EffectSample) {
	if len(samples) == 0 {
		return
	}
	windows := make(map[NodeID]LayoutWindow, len(samples))
	wm.layoutMu.Lock()
	current := wm.layout.CurrentWorkspace()
	for _, s := range samples {
		if w, ok := wm.layout.Window(s.Target); ok && s.HasTarget {
			windows[s.Target] = w
		}
	}
	wm.layoutMu.Unlock()

	wm.sceneMu.Lock()
	defer wm.sceneMu.Unlock()
	for _, s := range samples {
		w, ok := windows[s.Target]
		if !ok || !wm.scene.Contains(s.Target) {
			continue
		}
		if s.Done {
			_ = placeWindow(wm.scene, s.Target, w.Rect, 1, Vec2{})
			_ = wm.scene.SetOpacity(s.Target, 1)
			shown := !w.Minimized && w.Workspace == current
			if s.Type.Hides() && !s.Cancelled {
				shown = false
			}
			_ = wm.scene.SetVisible(s.Target, shown)
			continue
		}
		_ = placeWindow(wm.scene, s.Target, w.Rect, s.Scale, s.Offset)
		_ = wm.scene.SetOpacity(s.Target, s.Opacity)
	}
}

// cancelEffects stops the effects running on node and resets its
// presentation.
func (wm *WindowManager) cancelEffects(node NodeID) {
	wm.effectsMu.Lock()
	cancelled := wm.effects.CancelTarget(node)
	wm.effectsMu.Unlock()
	wm.applySamples(cancelled)
}

// --- Windows ---

// FocusWindow makes a window active on its workspace, gives it keyboard
// focus and raises it above its siblings. A minimized window is restored.
func (wm *WindowManager) FocusWindow(node NodeID) error {
	wm.layoutMu.Lock()
	w, ok := wm.layout.Window(node)
	err := wm.layout.SetActiveWindow(node)
	if ok && w.Minimized {
		_ = wm.layout.SetMinimized(node, false)
	}
	current := wm.layout.CurrentWorkspace()
	wm.layoutMu.Unlock()
	if err != nil {
		return err
	}

	wm.mu.Lock()
	wm.raise++
	layer := wm.raise
	wm.mu.Unlock()

	wm.sceneMu.Lock()
	if n, found := wm.scene.Node(node); found {
		p := n.Properties
		p.Layer = layer
		p.Visible = p.Visible || w.Workspace == current
		err = wm.scene.SetProperties(node, p)
	}
	wm.sceneMu.Unlock()
	if err != nil {
		return err
	}

	if w.Workspace == current {
		wm.input.SetFocus(node)
	}
	window, _ := wm.NodeWindow(node)
	wm.emit(Event{Type: EventWindowFocused, Node: node, Window: window, Workspace: w.Workspace})

	if w.Minimized {
		wm.cancelEffects(node)
		if _, err := wm.ApplyEffect(EffectRestore, EffectTarget(node)); err != nil {
			wm.logger().Debug().Err(err).Msg("restore effect skipped")
		}
		wm.emit(Event{Type: EventWindowStateChanged, Node: node, WindowState: WindowNormal})
		return wm.relayout(w.Workspace)
	}
	return nil
}

// MoveWindowToWorkspace transfers a window. It is shown only if the target
// workspace is current.
func (wm *WindowManager) MoveWindowToWorkspace(node NodeID, workspace int) error {
	wm.layoutMu.Lock()
	from, err := wm.layout.MoveWindow(node, workspace)
	w, _ := wm.layout.Window(node)
	current := wm.layout.CurrentWorkspace()
	wm.layoutMu.Unlock()
	if err != nil {
		return err
	}
	if from == workspace {
		return nil
	}

	wm.sceneMu.Lock()
	err = wm.scene.SetVisible(node, workspace == current && !w.Minimized)
	wm.sceneMu.Unlock()
	if err != nil {
		return err
	}
	if workspace != current {
		wm.input.ClearFocusIf(node)
	}

	wm.logger().Debug().Uint64("node", uint64(node)).Int("from", from).Int("to", workspace).Msg("window moved to workspace")
	wm.emit(Event{Type: EventWindowWorkspaceChanged, Node: node, Workspace: workspace, PreviousWorkspace: from})
	for _, ws := range []int{from, workspace} {
		if err := wm.relayout(ws); err != nil {
			wm.logger().Warn().Err(err).Int("workspace", ws).Msg("relayout skipped")
		}
	}
	return nil
}

func (wm *WindowManager) setWindowState(node NodeID, state WindowState) error {
	wm.layoutMu.Lock()
	var err error
	switch state {
	case WindowMaximized:
		err = wm.layout.Maximize(node)
	case WindowFullscreen:
		err = wm.layout.SetFullscreen(node, true)
	case WindowNormal:
		err = wm.layout.Restore(node)
	}
	current := wm.layout.CurrentWorkspace()
	w, _ := wm.layout.Window(node)
	wm.layoutMu.Unlock()
	if err != nil {
		return err
	}
	ws := w.Workspace
	wm.cancelEffects(node)
	wm.sceneMu.Lock()
	_ = wm.scene.SetVisible(node, ws == current && !w.Minimized)
	wm.sceneMu.Unlock()
	wm.emit(Event{Type: EventWindowStateChanged, Node: node, WindowState: state})
	return wm.relayout(ws)
}

// MaximizeWindow makes a window cover its workspace.
func (wm *WindowManager) MaximizeWindow(node NodeID) error {
	return wm.setWindowState(node, WindowMaximized)
}

// FullscreenWindow makes a window cover its workspace as fullscreen.
func (wm *WindowManager) FullscreenWindow(node NodeID) error {
	return wm.setWindowState(node, WindowFullscreen)
}

// RestoreWindow returns a window to the tiled set.
func (wm *WindowManager) RestoreWindow(node NodeID) error {
	return wm.setWindowState(node, WindowNormal)
}

// SnapWindow floats a window into a region of its workspace. It fails with
// ErrInvalidState when snapping is disabled.
func (wm *WindowManager) SnapWindow(node NodeID, edge SnapEdge) error {
	if !wm.cfg.WindowSnapping {
		return fmt.Errorf("arbor: window snapping disabled: %w", ErrInvalidState)
	}
	wm.layoutMu.Lock()
	err := wm.layout.Snap(node, edge)
	w, _ := wm.layout.Window(node)
	current := wm.layout.CurrentWorkspace()
	wm.layoutMu.Unlock()
	if err != nil {
		return err
	}
	wm.cancelEffects(node)
	wm.sceneMu.Lock()
	_ = wm.scene.SetVisible(node, w.Workspace == current && !w.Minimized)
	wm.sceneMu.Unlock()
	wm.emit(Event{Type: EventWindowStateChanged, Node: node, WindowState: WindowSnapped, Rect: w.Rect})
	return wm.relayout(w.Workspace)
}

// MinimizeWindow hides a window, animated when effects are enabled.
func (wm *WindowManager) MinimizeWindow(node NodeID) error {
	wm.layoutMu.Lock()
	err := wm.layout.SetMinimized(node, true)
	wm.layoutMu.Unlock()
	if err != nil {
		return err
	}
	wm.minimized([]NodeID{node})
	return nil
}

// ShowDesktop minimizes every window on the current workspace.
func (wm *WindowManager) ShowDesktop() int {
	wm.layoutMu.Lock()
	changed := wm.layout.MinimizeAll(wm.layout.CurrentWorkspace())
	wm.layoutMu.Unlock()
	wm.minimized(changed)
	return len(changed)
}

func (wm *WindowManager) minimized(nodes []NodeID) {
	for _, node := range nodes {
		if _, err := wm.ApplyEffect(EffectMinimize, EffectTarget(node)); err != nil {
			wm.sceneMu.Lock()
			_ = wm.scene.SetVisible(node, false)
			wm.sceneMu.Unlock()
		}
		wm.input.ClearFocusIf(node)
		wm.emit(Event{Type: EventWindowStateChanged, Node: node, WindowState: WindowMinimized})
	}
}

// CycleWindows activates the next window of the current workspace, the
// Alt+Tab behavior. A minimized window is restored on the way.
func (wm *WindowManager) CycleWindows() (NodeID, bool) {
	wm.layoutMu.Lock()
	node, ok := wm.layout.CycleActive(wm.layout.CurrentWorkspace())
	wm.layoutMu.Unlock()
	if !ok || wm.FocusWindow(node) != nil {
		return 0, false
	}
	return node, true
}

// ActiveWindow returns the active window of the current workspace.
func (wm *WindowManager) ActiveWindow() (NodeID, bool) {
	wm.layoutMu.Lock()
	defer wm.layoutMu.Unlock()
	return wm.layout.ActiveWindow(wm.layout.CurrentWorkspace())
}

// LayoutWindow returns the layout state of a window.
func (wm *WindowManager) LayoutWindow(node NodeID) (LayoutWindow, bool) {
	wm.layoutMu.Lock()
	defer wm.layoutMu.Unlock()
	return wm.layout.Window(node)
}

// --- Workspaces ---

// CurrentWorkspace returns the selected workspace id.
func (wm *WindowManager) CurrentWorkspace() int {
	wm.layoutMu.Lock()
	defer wm.layoutMu.Unlock()
	return wm.layout.CurrentWorkspace()
}

// Workspaces returns all workspaces ordered by id.
func (wm *WindowManager) Workspaces() []Workspace {
	wm.layoutMu.Lock()
	defer wm.layoutMu.Unlock()
	return wm.layout.Workspaces()
}

// CreateWorkspace adds a workspace and returns its id.
func (wm *WindowManager) CreateWorkspace(name string) (int, error) {
	if s := wm.State(); s == StateShuttingDown {
		return 0, fmt.Errorf("arbor: create workspace in state %s: %w", s, ErrInvalidState)
	}
	wm.layoutMu.Lock()
	id := wm.layout.CreateWorkspace(name)
	wm.layoutMu.Unlock()
	wm.logger().Debug().Int("workspace", id).Str("name", name).Msg("workspace created")
	wm.emit(Event{Type: EventWorkspaceCreated, Workspace: id})
	return id, nil
}

// SwitchWorkspace selects a workspace, hiding the windows of the others.
func (wm *WindowManager) SwitchWorkspace(id int) error {
	wm.layoutMu.Lock()
	prev := wm.layout.CurrentWorkspace()
	err := wm.layout.SwitchWorkspace(id)
	var show, hide []NodeID
	if err == nil {
		for _, ws := range wm.layout.Workspaces() {
			for _, n := range ws.Windows {
				w, _ := wm.layout.Window(n)
				if ws.ID == id && !w.Minimized {
					show = append(show, n)
				} else {
					hide = append(hide, n)
				}
			}
		}
	}
	active, hasActive := wm.layout.ActiveWindow(id)
	wm.layoutMu.Unlock()
	if err != nil {
		return err
	}

	wm.sceneMu.Lock()
	for _, n := range show {
		_ = wm.scene.SetVisible(n, true)
	}
	for _, n := range hide {
		_ = wm.scene.SetVisible(n, false)
	}
	wm.sceneMu.Unlock()

	if hasActive {
		wm.input.SetFocus(active)
	} else {
		wm.input.ClearFocus()
	}
	if prev != id {
		dir := SlideFromRight
		if id < prev {
			dir = SlideFromLeft
		}
		for _, n := range show {
			if _, err := wm.ApplyEffect(EffectWorkspaceTransition, EffectTarget(n), EffectSlide(dir, wm.cfg.WorkspaceWidth/4)); err != nil {
				break
			}
		}
	}

	wm.logger().Debug().Int("from", prev).Int("to", id).Msg("workspace switched")
	wm.emit(Event{Type: EventWorkspaceSwitched, Workspace: id, PreviousWorkspace: prev})
	return wm.relayout(id)
}

// RemoveWorkspace deletes a workspace. Its windows move to the default
// workspace; if it was current, the default workspace is selected.
func (wm *WindowManager) RemoveWorkspace(id int) error {
	wm.layoutMu.Lock()
	wasCurrent := wm.layout.CurrentWorkspace() == id
	moved, err := wm.layout.RemoveWorkspace(id)
	wm.layoutMu.Unlock()
	if err != nil {
		return err
	}
	wm.logger().Debug().Int("workspace", id).Int("moved", len(moved)).Msg("workspace removed")
	wm.emit(Event{Type: EventWorkspaceRemoved, Workspace: id})
	if wasCurrent {
		return wm.SwitchWorkspace(DefaultWorkspaceID)
	}
	return wm.relayout(DefaultWorkspaceID)
}

// SetLayoutType changes the layout of the current workspace and applies it.
func (wm *WindowManager) SetLayoutType(t LayoutType) error {
	wm.layoutMu.Lock()
	ws := wm.layout.CurrentWorkspace()
	err := wm.layout.SetLayoutType(ws, t)
	wm.layoutMu.Unlock()
	if err != nil {
		return err
	}
	wm.logger().Debug().Int("workspace", ws).Stringer("layout", t).Msg("layout changed")
	wm.emit(Event{Type: EventLayoutChanged, Workspace: ws, Layout: t})
	return wm.relayout(ws)
}

// ApplyEffect starts an effect. Without EffectDuration the configured
// animation duration is used.
func (wm *WindowManager) ApplyEffect(t EffectType, opts ...EffectOption) (uint64, error) {
	opts = append([]EffectOption{EffectEasing(wm.cfg.Easing)}, opts...)
	wm.effectsMu.Lock()
	id, err := wm.effects.Add(t, opts...)
	wm.effectsMu.Unlock()
	if err != nil {
		return 0, err
	}
	var e Effect
	for _, opt := range opts {
		opt(&e)
	}
	wm.emit(Event{Type: EventEffectStarted, Effect: t, EffectID: id, Node: e.Target})
	return id, nil
}

// --- Shortcuts ---

func (wm *WindowManager) registerDefaultShortcuts() {
	wm.input.RegisterShortcut(Shortcut{Key: ebiten.KeyTab, Modifiers: ModAlt}, "Cycle windows", func() bool {
		_, ok := wm.CycleWindows()
		return ok
	})
	wm.input.RegisterShortcut(Shortcut{Key: ebiten.KeyD, Modifiers: ModSuper}, "Show desktop", func() bool {
		wm.ShowDesktop()
		return true
	})
	snap := func(edge SnapEdge) ShortcutAction {
		return func() bool {
			node, ok := wm.ActiveWindow()
			return ok && wm.SnapWindow(node, edge) == nil
		}
	}
	wm.input.RegisterShortcut(Shortcut{Key: ebiten.KeyArrowLeft, Modifiers: ModSuper}, "Snap window left", snap(SnapLeft))
	wm.input.RegisterShortcut(Shortcut{Key: ebiten.KeyArrowRight, Modifiers: ModSuper}, "Snap window right", snap(SnapRight))
	wm.input.RegisterShortcut(Shortcut{Key: ebiten.KeyArrowUp, Modifiers: ModSuper}, "Maximize window", func() bool {
		node, ok := wm.ActiveWindow()
		return ok && wm.MaximizeWindow(node) == nil
	})
	wm.input.RegisterShortcut(Shortcut{Key: ebiten.KeyArrowDown, Modifiers: ModSuper}, "Restore window", func() bool {
		node, ok := wm.ActiveWindow()
		return ok && wm.RestoreWindow(node) == nil
	})
}
