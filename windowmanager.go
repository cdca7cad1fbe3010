package arbor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// Option configures a WindowManager at construction.
type Option func(*WindowManager)

// WithCompositor sets the compositor. The default is a HeadlessCompositor
// sized to the configured workspace.
func WithCompositor(c Compositor) Option {
	return func(wm *WindowManager) { wm.compositor = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(wm *WindowManager) { wm.log = l }
}

// withClock replaces time.Now, for tests.
func withClock(now func() time.Time) Option {
	return func(wm *WindowManager) { wm.now = now }
}

// WindowManager ties the scene graph, layout, input, gestures, effects and a
// compositor into one runtime. Compositor window lifecycle drives scene node
// lifecycle; input flows through shortcuts and gesture recognizers into the
// event stream; Tick advances layout, effects and rendering.
//
// All methods are safe for concurrent use. Each sub-component sits behind its
// own lock and no call holds two of them at once. Listeners, shortcut actions
// and UpdateScene callbacks run without any manager lock held, except that
// UpdateScene and ViewScene hold the scene lock for their callback.
type WindowManager struct {
	mu           sync.Mutex
	cfg          Config
	state        SystemState
	powerSaving  bool
	updateRate   int
	windowToNode map[uint64]NodeID
	nodeToWindow map[NodeID]uint64
	raise        int
	lastTick     time.Time
	debug        bool
	debugAcc     tickStats
	debugSince   time.Time

	sceneMu sync.RWMutex
	scene   *SceneGraph

	layoutMu sync.Mutex
	layout   *LayoutManager

	gestureMu sync.Mutex
	gestures  *GestureManager

	effectsMu sync.Mutex
	effects   *EffectsManager

	input      *InputManager
	compositor Compositor
	listeners  callbackList[EventListener]

	running atomic.Bool
	log     zerolog.Logger
	start   time.Time
	now     func() time.Time
}

// NewWindowManager builds a manager from cfg. Default recognizers are
// registered when gestures are enabled, and default shortcuts always are.
func NewWindowManager(cfg Config, opts ...Option) (*WindowManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arbor: invalid config: %w", err)
	}
	wm := &WindowManager{
		cfg:          cfg,
		updateRate:   cfg.UpdateRate,
		windowToNode: make(map[uint64]NodeID),
		nodeToWindow: make(map[NodeID]uint64),
		scene:        newSceneGraph(cfg.SpatialCellSize),
		layout:       NewLayoutManager(cfg.workspaceRect(), cfg.DefaultLayout),
		gestures:     NewGestureManager(),
		effects:      NewEffectsManager(cfg.AnimationDuration),
		input:        NewInputManager(),
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(wm)
	}
	if wm.compositor == nil {
		wm.compositor = NewHeadlessCompositor(cfg.workspaceRect())
	}
	wm.start = wm.now()
	wm.lastTick = wm.start
	wm.log = wm.log.With().Str("component", "window_manager").Logger()

	if !cfg.Effects || cfg.PerformanceMode {
		wm.effects.SetEnabled(false)
	}
	if cfg.Gestures {
		wm.gestures.Register(NewTapRecognizer())
		wm.gestures.Register(NewSwipeRecognizer())
		wm.gestures.Register(NewPinchRecognizer())
		wm.gestures.Register(NewRotateRecognizer(cfg.RotateThreshold))
		wm.gestures.Register(NewLongPressRecognizer())
	}

	wm.input.SetTargetResolver(wm.resolveTarget)
	wm.input.AddHandler(wm.handleInput)
	wm.compositor.AddEventHandler(wm.handleCompositorEvent)
	wm.registerDefaultShortcuts()

	if cfg.PowerSaving {
		wm.applyPowerSaving(true)
	}
	return wm, nil
}

// --- Accessors ---

// SetLogger replaces the logger.
func (wm *WindowManager) SetLogger(l zerolog.Logger) {
	wm.mu.Lock()
	wm.log = l.With().Str("component", "window_manager").Logger()
	wm.mu.Unlock()
}

func (wm *WindowManager) logger() *zerolog.Logger {
	wm.mu.Lock()
	l := wm.log
	wm.mu.Unlock()
	return &l
}

// SetDebugMode enables per-tick timing logs at debug level.
func (wm *WindowManager) SetDebugMode(enabled bool) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.debug = enabled
	wm.debugAcc = tickStats{}
	wm.debugSince = wm.now()
}

// Config returns the configuration the manager was built with, with the
// power-saving flag reflecting the current mode.
func (wm *WindowManager) Config() Config {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	c := wm.cfg
	c.PowerSaving = wm.powerSaving
	return c
}

// State returns the lifecycle state.
func (wm *WindowManager) State() SystemState {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	return wm.state
}

// UpdateRate returns the current loop frequency in Hz.
func (wm *WindowManager) UpdateRate() int {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	return wm.updateRate
}

// PowerSaving reports whether power saving mode is on.
func (wm *WindowManager) PowerSaving() bool {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	return wm.powerSaving
}

// EffectsEnabled reports whether new effects are accepted.
func (wm *WindowManager) EffectsEnabled() bool {
	wm.effectsMu.Lock()
	defer wm.effectsMu.Unlock()
	return wm.effects.Enabled()
}

// FPS returns the compositor's measured frame rate.
func (wm *WindowManager) FPS() float64 {
	return wm.compositor.FPS()
}

// Input returns the input manager.
func (wm *WindowManager) Input() *InputManager {
	return wm.input
}

// Compositor returns the compositor.
func (wm *WindowManager) Compositor() Compositor {
	return wm.compositor
}

// Now returns milliseconds elapsed since the manager was created, the
// timestamp base for input events.
func (wm *WindowManager) Now() uint64 {
	return uint64(wm.now().Sub(wm.start).Milliseconds())
}

// ViewScene calls fn with the scene graph under a read lock.
func (wm *WindowManager) ViewScene(fn func(g *SceneGraph)) {
	wm.sceneMu.RLock()
	defer wm.sceneMu.RUnlock()
	fn(wm.scene)
}

// UpdateScene calls fn with the scene graph under the write lock.
func (wm *WindowManager) UpdateScene(fn func(g *SceneGraph)) {
	wm.sceneMu.Lock()
	defer wm.sceneMu.Unlock()
	fn(wm.scene)
}

// WindowNode returns the scene node of a compositor window.
func (wm *WindowManager) WindowNode(window uint64) (NodeID, bool) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	id, ok := wm.windowToNode[window]
	return id, ok
}

// NodeWindow returns the compositor window of a scene node.
func (wm *WindowManager) NodeWindow(node NodeID) (uint64, bool) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	w, ok := wm.nodeToWindow[node]
	return w, ok
}

// WindowCount returns the number of managed windows.
func (wm *WindowManager) WindowCount() int {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	return len(wm.windowToNode)
}

// --- Events ---

// AddEventListener registers a listener. Listeners run in registration order
// on the goroutine that caused the event.
func (wm *WindowManager) AddEventListener(fn EventListener) CallbackHandle {
	if fn == nil {
		panic("arbor: nil event listener")
	}
	return wm.listeners.add(fn)
}

func (wm *WindowManager) emit(ev Event) {
	ev.Timestamp = wm.Now()
	for _, fn := range wm.listeners.snapshot() {
		if !fn(ev) {
			return
		}
	}
}

// --- Lifecycle ---

func (wm *WindowManager) setState(s SystemState) {
	wm.mu.Lock()
	wm.state = s
	wm.mu.Unlock()
	wm.logger().Info().Stringer("state", s).Msg("system state changed")
	wm.emit(Event{Type: EventSystemStateChanged, State: s})
}

// Initialize starts the compositor, applies the default layout to the
// default workspace and enters Running. A compositor failure aborts startup
// and leaves the manager in Starting.
func (wm *WindowManager) Initialize() error {
	if s := wm.State(); s != StateStarting {
		return fmt.Errorf("arbor: initialize in state %s: %w", s, ErrInvalidState)
	}
	if err := wm.compositor.Initialize(); err != nil {
		wm.logger().Error().Err(err).Msg("compositor initialization failed")
		if !errors.Is(err, ErrCompositorInit) {
			err = fmt.Errorf("%w: %w", ErrCompositorInit, err)
		}
		return err
	}
	wm.layoutMu.Lock()
	err := wm.layout.SetLayoutType(DefaultWorkspaceID, wm.cfg.DefaultLayout)
	wm.layoutMu.Unlock()
	if err != nil {
		return fmt.Errorf("arbor: seed default layout: %w", err)
	}

	wm.mu.Lock()
	wm.lastTick = wm.now()
	wm.mu.Unlock()
	wm.setState(StateRunning)
	return nil
}

// Run drives Tick at the configured update rate until Shutdown.
func (wm *WindowManager) Run() error {
	err := wm.Serve(context.Background())
	if errors.Is(err, suture.ErrDoNotRestart) {
		return nil
	}
	return err
}

// Serve runs the loop until ctx is done or Shutdown is called, so the
// manager can run as a suture.Service. After Shutdown it returns
// suture.ErrDoNotRestart.
func (wm *WindowManager) Serve(ctx context.Context) error {
	switch s := wm.State(); s {
	case StateStarting, StateShuttingDown:
		return fmt.Errorf("arbor: serve in state %s: %w", s, ErrInvalidState)
	}
	if !wm.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer wm.running.Store(false)

	wm.logger().Info().Int("update_rate", wm.UpdateRate()).Msg("main loop started")
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if wm.State() == StateShuttingDown {
			wm.logger().Info().Msg("main loop stopped")
			return suture.ErrDoNotRestart
		}
		began := wm.now()
		wm.Tick()
		interval := time.Second / time.Duration(max(wm.UpdateRate(), 1))
		timer.Reset(max(0, interval-wm.now().Sub(began)))
	}
}

// Shutdown stops the loop and the compositor. Calling it again is a no-op.
func (wm *WindowManager) Shutdown() {
	wm.mu.Lock()
	if wm.state == StateShuttingDown {
		wm.mu.Unlock()
		return
	}
	wm.mu.Unlock()

	wm.setState(StateShuttingDown)
	wm.effectsMu.Lock()
	final := wm.effects.CancelAll()
	wm.effectsMu.Unlock()
	wm.applySamples(final)
	wm.compositor.Stop()
}

// Suspend pauses ticking and drops in-flight gestures.
func (wm *WindowManager) Suspend() error {
	if s := wm.State(); s != StateRunning {
		return fmt.Errorf("arbor: suspend in state %s: %w", s, ErrInvalidState)
	}
	wm.gestureMu.Lock()
	wm.gestures.Reset()
	wm.gestureMu.Unlock()
	wm.setState(StateSuspending)
	return nil
}

// Resume continues after Suspend, passing through Resuming.
func (wm *WindowManager) Resume() error {
	if s := wm.State(); s != StateSuspending {
		return fmt.Errorf("arbor: resume in state %s: %w", s, ErrInvalidState)
	}
	wm.setState(StateResuming)
	wm.mu.Lock()
	wm.lastTick = wm.now()
	wm.mu.Unlock()
	wm.setState(StateRunning)
	return nil
}

// SetPowerSavingMode halves the update rate and disables effects, or restores
// both from the configuration.
func (wm *WindowManager) SetPowerSavingMode(enabled bool) {
	wm.applyPowerSaving(enabled)
	wm.logger().Info().Bool("enabled", enabled).Int("update_rate", wm.UpdateRate()).Msg("power saving mode")
	wm.emit(Event{Type: EventPowerModeChanged, PowerSaving: enabled})
}

func (wm *WindowManager) applyPowerSaving(enabled bool) {
	wm.mu.Lock()
	wm.powerSaving = enabled
	wm.updateRate = wm.cfg.UpdateRate
	if enabled {
		wm.updateRate = max(wm.cfg.UpdateRate/2, 1)
	}
	effects := !enabled && wm.cfg.Effects && !wm.cfg.PerformanceMode
	wm.mu.Unlock()

	wm.effectsMu.Lock()
	final := wm.effects.SetEnabled(effects)
	wm.effectsMu.Unlock()
	wm.applySamples(final)
}

// --- Tick ---

// Tick runs one loop iteration: an Idle event plus queued input, layout of
// the current workspace, effects, the scene update and one rendered frame.
// It does nothing unless the manager is Running. Failed sub-steps are logged
// and skipped.
func (wm *WindowManager) Tick() {
	wm.mu.Lock()
	if wm.state != StateRunning {
		wm.mu.Unlock()
		return
	}
	now := wm.now()
	dt := now.Sub(wm.lastTick)
	wm.lastTick = now
	debug := wm.debug
	wm.mu.Unlock()

	var stats tickStats
	mark := now

	wm.input.Push(Idle(wm.Now()))
	stats.events = wm.input.ProcessEvents()
	stats.input, mark = since(wm.now, mark)

	if err := wm.relayout(wm.CurrentWorkspace()); err != nil {
		wm.logger().Warn().Err(err).Msg("layout step skipped")
	}
	stats.layout, mark = since(wm.now, mark)

	wm.effectsMu.Lock()
	samples := wm.effects.Update(dt)
	wm.effectsMu.Unlock()
	wm.applySamples(samples)
	stats.effects, mark = since(wm.now, mark)

	windows := wm.windowSnapshot()
	focus, hasFocus := wm.input.Focus()
	wm.sceneMu.Lock()
	wm.scene.Update()
	items := wm.renderItems(windows, focus, hasFocus)
	stats.nodes = wm.scene.NodeCount()
	wm.sceneMu.Unlock()
	stats.items = len(items)
	stats.scene, mark = since(wm.now, mark)

	if err := wm.compositor.RenderFrame(items); err != nil {
		wm.logger().Warn().Err(err).Msg("render step skipped")
	}
	stats.render, _ = since(wm.now, mark)

	if debug {
		wm.debugLog(stats)
	}
}

func since(now func() time.Time, mark time.Time) (time.Duration, time.Time) {
	t := now()
	return t.Sub(mark), t
}

func (wm *WindowManager) windowSnapshot() map[NodeID]uint64 {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	out := make(map[NodeID]uint64, len(wm.nodeToWindow))
	for n, w := range wm.nodeToWindow {
		out[n] = w
	}
	return out
}

// renderItems lists visible nodes in draw order. Called with sceneMu held.
func (wm *WindowManager) renderItems(windows map[NodeID]uint64, focus NodeID, hasFocus bool) []RenderItem {
	order := wm.scene.NodesInDrawOrder()
	items := make([]RenderItem, 0, len(order))
	for _, id := range order {
		if id == RootID {
			continue
		}
		n, _ := wm.scene.Node(id)
		b, ok := wm.scene.GlobalBounds(id)
		if !ok {
			continue
		}
		w, isWindow := windows[id]
		items = append(items, RenderItem{
			Node:      id,
			Type:      n.Type,
			Name:      n.Name,
			Window:    w,
			HasWindow: isWindow,
			Bounds:    b,
			Opacity:   wm.scene.EffectiveOpacity(id),
			Layer:     n.Properties.Layer,
			Focused:   hasFocus && focus == id,
		})
	}
	return items
}

// --- Input ---

// PushInput queues a raw input event for the next Tick.
func (wm *WindowManager) PushInput(ev InputEvent) {
	wm.input.Push(ev)
}

// RegisterShortcut binds a key chord to an action. The action returns true
// to consume the key event.
func (wm *WindowManager) RegisterShortcut(s Shortcut, description string, action ShortcutAction) {
	wm.input.RegisterShortcut(s, description, action)
}

func (wm *WindowManager) resolveTarget(x, y float64) (NodeID, bool) {
	wm.sceneMu.RLock()
	defer wm.sceneMu.RUnlock()
	return wm.scene.TopmostAt(x, y)
}

func (wm *WindowManager) handleInput(ev InputEvent) bool {
	if ev.Type == InputMousePress && ev.HasTarget {
		if node, ok := wm.windowOf(ev.Target); ok {
			if err := wm.FocusWindow(node); err != nil {
				wm.logger().Debug().Err(err).Uint64("node", uint64(node)).Msg("click focus skipped")
			}
		}
	}

	wm.gestureMu.Lock()
	gestures := wm.gestures.ProcessEvent(ev)
	wm.gestureMu.Unlock()
	for _, g := range gestures {
		wm.emit(Event{Type: EventGestureRecognized, Gesture: g, Node: g.Target})
	}
	return true
}

// windowOf returns id if it is a window node, else its nearest window
// ancestor.
func (wm *WindowManager) windowOf(id NodeID) (NodeID, bool) {
	wm.sceneMu.RLock()
	defer wm.sceneMu.RUnlock()
	n, ok := wm.scene.Node(id)
	if !ok {
		return 0, false
	}
	if n.Type == NodeWindow {
		return id, true
	}
	return wm.scene.FindParentOfType(id, NodeWindow)
}
