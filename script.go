package arbor

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"gopkg.in/yaml.v3"
)

// --- Injection ---

// InputInjector queues synthetic input and releases one event per frame, so
// scripted pointer motion reaches recognizers the way real motion does.
type InputInjector struct {
	queue []InputEvent
	mods  KeyModifiers
	pos   Vec2
}

// Pending returns the number of queued events.
func (j *InputInjector) Pending() int {
	return len(j.queue)
}

// SetModifiers sets the modifiers attached to subsequently queued pointer
// events.
func (j *InputInjector) SetModifiers(m KeyModifiers) {
	j.mods = m
}

// InjectPress queues a button press at (x, y).
func (j *InputInjector) InjectPress(button MouseButton, x, y float64) {
	j.queue = append(j.queue, MousePress(button, x, y, j.mods, 0))
	j.pos = Vec2{x, y}
}

// InjectMove queues a pointer move to (x, y).
func (j *InputInjector) InjectMove(x, y float64) {
	j.queue = append(j.queue, MouseMove(x, y, x-j.pos.X, y-j.pos.Y, j.mods, 0))
	j.pos = Vec2{x, y}
}

// InjectRelease queues a button release at (x, y).
func (j *InputInjector) InjectRelease(button MouseButton, x, y float64) {
	j.queue = append(j.queue, MouseRelease(button, x, y, j.mods, 0))
	j.pos = Vec2{x, y}
}

// InjectClick queues a press and a release at the same point. Consumes two
// frames.
func (j *InputInjector) InjectClick(button MouseButton, x, y float64) {
	j.InjectPress(button, x, y)
	j.InjectRelease(button, x, y)
}

// InjectDrag queues a press at from, frames-2 interpolated moves and a
// release at to. The sequence consumes frames frames, at least two.
func (j *InputInjector) InjectDrag(button MouseButton, from, to Vec2, frames int) {
	frames = max(frames, 2)
	j.InjectPress(button, from.X, from.Y)
	steps := frames - 2
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps+1)
		j.InjectMove(from.X+(to.X-from.X)*t, from.Y+(to.Y-from.Y)*t)
	}
	j.InjectRelease(button, to.X, to.Y)
}

// InjectRotate queues a Ctrl+right-drag that sweeps the pointer by angle
// radians around the fixed point the rotate recognizer uses for mouse input.
func (j *InputInjector) InjectRotate(x, y, angle float64, frames int) {
	frames = max(frames, 2)
	saved := j.mods
	j.mods |= ModCtrl
	j.InjectPress(MouseButtonRight, x, y)
	pivot := Vec2{x - mouseRotateOffset, y}
	steps := frames - 1
	for i := 1; i <= steps; i++ {
		a := angle * float64(i) / float64(steps)
		j.InjectMove(pivot.X+mouseRotateOffset*math.Cos(a), pivot.Y+mouseRotateOffset*math.Sin(a))
	}
	j.InjectRelease(MouseButtonRight, j.pos.X, j.pos.Y)
	j.mods = saved
}

// InjectKey queues a press and release of a key chord in one frame.
func (j *InputInjector) InjectKey(key ebiten.Key, mods KeyModifiers) {
	j.queue = append(j.queue, KeyPress(key, mods, 0), KeyRelease(key, mods, 0))
}

// Flush pushes the next frame's events into wm, stamped with wm's clock. A
// key press travels with its release.
func (j *InputInjector) Flush(wm *WindowManager) {
	if len(j.queue) == 0 {
		return
	}
	n := 1
	if j.queue[0].Type == InputKeyPress && len(j.queue) > 1 && j.queue[1].Type == InputKeyRelease {
		n = 2
	}
	ts := wm.Now()
	for _, ev := range j.queue[:n] {
		ev.Timestamp = ts
		wm.PushInput(ev)
	}
	j.queue = j.queue[n:]
}

// --- Scripts ---

// ScriptStep is one action of an input script.
type ScriptStep struct {
	Action string  `yaml:"action"`
	Label  string  `yaml:"label,omitempty"`
	Title  string  `yaml:"title,omitempty"`
	Key    string  `yaml:"key,omitempty"`
	Mods   string  `yaml:"mods,omitempty"`
	Button string  `yaml:"button,omitempty"`
	X      float64 `yaml:"x,omitempty"`
	Y      float64 `yaml:"y,omitempty"`
	FromX  float64 `yaml:"fromX,omitempty"`
	FromY  float64 `yaml:"fromY,omitempty"`
	ToX    float64 `yaml:"toX,omitempty"`
	ToY    float64 `yaml:"toY,omitempty"`
	Width  float64 `yaml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty"`
	Angle  float64 `yaml:"angle,omitempty"`
	Frames int     `yaml:"frames,omitempty"`
}

type scriptFile struct {
	Steps []ScriptStep `yaml:"steps"`
}

// ScriptRunner plays an input script against a WindowManager one frame at a
// time. Scripts are YAML or JSON:
//
//	steps:
//	  - {action: open, title: editor}
//	  - {action: click, x: 100, y: 100}
//	  - {action: key, key: Tab, mods: alt}
//	  - {action: rotate, x: 400, y: 300, angle: 1.2, frames: 10}
//	  - {action: wait, frames: 30}
//	  - {action: tree, label: after-rotate}
//
// Actions: open, close, click, drag, rotate, key, workspace, layout, wait,
// tree. Window actions need a HeadlessCompositor (or an EbitenCompositor).
type ScriptRunner struct {
	steps     []ScriptStep
	cursor    int
	waitCount int
	done      bool
	inject    InputInjector
	out       io.Writer
	windows   map[string]uint64
	err       error
}

// LoadScript parses a script. Tree dumps are written to out, which may be
// nil to discard them.
func LoadScript(data []byte, out io.Writer) (*ScriptRunner, error) {
	var f scriptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse input script: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("parse input script: no steps")
	}
	if out == nil {
		out = io.Discard
	}
	return &ScriptRunner{steps: f.Steps, out: out, windows: make(map[string]uint64)}, nil
}

// Done reports whether every step ran and all injected input was delivered.
func (r *ScriptRunner) Done() bool {
	return r.done
}

// Err returns the first step error.
func (r *ScriptRunner) Err() error {
	return r.err
}

// Step advances the script by one frame. Call it once before each Tick.
func (r *ScriptRunner) Step(wm *WindowManager) {
	if r.done {
		return
	}
	if r.inject.Pending() > 0 {
		r.inject.Flush(wm)
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++
	if err := r.run(wm, st); err != nil && r.err == nil {
		r.err = fmt.Errorf("step %d (%s): %w", r.cursor, st.Action, err)
	}
	r.inject.Flush(wm)

	if r.cursor >= len(r.steps) && r.waitCount == 0 && r.inject.Pending() == 0 {
		r.done = true
	}
}

func (r *ScriptRunner) run(wm *WindowManager, st ScriptStep) error {
	switch st.Action {
	case "open":
		c, err := scriptCompositor(wm)
		if err != nil {
			return err
		}
		rect := Rect{X: st.X, Y: st.Y, Width: st.Width, Height: st.Height}
		if rect.Width <= 0 || rect.Height <= 0 {
			rect.Width, rect.Height = 640, 480
		}
		r.windows[st.Title] = c.CreateWindow(st.Title, rect)
	case "close":
		c, err := scriptCompositor(wm)
		if err != nil {
			return err
		}
		id, ok := r.windows[st.Title]
		if !ok || !c.DestroyWindow(id) {
			return fmt.Errorf("window %q: %w", st.Title, ErrWindowNotFound)
		}
		delete(r.windows, st.Title)
	case "click":
		b, err := ParseMouseButton(st.Button)
		if err != nil {
			return err
		}
		r.inject.InjectClick(b, st.X, st.Y)
	case "drag":
		b, err := ParseMouseButton(st.Button)
		if err != nil {
			return err
		}
		r.inject.InjectDrag(b, Vec2{st.FromX, st.FromY}, Vec2{st.ToX, st.ToY}, st.Frames)
	case "rotate":
		r.inject.InjectRotate(st.X, st.Y, st.Angle, st.Frames)
	case "key":
		key, err := ParseKey(st.Key)
		if err != nil {
			return err
		}
		mods, err := ParseModifiers(st.Mods)
		if err != nil {
			return err
		}
		r.inject.InjectKey(key, mods)
	case "workspace":
		id, err := wm.CreateWorkspace(st.Label)
		if err != nil {
			return err
		}
		return wm.SwitchWorkspace(id)
	case "layout":
		t, err := ParseLayoutType(st.Label)
		if err != nil {
			return err
		}
		return wm.SetLayoutType(t)
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1
		}
	case "tree":
		fmt.Fprintf(r.out, "--- %s ---\n", st.Label)
		wm.ViewScene(func(g *SceneGraph) { g.PrintTree(r.out) })
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}

// scriptCompositor returns the in-memory compositor behind wm.
func scriptCompositor(wm *WindowManager) (*HeadlessCompositor, error) {
	switch c := wm.Compositor().(type) {
	case *HeadlessCompositor:
		return c, nil
	case *EbitenCompositor:
		return c.HeadlessCompositor, nil
	default:
		return nil, fmt.Errorf("compositor %T cannot open windows: %w", c, ErrInvalidState)
	}
}

// --- Parsing ---

// ParseKey returns the ebiten key whose name matches s, case-insensitively.
func ParseKey(s string) (ebiten.Key, error) {
	s = strings.TrimSpace(s)
	for k := ebiten.Key(0); k <= ebiten.KeyMax; k++ {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("arbor: unknown key %q", s)
}

// ParseModifiers parses a "+"-separated modifier list such as "ctrl+shift".
// The empty string means no modifiers.
func ParseModifiers(s string) (KeyModifiers, error) {
	var mods KeyModifiers
	for _, part := range strings.Split(s, "+") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "shift":
			mods |= ModShift
		case "ctrl", "control":
			mods |= ModCtrl
		case "alt", "option":
			mods |= ModAlt
		case "super", "win", "cmd":
			mods |= ModSuper
		case "meta":
			mods |= ModMeta
		case "hyper":
			mods |= ModHyper
		default:
			return 0, fmt.Errorf("arbor: unknown modifier %q", part)
		}
	}
	return mods, nil
}

// ParseMouseButton parses a button name. The empty string is the left
// button.
func ParseMouseButton(s string) (MouseButton, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return MouseButtonLeft, nil
	case "right":
		return MouseButtonRight, nil
	case "middle":
		return MouseButtonMiddle, nil
	}
	return 0, fmt.Errorf("arbor: unknown mouse button %q", s)
}
