package arbor

import (
	"errors"
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/rs/zerolog"
)

// --- Compositor ---

// Palette holds the colors an EbitenCompositor draws with.
type Palette struct {
	Background color.RGBA
	Window     color.RGBA
	Border     color.RGBA
	Focus      color.RGBA
	Title      color.RGBA
}

// DefaultPalette is a dark desktop theme.
var DefaultPalette = Palette{
	Background: color.RGBA{0x1e, 0x22, 0x2a, 0xff},
	Window:     color.RGBA{0x2e, 0x34, 0x40, 0xff},
	Border:     color.RGBA{0x4c, 0x56, 0x6a, 0xff},
	Focus:      color.RGBA{0x88, 0xc0, 0xd0, 0xff},
	Title:      color.RGBA{0x3b, 0x42, 0x52, 0xff},
}

const (
	titleBarHeight = 20
	borderWidth    = 1
	focusWidth     = 2
)

// EbitenCompositor draws each frame's windows into an Ebiten screen. Client
// windows are kept in memory the same way HeadlessCompositor keeps them.
type EbitenCompositor struct {
	*HeadlessCompositor

	drawMu  sync.Mutex
	palette Palette
	showFPS bool
	shots   []string
	shotDir string
	log     zerolog.Logger
}

// NewEbitenCompositor returns a compositor whose output covers display.
func NewEbitenCompositor(display Rect) *EbitenCompositor {
	return &EbitenCompositor{
		HeadlessCompositor: NewHeadlessCompositor(display),
		palette:            DefaultPalette,
		shotDir:            DefaultScreenshotDir,
		log:                zerolog.Nop(),
	}
}

// SetPalette replaces the drawing colors.
func (c *EbitenCompositor) SetPalette(p Palette) {
	c.drawMu.Lock()
	c.palette = p
	c.drawMu.Unlock()
}

// SetShowFPS toggles the FPS/TPS overlay in the top-left corner.
func (c *EbitenCompositor) SetShowFPS(show bool) {
	c.drawMu.Lock()
	c.showFPS = show
	c.drawMu.Unlock()
}

// Draw paints the most recent frame onto screen.
func (c *EbitenCompositor) Draw(screen *ebiten.Image) {
	c.drawMu.Lock()
	p, showFPS := c.palette, c.showFPS
	c.drawMu.Unlock()

	screen.Fill(p.Background)
	for _, item := range c.LastFrame() {
		if !item.HasWindow || item.Opacity <= 0 {
			continue
		}
		drawWindow(screen, item, p)
	}
	if showFPS {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("FPS: %.1f\nTPS: %.1f", ebiten.ActualFPS(), ebiten.ActualTPS()))
	}
	c.flushScreenshots(screen)
}

func drawWindow(screen *ebiten.Image, item RenderItem, p Palette) {
	r := item.Bounds.Rect()
	x, y, w, h := float32(r.X), float32(r.Y), float32(r.Width), float32(r.Height)
	if w <= 0 || h <= 0 {
		return
	}
	body := fade(p.Window, item.Opacity)
	title := fade(p.Title, item.Opacity)
	border := fade(p.Border, item.Opacity)
	if item.Focused {
		border = fade(p.Focus, item.Opacity)
	}

	vector.DrawFilledRect(screen, x, y, w, h, body, false)
	vector.DrawFilledRect(screen, x, y, w, min(h, titleBarHeight), title, false)
	width := float32(borderWidth)
	if item.Focused {
		width = focusWidth
	}
	vector.StrokeRect(screen, x, y, w, h, width, border, false)
	if h >= titleBarHeight {
		ebitenutil.DebugPrintAt(screen, item.Name, int(r.X)+4, int(r.Y)+2)
	}
}

// fade scales a color's alpha by opacity and premultiplies it.
func fade(c color.RGBA, opacity float64) color.RGBA {
	opacity = max(0, min(1, opacity))
	a := float64(c.A) / 255 * opacity
	return color.RGBA{
		R: uint8(float64(c.R) * a),
		G: uint8(float64(c.G) * a),
		B: uint8(float64(c.B) * a),
		A: uint8(a * 255),
	}
}

// --- Input ---

// EbitenInput polls Ebiten's input state once per tick and pushes the
// resulting raw events into a WindowManager.
type EbitenInput struct {
	keys      []ebiten.Key
	touches   []ebiten.TouchID
	positions map[ebiten.TouchID]Vec2
	cursor    Vec2
	started   bool
}

// NewEbitenInput returns an input poller.
func NewEbitenInput() *EbitenInput {
	return &EbitenInput{positions: make(map[ebiten.TouchID]Vec2)}
}

var ebitenButtons = [...]struct {
	ebiten ebiten.MouseButton
	button MouseButton
}{
	{ebiten.MouseButtonLeft, MouseButtonLeft},
	{ebiten.MouseButtonRight, MouseButtonRight},
	{ebiten.MouseButtonMiddle, MouseButtonMiddle},
}

// Poll reads the keyboard, mouse and touch state and pushes the changes
// since the previous call.
func (in *EbitenInput) Poll(wm *WindowManager) {
	ts := wm.Now()
	mods := readModifiers(ebiten.IsKeyPressed)

	in.keys = inpututil.AppendJustPressedKeys(in.keys[:0])
	for _, k := range in.keys {
		wm.PushInput(KeyPress(k, mods, ts))
	}
	in.keys = inpututil.AppendJustReleasedKeys(in.keys[:0])
	for _, k := range in.keys {
		wm.PushInput(KeyRelease(k, mods, ts))
	}

	in.pollMouse(wm, mods, ts)
	in.pollTouches(wm, ts)
}

func (in *EbitenInput) pollMouse(wm *WindowManager, mods KeyModifiers, ts uint64) {
	mx, my := ebiten.CursorPosition()
	pos := Vec2{X: float64(mx), Y: float64(my)}
	if in.started && pos != in.cursor {
		wm.PushInput(MouseMove(pos.X, pos.Y, pos.X-in.cursor.X, pos.Y-in.cursor.Y, mods, ts))
	}
	in.cursor, in.started = pos, true

	for _, b := range ebitenButtons {
		if inpututil.IsMouseButtonJustPressed(b.ebiten) {
			wm.PushInput(MousePress(b.button, pos.X, pos.Y, mods, ts))
		}
		if inpututil.IsMouseButtonJustReleased(b.ebiten) {
			wm.PushInput(MouseRelease(b.button, pos.X, pos.Y, mods, ts))
		}
	}
	if dx, dy := ebiten.Wheel(); dx != 0 || dy != 0 {
		wm.PushInput(MouseWheel(pos.X, pos.Y, dx, dy, mods, ts))
	}
}

func (in *EbitenInput) pollTouches(wm *WindowManager, ts uint64) {
	in.touches = inpututil.AppendJustPressedTouchIDs(in.touches[:0])
	for _, id := range in.touches {
		x, y := ebiten.TouchPosition(id)
		p := Vec2{X: float64(x), Y: float64(y)}
		in.positions[id] = p
		wm.PushInput(TouchBegin(uint64(id), p.X, p.Y, 1, ts))
	}

	in.touches = ebiten.AppendTouchIDs(in.touches[:0])
	for _, id := range in.touches {
		prev, ok := in.positions[id]
		if !ok {
			continue
		}
		x, y := ebiten.TouchPosition(id)
		p := Vec2{X: float64(x), Y: float64(y)}
		if p != prev {
			in.positions[id] = p
			wm.PushInput(TouchUpdate(uint64(id), p.X, p.Y, p.X-prev.X, p.Y-prev.Y, 1, ts))
		}
	}

	in.touches = inpututil.AppendJustReleasedTouchIDs(in.touches[:0])
	for _, id := range in.touches {
		x, y := inpututil.TouchPositionInPreviousTick(id)
		delete(in.positions, id)
		wm.PushInput(TouchEnd(uint64(id), float64(x), float64(y), ts))
	}
}

// readModifiers builds the modifier mask from a key-state query. Ebiten's
// Meta keys are the Super (Windows / Command) key.
func readModifiers(pressed func(ebiten.Key) bool) KeyModifiers {
	down := func(keys ...ebiten.Key) bool {
		for _, k := range keys {
			if pressed(k) {
				return true
			}
		}
		return false
	}
	var mods KeyModifiers
	if down(ebiten.KeyShift, ebiten.KeyShiftLeft, ebiten.KeyShiftRight) {
		mods |= ModShift
	}
	if down(ebiten.KeyControl, ebiten.KeyControlLeft, ebiten.KeyControlRight) {
		mods |= ModCtrl
	}
	if down(ebiten.KeyAlt, ebiten.KeyAltLeft, ebiten.KeyAltRight) {
		mods |= ModAlt
	}
	if down(ebiten.KeyMeta, ebiten.KeyMetaLeft, ebiten.KeyMetaRight) {
		mods |= ModSuper
	}
	if pressed(ebiten.KeyCapsLock) {
		mods |= ModCapsLock
	}
	if pressed(ebiten.KeyNumLock) {
		mods |= ModNumLock
	}
	return mods
}

// --- Host ---

// RunConfig configures the desktop window RunEbiten opens.
type RunConfig struct {
	Title   string
	Width   int
	Height  int
	ShowFPS bool
}

type ebitenHost struct {
	wm     *WindowManager
	comp   *EbitenCompositor
	input  *EbitenInput
	width  int
	height int
}

func (h *ebitenHost) Update() error {
	if h.wm.State() == StateShuttingDown {
		return ebiten.Termination
	}
	if rate := h.wm.UpdateRate(); ebiten.TPS() != rate {
		ebiten.SetTPS(rate)
	}
	h.input.Poll(h.wm)
	h.wm.Tick()
	return nil
}

func (h *ebitenHost) Draw(screen *ebiten.Image) {
	h.comp.Draw(screen)
}

func (h *ebitenHost) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != h.width || outsideHeight != h.height {
		h.width, h.height = outsideWidth, outsideHeight
		h.comp.SetDisplay(Rect{Width: float64(outsideWidth), Height: float64(outsideHeight)})
	}
	return outsideWidth, outsideHeight
}

// RunEbiten opens a desktop window and drives wm from Ebiten's game loop
// until the window closes or wm shuts down. wm must have been built with an
// EbitenCompositor; it is initialized here if it is still Starting.
func RunEbiten(wm *WindowManager, rc RunConfig) error {
	comp, ok := wm.Compositor().(*EbitenCompositor)
	if !ok {
		return fmt.Errorf("arbor: RunEbiten needs an EbitenCompositor, have %T: %w", wm.Compositor(), ErrInvalidState)
	}
	if wm.State() == StateStarting {
		if err := wm.Initialize(); err != nil {
			return err
		}
	}
	cfg := wm.Config()
	if rc.Title == "" {
		rc.Title = "arbor"
	}
	if rc.Width <= 0 || rc.Height <= 0 {
		rc.Width, rc.Height = int(cfg.WorkspaceWidth), int(cfg.WorkspaceHeight)
	}
	comp.SetShowFPS(rc.ShowFPS)
	comp.drawMu.Lock()
	comp.log = wm.logger().With().Str("component", "compositor").Logger()
	comp.drawMu.Unlock()
	wm.RegisterShortcut(Shortcut{Key: ebiten.KeyPrintScreen, Modifiers: ModSuper}, "Screenshot", func() bool {
		comp.Screenshot("shortcut")
		return true
	})

	ebiten.SetWindowTitle(rc.Title)
	ebiten.SetWindowSize(rc.Width, rc.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(cfg.VSync)
	ebiten.SetTPS(wm.UpdateRate())

	host := &ebitenHost{wm: wm, comp: comp, input: NewEbitenInput()}
	err := ebiten.RunGame(host)
	wm.Shutdown()
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}
