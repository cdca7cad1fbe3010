// Command arbor runs the arbor window manager, either in a desktop window or
// headless for scripted runs and soak tests.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/phanxgames/arbor"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"
	"golang.org/x/term"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	debug      bool
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "arbor",
		Short: "Desktop shell window manager",
		Long: `arbor manages client windows on a scene graph with workspaces, tiling
layouts, animated effects and touch gestures.`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML config file (defaults apply when empty)")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "auto", "log format: auto, console, json")
	pf.BoolVar(&g.debug, "debug", false, "log per-tick timings")

	root.AddCommand(
		newRunCmd(&g),
		newHeadlessCmd(&g),
		newConfigCmd(&g),
		newShortcutsCmd(&g),
	)
	return root
}

// newLogger builds the process logger. "auto" picks the console writer when
// w is a terminal and JSON otherwise.
func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	switch format {
	case "auto":
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
		}
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func loadConfig(path string) (arbor.Config, error) {
	if path == "" {
		return arbor.DefaultConfig(), nil
	}
	return arbor.LoadConfig(path)
}

// newManager loads the config and builds a manager that logs through the
// command's stderr.
func newManager(cmd *cobra.Command, g *globalFlags, opts ...arbor.Option) (*arbor.WindowManager, zerolog.Logger, error) {
	log, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
	if err != nil {
		return nil, log, err
	}
	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return nil, log, err
	}
	wm, err := arbor.NewWindowManager(cfg, append(opts, arbor.WithLogger(log))...)
	if err != nil {
		return nil, log, err
	}
	wm.SetDebugMode(g.debug)
	wm.AddEventListener(func(ev arbor.Event) bool {
		log.Trace().Stringer("event", ev.Type).Uint64("node", uint64(ev.Node)).Int("workspace", ev.Workspace).Msg("event")
		return true
	})
	return wm, log, nil
}

// --- run ---

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		rc    arbor.RunConfig
		demo  int
		title string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open a desktop window and run the window manager in it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			w, h := rc.Width, rc.Height
			if w <= 0 || h <= 0 {
				w, h = int(cfg.WorkspaceWidth), int(cfg.WorkspaceHeight)
			}
			comp := arbor.NewEbitenCompositor(arbor.Rect{Width: float64(w), Height: float64(h)})
			wm, log, err := newManager(cmd, g, arbor.WithCompositor(comp))
			if err != nil {
				return err
			}
			if err := wm.Initialize(); err != nil {
				return err
			}
			for i := range demo {
				comp.CreateWindow(fmt.Sprintf("%s %d", title, i+1), arbor.Rect{Width: 640, Height: 480})
			}
			log.Info().Int("width", w).Int("height", h).Msg("opening window")
			rc.Width, rc.Height = w, h
			return arbor.RunEbiten(wm, rc)
		},
	}
	f := cmd.Flags()
	f.StringVar(&rc.Title, "title", "arbor", "window title")
	f.IntVar(&rc.Width, "width", 0, "window width (workspace width when 0)")
	f.IntVar(&rc.Height, "height", 0, "window height (workspace height when 0)")
	f.BoolVar(&rc.ShowFPS, "fps", false, "show the FPS overlay")
	f.IntVar(&demo, "demo", 3, "demo client windows to open")
	f.StringVar(&title, "demo-title", "window", "title prefix for demo windows")
	return cmd
}

// --- headless ---

type headlessFlags struct {
	duration time.Duration
	windows  int
	interval time.Duration
	script   string
}

func newHeadlessCmd(g *globalFlags) *cobra.Command {
	var hf headlessFlags
	cmd := &cobra.Command{
		Use:   "headless",
		Short: "Run without a display, from a script or as a supervised soak test",
		Long: `headless runs the window manager on an in-memory compositor.

With --script the script is played one frame per tick and the command exits
when it finishes. Otherwise the manager runs under a supervisor for
--duration while demo windows are opened every --spawn-interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wm, log, err := newManager(cmd, g)
			if err != nil {
				return err
			}
			if err := wm.Initialize(); err != nil {
				return err
			}
			defer wm.Shutdown()

			if hf.script != "" {
				err = runScript(cmd.OutOrStdout(), wm, hf.script)
			} else {
				err = runSupervised(cmd.Context(), log, wm, hf)
			}
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), wm)
			return nil
		},
	}
	f := cmd.Flags()
	f.DurationVar(&hf.duration, "duration", 5*time.Second, "how long to run without a script")
	f.IntVar(&hf.windows, "windows", 4, "demo windows to open without a script")
	f.DurationVar(&hf.interval, "spawn-interval", 250*time.Millisecond, "delay between demo windows")
	f.StringVar(&hf.script, "script", "", "YAML or JSON input script to play")
	return cmd
}

func runScript(out io.Writer, wm *arbor.WindowManager, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r, err := arbor.LoadScript(data, out)
	if err != nil {
		return err
	}
	for !r.Done() {
		r.Step(wm)
		wm.Tick()
	}
	return r.Err()
}

func runSupervised(ctx context.Context, log zerolog.Logger, wm *arbor.WindowManager, hf headlessFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, hf.duration)
	defer cancel()

	comp, ok := wm.Compositor().(*arbor.HeadlessCompositor)
	if !ok {
		return fmt.Errorf("headless run needs a HeadlessCompositor, have %T", wm.Compositor())
	}
	sup := suture.New("arbor", suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn().Str("supervisor", e.String()).Msg("supervisor event")
		},
	})
	sup.Add(wm)
	sup.Add(&spawner{comp: comp, count: hf.windows, interval: hf.interval})

	err := sup.Serve(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// spawner opens demo windows on a schedule. It is a suture service that
// finishes once every window is open.
type spawner struct {
	comp     *arbor.HeadlessCompositor
	count    int
	interval time.Duration
	opened   int
}

func (s *spawner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(max(s.interval, time.Millisecond))
	defer ticker.Stop()
	for s.opened < s.count {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		s.opened++
		s.comp.CreateWindow(fmt.Sprintf("demo %d", s.opened), arbor.Rect{Width: 640, Height: 480})
	}
	return suture.ErrDoNotRestart
}

func (s *spawner) String() string {
	return "demo-window-spawner"
}

func printSummary(out io.Writer, wm *arbor.WindowManager) {
	frames := uint64(0)
	if c, ok := wm.Compositor().(*arbor.HeadlessCompositor); ok {
		frames = c.FrameCount()
	}
	fmt.Fprintf(out, "windows=%d workspaces=%d frames=%d\n", wm.WindowCount(), len(wm.Workspaces()), frames)
}

// --- config ---

func newConfigCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// --- shortcuts ---

func newShortcutsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shortcuts",
		Short: "List the default keyboard shortcuts",
		RunE: func(cmd *cobra.Command, args []string) error {
			wm, _, err := newManager(cmd, g)
			if err != nil {
				return err
			}
			for _, s := range wm.Input().Shortcuts() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", s.Shortcut, s.Description)
			}
			return nil
		},
	}
}
