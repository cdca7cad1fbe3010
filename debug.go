package arbor

import "time"

// debugInterval is how often accumulated tick timings are logged.
const debugInterval = time.Second

// debugMaxWindows is the managed window count above which debug mode warns.
const debugMaxWindows = 1000

// tickStats holds per-tick timing and counts. Only collected when debug mode
// is on.
type tickStats struct {
	input   time.Duration
	layout  time.Duration
	effects time.Duration
	scene   time.Duration
	render  time.Duration
	events  int
	nodes   int
	items   int
	ticks   int
}

func (s tickStats) total() time.Duration {
	return s.input + s.layout + s.effects + s.scene + s.render
}

func (s *tickStats) add(o tickStats) {
	s.input += o.input
	s.layout += o.layout
	s.effects += o.effects
	s.scene += o.scene
	s.render += o.render
	s.events += o.events
	s.nodes = o.nodes
	s.items = o.items
	s.ticks++
}

// debugLog folds stats into the running totals and logs their per-tick
// averages once per debugInterval.
func (wm *WindowManager) debugLog(stats tickStats) {
	wm.mu.Lock()
	if !wm.debug {
		wm.mu.Unlock()
		return
	}
	wm.debugAcc.add(stats)
	now := wm.now()
	if now.Sub(wm.debugSince) < debugInterval {
		wm.mu.Unlock()
		return
	}
	acc := wm.debugAcc
	wm.debugAcc = tickStats{}
	wm.debugSince = now
	windows := len(wm.windowToNode)
	wm.mu.Unlock()

	avg := func(d time.Duration) time.Duration { return d / time.Duration(acc.ticks) }
	l := wm.logger()
	l.Debug().
		Int("ticks", acc.ticks).
		Dur("input", avg(acc.input)).
		Dur("layout", avg(acc.layout)).
		Dur("effects", avg(acc.effects)).
		Dur("scene", avg(acc.scene)).
		Dur("render", avg(acc.render)).
		Dur("total", avg(acc.total())).
		Int("events", acc.events).
		Int("nodes", acc.nodes).
		Int("items", acc.items).
		Msg("tick stats")
	if windows > debugMaxWindows {
		l.Warn().Int("windows", windows).Int("threshold", debugMaxWindows).Msg("window count exceeds threshold")
	}
}
