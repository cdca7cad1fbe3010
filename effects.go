package arbor

import (
	"fmt"
	"strings"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"gopkg.in/yaml.v3"
)

// EffectType selects a window transition.
type EffectType uint8

const (
	EffectFadeIn              EffectType = iota // opacity 0 to 1
	EffectFadeOut                               // opacity 1 to 0
	EffectScaleIn                               // grow into place while fading in
	EffectScaleOut                              // shrink while fading out
	EffectSlideIn                               // slide in from a side
	EffectSlideOut                              // slide out to a side
	EffectMinimize                              // shrink away, then hide
	EffectRestore                               // reverse of minimize
	EffectWorkspaceTransition                   // horizontal slide between workspaces
)

func (t EffectType) String() string {
	switch t {
	case EffectFadeIn:
		return "FadeIn"
	case EffectFadeOut:
		return "FadeOut"
	case EffectScaleIn:
		return "ScaleIn"
	case EffectScaleOut:
		return "ScaleOut"
	case EffectSlideIn:
		return "SlideIn"
	case EffectSlideOut:
		return "SlideOut"
	case EffectMinimize:
		return "Minimize"
	case EffectRestore:
		return "Restore"
	case EffectWorkspaceTransition:
		return "WorkspaceTransition"
	default:
		return fmt.Sprintf("EffectType(%d)", t)
	}
}

// Hides reports whether the target should be hidden once the effect
// completes.
func (t EffectType) Hides() bool {
	switch t {
	case EffectFadeOut, EffectScaleOut, EffectSlideOut, EffectMinimize:
		return true
	}
	return false
}

// EasingType names an easing curve.
type EasingType uint8

const (
	EasingLinear EasingType = iota
	EasingEaseIn
	EasingEaseOut
	EasingEaseInOut
	EasingBounce
	EasingElastic
	EasingBack
)

var easingNames = [...]string{"linear", "ease-in", "ease-out", "ease-in-out", "bounce", "elastic", "back"}

func (e EasingType) String() string {
	if int(e) < len(easingNames) {
		return easingNames[e]
	}
	return fmt.Sprintf("EasingType(%d)", e)
}

// ParseEasingType converts an easing name to an EasingType.
func ParseEasingType(s string) (EasingType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range easingNames {
		if n == s {
			return EasingType(i), nil
		}
	}
	return 0, fmt.Errorf("arbor: unknown easing %q", s)
}

// MarshalYAML writes the easing by name.
func (e EasingType) MarshalYAML() (any, error) {
	return e.String(), nil
}

// UnmarshalYAML reads an easing name.
func (e *EasingType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseEasingType(s)
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Func returns the gween easing function for e.
func (e EasingType) Func() ease.TweenFunc {
	switch e {
	case EasingEaseIn:
		return ease.InQuad
	case EasingEaseOut:
		return ease.OutQuad
	case EasingEaseInOut:
		return ease.InOutQuad
	case EasingBounce:
		return ease.OutBounce
	case EasingElastic:
		return ease.OutElastic
	case EasingBack:
		return ease.InBack
	default:
		return ease.Linear
	}
}

// SlideDirection is the side a slide effect enters from or leaves toward.
type SlideDirection uint8

const (
	SlideFromRight SlideDirection = iota
	SlideFromLeft
	SlideFromTop
	SlideFromBottom
)

func (d SlideDirection) unit() Vec2 {
	switch d {
	case SlideFromLeft:
		return Vec2{X: -1}
	case SlideFromTop:
		return Vec2{Y: -1}
	case SlideFromBottom:
		return Vec2{Y: 1}
	default:
		return Vec2{X: 1}
	}
}

// Effect defaults.
const (
	DefaultEffectLimit    = 32
	DefaultEffectDuration = 250 * time.Millisecond
	DefaultSlideDistance  = 100.0
	minimizedScale        = 0.1
	scaleEffectFrom       = 0.8
)

// Effect describes one transition to run.
type Effect struct {
	Type      EffectType
	Target    NodeID
	HasTarget bool
	Duration  time.Duration
	Easing    EasingType
	Direction SlideDirection
	Distance  float64

	// OnProgress, if set, is called after every update with the eased
	// progress. Returning false cancels the effect.
	OnProgress func(progress float64) bool
}

// EffectOption configures an Effect.
type EffectOption func(*Effect)

// EffectTarget binds the effect to a scene node.
func EffectTarget(id NodeID) EffectOption {
	return func(e *Effect) { e.Target, e.HasTarget = id, true }
}

// EffectDuration overrides the default duration.
func EffectDuration(d time.Duration) EffectOption {
	return func(e *Effect) { e.Duration = d }
}

// EffectEasing overrides the easing curve.
func EffectEasing(t EasingType) EffectOption {
	return func(e *Effect) { e.Easing = t }
}

// EffectSlide sets the direction and distance of slide and workspace
// transition effects.
func EffectSlide(dir SlideDirection, distance float64) EffectOption {
	return func(e *Effect) { e.Direction, e.Distance = dir, distance }
}

// EffectProgress installs a progress callback.
func EffectProgress(fn func(float64) bool) EffectOption {
	return func(e *Effect) { e.OnProgress = fn }
}

// EffectSample is the visual state an effect wants applied to its target.
type EffectSample struct {
	ID        uint64
	Type      EffectType
	Target    NodeID
	HasTarget bool
	Progress  float64
	Opacity   float64
	Scale     float64
	Offset    Vec2
	Done      bool
	Cancelled bool
}

type runningEffect struct {
	Effect
	id    uint64
	tween *gween.Tween
}

func (r *runningEffect) sample(p float64) EffectSample {
	s := EffectSample{ID: r.id, Type: r.Type, Target: r.Target, HasTarget: r.HasTarget, Progress: p, Opacity: 1, Scale: 1}
	dir := r.Direction.unit()
	switch r.Type {
	case EffectFadeIn:
		s.Opacity = p
	case EffectFadeOut:
		s.Opacity = 1 - p
	case EffectScaleIn:
		s.Opacity = p
		s.Scale = lerp(scaleEffectFrom, 1, p)
	case EffectScaleOut:
		s.Opacity = 1 - p
		s.Scale = lerp(1, scaleEffectFrom, p)
	case EffectSlideIn:
		s.Opacity = p
		s.Offset = Vec2{dir.X * r.Distance * (1 - p), dir.Y * r.Distance * (1 - p)}
	case EffectSlideOut:
		s.Opacity = 1 - p
		s.Offset = Vec2{dir.X * r.Distance * p, dir.Y * r.Distance * p}
	case EffectMinimize:
		s.Opacity = 1 - p
		s.Scale = lerp(1, minimizedScale, p)
	case EffectRestore:
		s.Opacity = p
		s.Scale = lerp(minimizedScale, 1, p)
	case EffectWorkspaceTransition:
		s.Offset = Vec2{X: dir.X * r.Distance * (1 - p)}
	}
	return s
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// EffectsManager runs a bounded set of concurrent effects and turns them into
// per-frame samples. EffectsManager is not safe for concurrent use.
type EffectsManager struct {
	enabled  bool
	limit    int
	duration time.Duration
	active   []*runningEffect
	evicted  []EffectSample // final samples of effects dropped at the limit
	nextID   uint64
}

// NewEffectsManager returns an enabled manager with the default limit. A
// non-positive duration selects DefaultEffectDuration.
func NewEffectsManager(duration time.Duration) *EffectsManager {
	if duration <= 0 {
		duration = DefaultEffectDuration
	}
	return &EffectsManager{enabled: true, limit: DefaultEffectLimit, duration: duration}
}

// Enabled reports whether new effects are accepted.
func (m *EffectsManager) Enabled() bool {
	return m.enabled
}

// SetEnabled toggles the manager. Disabling cancels every running effect and
// returns their final samples.
func (m *EffectsManager) SetEnabled(enabled bool) []EffectSample {
	m.enabled = enabled
	if !enabled {
		return m.CancelAll()
	}
	return nil
}

// SetLimit changes the maximum number of concurrent effects, dropping the
// oldest ones over the new limit.
func (m *EffectsManager) SetLimit(n int) {
	if n < 1 {
		n = 1
	}
	m.limit = n
	m.evict(len(m.active) - n)
}

// evict drops the n oldest effects and queues their cancelled samples for
// the next Update.
func (m *EffectsManager) evict(n int) {
	if n <= 0 {
		return
	}
	for _, r := range m.active[:n] {
		m.evicted = append(m.evicted, r.cancelled())
	}
	m.active = append(m.active[:0], m.active[n:]...)
}

// SetDefaultDuration sets the duration used when an effect does not name
// one.
func (m *EffectsManager) SetDefaultDuration(d time.Duration) {
	if d > 0 {
		m.duration = d
	}
}

// ActiveCount returns the number of running effects.
func (m *EffectsManager) ActiveCount() int {
	return len(m.active)
}

// Add starts an effect and returns its id. When the limit is reached the
// oldest running effect is dropped and its cancelled sample is reported by
// the next Update.
func (m *EffectsManager) Add(t EffectType, opts ...EffectOption) (uint64, error) {
	if !m.enabled {
		return 0, ErrEffectsDisabled
	}
	e := Effect{Type: t, Duration: m.duration, Distance: DefaultSlideDistance}
	for _, opt := range opts {
		opt(&e)
	}
	if e.Duration <= 0 {
		e.Duration = m.duration
	}
	m.evict(len(m.active) - m.limit + 1)
	m.nextID++
	r := &runningEffect{
		Effect: e,
		id:     m.nextID,
		tween:  gween.New(0, 1, float32(e.Duration.Seconds()), e.Easing.Func()),
	}
	m.active = append(m.active, r)
	return r.id, nil
}

// Update advances every effect by dt and returns one sample per effect,
// preceded by the cancelled samples of effects evicted since the last call.
// Completed effects report Done and are removed.
func (m *EffectsManager) Update(dt time.Duration) []EffectSample {
	if len(m.active) == 0 && len(m.evicted) == 0 {
		return nil
	}
	out := make([]EffectSample, 0, len(m.evicted)+len(m.active))
	out = append(out, m.evicted...)
	m.evicted = nil
	kept := m.active[:0]
	for _, r := range m.active {
		v, finished := r.tween.Update(float32(dt.Seconds()))
		p := float64(v)
		if finished {
			p = 1
		}
		s := r.sample(p)
		if r.OnProgress != nil && !r.OnProgress(p) {
			out = append(out, r.cancelled())
			continue
		}
		s.Done = finished
		out = append(out, s)
		if !finished {
			kept = append(kept, r)
		}
	}
	clear(m.active[len(kept):])
	m.active = kept
	return out
}

func (r *runningEffect) cancelled() EffectSample {
	return EffectSample{
		ID: r.id, Type: r.Type, Target: r.Target, HasTarget: r.HasTarget,
		Opacity: 1, Scale: 1, Done: true, Cancelled: true,
	}
}

// Cancel stops one effect and returns its final sample.
func (m *EffectsManager) Cancel(id uint64) (EffectSample, bool) {
	for i, r := range m.active {
		if r.id == id {
			m.active = append(m.active[:i], m.active[i+1:]...)
			return r.cancelled(), true
		}
	}
	return EffectSample{}, false
}

// CancelTarget stops every effect bound to a node. Final samples are
// returned so the caller can reset the node.
func (m *EffectsManager) CancelTarget(id NodeID) []EffectSample {
	var out []EffectSample
	kept := m.active[:0]
	for _, r := range m.active {
		if r.HasTarget && r.Target == id {
			out = append(out, r.cancelled())
			continue
		}
		kept = append(kept, r)
	}
	clear(m.active[len(kept):])
	m.active = kept
	return out
}

// CancelAll stops every effect and returns their final samples, including
// those of evicted effects not yet reported.
func (m *EffectsManager) CancelAll() []EffectSample {
	out := make([]EffectSample, 0, len(m.evicted)+len(m.active))
	out = append(out, m.evicted...)
	m.evicted = nil
	for _, r := range m.active {
		out = append(out, r.cancelled())
	}
	clear(m.active)
	m.active = m.active[:0]
	return out
}
