package carousel

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/metrics"
	"github.com/foodmap/foodmap/internal/view"
	"github.com/foodmap/foodmap/pkg/model"
)

// Defaults mirror the spotlight widget's layout constants.
const (
	DefaultGapPX    = 5.0
	DefaultCardPX   = 260.0
	maxVisibleCards = 4
)

// Card is one mounted card on the track. Clone cards form the wrap-around
// suffix that makes the loop look infinite.
type Card struct {
	Product model.Product `json:"product"`
	Clone   bool          `json:"clone"`
}

// Frame is one visual update: the track offset to apply and whether the
// move is animated. A non-animated frame is the instantaneous clone-boundary
// reset and carries no duration.
type Frame struct {
	Index      int     `json:"index"`
	OffsetPX   float64 `json:"offset_px"`
	Animate    bool    `json:"animate"`
	DurationMS int     `json:"duration_ms,omitempty"`
}

// Source fetches the product set for the current view.
type Source func(ctx context.Context, snap view.Snapshot) ([]model.Product, error)

// Config tunes the engine. Zero values fall back to the defaults above.
type Config struct {
	AutoplayInterval time.Duration // advance cadence (3.5s)
	TransitionTime   time.Duration // slide animation length, sent to clients (500ms)
	CloneResetDelay  time.Duration // delay before the boundary reset (520ms,
	// slightly longer than the transition; if the autoplay interval
	// ever drops below the transition time, step requests can overlap.
	// Known hazard, intentionally not guarded.)
	GapPX  float64
	CardPX float64
}

func (c *Config) fill() {
	if c.AutoplayInterval <= 0 {
		c.AutoplayInterval = 3500 * time.Millisecond
	}
	if c.TransitionTime <= 0 {
		c.TransitionTime = 500 * time.Millisecond
	}
	if c.CloneResetDelay <= 0 {
		c.CloneResetDelay = 520 * time.Millisecond
	}
	if c.GapPX <= 0 {
		c.GapPX = DefaultGapPX
	}
	if c.CardPX <= 0 {
		c.CardPX = DefaultCardPX
	}
}

// VisibleCount derives how many cards fit in the container, clamped to
// [1, 4].
func VisibleCount(boxPX, cardPX, gapPX float64) int {
	if cardPX <= 0 {
		return 3
	}
	v := int(math.Floor((boxPX + gapPX) / (cardPX + gapPX)))
	if v < 1 {
		v = 1
	}
	if v > maxVisibleCards {
		v = maxVisibleCards
	}
	return v
}

// Engine is the auto-advancing, infinitely-looping spotlight carousel.
//
// Invariants: items are unique by product id in first-seen order; the track
// is items plus, when len(items) > visible, a clone of the first visible
// items; the index stays in [0, len(items)]; reaching the clone boundary
// resets to 0 without animation after the transition delay.
type Engine struct {
	mu     sync.Mutex
	logger *zap.Logger
	cfg    Config
	source Source

	items   []model.Product
	visible int
	cardPX  float64
	idx     int
	hidden  bool

	onFrame func(Frame)
	onTrack func(track []Card, hidden bool)

	disposers []func()

	playing bool
	paused  bool
	stopCh  chan struct{}

	// schedule defers the clone-boundary reset; replaced in tests.
	schedule func(d time.Duration, fn func())
}

// New creates an Engine. source may be nil when Load is driven externally.
func New(logger *zap.Logger, cfg Config, source Source) *Engine {
	cfg.fill()
	return &Engine{
		logger:   logger,
		cfg:      cfg,
		source:   source,
		visible:  3,
		cardPX:   cfg.CardPX,
		hidden:   true,
		schedule: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// OnFrame registers the sink for visual updates.
func (e *Engine) OnFrame(fn func(Frame)) { e.onFrame = fn }

// OnTrack registers the sink for track rebuilds.
func (e *Engine) OnTrack(fn func([]Card, bool)) { e.onTrack = fn }

// AddDisposer registers a teardown hook (tooltip/popover removal) that runs
// before the next re-render.
func (e *Engine) AddDisposer(fn func()) {
	e.mu.Lock()
	e.disposers = append(e.disposers, fn)
	e.mu.Unlock()
}

// disposeLocked runs and clears all registered disposers. Callers hold e.mu.
func (e *Engine) disposeLocked() {
	for _, fn := range e.disposers {
		fn()
	}
	e.disposers = nil
}

// Load replaces the product set: dedup by id (first-seen order), rebuild
// the track, reset to index 0 and restart autoplay. An empty set hides the
// component.
func (e *Engine) Load(products []model.Product) {
	e.Stop()

	e.mu.Lock()
	e.disposeLocked()

	seen := make(map[int64]bool, len(products))
	uniq := products[:0:0]
	for _, p := range products {
		if seen[p.ProductID] {
			continue
		}
		seen[p.ProductID] = true
		uniq = append(uniq, p)
	}
	e.items = uniq
	e.idx = 0
	e.hidden = len(uniq) == 0
	hidden := e.hidden
	track := e.trackLocked()
	e.mu.Unlock()

	if e.onTrack != nil {
		e.onTrack(track, hidden)
	}
	if hidden {
		return
	}
	e.emit(0, false)
	e.Play()
}

// Reload fetches from the source and loads the result. A fetch failure is
// logged and leaves the previous (or hidden) state untouched; it never
// propagates.
func (e *Engine) Reload(ctx context.Context, snap view.Snapshot) {
	if e.source == nil {
		return
	}
	products, err := e.source(ctx, snap)
	if err != nil {
		e.logger.Warn("carousel.fetch_failed", zap.Error(err))
		return
	}
	e.Load(products)
}

// Track returns the mounted cards: the unique items plus the wrap-around
// clone suffix when the item count exceeds the visible count.
func (e *Engine) Track() []Card {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trackLocked()
}

func (e *Engine) trackLocked() []Card {
	track := make([]Card, 0, len(e.items)+e.visible)
	for _, p := range e.items {
		track = append(track, Card{Product: p})
	}
	if len(e.items) > e.visible {
		for i := 0; i < e.visible; i++ {
			track = append(track, Card{Product: e.items[i], Clone: true})
		}
	}
	return track
}

// Hidden reports whether the component is hidden (empty product set).
func (e *Engine) Hidden() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hidden
}

// Index returns the current position on the track.
func (e *Engine) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idx
}

// Offset returns the current transform offset in pixels.
func (e *Engine) Offset() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offsetLocked()
}

func (e *Engine) offsetLocked() float64 {
	return -(e.cardPX + e.cfg.GapPX) * float64(e.idx)
}

// emit moves to index i and pushes a frame.
func (e *Engine) emit(i int, animate bool) {
	e.mu.Lock()
	e.disposeLocked()
	e.idx = i
	frame := Frame{Index: i, OffsetPX: e.offsetLocked(), Animate: animate}
	if animate {
		frame.DurationMS = int(e.cfg.TransitionTime / time.Millisecond)
	}
	sink := e.onFrame
	e.mu.Unlock()

	if sink != nil {
		sink(frame)
	}
}

// Advance performs one autoplay step. With the whole set visible there is
// nothing to advance past and the visible set never changes.
func (e *Engine) Advance() {
	e.mu.Lock()
	n := len(e.items)
	if e.hidden || n <= e.visible {
		e.mu.Unlock()
		return
	}
	idx := e.idx
	e.mu.Unlock()

	// Already sitting in the clone region: snap back before animating on.
	if idx >= n {
		e.emit(0, false)
		idx = 0
	}

	e.emit(idx+1, true)

	if idx+1 == n {
		// Landed on the first clone, which shows the same cards as index
		// 0. Once the transition finishes, snap back invisibly.
		metrics.CarouselAdvancesTotal.WithLabelValues("true").Inc()
		e.schedule(e.cfg.CloneResetDelay, func() { e.emit(0, false) })
		return
	}
	metrics.CarouselAdvancesTotal.WithLabelValues("false").Inc()
}

// Resize recomputes the visible count from measured widths. When it
// changes: stop, rebuild clones, reset to 0, restart.
func (e *Engine) Resize(boxPX, cardPX float64) {
	v := VisibleCount(boxPX, cardPX, e.cfg.GapPX)

	e.mu.Lock()
	e.cardPX = cardPX
	changed := v != e.visible
	if changed {
		e.visible = v
	}
	hidden := e.hidden
	track := e.trackLocked()
	e.mu.Unlock()

	if !changed {
		return
	}

	e.Stop()
	if e.onTrack != nil {
		e.onTrack(track, hidden)
	}
	if hidden {
		return
	}
	e.emit(0, false)
	e.Play()
}

// Play starts the autoplay loop. No-op if already playing.
func (e *Engine) Play() {
	e.mu.Lock()
	if e.playing || e.hidden {
		e.mu.Unlock()
		return
	}
	e.playing = true
	e.paused = false
	stopCh := make(chan struct{})
	e.stopCh = stopCh
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.cfg.AutoplayInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.mu.Lock()
				paused := e.paused
				e.mu.Unlock()
				if !paused {
					e.Advance()
				}
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop halts the autoplay loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return
	}
	e.playing = false
	close(e.stopCh)
	e.stopCh = nil
	e.mu.Unlock()
}

// Pause suspends advancing while the pointer hovers the component.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume continues advancing after the pointer leaves.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}
