package view

import (
	"sync"
	"time"

	"github.com/foodmap/foodmap/pkg/eventbus"
	"github.com/foodmap/foodmap/pkg/geo"
	"github.com/foodmap/foodmap/pkg/model"
)

// Snapshot is an immutable copy of the shared view state. Components take a
// Snapshot at the start of a render and must tolerate the live state moving
// on while they are suspended on I/O.
type Snapshot struct {
	Center   geo.Point
	RadiusKm float64
	Brand    string
}

// State is the shared map view: current center, search radius and brand
// filter. One component mutates it through the setters; everyone else reads
// snapshots. Every mutation emits a ViewChangedEvent on the bus, so there
// are no implicit global reads anywhere.
type State struct {
	mu       sync.RWMutex
	center   geo.Point
	radiusKm float64
	brand    string
	bus      *eventbus.Bus
}

// New creates a State at the given initial view.
func New(bus *eventbus.Bus, center geo.Point, radiusKm float64) *State {
	if radiusKm <= 0 {
		radiusKm = 3
	}
	return &State{bus: bus, center: center, radiusKm: radiusKm}
}

// Snapshot returns the current view.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Center: s.center, RadiusKm: s.radiusKm, Brand: s.brand}
}

// SetBrand changes the brand filter only; listeners redraw in place.
func (s *State) SetBrand(brand string) {
	s.mu.Lock()
	s.brand = brand
	s.mu.Unlock()
	s.emit(false)
}

// SetLocation moves the center and radius. Listeners get a full reload
// signal rather than an in-place redraw.
func (s *State) SetLocation(center geo.Point, radiusKm float64) {
	s.mu.Lock()
	s.center = center
	if radiusKm > 0 {
		s.radiusKm = radiusKm
	}
	s.mu.Unlock()
	s.emit(true)
}

func (s *State) emit(reload bool) {
	if s.bus == nil {
		return
	}
	snap := s.Snapshot()
	s.bus.Publish(model.ViewChangedEvent{
		Lat:       snap.Center.Lat,
		Lng:       snap.Center.Lng,
		RadiusKm:  snap.RadiusKm,
		Brand:     snap.Brand,
		Reload:    reload,
		Timestamp: time.Now().UTC(),
	})
}
