package maprender

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/catalog"
	"github.com/foodmap/foodmap/internal/view"
	"github.com/foodmap/foodmap/pkg/geo"
	"github.com/foodmap/foodmap/pkg/model"
)

const (
	tileURL         = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	tileAttribution = "© OpenStreetMap contributors"

	// Marker palette; stores with no remaining stock render gray.
	noStockStroke = "#6c757d"
	noStockFill   = "#c7c8ca"
	otherBrand    = "#FF00F2"
)

var brandColors = map[string]string{
	catalog.BrandSevenEleven: "#00FF22",
	catalog.BrandFamilyMart:  "#0080FF",
	catalog.BrandHiLife:      "#FF0000",
	catalog.BrandOKMart:      "#FF9D00",
}

// MarkerStyle is the rendered look of one circle marker. It is a pure
// function of brand and remaining quantity.
type MarkerStyle struct {
	Stroke   string  `json:"stroke"`
	Fill     string  `json:"fill"`
	RadiusPX float64 `json:"radius_px"`
}

// StyleFor computes the marker style for a store.
func StyleFor(brand string, remainingQty int) MarkerStyle {
	style := MarkerStyle{RadiusPX: markerRadius(remainingQty)}
	if remainingQty <= 0 {
		style.Stroke = noStockStroke
		style.Fill = noStockFill
		return style
	}
	color, ok := brandColors[catalog.NormalizeBrand(brand)]
	if !ok {
		color = otherBrand
	}
	style.Stroke = color
	style.Fill = color
	return style
}

// markerRadius clamps the remaining quantity into [8,80] and scales it down.
func markerRadius(qty int) float64 {
	q := qty
	if q < 8 {
		q = 8
	}
	if q > 80 {
		q = 80
	}
	return float64(q) / 5
}

// Marker is one drawable marker in the marker layer.
type Marker struct {
	Kind  string             `json:"kind"` // "user" or "store"
	Lat   float64            `json:"lat"`
	Lng   float64            `json:"lng"`
	Style *MarkerStyle       `json:"style,omitempty"`
	Store *model.StoreMarker `json:"store,omitempty"`
}

// BaseLayer is created once and persists across re-renders; only the center
// moves.
type BaseLayer struct {
	Center      geo.Point `json:"center"`
	Zoom        int       `json:"zoom"`
	TileURL     string    `json:"tile_url"`
	Attribution string    `json:"attribution"`
}

// Snapshot is the full drawable model returned to clients.
type Snapshot struct {
	Base    BaseLayer `json:"base"`
	Markers []Marker  `json:"markers"`
}

// StoreSource supplies the stores to draw.
type StoreSource interface {
	ListStores(ctx context.Context, q catalog.Query) ([]model.StoreMarker, error)
}

// CenterStore persists the chosen center across page reloads.
type CenterStore interface {
	SaveCenter(ctx context.Context, session string, center geo.Point, radiusKm float64) error
}

// Renderer maintains the map's base layer and marker layer. The base layer
// is created on the first Render and only re-centered afterwards; the marker
// layer is cleared and redrawn on every Render.
type Renderer struct {
	mu      sync.Mutex
	logger  *zap.Logger
	stores  StoreSource
	centers CenterStore
	state   *view.State
	zoom    int

	base    *BaseLayer
	markers []Marker
}

// New creates a Renderer at the given default zoom.
func New(logger *zap.Logger, stores StoreSource, centers CenterStore, state *view.State, zoom int) *Renderer {
	if zoom <= 0 {
		zoom = 13
	}
	return &Renderer{
		logger:  logger,
		stores:  stores,
		centers: centers,
		state:   state,
		zoom:    zoom,
	}
}

// Render draws the view: exactly one user marker at center plus one marker
// per store in range. A store fetch failure keeps the previous marker layer.
func (r *Renderer) Render(ctx context.Context, center geo.Point, radiusKm float64, brand string) {
	r.mu.Lock()
	if r.base == nil {
		r.base = &BaseLayer{
			Center:      center,
			Zoom:        r.zoom,
			TileURL:     tileURL,
			Attribution: tileAttribution,
		}
	} else {
		r.base.Center = center
	}
	r.mu.Unlock()

	stores, err := r.stores.ListStores(ctx, catalog.Query{
		Center:    center,
		HasCenter: true,
		RadiusKm:  radiusKm,
		Brand:     brand,
	})
	if err != nil {
		r.logger.Warn("maprender.store_fetch_failed", zap.Error(err))
		return
	}

	markers := make([]Marker, 0, len(stores)+1)
	markers = append(markers, Marker{Kind: "user", Lat: center.Lat, Lng: center.Lng})
	for i := range stores {
		st := stores[i]
		style := StyleFor(st.Brand, st.RemainingQty)
		markers = append(markers, Marker{
			Kind:  "store",
			Lat:   st.Latitude,
			Lng:   st.Longitude,
			Style: &style,
			Store: &st,
		})
	}

	r.mu.Lock()
	r.markers = markers
	r.mu.Unlock()
}

// SetBrand changes the brand filter: markers redraw at the current center,
// the map does not move, and the change signal goes out to the other
// components.
func (r *Renderer) SetBrand(ctx context.Context, brand string) {
	r.state.SetBrand(brand)
	snap := r.state.Snapshot()
	r.Render(ctx, snap.Center, snap.RadiusKm, snap.Brand)
}

// SetLocation persists the new center and signals a full reload rather than
// re-rendering in place.
func (r *Renderer) SetLocation(ctx context.Context, session string, center geo.Point, radiusKm float64) error {
	if err := r.centers.SaveCenter(ctx, session, center, radiusKm); err != nil {
		return err
	}
	r.state.SetLocation(center, radiusKm)
	return nil
}

// Snapshot returns a copy of the current drawable model. The zero Snapshot
// (no base layer yet) reports Mounted == false.
func (r *Renderer) Snapshot() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.base == nil {
		return Snapshot{}, false
	}
	out := Snapshot{Base: *r.base, Markers: make([]Marker, len(r.markers))}
	copy(out.Markers, r.markers)
	return out, true
}
