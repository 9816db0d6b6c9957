package popup

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/foodmap/foodmap/pkg/model"
)

const (
	mapsBase = "https://www.google.com/maps"
	dirsBase = "https://www.google.com/maps/dir/?api=1&destination="
)

// State is the popup's render state pushed to connected clients.
type State struct {
	Visible       bool           `json:"visible"`
	Product       *model.Product `json:"product,omitempty"`
	Badge         string         `json:"badge,omitempty"`
	MapsURL       string         `json:"maps_url,omitempty"`
	DirectionsURL string         `json:"directions_url,omitempty"`
	Reminder      bool           `json:"reminder,omitempty"`
}

// Popup is the single shared sale popup. The composition root constructs
// one instance and hands it to every caller that may show it.
type Popup struct {
	mu       sync.Mutex
	logger   *zap.Logger
	state    State
	onChange func(State)
}

func New(logger *zap.Logger) *Popup {
	return &Popup{logger: logger}
}

// OnChange registers the sink that receives every state transition.
func (p *Popup) OnChange(fn func(State)) { p.onChange = fn }

// Show displays the popup for a single on-sale product.
func (p *Popup) Show(product model.Product) {
	st := State{
		Visible:       true,
		Product:       &product,
		Badge:         FormatDiscount(product),
		MapsURL:       MapsURL(product),
		DirectionsURL: DirectionsURL(product),
	}
	p.logger.Debug("popup.show",
		zap.Int64("product_id", product.ProductID),
		zap.String("badge", st.Badge))
	p.transition(st)
}

// ShowReminder displays the popup in reminder mode, without a product.
func (p *Popup) ShowReminder(message string) {
	p.transition(State{Visible: true, Badge: message, Reminder: true})
}

// Hide dismisses the popup. It never mutates any other component state.
func (p *Popup) Hide() {
	p.transition(State{Visible: false})
}

// Visible reports whether the popup is currently shown.
func (p *Popup) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Visible
}

// Current returns a copy of the popup state.
func (p *Popup) Current() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Popup) transition(st State) {
	p.mu.Lock()
	p.state = st
	sink := p.onChange
	p.mu.Unlock()
	if sink != nil {
		sink(st)
	}
}

// FormatDiscount builds the badge text. Precedence: a valid discount rate
// renders a percent-off badge; a sale price paired with a list price
// derives the percentage; a lone sale price renders the price itself; with
// nothing usable a generic badge is shown.
func FormatDiscount(p model.Product) string {
	if p.DiscountRate > 0 && p.DiscountRate < 1 {
		return fmt.Sprintf("%d%% OFF", int(math.Round((1-p.DiscountRate)*100)))
	}
	if p.FinalPrice > 0 && p.Price > 0 && p.FinalPrice < p.Price {
		return fmt.Sprintf("%d%% OFF", int(math.Round((1-p.FinalPrice/p.Price)*100)))
	}
	if p.FinalPrice > 0 {
		return "特價 $" + trimPrice(p.FinalPrice)
	}
	return "特價中"
}

// MapsURL builds the store link: coordinates when available, otherwise a
// search on the address, otherwise the maps front page.
func MapsURL(p model.Product) string {
	if p.Latitude != 0 || p.Longitude != 0 {
		return mapsBase + "?q=" + formatLatLng(p.Latitude, p.Longitude)
	}
	if addr := strings.TrimSpace(p.Address); addr != "" {
		return mapsBase + "?q=" + url.QueryEscape(addr)
	}
	return mapsBase
}

// DirectionsURL builds the navigation link with the same destination
// fallback order as MapsURL.
func DirectionsURL(p model.Product) string {
	if p.Latitude != 0 || p.Longitude != 0 {
		return dirsBase + formatLatLng(p.Latitude, p.Longitude)
	}
	if addr := strings.TrimSpace(p.Address); addr != "" {
		return dirsBase + url.QueryEscape(addr)
	}
	return mapsBase
}

func formatLatLng(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

func trimPrice(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
