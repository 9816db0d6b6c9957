package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/carousel"
	"github.com/foodmap/foodmap/internal/catalog"
	"github.com/foodmap/foodmap/internal/geocode"
	"github.com/foodmap/foodmap/internal/maprender"
	"github.com/foodmap/foodmap/internal/notify"
	"github.com/foodmap/foodmap/internal/store"
	"github.com/foodmap/foodmap/internal/view"
	"github.com/foodmap/foodmap/pkg/geo"
	"github.com/foodmap/foodmap/pkg/model"
)

// NotificationQueue enqueues user notifications for downstream delivery.
type NotificationQueue interface {
	Publish(ctx context.Context, n notify.UserNotification) error
}

// EventPublisher emits canonical domain events.
type EventPublisher interface {
	PublishSaleNotified(ctx context.Context, ev model.SaleNotifiedEvent) error
}

// Handler serves the discovery API and drives the server-rendered UI
// components.
type Handler struct {
	logger   *zap.Logger
	catalog  *catalog.Service
	store    store.Store
	view     *view.State
	renderer *maprender.Renderer
	carousel *carousel.Engine
	geocoder *geocode.Client
	queue    NotificationQueue
	events   EventPublisher
}

// NewHandler creates the Handler. geocoder, queue and events may be nil;
// the corresponding behavior is skipped.
func NewHandler(logger *zap.Logger, cat *catalog.Service, st store.Store,
	vs *view.State, renderer *maprender.Renderer, eng *carousel.Engine,
	geocoder *geocode.Client, queue NotificationQueue, events EventPublisher,
) *Handler {
	return &Handler{
		logger:   logger,
		catalog:  cat,
		store:    st,
		view:     vs,
		renderer: renderer,
		carousel: eng,
		geocoder: geocoder,
		queue:    queue,
		events:   events,
	}
}

// queryFromCtx builds a catalog query from the request, falling back to the
// shared view state when no explicit coordinates arrive.
func (h *Handler) queryFromCtx(c *fiber.Ctx) catalog.Query {
	q := catalog.Query{
		Brand:    c.Query("brand"),
		RadiusKm: parseFloat(c.Query("radius_km")),
		Limit:    parseInt(c.Query("limit")),
		UserID:   int64(parseInt(c.Query("user_id"))),
	}

	latRaw, lngRaw := c.Query("lat"), c.Query("lng")
	if latRaw != "" && lngRaw != "" {
		q.Center = geo.Point{Lat: parseFloat(latRaw), Lng: parseFloat(lngRaw)}
		q.HasCenter = true
		return q
	}

	if h.view != nil {
		snap := h.view.Snapshot()
		q.Center = snap.Center
		q.HasCenter = true
		if q.RadiusKm <= 0 {
			q.RadiusKm = snap.RadiusKm
		}
		if q.Brand == "" {
			q.Brand = snap.Brand
		}
	}
	return q
}

// SpotlightProducts returns the discounted products for the current view.
func (h *Handler) SpotlightProducts(c *fiber.Ctx) error {
	products, err := h.catalog.Spotlight(c.Context(), h.queryFromCtx(c))
	if err != nil {
		h.logger.Error("api.spotlight_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "spotlight query failed"})
	}
	return c.JSON(products)
}

// Stores returns store markers within the current view.
func (h *Handler) Stores(c *fiber.Ctx) error {
	stores, err := h.catalog.ListStores(c.Context(), h.queryFromCtx(c))
	if err != nil {
		h.logger.Error("api.stores_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "store query failed"})
	}
	return c.JSON(stores)
}

// Recommendations returns rating-ordered products, unrestricted by radius.
func (h *Handler) Recommendations(c *fiber.Ctx) error {
	products, err := h.catalog.Recommendations(c.Context(), h.queryFromCtx(c))
	if err != nil {
		h.logger.Error("api.recommendations_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "recommendation query failed"})
	}
	return c.JSON(products)
}

// MapSnapshot returns the rendered map state.
func (h *Handler) MapSnapshot(c *fiber.Ctx) error {
	if h.renderer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "map not ready"})
	}
	snap, mounted := h.renderer.Snapshot()
	if !mounted {
		h.renderer.Render(c.Context(), h.view.Snapshot().Center, h.view.Snapshot().RadiusKm, h.view.Snapshot().Brand)
		snap, _ = h.renderer.Snapshot()
	}
	return c.JSON(snap)
}

// CarouselState returns the carousel track and visibility.
func (h *Handler) CarouselState(c *fiber.Ctx) error {
	if h.carousel == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "carousel not ready"})
	}
	return c.JSON(fiber.Map{
		"hidden": h.carousel.Hidden(),
		"index":  h.carousel.Index(),
		"offset": h.carousel.Offset(),
		"track":  h.carousel.Track(),
	})
}

// SetCenter re-centers the shared view. Accepts form fields lat, lng and
// optional radius_km.
func (h *Handler) SetCenter(c *fiber.Ctx) error {
	lat := parseFloat(c.FormValue("lat"))
	lng := parseFloat(c.FormValue("lng"))
	if lat == 0 && lng == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "missing lat/lng"})
	}

	radius := parseFloat(c.FormValue("radius_km"))
	if radius <= 0 {
		radius = h.view.Snapshot().RadiusKm
	}

	session := sessionID(c)
	if err := h.renderer.SetLocation(c.Context(), session, geo.Point{Lat: lat, Lng: lng}, radius); err != nil {
		h.logger.Error("api.set_center_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "persist failed"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Areas returns the county/district selector data. The selector is the
// manual fallback when geolocation is denied or unavailable.
func (h *Handler) Areas(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"areas": geo.Areas})
}

// SetRegion re-centers the view on a county/district chosen from the
// manual selector. Accepts form fields county and district.
func (h *Handler) SetRegion(c *fiber.Ctx) error {
	county := strings.TrimSpace(c.FormValue("county"))
	district := strings.TrimSpace(c.FormValue("district"))
	if county == "" || district == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "missing county/district"})
	}

	point, ok := geo.Lookup(county, district)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "unknown area"})
	}

	session := sessionID(c)
	if err := h.renderer.SetLocation(c.Context(), session, point, h.view.Snapshot().RadiusKm); err != nil {
		h.logger.Error("api.set_region_failed",
			zap.String("county", county),
			zap.String("district", district),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "persist failed"})
	}
	return c.JSON(fiber.Map{"ok": true, "lat": point.Lat, "lng": point.Lng})
}

// SetBrand switches the brand filter without moving the map.
func (h *Handler) SetBrand(c *fiber.Ctx) error {
	brand := strings.TrimSpace(c.FormValue("brand"))
	h.renderer.SetBrand(c.Context(), brand)
	return c.JSON(fiber.Map{"ok": true, "brand": catalog.NormalizeBrand(brand)})
}

// Geocode resolves a free-text address and re-centers the view on it.
func (h *Handler) Geocode(c *fiber.Ctx) error {
	if h.geocoder == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "geocoding unavailable"})
	}

	query := c.Query("q")
	session := sessionID(c)

	res, err := h.geocoder.Search(c.Context(), session, query)
	if errors.Is(err, geocode.ErrNoResults) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "no results"})
	}
	if err != nil {
		h.logger.Error("api.geocode_failed", zap.String("q", query), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"ok": false, "error": "geocoding failed"})
	}

	if h.renderer != nil {
		if err := h.renderer.SetLocation(c.Context(), session, res.Point, h.view.Snapshot().RadiusKm); err != nil {
			h.logger.Warn("api.geocode_recenter_failed", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"ok":           true,
		"lat":          res.Point.Lat,
		"lng":          res.Point.Lng,
		"display_name": res.DisplayName,
	})
}

// AddressHistory returns the session's recent addresses. The geocode
// client owns the history once wired; without one the store is read
// directly.
func (h *Handler) AddressHistory(c *fiber.Ctx) error {
	var addrs []string
	var err error
	if h.geocoder != nil {
		addrs, err = h.geocoder.History(c.Context(), sessionID(c))
	} else {
		addrs, err = h.store.AddressHistory(c.Context(), sessionID(c))
	}
	if err != nil {
		h.logger.Error("api.address_history_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "history lookup failed"})
	}
	if addrs == nil {
		addrs = []string{}
	}
	return c.JSON(fiber.Map{"addresses": addrs})
}

// FavoritesAdd records a favorite.
func (h *Handler) FavoritesAdd(c *fiber.Ctx) error {
	var req favoritesAddRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	productID, ok := req.resolveProductID()
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "missing product_id"})
	}

	if err := h.store.AddFavorite(c.Context(), req.UserID, productID); err != nil {
		h.logger.Error("api.favorites_add_failed",
			zap.Int64("product_id", productID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "persist failed"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// FavoritesAddNotify resolves the active special for a freshly-favorited
// product, records a user notification and returns the sale info.
func (h *Handler) FavoritesAddNotify(c *fiber.Ctx) error {
	var req favoritesAddRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(saleResponse{OK: false, Error: "missing product_id"})
	}
	productID, ok := req.resolveProductID()
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(saleResponse{OK: false, Error: "missing product_id"})
	}

	sale, err := h.catalog.SaleInfo(c.Context(), productID)
	if err != nil {
		h.logger.Error("api.sale_lookup_failed",
			zap.Int64("product_id", productID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(saleResponse{OK: false, Error: "sale lookup failed"})
	}
	if sale == nil {
		return c.JSON(saleResponse{OK: true})
	}

	h.recordSale(c.Context(), req.UserID, sale)
	return c.JSON(saleResponse{OK: true, Sale: sale})
}

// recordSale persists the notification and fans it out. Failures only log;
// the API answer is already decided.
func (h *Handler) recordSale(ctx context.Context, userID int64, sale *model.SaleInfo) {
	message := fmt.Sprintf("你加入喜好項目的「%s」正在特價，現在只要 %s！",
		sale.ProductName, formatPrice(sale.FinalPrice))

	if err := h.store.InsertNotification(ctx, userID, sale.ProductID, sale.ProductName, message); err != nil {
		h.logger.Warn("api.notification_insert_failed",
			zap.Int64("product_id", sale.ProductID),
			zap.Error(err))
	}

	if h.queue != nil {
		err := h.queue.Publish(ctx, notify.UserNotification{
			UserID:    userID,
			ProductID: sale.ProductID,
			Message:   message,
		})
		if err != nil {
			h.logger.Warn("api.notification_enqueue_failed",
				zap.Int64("product_id", sale.ProductID),
				zap.Error(err))
		}
	}

	if h.events != nil {
		err := h.events.PublishSaleNotified(ctx, model.SaleNotifiedEvent{
			ProductID:   sale.ProductID,
			ProductName: sale.ProductName,
			FinalPrice:  sale.FinalPrice,
		})
		if err != nil {
			h.logger.Warn("api.sale_event_failed",
				zap.Int64("product_id", sale.ProductID),
				zap.Error(err))
		}
	}
}

// RecoPrefs saves the categories used for preference-weighted spotlight
// ordering.
func (h *Handler) RecoPrefs(c *fiber.Ctx) error {
	var req struct {
		UserID     int64    `json:"user_id"`
		Categories []string `json:"categories"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	if req.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "missing user_id"})
	}

	if err := h.store.SaveRecoPrefs(c.Context(), req.UserID, req.Categories); err != nil {
		h.logger.Error("api.reco_prefs_failed",
			zap.Int64("user_id", req.UserID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "persist failed"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

func formatPrice(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
