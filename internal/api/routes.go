package api

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foodmap/foodmap/internal/metrics"
	"github.com/foodmap/foodmap/internal/notify"
	"github.com/foodmap/foodmap/internal/store"
)

const sessionCookie = "fm_session"

// sessionID returns the request's session id, minted by SessionMiddleware.
func sessionID(c *fiber.Ctx) string {
	if sid, ok := c.Locals("session_id").(string); ok && sid != "" {
		return sid
	}
	return c.Cookies(sessionCookie)
}

// SessionMiddleware guarantees every request carries a session cookie.
func SessionMiddleware(c *fiber.Ctx) error {
	sid := c.Cookies(sessionCookie)
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     sessionCookie,
			Value:    sid,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Expires:  time.Now().AddDate(1, 0, 0),
		})
	}
	c.Locals("session_id", sid)
	return c.Next()
}

// MetricsMiddleware counts requests by route and status.
func MetricsMiddleware(c *fiber.Ctx) error {
	err := c.Next()
	route := c.Route().Path
	metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Response().StatusCode())).Inc()
	return err
}

// RegisterRoutes mounts all endpoints. disp handles inbound websocket
// events and may be nil, in which case inbound messages are discarded.
func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store, h *Handler, hub *notify.Hub, disp *HubDispatcher) {
	app.Use(SessionMiddleware)
	app.Use(MetricsMiddleware)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":  "ok",
			"store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if nc == nil || !nc.IsConnected() {
			checks["nats"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	app.Get("/api/spotlight_products", h.SpotlightProducts)
	app.Get("/api/stores", h.Stores)
	app.Get("/api/recommendations", h.Recommendations)
	app.Get("/api/map", h.MapSnapshot)
	app.Get("/api/carousel", h.CarouselState)
	app.Get("/api/address_history", h.AddressHistory)
	app.Get("/api/areas", h.Areas)
	app.Get("/geocode", h.Geocode)

	app.Post("/set_center", h.SetCenter)
	app.Post("/set_region", h.SetRegion)
	app.Post("/set_brand", h.SetBrand)
	app.Post("/api/favorites/add", h.FavoritesAdd)
	app.Post("/api/favorites/add_notify", h.FavoritesAddNotify)
	app.Post("/api/user/reco_prefs", h.RecoPrefs)

	if hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
			detach := hub.Register(conn)
			defer detach()
			for {
				_, raw, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if disp != nil {
					disp.Dispatch(raw)
				}
			}
		}))
	}
}
