package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/api"
	"github.com/foodmap/foodmap/internal/carousel"
	"github.com/foodmap/foodmap/internal/catalog"
	"github.com/foodmap/foodmap/internal/config"
	"github.com/foodmap/foodmap/internal/favorites"
	"github.com/foodmap/foodmap/internal/geocode"
	"github.com/foodmap/foodmap/internal/httpclient"
	"github.com/foodmap/foodmap/internal/maprender"
	"github.com/foodmap/foodmap/internal/notify"
	"github.com/foodmap/foodmap/internal/popup"
	"github.com/foodmap/foodmap/internal/publisher"
	"github.com/foodmap/foodmap/internal/rate"
	"github.com/foodmap/foodmap/internal/reminder"
	"github.com/foodmap/foodmap/internal/store"
	"github.com/foodmap/foodmap/internal/view"
	"github.com/foodmap/foodmap/pkg/eventbus"
	"github.com/foodmap/foodmap/pkg/geo"
	"github.com/foodmap/foodmap/pkg/logger"
	"github.com/foodmap/foodmap/pkg/model"
	pkgsecrets "github.com/foodmap/foodmap/pkg/secrets"
)

// serverSession identifies the service's own view/reminder state in Redis.
const serverSession = "server"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [foodmap]...")

	// --- Database DSN (Secrets Manager outside dev) ---
	dsn := cfg.DatabaseURL
	if cfg.Env != "dev" {
		awsProvider, err := pkgsecrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to init AWS provider", "error", err)
		}
		resolver := pkgsecrets.NewResolver(awsProvider, time.Hour)
		secretCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		secret, err := resolver.Resolve(secretCtx, cfg.DSNSecret)
		cancel()
		if err != nil {
			logg.Fatalw("failed to resolve DSN secret", "key", cfg.DSNSecret, "error", err)
		}
		if v, ok := secret["dsn"]; ok && v != "" {
			dsn = v
		}
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}
	defer nc.Drain() //nolint:errcheck

	pub, err := publisher.New(logger.L(), nc, cfg.ServiceName)
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Notification queue (RabbitMQ) ---
	var queue api.NotificationQueue
	rabbit, err := notify.NewQueuePublisher(logger.L(), cfg.RabbitURL, "foodmap.notifications")
	if err != nil {
		logg.Warnw("rabbitmq unavailable, notifications stay local", "error", err)
	} else {
		defer rabbit.Close()
		queue = rabbit
	}

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, dsn, logger.L())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}
	defer st.Close() //nolint:errcheck

	// --- Shared view state ---
	bus := eventbus.New()
	center, radius, err := st.LoadCenter(ctx, serverSession)
	if err != nil {
		logg.Warnw("center load failed, using default", "error", err)
		center, radius = geo.DefaultCenter, cfg.DefaultRadiusKm
	}
	viewState := view.New(bus, center, radius)

	// --- Catalog + map ---
	cat := catalog.New(logger.L(), st, cfg.SpotlightCacheTTL)
	renderer := maprender.New(logger.L(), cat, st, viewState, cfg.DefaultZoom)
	renderer.Render(ctx, center, radius, "")

	// --- Hub + popup ---
	hub := notify.NewHub(logger.L())
	pp := popup.New(logger.L())
	pp.OnChange(func(stt popup.State) { hub.Broadcast("popup.state", stt) })

	// --- Spotlight carousel ---
	eng := carousel.New(logger.L(), carousel.Config{
		AutoplayInterval: cfg.AutoplayInterval,
		TransitionTime:   cfg.TransitionTime,
		CloneResetDelay:  cfg.CloneResetDelay,
	}, func(ctx context.Context, snap view.Snapshot) ([]model.Product, error) {
		return cat.Spotlight(ctx, catalog.Query{
			Center:    snap.Center,
			HasCenter: true,
			RadiusKm:  snap.RadiusKm,
			Brand:     snap.Brand,
			Limit:     cfg.SpotlightLimit,
		})
	})
	eng.OnFrame(func(f carousel.Frame) { hub.Broadcast("carousel.frame", f) })
	eng.OnTrack(func(track []carousel.Card, hidden bool) {
		hub.Broadcast("carousel.track", fiber.Map{"track": track, "hidden": hidden})
	})
	eng.Reload(ctx, viewState.Snapshot())

	// Components re-fetch whenever the shared view changes; location moves
	// also go out to NATS for downstream consumers.
	bus.Subscribe(model.ViewChangedEvent{}, func(event any) {
		ev, ok := event.(model.ViewChangedEvent)
		if !ok {
			return
		}
		eng.Reload(ctx, viewState.Snapshot())
		hub.Broadcast("view.changed", ev)
		if err := pub.PublishViewChanged(ctx, ev); err != nil {
			logg.Warnw("view event publish failed", "error", err)
		}
	})

	// --- Outbound HTTP (geocoding + interceptable client) ---
	rateMgr := rate.NewManager(rate.Config{RequestsPerSecond: 1, Burst: 1})
	outbound := httpclient.New(logger.L(), rateMgr, nil, 2, "outbound")

	geocoder := geocode.New(logger.L(), outbound, cfg.NominatimBaseURL, cfg.GeocodeContact, st)

	notifyURL := fmt.Sprintf("http://localhost:%d/api/favorites/add_notify", cfg.Port)
	hook := favorites.New(logger.L(), outbound, notifyURL,
		func(ctx context.Context, productID int64) (*model.Product, error) {
			snap := viewState.Snapshot()
			q := catalog.Query{Center: snap.Center, HasCenter: true, RadiusKm: snap.RadiusKm}
			for _, lookup := range []func(context.Context, catalog.Query) ([]model.Product, error){
				cat.Spotlight, cat.Recommendations,
			} {
				products, err := lookup(ctx, q)
				if err != nil {
					continue
				}
				for i := range products {
					if products[i].ProductID == productID {
						return &products[i], nil
					}
				}
			}
			return nil, nil
		}, pp)
	outbound.Use(hook.Wrap())

	// --- Daily reminder ---
	sched := reminder.New(logger.L(), st, pp, serverSession, cfg.ReminderAt, cfg.ReminderCatchup)
	go sched.Run(ctx)

	// --- HTTP API ---
	app := fiber.New(fiber.Config{
		AppName:               cfg.ServiceName,
		DisableStartupMessage: true,
	})
	h := api.NewHandler(logger.L(), cat, st, viewState, renderer, eng, geocoder, queue, pub)
	disp := api.NewHubDispatcher(logger.L(), eng, pp, sched)
	api.RegisterRoutes(app, nc, st, h, hub, disp)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[foodmap] running",
		"nats", cfg.NATSURL,
		"redis", cfg.RedisAddr,
		"port", cfg.Port)

	<-ctx.Done()
	stop()
	logg.Info("shutting down [foodmap]...")

	eng.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber shutdown failed", "error", err)
	}
	pub.Close()
	logger.L().Info("bye", zap.String("service", cfg.ServiceName))
}
