package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mf-eats-backend/internal/config"
	"mf-eats-backend/internal/events"
	mw "mf-eats-backend/internal/middleware"
	"mf-eats-backend/internal/models"
	"mf-eats-backend/internal/modules/delivery"
	"mf-eats-backend/internal/modules/dispatch"
	"mf-eats-backend/internal/modules/drivers"
	"mf-eats-backend/internal/modules/identity"
	"mf-eats-backend/internal/modules/ledger"
	"mf-eats-backend/internal/modules/orders"
	"mf-eats-backend/internal/modules/restaurants"
	"mf-eats-backend/internal/storage"
	"mf-eats-backend/pkg/logger"
	"mf-eats-backend/pkg/notify"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const (
	dispatchSweepEvery  = 15 * time.Second
	releaseSweepEvery   = 30 * time.Second
	reconcileSweepEvery = time.Minute
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		panic("load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})
	log.Info().Str("env", cfg.Env).Msg("starting api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	bus := events.NewBus()

	var notifier notify.Notifier = notify.Noop{}
	if cfg.NotifySender != "" {
		ses, err := notify.NewSESNotifier(ctx, cfg.AWSRegion, cfg.NotifySender)
		if err != nil {
			log.Fatal().Err(err).Msg("configure ses notifier")
		}
		notifier = ses
	}

	identitySvc := identity.NewService(identity.NewRepository(pool), bus, log,
		cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL())
	ordersSvc := orders.NewService(orders.NewRepository(pool), bus, notifier, log, orders.Policy{
		MinOrderAmount: cfg.MinOrderAmount,
		DeliveryFee:    cfg.MinDeliveryFee,
	})
	deliverySvc := delivery.NewService(delivery.NewRepository(pool), bus, log, cfg.CommissionRate)
	dispatchSvc := dispatch.NewService(dispatch.NewRepository(pool), dispatch.NearestDriver{}, bus, log)
	ledgerSvc := ledger.NewService(ledger.NewRepository(pool), log, cfg.CommissionRate)
	driversSvc := drivers.NewService(drivers.NewRepository(pool), log)
	restaurantsSvc := restaurants.NewService(restaurants.NewRepository(pool), log)

	identityH := identity.NewHandler(identitySvc)
	ordersH := orders.NewHandler(ordersSvc)
	deliveryH := delivery.NewHandler(deliverySvc)
	dispatchH := dispatch.NewHandler(dispatchSvc)
	ledgerH := ledger.NewHandler(ledgerSvc)
	driversH := drivers.NewHandler(driversSvc)
	restaurantsH := restaurants.NewHandler(restaurantsSvc)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.ClientOrigin},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, mw.ElevatedHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")

	// Public surface: signup, login and restaurant browsing.
	api.POST("/auth/signup", identityH.Signup)
	api.POST("/auth/login", identityH.Login)
	api.GET("/restaurants", restaurantsH.ListActive)
	api.GET("/restaurants/:restaurantId", restaurantsH.Get)
	api.GET("/restaurants/:restaurantId/menu", restaurantsH.Menu)

	authed := api.Group("", mw.Authenticated(identitySvc))
	authed.POST("/auth/signout", identityH.SignOut)
	authed.POST("/auth/elevate", identityH.Elevate)
	authed.GET("/me", identityH.Me)

	// Orders. Checkout and history are client operations; reads and
	// transitions are authorized per order in the service.
	authed.POST("/orders", ordersH.Checkout, mw.RequireRoles(models.RoleClient))
	authed.GET("/orders", ordersH.ListMine, mw.RequireRoles(models.RoleClient))
	authed.GET("/orders/:orderId", ordersH.GetOrder)
	authed.PATCH("/orders/:orderId/status", ordersH.Advance,
		mw.RequireRoles(models.RoleRestaurant, models.RoleDriver, models.RoleAdmin))
	authed.DELETE("/orders/:orderId", ordersH.Cancel,
		mw.RequireRoles(models.RoleClient, models.RoleRestaurant, models.RoleAdmin))
	authed.GET("/orders/:orderId/delivery", deliveryH.Track,
		mw.RequireRoles(models.RoleClient, models.RoleDriver, models.RoleAdmin))

	// Restaurant owner surface.
	authed.POST("/restaurants", restaurantsH.Create, mw.RequireRoles(models.RoleRestaurant))
	authed.GET("/restaurants/mine", restaurantsH.Mine, mw.RequireRoles(models.RoleRestaurant))
	authed.PATCH("/restaurants/:restaurantId/active", restaurantsH.SetActive, mw.RequireRoles(models.RoleRestaurant))
	authed.POST("/restaurants/:restaurantId/menu", restaurantsH.AddMenuItem, mw.RequireRoles(models.RoleRestaurant))
	authed.PUT("/menu-items/:itemId", restaurantsH.UpdateMenuItem, mw.RequireRoles(models.RoleRestaurant))
	authed.GET("/restaurants/:restaurantId/orders", ordersH.RestaurantInbox, mw.RequireRoles(models.RoleRestaurant))

	// Driver surface.
	authed.POST("/drivers/apply", driversH.Apply)
	authed.GET("/drivers/me", driversH.Me, mw.RequireRoles(models.RoleDriver))
	authed.PATCH("/drivers/availability", driversH.SetAvailability, mw.RequireRoles(models.RoleDriver))
	authed.POST("/drivers/location", driversH.Ping, mw.RequireRoles(models.RoleDriver))
	authed.GET("/deliveries/active", deliveryH.Active, mw.RequireRoles(models.RoleDriver))
	authed.PATCH("/deliveries/:deliveryId/status", deliveryH.Advance, mw.RequireRoles(models.RoleDriver))

	// Admin surface.
	admin := authed.Group("/admin", mw.RequireRoles(models.RoleAdmin))
	admin.POST("/dispatch/orders/:orderId", dispatchH.Dispatch)
	admin.GET("/ledger/summary", ledgerH.Summary)
	admin.GET("/ledger/orders/:orderId", ledgerH.OrderHistory)
	admin.PUT("/users/:userId/role", identityH.AssignRole)
	admin.GET("/drivers/pending", driversH.ListPendingApproval)
	admin.POST("/drivers/:driverId/approve", driversH.Approve)

	// Background sweeps: dispatch ready orders, release timed-out
	// assignments, repair missing settlements.
	go sweep(ctx, dispatchSweepEvery, func(ctx context.Context) {
		if n, err := dispatchSvc.DispatchReady(ctx); err != nil {
			log.Error().Err(err).Msg("dispatch sweep")
		} else if n > 0 {
			log.Info().Int("dispatched", n).Msg("dispatch sweep")
		}
	})
	go sweep(ctx, releaseSweepEvery, func(ctx context.Context) {
		if n, err := dispatchSvc.ReleaseExpired(ctx, cfg.DriverAcceptTimeout); err != nil {
			log.Error().Err(err).Msg("release sweep")
		} else if n > 0 {
			log.Warn().Int("released", n).Msg("release sweep")
		}
	})
	go sweep(ctx, reconcileSweepEvery, func(ctx context.Context) {
		if n, err := ledgerSvc.Reconcile(ctx); err != nil {
			log.Error().Err(err).Msg("ledger reconcile")
		} else if n > 0 {
			log.Warn().Int("repaired", n).Msg("ledger reconcile")
		}
	})

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("api stopped")
}

func sweep(ctx context.Context, every time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
