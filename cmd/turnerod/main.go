package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"turnero-desk/config"
	"turnero-desk/internal/action"
	"turnero-desk/internal/api"
	"turnero-desk/internal/auth"
	"turnero-desk/internal/db"
	"turnero-desk/internal/desk"
	"turnero-desk/internal/events"
	"turnero-desk/internal/model"
	"turnero-desk/internal/notification"
	"turnero-desk/internal/poller"
	"turnero-desk/internal/reception"
	"turnero-desk/internal/remote"
	"turnero-desk/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
	}
	if url := os.Getenv("BACKEND_URL"); url != "" {
		cfg.Backend.URL = url
	}
	if cfg.Backend.URL == "" {
		log.Fatal().Msg("backend.url must be configured")
	}
	log.Info().Str("path", configPath).Str("backend", cfg.Backend.URL).Msg("configuration loaded")

	estado, err := model.ParseEstado(cfg.Desk.Estado)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid desk.estado")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := remote.New(cfg.Backend)
	authSvc := auth.NewService(client, appStore, cfg.Push.DeviceToken, cfg.Push.Platform)

	clock := clockwork.NewRealClock()
	hub := events.NewHub(64, clock)
	catalog := model.NewCatalog(areasOf(cfg.Areas), cfg.Variants)

	var delivery notification.Delivery
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		delivery = notification.NewPushDelivery(appStore, *webpushOptions)
	} else {
		log.Warn().Msg("VAPID keys are not configured; system notifications stay in the browser tab")
	}

	sound := notification.NewSound(notification.EventSpeaker{Publisher: hub}, clock, cfg.Notifier.SoundOn())
	board := notification.NewBoard(clock, hub, cfg.Notifier.ToastDuration)
	system := notification.NewSystemNotifier(clock, delivery, hub, notification.ParsePermission(cfg.Notifier.Permission), cfg.Notifier.SystemTTL)
	notifier := notification.NewNotifier(sound, board, system, hub)

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, notifier)
	pool.Start(ctx)

	filter := model.Filter{Estado: estado}
	if cfg.Desk.Floor >= 0 {
		filter = model.FloorFilter(estado, cfg.Desk.Floor)
	}
	turnPoller := poller.New(client, authSvc, filter,
		poller.WithClock(clock),
		poller.WithInterval(cfg.Poller.Interval),
		poller.WithPublisher(hub),
	)
	binder := desk.NewBinder(turnPoller, estado, cfg.Desk.Floor, pool.Dispatch)
	authSvc.OnChange(binder.Apply)

	landing, err := authSvc.Restore(ctx)
	if errors.Is(err, auth.ErrNotLoggedIn) {
		landing, err = loginFromEnv(ctx, authSvc)
	}
	if err != nil {
		log.Warn().Err(err).Msg("desk is not logged in; waiting for POST /api/login")
	} else {
		log.Info().Str("view", string(landing.View)).Int("piso", landing.Floor).Msg("desk logged in")
	}

	submitter := action.New(client, authSvc, turnPoller, turnPoller)
	receptionSvc := reception.NewService(client, authSvc, catalog, turnPoller)

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		turnPoller.Run(ctx)
	}()
	go refreshOnTap(ctx, hub, turnPoller)

	router := api.NewRouter(cfg.Server, api.Deps{
		Turns:         turnPoller,
		Actions:       submitter,
		Reception:     receptionSvc,
		Sessions:      authSvc,
		Subscriptions: appStore,
		Sound:         sound,
		Toasts:        board,
		System:        system,
		Hub:           hub,
		Catalog:       catalog,
		WebPush:       webpushOptions,
		Actor:         cfg.Desk.Actor,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server ListenAndServe")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server Shutdown")
	}

	cancel()
	<-pollerDone
	pool.Wait()
	log.Info().Msg("server gracefully stopped")
}

func loginFromEnv(ctx context.Context, svc *auth.Service) (auth.Landing, error) {
	username, password := os.Getenv("TURNERO_USERNAME"), os.Getenv("TURNERO_PASSWORD")
	if username == "" {
		return auth.Landing{}, auth.ErrNotLoggedIn
	}
	return svc.Login(ctx, username, password)
}

// refreshOnTap polls right away when the user taps a notification so the
// floor screen shows the tapped turn.
func refreshOnTap(ctx context.Context, hub *events.Hub, p *poller.Poller) {
	taps, cancel := hub.Subscribe(events.StreamTapped)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-taps:
			if !ok {
				return
			}
			log.Info().Int64("turn_id", e.TurnID).Msg("notification tapped")
			p.Refresh()
		}
	}
}

func areasOf(cfg []config.AreaConfig) []model.Area {
	areas := make([]model.Area, 0, len(cfg))
	for _, a := range cfg {
		areas = append(areas, model.Area{Key: a.Key, Nombre: a.Nombre, Piso: a.Piso})
	}
	return areas
}
