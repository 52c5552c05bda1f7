package app

import (
	"context"
	"time"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/middleware"
	"github.com/comandaclub/comanda/internal/events"
	"github.com/comandaclub/comanda/internal/kds"
	"github.com/comandaclub/comanda/internal/kitchen"
	"github.com/comandaclub/comanda/internal/mongo"
	"github.com/comandaclub/comanda/pkg"
	"github.com/comandaclub/comanda/pkg/event"
)

const (
	AppName    = "comanda-kitchen"
	AppVersion = "0.1.0"
)

// App encapsulates the kitchen routing service.
type App struct {
	config     *apt.Config
	logger     apt.Logger
	micro      *apt.Micro
	ticketRepo *mongo.TicketRepo
}

func New(config *apt.Config, logger apt.Logger) (*App, error) {
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize sets up all dependencies and components.
func (a *App) Initialize(ctx context.Context) error {
	a.ticketRepo = mongo.NewTicketRepo(a.config, a.logger)

	natsURL, _ := a.config.GetString("nats.url")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	var ticketStream *pkg.NATSStream
	var orderSubscriber *pkg.NATSSubscriber
	var feedSubscriber *pkg.NATSSubscriber
	var ticketPublisher aptevents.Publisher

	streamEnabled, _ := a.config.GetString("nats.stream.enabled")
	if streamEnabled == "true" {
		// Persistent stream for kitchen.tickets so the board projection can
		// replay events after a restart.
		streamCfg := pkg.NATSStreamConfig{
			URL:          natsURL,
			StreamName:   "KITCHEN_EVENTS",
			Topic:        event.KitchenTicketsTopic,
			ConsumerName: "kitchen-publisher",
			MaxAge:       24 * time.Hour,
		}
		var err error
		ticketStream, err = pkg.NewNATSStream(streamCfg)
		if err != nil {
			return err
		}
		a.logger.Info("NATS stream initialized for persistent ticket events")
		ticketPublisher = ticketStream
	} else {
		publisher, err := pkg.NewNATSPublisher(natsURL)
		if err != nil {
			return err
		}
		ticketPublisher = publisher
	}

	var err error
	orderSubscriber, err = pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		return err
	}

	feedSubscriber, err = pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		return err
	}

	var streamForCache aptevents.StreamConsumer
	if ticketStream != nil {
		streamForCache = ticketStream
	}
	ticketCache := kitchen.NewTicketStateCache(streamForCache, a.ticketRepo, a.logger)

	service := kitchen.NewService(a.ticketRepo, ticketCache, ticketPublisher, a.logger)
	eventSubscriber := events.NewOrderSubscriber(orderSubscriber, service, a.logger)

	dispatcher := kds.NewDispatcher(feedSubscriber, event.KitchenTicketsTopic, a.logger)
	sseHandler := kds.NewSSEHandler(dispatcher, a.logger)

	handler := kitchen.NewHandler(kitchen.HandlerDeps{
		Service: service,
		Cache:   ticketCache,
	}, a.config, a.logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	lifecycles := []interface{}{a.ticketRepo, eventSubscriber, dispatcher}

	// Warm the board projection once the repo is up; seed demo tickets first
	// when enabled so the warm pass picks them up.
	cacheLifecycle := apt.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			if err := kitchen.ApplyDemoSeeds(ctx, a.config, a.ticketRepo, ticketCache, a.ticketRepo.GetDatabase(), a.logger); err != nil {
				a.logger.Errorf("Demo seeding failed (non-fatal): %v", err)
			}
			if err := ticketCache.Warm(ctx); err != nil {
				a.logger.Info("failed to warm ticket cache", "error", err)
			}
			return nil
		},
	}
	lifecycles = append(lifecycles, cacheLifecycle)

	if ticketStream != nil {
		lifecycles = append(lifecycles, apt.LifecycleHooks{
			OnStop: func(context.Context) error { return ticketStream.Close() },
		})
	}
	lifecycles = append(lifecycles, apt.LifecycleHooks{
		OnStop: func(context.Context) error { return orderSubscriber.Close() },
	})
	lifecycles = append(lifecycles, apt.LifecycleHooks{
		OnStop: func(context.Context) error { return feedSubscriber.Close() },
	})

	options := []apt.Option{
		apt.WithConfig(a.config),
		apt.WithLogger(a.logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler, sseHandler),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(AppName),
	}

	a.micro = apt.NewMicro(options...)
	return nil
}

// Run starts the application.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}
