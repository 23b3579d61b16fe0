package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pawfect/internal/dispatch/adapters/in/in_amqp"
	"pawfect/internal/dispatch/adapters/in/in_ws"
	"pawfect/internal/dispatch/adapters/in/transport"
	"pawfect/internal/dispatch/adapters/out/out_amqp"
	"pawfect/internal/dispatch/adapters/out/out_ws"
	"pawfect/internal/dispatch/adapters/out/repo"
	"pawfect/internal/dispatch/application/usecase"
	"pawfect/internal/shared/auth"
	"pawfect/internal/shared/config"
	db_conn "pawfect/internal/shared/db"
	"pawfect/internal/shared/logger"
	"pawfect/internal/shared/mq"
	"pawfect/internal/shared/ws"
)

// App wires the whole dispatch service together and owns the lifecycle of
// its external connections.
type App struct {
	cfg    config.Config
	log    *logger.Logger
	pool   *pgxpool.Pool
	rabbit *mq.RabbitMQ
	hub    *ws.Hub
	server *http.Server

	consumer *in_amqp.OrderReadyConsumer
}

func NewApp(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	pool, err := db_conn.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if err := db_conn.Migrate(ctx, pool, log); err != nil {
		db_conn.Close(pool, log)
		return nil, fmt.Errorf("bootstrap: migrate: %w", err)
	}

	rabbit, err := mq.NewRabbitMQ(ctx, cfg.RabbitMQ, log)
	if err != nil {
		db_conn.Close(pool, log)
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if err := mq.SetupTopology(rabbit, log); err != nil {
		rabbit.Close()
		db_conn.Close(pool, log)
		return nil, fmt.Errorf("bootstrap: topology: %w", err)
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	hub := ws.NewHub(jwtService.ExtractIdentity, log)

	// Outbound adapters.
	orders := repo.NewOrderPgRepository(pool, log)
	deliveries := repo.NewDeliveryPgRepository(pool, log)
	availability := repo.NewAvailabilityPgRepository(pool, log)
	notifier := out_ws.NewDispatchNotifier(hub)
	events := out_amqp.NewEventPublisher(rabbit, log)

	// Use cases.
	tracker := usecase.NewTracker()
	notifyReady := usecase.NewNotifyOrderReadyService(orders, availability, notifier, tracker, cfg.Dispatch.StaleAfter, log)
	accept := usecase.NewAcceptOrderService(orders, availability, notifier, events, tracker, log)
	manualAssign := usecase.NewManualAssignService(orders, availability, notifier, events, tracker, log)
	heartbeat := usecase.NewHeartbeatService(availability, log)
	setAvailability := usecase.NewSetAvailabilityService(availability, log)
	listOrders := usecase.NewListAvailableOrdersService(orders, tracker, log)
	updateStatus := usecase.NewUpdateDeliveryStatusService(deliveries, orders, availability, notifier, events, log)
	transition := usecase.NewTransitionOrderService(orders, deliveries, availability, notifier, events, notifyReady, tracker, log)
	riderDeliveries := usecase.NewRiderDeliveriesService(deliveries)

	// Inbound adapters.
	wsHandler := in_ws.NewRiderWSHandler(accept, heartbeat, updateStatus, setAvailability, listOrders, log)
	hub.SetMessageHandler(wsHandler.Handle)
	hub.SetPresenceHandler(wsHandler.OnPresence)

	consumer := in_amqp.NewOrderReadyConsumer(rabbit, notifyReady, log)

	httpHandler := transport.NewHandler(
		accept, manualAssign, transition, listOrders,
		updateStatus, riderDeliveries, heartbeat, setAvailability,
		jwtService, log,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Service.HTTPPort),
		Handler:           httpHandler.Routes(cfg.Service.WSPath, hub.ServeWS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:      cfg,
		log:      log,
		pool:     pool,
		rabbit:   rabbit,
		hub:      hub,
		server:   server,
		consumer: consumer,
	}, nil
}

// Run starts the hub, the queue consumer and the HTTP listener. Blocks until
// the server stops.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run(ctx)

	if err := a.consumer.Start(ctx); err != nil {
		return fmt.Errorf("run: consumer: %w", err)
	}

	a.log.Info(logger.Entry{
		Action:  "service_started",
		Message: "dispatch service listening",
		Additional: map[string]any{
			"addr":    a.server.Addr,
			"ws_path": a.cfg.Service.WSPath,
		},
	})

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("run: http: %w", err)
	}
	return nil
}

// Shutdown drains the HTTP server, then tears down the broker and pool.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error(logger.Entry{
			Action:  "shutdown_failed",
			Message: "http server shutdown error",
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	a.rabbit.Close()
	db_conn.Close(a.pool, a.log)
	a.log.Info(logger.Entry{
		Action:  "service_stopped",
		Message: "dispatch service stopped",
	})
}
