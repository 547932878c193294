package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/kafka"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/realtime"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/ticketid"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the realtime listener",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	if cfg.Postgres.RunMigrations {
		if err := migrateUp(ctx, rt); err != nil {
			return err
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		hubPresence    realtime.PresenceStore
		presenceReader handlers.PresenceReader
	)
	if redis != nil {
		presence := realtime.NewRedisPresence(redis.Client, cfg.Redis.PresenceTTL())
		hubPresence = presence
		presenceReader = presence
	}
	hub := realtime.NewHub(hubPresence, logger.Named("realtime"))

	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))
	producer := kafka.NewProducer(cfg.Kafka, logger.Named("kafka"))
	notifications := service.NewNotificationService(dispatcher, producer, hub, logger.Named("notifications"))
	stopWorker := worker.StartNotificationWorker(notifications, producer, logger)
	defer stopWorker()

	audit := service.NewAuditService(service.AuditDependencies{Store: rt.store, Tx: rt.tx, Logger: logger.Named("audit")})
	if _, err := audit.SelfRepair(ctx); err != nil {
		// the API stays up; writes that need the audit table will fail loudly
		logger.Error("audit self-repair at startup failed", zap.Error(err))
	}

	ids := ticketid.NewGenerator(rt.store.Tickets, logger.Named("ticketid"))
	tickets := service.NewTicketService(service.TicketDependencies{
		Store:         rt.store,
		IDs:           ids,
		Dispatcher:    dispatcher,
		Logger:        logger.Named("tickets"),
		IDMaxAttempts: cfg.Tickets.IDMaxAttempts,
	})
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Tx:         rt.tx,
		Audit:      audit,
		Dispatcher: dispatcher,
		Logger:     logger.Named("lifecycle"),
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		Tx:         rt.tx,
		Audit:      audit,
		Dispatcher: dispatcher,
		Logger:     logger.Named("assignments"),
	})
	chat := service.NewChatService(service.ChatDependencies{
		Store:      rt.store,
		Tx:         rt.tx,
		Dispatcher: dispatcher,
		Logger:     logger.Named("chat"),
	})
	templates := service.NewTemplateService(rt.store.Templates, logger.Named("templates"))
	authService := service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: rt.store.Users})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), rt.store.Users)

	metrics := observability.NewMetrics()
	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, rt.pg, redis, metrics),
		Users:     handlers.NewUsersHandler(authService),
		Templates: handlers.NewTemplatesHandler(templates),
		Tickets: handlers.NewTicketsHandler(handlers.TicketsHandlerDeps{
			Tickets:     tickets,
			Lifecycle:   lifecycle,
			Audit:       audit,
			Assignments: assignments,
			Chat:        chat,
		}),
		Messages:       handlers.NewMessagesHandler(chat),
		Presence:       handlers.NewPresenceHandler(presenceReader, hub),
		Admin:          handlers.NewAdminHandler(audit, chat),
		AuthMiddleware: authMiddleware,
	})

	wsServer := realtime.NewServer(cfg.Realtime, hub, authMiddleware, logger.Named("realtime"))

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http listener starting", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	group.Go(func() error {
		return wsServer.ListenAndServe(gctx)
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.Shutdown()
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
