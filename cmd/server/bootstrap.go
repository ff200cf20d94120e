package main

import (
	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/internal/handlers"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/internal/store"
	"github.com/teamforge/teamforge/internal/utils"
	"github.com/teamforge/teamforge/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg           *config.Config
	membership    *services.MembershipService
	audit         *services.AuditService
	notifications *services.NotificationService
	expiry        *services.ExpiryService
	taskQueue     services.TaskQueue
	worker        *services.Worker

	authHandler        *handlers.AuthHandler
	teamHandler        *handlers.TeamHandler
	memberHandler      *handlers.MemberHandler
	inviteHandler      *handlers.InviteHandler
	joinRequestHandler *handlers.JoinRequestHandler
	channelHandler     *handlers.NotificationChannelHandler
	userHandler        *handlers.UserHandler
	auditHandler       *handlers.AuditHandler
	healthHandler      *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	db := models.GetDB()
	teamStore := store.NewTeamStore(db)
	auditService := services.NewAuditService(db)

	// User references resolve through LDAP when enabled, otherwise locally.
	var directory services.UserDirectory
	if cfg.LDAP.Enabled {
		directory = services.NewLDAPDirectory(&cfg.LDAP, db)
	} else {
		directory = services.NewDBUserDirectory(db)
	}

	// Notification delivery goes through the task queue; the sync queue and
	// the async worker share one processor.
	notificationService := services.NewNotificationService(db, &cfg.Notification)
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notificationService.ProcessNotificationTask)
	}

	var worker *services.Worker
	if cfg.Redis.Enabled && taskQueue.IsAsync() {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(notificationService.ProcessNotificationTask)
			worker.Start()
		}
	}

	membership := services.NewMembershipService(
		teamStore, directory, services.NewQueueSink(taskQueue), auditService)

	expiry := services.NewExpiryService(teamStore, &cfg.Membership)
	expiry.StartScheduler()

	authHandler := handlers.NewAuthHandler(db, cfg)
	authService := services.NewAuthService(db, &cfg.JWT, &cfg.LDAP)
	if err := authService.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		cfg:           cfg,
		membership:    membership,
		audit:         auditService,
		notifications: notificationService,
		expiry:        expiry,
		taskQueue:     taskQueue,
		worker:        worker,

		authHandler:        authHandler,
		teamHandler:        handlers.NewTeamHandler(membership, &cfg.Membership),
		memberHandler:      handlers.NewMemberHandler(membership),
		inviteHandler:      handlers.NewInviteHandler(membership),
		joinRequestHandler: handlers.NewJoinRequestHandler(membership),
		channelHandler:     handlers.NewNotificationChannelHandler(db, notificationService),
		userHandler:        handlers.NewUserHandler(db),
		auditHandler:       handlers.NewAuditHandler(auditService),
		healthHandler:      handlers.NewHealthHandler(db),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.expiry.StopScheduler()

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	logger.Info().Msg("All services stopped")
}
