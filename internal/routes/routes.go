package routes

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rks020/ptbodychange/internal/config"
	"github.com/rks020/ptbodychange/internal/handlers"
	"github.com/rks020/ptbodychange/internal/identity"
	"github.com/rks020/ptbodychange/internal/middleware"
	"github.com/rks020/ptbodychange/internal/push"
	"github.com/rks020/ptbodychange/internal/repository"
	"github.com/rks020/ptbodychange/internal/services"
)

// noopPusher stands in when no push credentials are configured, so
// announcements still store without a messaging backend.
type noopPusher struct{}

func (noopPusher) Send(ctx context.Context, tokens []string, msg push.Message) (int, error) {
	return 0, nil
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) error {
	sessionRepo := repository.NewSessionRepository(db)
	scheduleStore := repository.NewScheduleStore(db)
	memberRepo := repository.NewMemberRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	organizationRepo := repository.NewOrganizationRepository(db)
	tokenRepo := repository.NewFcmTokenRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)

	var storageService services.StorageService
	if cfg.SupabaseURL != "" && cfg.SupabaseBucket != "" && cfg.SupabaseServiceKey != "" {
		storageService = services.NewObjectStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	}

	identityClient := identity.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)

	var pushClient interface {
		Send(ctx context.Context, tokens []string, msg push.Message) (int, error)
	} = noopPusher{}
	if cfg.FCMServiceAccount != "" {
		client, err := push.NewClient([]byte(cfg.FCMServiceAccount))
		if err != nil {
			return fmt.Errorf("configure push client: %w", err)
		}
		pushClient = client
	}

	schedulerService := services.NewSchedulerService(sessionRepo, scheduleStore, memberRepo)
	sessionService := services.NewSessionService(sessionRepo, scheduleStore)
	accountService := services.NewAccountService(profileRepo, memberRepo, tokenRepo, organizationRepo, identityClient)
	announcementService := services.NewAnnouncementService(announcementRepo, profileRepo, tokenRepo, pushClient)
	emailService := services.NewEmailService(cfg.ResendAPIKey, cfg.ContactFromEmail, cfg.ContactToEmail)

	scheduleHandler := handlers.NewScheduleHandler(schedulerService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	accountHandler := handlers.NewAccountHandler(accountService)
	memberHandler := handlers.NewMemberHandler(memberRepo)
	paymentHandler := handlers.NewPaymentHandler(paymentRepo)
	announcementHandler := handlers.NewAnnouncementHandler(announcementService)
	contactHandler := handlers.NewContactHandler(emailService)
	profileHandler := handlers.NewProfileHandler(profileRepo, tokenRepo, storageService)

	contactLimiter := middleware.NewRateLimiter(0.2, 3)
	deletionLimiter := middleware.NewRateLimiter(0.5, 2)

	api := app.Group("/api")
	api.Post("/contact", contactLimiter.Limit(), contactHandler.SendMessage)

	v1 := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	account := v1.Group("/account")
	account.Post("/delete", deletionLimiter.Limit(), accountHandler.DeleteAccount)

	v1.Post("/invites", accountHandler.InviteUser)
	v1.Put("/users/:id", accountHandler.UpdateUser)

	profile := v1.Group("/profile")
	profile.Get("", profileHandler.GetMe)
	profile.Put("", profileHandler.UpdateMe)
	profile.Post("/avatar", profileHandler.UploadAvatar)
	profile.Post("/fcm-token", profileHandler.RegisterFcmToken)

	v1.Get("/trainers", profileHandler.ListTrainers)

	members := v1.Group("/members")
	members.Post("", memberHandler.CreateMember)
	members.Get("", memberHandler.ListMembers)
	members.Get("/:id", memberHandler.GetMember)
	members.Put("/:id", memberHandler.UpdateMember)
	members.Delete("/:id", memberHandler.DeleteMember)
	members.Get("/:id/history", sessionHandler.MemberHistory)
	members.Post("/:id/schedule", scheduleHandler.CreateSchedule)

	sessions := v1.Group("/sessions")
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Put("/:id/time", sessionHandler.UpdateSessionTime)
	sessions.Post("/:id/complete", sessionHandler.CompleteSession)
	sessions.Post("/:id/cancel", sessionHandler.CancelSession)
	sessions.Delete("/:id", sessionHandler.DeleteSession)

	payments := v1.Group("/payments")
	payments.Post("", paymentHandler.CreatePayment)
	payments.Get("", paymentHandler.ListPayments)
	payments.Put("/:id", paymentHandler.UpdatePayment)
	payments.Delete("/:id", paymentHandler.DeletePayment)

	announcements := v1.Group("/announcements")
	announcements.Post("", announcementHandler.Broadcast)
	announcements.Get("", announcementHandler.ListAnnouncements)

	return nil
}
