package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hearthhq/hearth/internal/billing"
	"github.com/hearthhq/hearth/internal/config"
	"github.com/hearthhq/hearth/internal/email"
	"github.com/hearthhq/hearth/internal/handler"
	"github.com/hearthhq/hearth/internal/middleware"
	"github.com/hearthhq/hearth/internal/notify"
	"github.com/hearthhq/hearth/internal/photo"
	"github.com/hearthhq/hearth/internal/push"
	"github.com/hearthhq/hearth/internal/realtime"
	"github.com/hearthhq/hearth/internal/store"
)

type Server struct {
	db             *sql.DB
	hub            *realtime.Hub
	authH          *handler.AuthHandler
	taskH          *handler.TaskHandler
	familyH        *handler.FamilyHandler
	preferenceH    *handler.PreferenceHandler
	statsH         *handler.StatsHandler
	cronH          *handler.CronHandler
	pushH          *handler.PushHandler
	billingH       *billing.Handler
	sessionStore   *store.SessionStore
	familyStore    *store.FamilyStore
	magicLinkStore *store.MagicLinkStore
	rateLimiter    *middleware.RateLimiter
	scheduler      *notify.Scheduler
	cronSecret     string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := realtime.NewHub(logger.With("component", "realtime"))

	taskStore := store.NewTaskStore(db)
	userStore := store.NewUserStore(db)
	familyStore := store.NewFamilyStore(db)
	sessionStore := store.NewSessionStore(db)
	magicLinkStore := store.NewMagicLinkStore(db)
	preferenceStore := store.NewPreferenceStore(db)
	pushStore := store.NewPushStore(db)
	subscriptionStore := billing.NewSubscriptionStore(db)

	emailClient := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.FromEmail, cfg.Server.BaseURL)
	photoStore := photo.NewStore(photo.Config{
		Endpoint:  cfg.Photo.Endpoint,
		Bucket:    cfg.Photo.Bucket,
		Region:    cfg.Photo.Region,
		AccessKey: cfg.Photo.AccessKey,
		SecretKey: cfg.Photo.SecretKey,
	})
	stripeClient := billing.NewStripeClient(billing.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		PriceID:       cfg.Stripe.PriceID,
		AnnualPriceID: cfg.Stripe.AnnualPriceID,
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
	})

	var pushSvc *push.Service
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
	}

	loc := cfg.Location()
	clock := notify.SystemClock()
	notifyCfg := notify.Config{
		LookaheadWindow:   cfg.Notify.LookaheadWindow,
		ReminderRateLimit: cfg.Notify.ReminderRateLimit,
		Location:          loc,
	}

	dispatcher := notify.NewEmailDispatcher(userStore, emailClient, pushSvc, pushStore, logger.With("component", "dispatch"))
	reminderEngine := notify.NewReminderEngine(taskStore, preferenceStore, dispatcher, clock, notifyCfg, logger.With("component", "reminders"))
	digestEngine := notify.NewDigestEngine(taskStore, preferenceStore, dispatcher, clock, notifyCfg, logger.With("component", "digests"))
	reporter := notify.NewReporter(taskStore, preferenceStore, clock, loc)
	scheduler := notify.NewScheduler(reminderEngine, digestEngine, loc, logger.With("component", "scheduler"))

	return &Server{
		db:             db,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, familyStore, sessionStore, magicLinkStore, preferenceStore, emailClient, cfg.Server.BaseURL, logger.With("component", "auth")),
		taskH:          handler.NewTaskHandler(taskStore, userStore, familyStore, preferenceStore, emailClient, photoStore, hub, logger.With("component", "tasks")),
		familyH:        handler.NewFamilyHandler(familyStore, userStore, logger.With("component", "family")),
		preferenceH:    handler.NewPreferenceHandler(preferenceStore, logger.With("component", "preferences")),
		statsH:         handler.NewStatsHandler(reporter, logger.With("component", "stats")),
		cronH:          handler.NewCronHandler(reminderEngine, digestEngine, logger.With("component", "cron")),
		pushH:          handler.NewPushHandler(pushStore, cfg.Push.VAPIDPublicKey, logger.With("component", "push")),
		billingH:       billing.NewHandler(stripeClient, subscriptionStore, userStore, logger.With("component", "billing")),
		sessionStore:   sessionStore,
		familyStore:    familyStore,
		magicLinkStore: magicLinkStore,
		rateLimiter:    middleware.NewRateLimiter(),
		scheduler:      scheduler,
		cronSecret:     cfg.Server.CronSecret,
		logger:         logger,
	}
}

// Scheduler returns the notification scheduler so main can manage its
// lifecycle.
func (s *Server) Scheduler() *notify.Scheduler {
	return s.scheduler
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// MagicLinkStore returns the magic link store for cleanup tasks.
func (s *Server) MagicLinkStore() *store.MagicLinkStore {
	return s.magicLinkStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /auth/verify", s.authH.Verify)
	outerMux.HandleFunc("POST /webhooks/stripe", s.billingH.HandleWebhook)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Cron trigger routes, guarded by the shared secret
	cronMux := http.NewServeMux()
	cronMux.HandleFunc("POST /internal/cron/reminders", s.cronH.ProcessReminders)
	cronMux.HandleFunc("POST /internal/cron/digests", s.cronH.ProcessDigests)
	outerMux.Handle("/internal/cron/", middleware.RequireSharedSecret(s.cronSecret)(cronMux))

	// Authenticated routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.familyStore)
	outerMux.Handle("/api/", authMiddleware(protectedMux))
	outerMux.Handle("GET /ws", authMiddleware(realtime.Handler(s.hub, s.logger.With("component", "realtime"))))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	parent := middleware.RequireParent

	// Session routes
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("POST /api/auth/pin/verify", s.authH.VerifyPIN)

	// Task routes
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.Handle("POST /api/tasks", parent(http.HandlerFunc(s.taskH.Create)))
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.Handle("PUT /api/tasks/{id}", parent(http.HandlerFunc(s.taskH.Update)))
	mux.Handle("DELETE /api/tasks/{id}", parent(http.HandlerFunc(s.taskH.Delete)))
	mux.HandleFunc("POST /api/tasks/{id}/start", s.taskH.Start)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.Handle("POST /api/tasks/{id}/verify", parent(http.HandlerFunc(s.taskH.Verify)))
	mux.Handle("POST /api/tasks/{id}/reject", parent(http.HandlerFunc(s.taskH.Reject)))
	mux.Handle("GET /api/tasks/{id}/photo", parent(http.HandlerFunc(s.taskH.Photo)))

	// Family routes
	mux.HandleFunc("GET /api/family", s.familyH.Get)
	mux.Handle("POST /api/family/invite", parent(http.HandlerFunc(s.authH.Invite)))
	mux.Handle("PUT /api/family/members/{id}/role", parent(http.HandlerFunc(s.familyH.UpdateMemberRole)))
	mux.Handle("DELETE /api/family/members/{id}", parent(http.HandlerFunc(s.familyH.RemoveMember)))
	mux.HandleFunc("POST /api/family/members/{id}/pin", s.authH.SetPIN)

	// Notification preference routes
	mux.HandleFunc("GET /api/preferences", s.preferenceH.Get)
	mux.HandleFunc("PUT /api/preferences", s.preferenceH.Update)

	// Stats
	mux.HandleFunc("GET /api/stats", s.statsH.Get)

	// Push subscription routes
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscriptions", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.List)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)

	// Billing routes
	mux.HandleFunc("GET /api/billing", s.billingH.GetSubscription)
	mux.Handle("POST /api/billing/checkout", parent(http.HandlerFunc(s.billingH.CreateCheckout)))
	mux.Handle("POST /api/billing/portal", parent(http.HandlerFunc(s.billingH.CreatePortal)))
}
