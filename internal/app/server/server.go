package server

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"leavehub/internal/domain/audit"
	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/employee"
	"leavehub/internal/domain/leave"
	"leavehub/internal/domain/notifications"
	"leavehub/internal/platform/config"
	"leavehub/internal/platform/db"
	"leavehub/internal/platform/email"
	"leavehub/internal/platform/jobs"
	"leavehub/internal/platform/metrics"
	"leavehub/internal/transport/http/api"
	audithandler "leavehub/internal/transport/http/handlers/audit"
	authhandler "leavehub/internal/transport/http/handlers/auth"
	leavehandler "leavehub/internal/transport/http/handlers/leave"
	notificationshandler "leavehub/internal/transport/http/handlers/notifications"
	"leavehub/internal/transport/http/middleware"
)

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	// Domain wiring. Everything shares one leave.Store; the ledger is the
	// only component that writes balance rows.
	leaveStore := leave.NewPGStore(pool)
	directory := employee.NewPGStore(pool)
	notifyStore := notifications.NewPGStore(pool)
	notifySvc := notifications.New(notifyStore).
		WithMailer(email.New(cfg), notifyStore, cfg.EmailFrom)
	auditSvc := audit.New(pool)

	ledger := leave.NewLedger(leaveStore)
	calendar := leave.NewCalendar(leaveStore)
	registry := leave.NewRegistry(leaveStore)
	engine := leave.NewEngine(leaveStore, ledger, calendar, registry, directory, notifySvc)
	credits := leave.NewCreditWorkflow(leaveStore, ledger, registry, directory, notifySvc)
	analytics := leave.NewAggregator(leaveStore, directory)

	jobsSvc := jobs.New(pool, leaveStore, ledger, calendar, directory, cfg)
	jobsSvc.Start(ctx)

	perms := auth.StaticPermissions{}
	collector := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics(collector))
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(auth.NewStore(pool), cfg.JWTSecret, auditSvc)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.Get("/auth/me", authHandler.HandleMe)

		leaveHandler := leavehandler.NewHandler(registry, calendar, ledger, engine, credits,
			analytics, perms, auditSvc, jobsSvc)
		leaveHandler.RegisterRoutes(r)

		notificationsHandler := notificationshandler.NewHandler(notifySvc)
		notificationsHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(auditSvc, perms)
		auditHandler.RegisterRoutes(r)

		if cfg.MetricsEnabled {
			r.With(middleware.RequirePermission(auth.PermLeaveAdmin, perms)).
				Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
					api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
				})
		}
	})

	slog.Info("leavehub server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
