package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/loop-safety/internal/audit"
	"github.com/wolfman30/loop-safety/internal/hatespeech"
	httpmiddleware "github.com/wolfman30/loop-safety/internal/http/middleware"
	"github.com/wolfman30/loop-safety/internal/moderation"
	"github.com/wolfman30/loop-safety/internal/notify"
	"github.com/wolfman30/loop-safety/internal/safety"
	"github.com/wolfman30/loop-safety/internal/sentiment"
	"github.com/wolfman30/loop-safety/internal/submission"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	SentimentHandler    *sentiment.Handler
	HateSpeechHandler   *hatespeech.Handler
	ModerationHandler   *moderation.Handler
	SubmissionHandler   *submission.Handler
	SafetyHandler       *safety.Handler
	NotificationHandler *notify.Handler
	AuditHandler        *audit.Handler
	MetricsHandler      http.Handler
	DashboardHandler    http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string
	RateLimitRPS        float64
	RateLimitBurst      int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitRPS > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.SentimentHandler != nil {
			v1.Post("/sentiment", cfg.SentimentHandler.Analyze)
		}
		if cfg.HateSpeechHandler != nil {
			v1.Post("/hate-speech", cfg.HateSpeechHandler.Detect)
		}
		if cfg.ModerationHandler != nil {
			v1.Post("/moderation", cfg.ModerationHandler.Moderate)
		}
		if cfg.SubmissionHandler != nil {
			v1.Post("/submissions", cfg.SubmissionHandler.Submit)
		}
		v1.Route("/accounts", func(accounts chi.Router) {
			if cfg.SafetyHandler != nil {
				accounts.Post("/", cfg.SafetyHandler.CreateAccount)
				accounts.Get("/{accountID}/safety", cfg.SafetyHandler.GetSafety)
			}
			if cfg.NotificationHandler != nil {
				accounts.Get("/{accountID}/notifications", cfg.NotificationHandler.List)
			}
		})
	})

	// Admin routes are only mounted when a signing secret is configured.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.SafetyHandler != nil {
				admin.Get("/accounts/{accountID}/violations", cfg.SafetyHandler.ListViolations)
			}
			if cfg.AuditHandler != nil {
				admin.Get("/moderation/audit", cfg.AuditHandler.List)
			}
			if cfg.DashboardHandler != nil {
				admin.Handle("/dashboard", cfg.DashboardHandler)
			}
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
