package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rivalscope/rivalscope/internal/analysis"
	"github.com/rivalscope/rivalscope/internal/config"
	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/rivalscope/rivalscope/internal/notifications"
	"github.com/rivalscope/rivalscope/internal/orchestrator"
	"github.com/rivalscope/rivalscope/internal/pacing"
	"github.com/rivalscope/rivalscope/internal/scheduler"
	"github.com/rivalscope/rivalscope/internal/scraper"
	"github.com/rivalscope/rivalscope/internal/service"
	"github.com/rivalscope/rivalscope/internal/session"
	"github.com/rivalscope/rivalscope/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting competitor insights bot")

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to open datastore: %v", err)
	}
	competitors := store.NewCompetitorRepository(db)
	insights := store.NewInsightRepository(db)

	sessions, err := session.NewManager(cfg.SessionDir)
	if err != nil {
		logrus.Fatalf("Failed to initialize session manager: %v", err)
	}

	factory := adapterFactory(cfg, sessions)
	limits := scraper.DefaultLimits()
	limits.MaxItems = cfg.MaxItems
	limits.MaxCommentsPerItem = cfg.MaxCommentsPerItem
	orch := orchestrator.New(factory, limits, cfg.LegTimeout)

	gateway := analysis.NewGateway(cfg.AnalysisURL, cfg.AnalysisAPIKey, cfg.AnalysisTimeout)

	notifier := notifications.NewService(notifications.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		To:       cfg.NotificationEmail,
	})

	svc := service.New(competitors, insights, orch, gateway, notifier)

	schedulerService := scheduler.NewService(cfg, svc)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(orch)).Methods("GET")
	router.HandleFunc("/competitors", addCompetitorHandler(svc)).Methods("POST")
	router.HandleFunc("/competitors/{id}/sources", addSourcesHandler(svc)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // scrape runs are awaited in-request
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// adapterFactory wires each platform adapter with its base URL, credentials
// and the shared session manager. The per-run pace seed comes from the
// orchestrator.
func adapterFactory(cfg *config.Config, sessions *session.Manager) orchestrator.AdapterFactory {
	baseURLs := map[models.Platform]string{
		models.PlatformFeedA:    cfg.FeedABaseURL,
		models.PlatformFeedB:    cfg.FeedBBaseURL,
		models.PlatformWebsite:  cfg.WebsiteBaseURL,
		models.PlatformMaps:     cfg.MapsBaseURL,
		models.PlatformAppStore: cfg.AppStoreBaseURL,
	}
	creds := map[models.Platform]config.PlatformCredentials{
		models.PlatformFeedA: cfg.FeedACredentials,
		models.PlatformFeedB: cfg.FeedBCredentials,
	}

	return func(platform models.Platform, seed int64) scraper.Adapter {
		base, ok := baseURLs[platform]
		if !ok {
			return nil
		}
		opts := scraper.Options{
			BaseURL: base,
			Credentials: scraper.Credentials{
				Username: creds[platform].Username,
				Password: creds[platform].Password,
			},
			Sessions: sessions,
			Policy:   pacing.NewPolicy(seed),
		}
		return scraper.NewAdapter(platform, opts)
	}
}

type bindingRequest struct {
	Platform string `json:"platform"`
	Target   string `json:"target"`
}

type addCompetitorRequest struct {
	Name     string           `json:"name"`
	Bindings []bindingRequest `json:"bindings"`
}

type addSourcesRequest struct {
	Bindings []bindingRequest `json:"bindings"`
}

func toBindings(reqs []bindingRequest) []models.PlatformBinding {
	out := make([]models.PlatformBinding, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, models.PlatformBinding{
			Platform: models.Platform(r.Platform),
			Target:   r.Target,
			Enabled:  true,
		})
	}
	return out
}

// userID comes from the external auth collaborator, which fronts this
// service and injects the authenticated account id.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func metricsHandler(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(orch.GetMetrics()))
	}
}

func addCompetitorHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := userID(r)
		if uid == "" {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("missing user identity"))
			return
		}

		var req addCompetitorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("name is required"))
			return
		}

		result, err := svc.AddCompetitorAndScrape(r.Context(), uid, req.Name, toBindings(req.Bindings))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func addSourcesHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := userID(r)
		if uid == "" {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("missing user identity"))
			return
		}

		competitorID := mux.Vars(r)["id"]

		var req addSourcesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}

		result, err := svc.AddSourcesAndScrape(r.Context(), uid, competitorID, toBindings(req.Bindings))
		if err != nil {
			if errors.Is(err, store.ErrCompetitorNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
