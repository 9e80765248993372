package main

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"finplan/config"
	"finplan/db"
	"finplan/handlers"
	"finplan/services/agent"
	"finplan/services/llm"
)

func main() {
	cfg := config.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	runtime, err := buildRuntime(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize model runtime")
	}

	tools := []agent.Tool{
		agent.NewWebSearchTool(cfg.SearchEndpoint, nil),
		agent.NewWebFetchTool(nil),
	}

	agentService := agent.NewService(runtime, tools, logger, agent.Config{
		MaxRounds:          cfg.MaxRounds,
		MaxToolResultChars: cfg.MaxToolResultChars,
		Think:              cfg.EnableThinking,
	})

	var audit db.AuditRepository
	if cfg.DatabaseURL != "" {
		repo, err := db.NewPostgresAuditRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize audit database")
		}
		defer repo.Close()
		audit = repo
	}

	planHandler := handlers.NewPlanHandler(
		runtime, agentService, audit, logger,
		cfg.HomePurchaseModel, cfg.RetirementModel, cfg.RequestTimeout,
	)

	router := mux.NewRouter()

	router.Use(corsMiddleware)

	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("OPTIONS")

	planHandler.RegisterRoutes(router)

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	addr := ":" + cfg.Port
	logger.Info().Str("port", cfg.Port).Str("provider", cfg.Provider).Msg("server starting")

	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal().Err(err).Msg("server failed to start")
	}
}

func buildRuntime(cfg config.Config) (llm.Runtime, error) {
	switch cfg.Provider {
	case "anthropic":
		return llm.NewAnthropicRuntime(cfg.AnthropicAPIKey), nil
	default:
		return llm.NewOllamaRuntime(cfg.OllamaHost)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}
