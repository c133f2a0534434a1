package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	cfg "github.com/example/todochat/internal/config"
)

// App holds every injected dependency; nothing reads ambient state.
type App struct {
	Store       Store
	Tokens      *TokenService
	Agent       *Agent
	Log         zerolog.Logger
	rateLimiter *RateLimiter
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	// headers are already out at this point, so the error is unreportable
	_ = json.NewEncoder(w).Encode(v)
}

// Router assembles the full route table with middleware applied.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS)

	// Health check endpoints (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := a.Store.(interface{ ping() bool }); ok && !p.ping() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
	}).Methods("GET")

	// Authentication endpoints; logout is deliberately outside RequireAuth so
	// a client holding an expired token can still call it.
	r.HandleFunc("/auth/register", a.HandleRegister).Methods("POST")
	r.HandleFunc("/auth/login", a.HandleLogin).Methods("POST")
	r.HandleFunc("/auth/logout", a.HandleLogout).Methods("POST")

	// Everything else requires an authenticated owner.
	authed := r.NewRoute().Subrouter()
	authed.Use(a.RequireAuth)
	authed.Use(a.RateLimit)

	authed.HandleFunc("/auth/me", a.HandleMe).Methods("GET")

	authed.HandleFunc("/todos", a.HandleListTodos).Methods("GET")
	authed.HandleFunc("/todos", a.HandleCreateTodo).Methods("POST")
	authed.HandleFunc("/todos/stats", a.HandleTodoStats).Methods("GET")
	authed.HandleFunc("/todos/{id}", a.HandleGetTodo).Methods("GET")
	authed.HandleFunc("/todos/{id}", a.HandleUpdateTodo).Methods("PUT")
	authed.HandleFunc("/todos/{id}/toggle", a.HandleToggleTodo).Methods("PATCH")
	authed.HandleFunc("/todos/{id}", a.HandleDeleteTodo).Methods("DELETE")

	authed.HandleFunc("/categories", a.HandleListCategories).Methods("GET")
	authed.HandleFunc("/categories", a.HandleCreateCategory).Methods("POST")

	authed.HandleFunc("/chat", a.HandleChat).Methods("POST")

	return r
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func main() {
	c, err := cfg.New()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config")
	}
	logger := newLogger(c.LogLevel)

	var store Store
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteStore(c.SQLiteFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite init")
		}
		store = s
	case "postgres":
		// Apply migrations before connecting
		logger.Info().Msg("applying database migrations")
		if err := ApplyMigrations("./migrations", c.PostgresDSN); err != nil {
			logger.Fatal().Err(err).Msg("migrations")
		}
		p, err := NewPostgresStore(c.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres init")
		}
		store = p
		logger.Info().Msg("connected to PostgreSQL database")
	case "memory":
		logger.Warn().Msg("using in-memory database (not recommended for production)")
		store = NewMemoryStore()
	default:
		logger.Fatal().Str("adapter", c.DBAdapter).Msg("unsupported DB_ADAPTER (supported: postgres, sqlite, memory)")
	}

	app := &App{
		Store:  store,
		Tokens: NewTokenService(c.JwtSecret, time.Duration(c.TokenTTLMinutes)*time.Minute),
		Log:    logger,
	}
	if c.RateLimitPerMinute > 0 {
		app.rateLimiter = NewRateLimiter(c.RateLimitPerMinute)
	}
	if c.OpenAIAPIKey != "" {
		app.Agent = NewAgent(NewOpenAIClient(c.OpenAIAPIKey, c.OpenAIBaseURL), c.OpenAIModel, app)
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set; /chat disabled")
	}

	srv := &http.Server{
		Handler:      app.Router(),
		Addr:         ":" + c.Port,
		ReadTimeout:  5 * time.Second,
		// long enough for a full chat round trip (two completion calls)
		WriteTimeout: 150 * time.Second,
	}

	go func() {
		logger.Info().Str("port", c.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("shutdown failed")
	}
	if closer, ok := app.Store.(interface{ close() error }); ok {
		_ = closer.close()
	}
	logger.Info().Msg("server exited properly")
}
