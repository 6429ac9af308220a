package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/ender-accounts-be/internal/api"
	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/config"
	"github.com/isdelr/ender-accounts-be/internal/database"
	"github.com/isdelr/ender-accounts-be/internal/logger"
	"github.com/isdelr/ender-accounts-be/internal/services"
	"github.com/isdelr/ender-accounts-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		return
	}

	serve(cfg)
}

func serve(cfg *config.Config) {
	// Set up database
	db, err := database.New(database.Options{Driver: cfg.DatabaseDriver, DSN: cfg.DatabaseDSN})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Set up services
	eventService := services.NewEventService(database.NewEventStore(db), hub)
	userService := services.NewUserService(
		database.NewUserStore(db),
		auth.NewBcryptHasher(cfg.BcryptCost),
		eventService,
		cfg.QueryTimeout,
	)

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Tokens:         auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Hub:            hub,
		UserService:    userService,
		EventService:   eventService,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stop() // closes change feed subscribers

	log.Info().Msg("Server exiting")
}

// issueToken prints a signed session token for an existing identity.
// Usage: token -id 1 -email user@example.com
func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	id := fs.Uint("id", 0, "user id the token authenticates")
	email := fs.String("email", "", "email recorded in the token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}

	token, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL).Issue(auth.Identity{ID: *id, Email: *email})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
