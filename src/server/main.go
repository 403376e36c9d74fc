package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "interview-copilot-service/src/docs"

	_ "github.com/swaggo/files"
	_ "github.com/swaggo/gin-swagger"

	"interview-copilot-service/src/ai"
	"interview-copilot-service/src/config"
	"interview-copilot-service/src/controller"
	"interview-copilot-service/src/db"
	"interview-copilot-service/src/middleware"
	"interview-copilot-service/src/rabbitmq"
	"interview-copilot-service/src/repository"
	"interview-copilot-service/src/router"
	"interview-copilot-service/src/service"
	"interview-copilot-service/src/ws"
)

// Server represents the HTTP server and the background components it owns
type Server struct {
	config          *config.GlobalConfig
	database        *db.DB
	http            *http.Server
	publisher       *rabbitmq.AMQPPublisher
	sweeper         *service.ExpirySweeper
	transcripts     *service.TranscriptBuffer
	shutdownHandler ShutdownHandlerInterface
}

// NewServer creates a new server instance
func NewServer(cfg *config.GlobalConfig) (*Server, error) {
	database, err := db.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	server := &Server{
		config:   cfg,
		database: database,
	}
	server.shutdownHandler = NewShutdownHandler(server)

	return server, nil
}

// Run starts the server with graceful shutdown using ShutdownHandler
func (s *Server) Run() error {
	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, syscall.SIGINT, syscall.SIGTERM)

	serverDone := s.startServerGoroutine()

	return s.shutdownHandler.HandleShutdown(serverDone, osSignals)
}

// startServerGoroutine wires the components, starts the HTTP server in a
// goroutine, and returns a channel for errors
func (s *Server) startServerGoroutine() chan error {
	serverDone := make(chan error, 1)

	go func() {
		sessionRepo := repository.NewCopilotSessionRepository(s.database)
		meetingRepo := repository.NewMeetingRepository(s.database)
		interviewRepo := repository.NewInterviewRepository(s.database)
		walletRepo := repository.NewWalletRepository(s.database)
		settingsRepo := repository.NewSettingsRepository(s.database)

		settingsCache := service.NewSettingsCache(settingsRepo)
		aiClient := ai.NewClient(settingsCache, s.config)

		var events service.EventPublisher
		if s.config.AMQPURL != "" {
			publisher, err := rabbitmq.NewAMQPPublisher(s.config.AMQPURL)
			if err != nil {
				serverDone <- fmt.Errorf("failed to connect to rabbitmq: %w", err)
				return
			}
			s.publisher = publisher
			events = rabbitmq.NewEventPublisher(publisher)
		} else {
			slog.Warn("AMQP_URL not set, session events disabled")
		}

		finalizer := service.NewFinalizer(sessionRepo, walletRepo, interviewRepo,
			settingsCache, events, config.SESSION_EVENTS_EXCHANGE)
		sessionService := service.NewCopilotSessionService(sessionRepo, finalizer, aiClient, interviewRepo)

		s.transcripts = service.NewTranscriptBuffer(meetingRepo)
		s.sweeper = service.NewExpirySweeper(meetingRepo, interviewRepo)
		s.sweeper.Start()

		verifier := middleware.NewHTTPVerifier(s.config.AuthServiceURL)
		hub := ws.NewHub()
		wsHandler := ws.NewHandler(hub, verifier, sessionRepo, meetingRepo,
			aiClient, finalizer, s.transcripts, false)

		r := router.NewRouter(verifier, router.Controllers{
			Sessions: controller.NewCopilotSessionController(sessionService),
			Wallet:   controller.NewWalletController(walletRepo),
			Settings: controller.NewSettingsController(settingsRepo, settingsCache),
		}, wsHandler)

		httpServer := &http.Server{
			Addr:    fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
			Handler: r,
		}
		s.http = httpServer

		slog.Info("Starting interview copilot service",
			"host", s.config.Host,
			"port", s.config.Port)

		serverDone <- s.startServer()
	}()

	return serverDone
}

// startServer starts the HTTP server and handles errors
func (s *Server) startServer() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
