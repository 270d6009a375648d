package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/meeting-room-reservation/internal/config"     // Internal config loader
	"github.com/iliyamo/meeting-room-reservation/internal/database"   // MySQL connector
	"github.com/iliyamo/meeting-room-reservation/internal/handler"    // HTTP handlers
	"github.com/iliyamo/meeting-room-reservation/internal/queue"      // Notification consumer
	"github.com/iliyamo/meeting-room-reservation/internal/repository" // Data access layer
	"github.com/iliyamo/meeting-room-reservation/internal/router"     // Route registration
	"github.com/iliyamo/meeting-room-reservation/internal/service"    // Reservation workflow
)

func main() {
	// Load .env when present; in production the variables come from the
	// environment and the file is simply absent.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs rate limiting and response caching.  A nil client just
	// disables both; the API itself never depends on Redis.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and caching disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	branches := repository.NewBranchRepo(db)
	rooms := repository.NewRoomRepo(db)
	events := repository.NewEventRepo(db)
	store := repository.NewEventStore(db, events)

	reservations := service.NewReservation(store, rooms, branches, users, service.QueuePublisher{})

	h := router.Handlers{
		Auth:          handler.NewAuthHandler(cfg, users, branches, tokens),
		Branches:      handler.NewBranchHandler(branches),
		Rooms:         handler.NewRoomHandler(rooms, events),
		Events:        handler.NewEventHandler(reservations, events),
		Notifications: handler.NewNotificationHandler(events, users, branches),
	}

	// The consumer drains booking events from RabbitMQ and writes the
	// notification log.  It reconnects on its own; a hard failure only
	// costs notifications, never bookings.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	e := echo.New() // Create Echo instance
	router.RegisterRoutes(e)
	router.RegisterAPI(e, h, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
