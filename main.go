package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chat-service/cache"
	"chat-service/config"
	"chat-service/controller"
	"chat-service/database"
	"chat-service/event"
	"chat-service/logger"
	"chat-service/presence"
	"chat-service/router"
	"chat-service/socketio"
	"chat-service/status"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

func main() {
	log := logger.New(config.Config("LOG_LEVEL"))
	defer log.Sync()

	rest := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               "chat-service",
	})
	rest.Use(cors.New())

	// Logical redis databases: 0 refresh tokens, 1 socket.io adapter,
	// 2 cache + presence, 3 fan-out relay.
	tokens := database.NewRedis(0)
	adapterRdb := database.NewRedis(1)
	cacheRdb := database.NewRedis(2)
	relayRdb := database.NewRedis(3)

	db := database.NewPostgres(log)
	enforcer := database.Casbin(db)

	projections := cache.New(cacheRdb, log)
	sessions := presence.NewRedisStore(cacheRdb)

	relay := event.NewRedisRelay(relayRdb, log)
	journal := event.NewJournal([]string{"backoffice"}, log)

	statuses := status.NewService(db, projections, relay, log)

	gateway := socketio.Init(rest, adapterRdb, log)

	graceWindow := 10 * time.Second
	if raw := config.Config("PRESENCE_GRACE_WINDOW"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil {
			graceWindow = time.Duration(seconds) * time.Second
		}
	}

	deps := &router.SocketDeps{
		Gateway:     gateway,
		DB:          db,
		Presence:    sessions,
		Status:      statuses,
		Cache:       projections,
		Log:         log,
		GraceWindow: graceWindow,
	}

	router.Socket(deps)
	relay.Subscribe(context.Background(), router.Events(deps))

	ctl := controller.New(db, tokens, projections, sessions, relay, statuses, journal, log)
	router.Rest(rest, ctl, enforcer)

	go func() {
		if err := rest.Listen(fmt.Sprintf(":%s", config.Config("SERVER_PORT"))); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()
	log.Info("chat-service started", zap.String("port", config.Config("SERVER_PORT")))

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-exit

	log.Info("shutting down")
	relay.Close()
	journal.Close()
	gateway.Close()
	rest.Shutdown()
}
