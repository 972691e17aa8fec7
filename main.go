package main

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"inbox-service/internal/config"
	"inbox-service/internal/db"
	"inbox-service/internal/directory"
	"inbox-service/internal/handlers"
	"inbox-service/internal/localstore"
	"inbox-service/internal/middleware"
	"inbox-service/internal/observability"
	"inbox-service/internal/preferences"
	"inbox-service/internal/rabbitmq"
	"inbox-service/internal/registry"
	"inbox-service/internal/repositories"
	"inbox-service/internal/telemetry"
	"inbox-service/internal/unread"
	"inbox-service/internal/ws"
)

func main() {
	cfg := config.Load()

	shutdownTracing, err := observability.SetupTracing(context.Background(), cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	local, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}
	defer local.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)
	observability.SetPublisher(publisher)

	dir := directory.NewHTTPClient(cfg.DirectoryBaseURL)

	threadRepo := repositories.NewThreadRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	reactionRepo := repositories.NewReactionRepo(database)
	participantRepo := repositories.NewParticipantRepo(database)

	prefs := preferences.NewController(participantRepo, local)
	engine := unread.NewEngine(prefs, messageRepo, participantRepo, local)
	reg := registry.New(threadRepo, dir, prefs)

	hub := ws.NewHub()

	threadHandler := handlers.NewThreadHandler(reg, threadRepo, messageRepo, prefs, engine, dir, audit)
	messageHandler := handlers.NewMessageHandler(reg, messageRepo, reactionRepo, hub, audit, cfg.DailySendLimit)
	threadWS := ws.NewThreadWebSocketHandler(hub, reg, dir)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(dir)

	router.GET("/inbox", authMiddleware, threadHandler.ListInbox)
	router.GET("/compose-targets", authMiddleware, threadHandler.ComposeTargets)
	router.POST("/threads/resolve", authMiddleware, threadHandler.ResolveThread)
	router.GET("/threads/:token/messages", authMiddleware, messageHandler.GetMessages)
	router.POST("/threads/:token/messages", authMiddleware, messageHandler.PostMessage)
	router.DELETE("/threads/:token/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.POST("/threads/:token/messages/:message_id/reactions", authMiddleware, messageHandler.ToggleReaction)
	router.GET("/threads/:token/preferences", authMiddleware, threadHandler.GetPreferences)
	router.PUT("/threads/:token/preferences", authMiddleware, threadHandler.SetPreferences)
	router.POST("/threads/:token/read", authMiddleware, threadHandler.MarkRead)
	router.POST("/threads/:token/unread", authMiddleware, threadHandler.MarkUnread)
	router.GET("/threads/:token/receipts", authMiddleware, threadHandler.Receipts)

	router.GET("/ws/threads/:token", threadWS.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
