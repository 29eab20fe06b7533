package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chopmeet-service/internal/auth"
	"chopmeet-service/internal/db"
	"chopmeet-service/internal/handlers"
	"chopmeet-service/internal/middleware"
	"chopmeet-service/internal/observability"
	"chopmeet-service/internal/rabbitmq"
	"chopmeet-service/internal/repositories"
	"chopmeet-service/internal/telemetry"
	"chopmeet-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := observability.SetupTracing(context.Background(), "chopmeet-service", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	exchange := getEnv("AMQP_EXCHANGE", "chopmeet.events")
	publisher := rabbitmq.NewPublisher(os.Getenv("AMQP_URL"), exchange)
	defer publisher.Close()
	log.Printf("audit publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))

	audit := telemetry.NewAuditEmitter(publisher, getEnv("AUDIT_ROUTING_KEY", "audit.chopmeet"), "chopmeet-service", getEnv("ENVIRONMENT", "dev"))

	if url := os.Getenv("AMQP_URL"); url != "" {
		eventPublisher, err := observability.NewAMQPPublisher(url, exchange)
		if err != nil {
			log.Printf("ws event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(eventPublisher)
			defer eventPublisher.Close()
		}
	}

	userRepo := repositories.NewUserRepo(database)
	mealRepo := repositories.NewMealRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	revoker := auth.NewRevoker(os.Getenv("REDIS_ADDR"))
	authService := auth.NewService(userRepo, revoker, getEnv("JWT_SECRET", "dev-secret-change-me"), 24*time.Hour)

	hub := ws.NewHub()

	authHandler := handlers.NewAuthHandler(authService, audit)
	mealHandler := handlers.NewMealHandler(mealRepo, hub, audit)
	chatHandler := handlers.NewChatHandler(mealRepo, messageRepo, authService, hub, audit)

	chatWS := ws.NewChatWebSocketHandler(hub, mealRepo, authService)
	feedWS := ws.NewFeedWebSocketHandler(hub, authService)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware("chopmeet-service"))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(authService)

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)
	router.POST("/auth/logout", authHandler.Logout)
	router.GET("/auth/me", authMiddleware, authHandler.Me)
	router.PATCH("/auth/me", authMiddleware, authHandler.UpdateProfile)

	router.GET("/meals", authMiddleware, mealHandler.ListMeals)
	router.POST("/meals", authMiddleware, mealHandler.CreateMeal)
	router.GET("/meals/mine", authMiddleware, mealHandler.ListMyMeals)
	router.GET("/meals/:meal_id", authMiddleware, mealHandler.GetMeal)
	router.PATCH("/meals/:meal_id", authMiddleware, mealHandler.UpdateMeal)
	router.DELETE("/meals/:meal_id", authMiddleware, mealHandler.DeleteMeal)
	router.POST("/meals/:meal_id/join", authMiddleware, mealHandler.JoinMeal)
	router.POST("/meals/:meal_id/leave", authMiddleware, mealHandler.LeaveMeal)

	router.GET("/meals/:meal_id/messages", authMiddleware, chatHandler.GetMessages)
	router.POST("/meals/:meal_id/messages", authMiddleware, chatHandler.PostMessage)
	router.POST("/meals/:meal_id/read", authMiddleware, chatHandler.MarkRead)
	router.GET("/chats", authMiddleware, chatHandler.ListChats)

	router.GET("/ws/meals", feedWS.Handle)
	router.GET("/ws/meals/:meal_id", chatWS.Handle)

	handlers.RegisterDebugRoutes(router, audit, os.Getenv("DEBUG_ROUTES") == "1")

	port := getEnv("PORT", "8080")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
