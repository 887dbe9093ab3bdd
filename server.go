package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"bitbucket.org/mmdatafocus/billing_backend/config"
	"bitbucket.org/mmdatafocus/billing_backend/middlewares"
	"bitbucket.org/mmdatafocus/billing_backend/models"
	"bitbucket.org/mmdatafocus/billing_backend/salesapi"
)

const defaultPort = "8080"

var tracer = otel.Tracer("billing-backend")

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	salesClient, err := salesapi.NewClient()
	if err != nil {
		log.Fatalf("failed to create sales api client: %v", err)
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Correlation-Id"},
		ExposeHeaders:    []string{"X-Correlation-Id", "Content-Disposition"},
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middlewares.CorrelationMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1", middlewares.AuthMiddleware())
	api.GET("/invoices/outstanding", outstandingHandler(salesClient))
	api.GET("/invoices/outstanding/export", outstandingExportHandler(salesClient))
	api.GET("/invoices/:id", invoiceDetailHandler(salesClient))
	api.POST("/invoices/:id/split", splitHandler(salesClient))

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start listening first (Cloud Run needs the port open quickly), then
	// bring up DB and Redis with retries in the background. Handlers
	// return 503 until both are ready.
	go func() {
		log.Printf("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	go func() {
		config.ConnectDatabaseWithRetry()
		if err := models.AutoMigrate(config.GetDB()); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		config.ConnectRedisWithRetry()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}
