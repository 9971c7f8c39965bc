package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexml/marketplace-server/internal/api"
	"github.com/nexml/marketplace-server/internal/config"
	"github.com/nexml/marketplace-server/internal/payment"
	"github.com/nexml/marketplace-server/internal/repository"
	"github.com/nexml/marketplace-server/internal/service"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Create repository and payment settler
	repo := repository.NewPostgresRepository(db)
	settler := payment.NewLedgerSettler(db)

	// Create service
	svc := service.NewMarketplaceService(repo, settler, cfg.Auth.JWTSecret)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
