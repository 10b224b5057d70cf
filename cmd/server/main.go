package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quadrant/backend/internal/config"
	"quadrant/backend/internal/database"
	"quadrant/backend/internal/handler"
	"quadrant/backend/internal/hub"
	"quadrant/backend/internal/logger"
	"quadrant/backend/internal/relation"
	"quadrant/backend/internal/store"
	"quadrant/backend/internal/store/gormstore"
	"quadrant/backend/internal/store/mongostore"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	// Swagger imports
	_ "quadrant/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           Quadrant API
// @version         1.0
// @description     Accounts, friend requests, friendships and blocks.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg)
	if err != nil {
		zlog.Fatal("Failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	zlog.Info("Store ready", zap.String("backend", cfg.StoreBackend), zap.String("driver", cfg.DBDriver))

	events := hub.NewHub()
	relations := relation.NewService(s, events, zlog.Named("relation"))
	h := handler.New(s, relations, events, zlog.Named("http"))

	router := h.Router()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	go func() {
		zlog.Info("Server is running", zap.String("addr", cfg.ServerAddr))
		zlog.Info(fmt.Sprintf("Swagger UI is available at http://localhost%s/swagger/index.html", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Graceful shutdown failed", zap.Error(err))
	}
	if err := s.Close(shutdownCtx); err != nil {
		zlog.Error("Closing store failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		ms, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return ms, nil
	default:
		db, err := database.Connect(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return gormstore.New(db), nil
	}
}
