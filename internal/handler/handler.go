package handler

import (
	"errors"
	"net/http"

	"quadrant/backend/internal/auth"
	"quadrant/backend/internal/hub"
	"quadrant/backend/internal/relation"
	"quadrant/backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
	Code  string `json:"code,omitempty" example:"already_has_relationship"`
}

// Handler serves the HTTP API.
type Handler struct {
	store     store.Store
	relations *relation.Service
	hub       *hub.Hub
	log       *zap.Logger
}

func New(s store.Store, relations *relation.Service, h *hub.Hub, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: s, relations: relations, hub: h, log: log}
}

// Router builds the gin engine with every API route.
func (h *Handler) Router() *gin.Engine {
	RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", h.RegisterUser)
			authRoutes.POST("/login", h.LoginUser)
		}

		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware(), auth.AccountMiddleware(h.store))
		{
			userRoutes.GET("", h.SearchUsers) // Must be before /:id
			userRoutes.GET("/me", h.GetMe)
			userRoutes.GET("/me/relations", h.GetRelations)
			userRoutes.GET("/:id", h.GetUserByID)
			userRoutes.GET("/:id/relationship", h.GetRelationship)

			// Relationship transitions
			userRoutes.POST("/:id/request", h.SendRequest)
			userRoutes.POST("/:id/accept", h.AcceptRequest)
			userRoutes.POST("/:id/deny", h.DenyRequest)
			userRoutes.POST("/:id/cancel", h.CancelRequest)
			userRoutes.POST("/:id/unfriend", h.RemoveFriend)
			userRoutes.POST("/:id/block", h.BlockUser)
			userRoutes.POST("/:id/unblock", h.UnblockUser)
		}

		apiV1.GET("/profiles/:id", auth.OptionalAuthMiddleware(), h.GetProfile)
		apiV1.GET("/events", auth.AuthMiddleware(), auth.AccountMiddleware(h.store), h.Events)
	}

	return router
}

// requestLogger writes one structured line per request.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		}
		if id, ok := auth.UserID(c); ok {
			fields = append(fields, zap.Stringer("user", id))
		}
		h.log.Debug("request", fields...)
	}
}

// statusFor maps relationship rule violations to HTTP status codes.
func statusFor(err *relation.Error) int {
	switch err {
	case relation.ErrSelfRelation, relation.ErrInvalidRelationToBot, relation.ErrUnknownStatus:
		return http.StatusBadRequest
	case relation.ErrUserNotFound, relation.ErrRelationNotFound:
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

// respondError writes err as JSON. Domain errors keep their reason code; anything
// else is logged and hidden behind a 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	var relErr *relation.Error
	if errors.As(err, &relErr) {
		c.JSON(statusFor(relErr), ErrorResponse{Error: err.Error(), Code: relErr.Code})
		return
	}

	h.log.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
}

// paramUserID parses the :id path parameter, writing a 400 when it is not a UUID.
func paramUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid user ID"})
		return uuid.Nil, false
	}
	return id, true
}
